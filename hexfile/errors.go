package hexfile

import (
	"errors"
	"fmt"
)

// ErrUnexpectedEOF is returned when the image ends without an EOF record.
var ErrUnexpectedEOF = errors.New("Unexpected end of firmware file")

// FormatError describes a malformed record.
type FormatError struct {
	// Line is the 1-based line number, zero when unknown
	Line int

	// Reason is one of the Reason constants
	Reason string

	// Err is the underlying decoding error, if any
	Err error
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", e.Reason, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
