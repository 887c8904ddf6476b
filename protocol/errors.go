package protocol

import (
	"errors"
	"fmt"
	"time"
)

// ProtocolError is returned when the device answers a command with E,<code>.
type ProtocolError struct {
	// Token is the command that failed
	Token string

	// Code is the numeric device error code
	Code int

	// Message is the catalog message for Code
	Message string

	// Result holds whatever was accumulated before the error line
	Result *Result
}

func (e *ProtocolError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("Error %d: %s", e.Code, msg)
}

// IsProtocolError returns true if the error is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr)
}

// CodeOf returns the device error code carried by err, if any.
func CodeOf(err error) (int, bool) {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr.Code, true
	}
	return 0, false
}

// TimeoutError indicates that no terminal line arrived within the deadline.
type TimeoutError struct {
	Token string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %s timed out after %s", e.Token, e.After)
}

// Timeout lets callers detect the condition through an interface check.
func (e *TimeoutError) Timeout() bool { return true }

// TransportError indicates that the link failed while opening, flushing or
// writing.
type TransportError struct {
	// Op is the link operation that failed: "open", "flush", "write" or "read"
	Op string

	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("link %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
