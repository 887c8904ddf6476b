package bootloader

import (
	"errors"
	"fmt"
)

// StepError reports the step an update failed in.
type StepError struct {
	// Step is one of the Step constants
	Step string

	// Err is the underlying failure
	Err error

	// Retryable tells the caller the whole update may safely be restarted
	Retryable bool
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if err is or wraps a retryable StepError.
func IsRetryable(err error) bool {
	var serr *StepError
	return errors.As(err, &serr) && serr.Retryable
}

// ChecksumMismatchError indicates that the application checksum reported by
// the device differs from the checksum of the data sent.
type ChecksumMismatchError struct {
	Expected uint16
	Actual   uint16
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("Checksum mismatch: device reports %04X, expected %04X", e.Actual, e.Expected)
}
