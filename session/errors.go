package session

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors.
var (
	// ErrAlreadyOpening is returned when a port is opened while a previous
	// open of the same port has not completed
	ErrAlreadyOpening = errors.New("already opening this port")

	// ErrNotOpen is returned for operations on a port without a session
	ErrNotOpen = errors.New("port not opened")

	// ErrNotActive is returned for operations on a session that has not
	// identified the device yet, or whose close failed
	ErrNotActive = errors.New("port not active")

	// ErrClosed is returned for commands submitted to, or interrupted by, a
	// closed session
	ErrClosed = errors.New("session closed")

	// ErrInvalidSettings is returned when writeSettings gets no mapping
	ErrInvalidSettings = errors.New("Settings should be an object")
)

// LoginError is returned when the device rejects LOGIN.
type LoginError struct {
	Err error
}

func (e *LoginError) Error() string {
	return "Login failed: " + e.Err.Error()
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// BatchError reports that some keys of a settings write failed. Results
// holds the outcome of every key, successful ones included.
type BatchError struct {
	// Failed lists the keys that failed, sorted
	Failed []string

	// Results maps each key to true or false, plus "<key>__error" and
	// "<key>__code" details for failed keys
	Results map[string]interface{}
}

func (e *BatchError) Error() string {
	return "Failed to set some value(s): " + strings.Join(e.Failed, ", ")
}

func newBatchError(results map[string]interface{}) *BatchError {
	var failed []string
	for k, v := range results {
		if ok, isBool := v.(bool); isBool && !ok {
			failed = append(failed, k)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	sort.Strings(failed)
	return &BatchError{Failed: failed, Results: results}
}
