package catalog

import (
	"fmt"
	"sort"
)

// UnknownErrorMessage is returned for codes missing from the catalog.
const UnknownErrorMessage = "Unknown error"

// UnsupportedModelError is returned when a catalog has no group for a model.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("Unsupported model %s", e.Model)
}

// Errors maps device error codes to messages for one model.
// It satisfies protocol.MessageLookup.
type Errors struct {
	model    string
	messages map[int]string
}

// Model returns the model the table was resolved for.
func (e *Errors) Model() string {
	return e.model
}

// Message returns the message for code, or UnknownErrorMessage.
func (e *Errors) Message(code int) string {
	if e != nil {
		if msg, ok := e.messages[code]; ok {
			return msg
		}
	}
	return UnknownErrorMessage
}

// Format renders code as "Error <code>: <message>".
func (e *Errors) Format(code int) string {
	return fmt.Sprintf("Error %d: %s", code, e.Message(code))
}

// Codes returns every known code in ascending order.
func (e *Errors) Codes() []int {
	codes := make([]int, 0, len(e.messages))
	for c := range e.messages {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}
