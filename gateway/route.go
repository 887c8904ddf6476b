package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/moffa90/go-lightning/session"
)

// Capability tags the kind of link an operation works on.
type Capability int

const (
	// CapabilityUniversal operations need no device link
	CapabilityUniversal Capability = iota

	// CapabilitySerial operations work on a serial port session
	CapabilitySerial

	// CapabilityShortRange operations work on a short-range radio link
	CapabilityShortRange
)

func (c Capability) String() string {
	switch c {
	case CapabilityUniversal:
		return "universal"
	case CapabilitySerial:
		return "serial"
	case CapabilityShortRange:
		return "short-range"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Kind is the expected type of a request parameter.
type Kind int

const (
	// KindString is a string
	KindString Kind = iota

	// KindBool is a boolean
	KindBool

	// KindMap is a JSON object
	KindMap

	// KindPort is the name of a port with an active session
	KindPort

	// KindPortName is a port name that only needs to be present
	KindPortName
)

// Param is one entry of a route's parameter schema.
type Param struct {
	Name     string
	Kind     Kind
	Required bool
}

// ProgressFunc receives ordered progress reports of one request.
type ProgressFunc func(data map[string]interface{})

// EventSink receives fire-and-forget broadcasts not tied to a request.
type EventSink = session.EventSink

// Request is a validated call of an operation.
type Request struct {
	// Op is the operation name
	Op string

	// Args holds the request parameters
	Args map[string]interface{}

	// Session is set for routes with a KindPort parameter
	Session *session.Session

	// Progress is never nil
	Progress ProgressFunc
}

// String returns the string parameter name, or "" when absent.
func (r *Request) String(name string) string {
	s, _ := r.Args[name].(string)
	return s
}

// Bool returns the boolean parameter name, or false when absent.
func (r *Request) Bool(name string) bool {
	b, _ := r.Args[name].(bool)
	return b
}

// Map returns the object parameter name, or nil when absent.
func (r *Request) Map(name string) map[string]interface{} {
	m, _ := r.Args[name].(map[string]interface{})
	return m
}

// Port returns the "port" parameter.
func (r *Request) Port() string {
	return r.String("port")
}

// Handler runs an operation. A handler may return partial data along with
// an error.
type Handler func(ctx context.Context, req *Request) (interface{}, error)

// Route is one entry of the routing table.
type Route struct {
	Name       string
	Capability Capability
	Params     []Param
	Handler    Handler
}

// ErrUnknownOperation is returned for operation names without a route.
var ErrUnknownOperation = errors.New("Unknown command")

// ValidationError reports a request parameter rejected before any device
// I/O.
type ValidationError struct {
	Param  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
