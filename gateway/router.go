package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/moffa90/go-lightning/bootloader"
	"github.com/moffa90/go-lightning/link"
	"github.com/moffa90/go-lightning/logging"
	"github.com/moffa90/go-lightning/session"
)

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a logger for request tracing.
func WithLogger(logger logging.Logger) Option {
	return func(r *Router) {
		r.log = logging.OrNop(logger)
	}
}

// WithFirmwareDir sets the directory firmware file names are resolved in.
// Without it updateFirmware is rejected.
func WithFirmwareDir(dir string) Option {
	return func(r *Router) {
		r.firmwareDir = dir
	}
}

// WithUpdaterOptions sets options applied to every firmware update, before
// the progress callback.
func WithUpdaterOptions(opts ...bootloader.Option) Option {
	return func(r *Router) {
		r.updaterOpts = append(r.updaterOpts, opts...)
	}
}

// WithPortLister replaces host port enumeration.
func WithPortLister(list func() ([]link.PortInfo, error)) Option {
	return func(r *Router) {
		r.listPorts = list
	}
}

// Router is the routing table of operations.
type Router struct {
	registry    *session.Registry
	log         logging.Logger
	firmwareDir string
	updaterOpts []bootloader.Option
	listPorts   func() ([]link.PortInfo, error)

	mu     sync.RWMutex
	routes map[string]*Route
}

// NewRouter creates a router with every built-in operation registered.
func NewRouter(registry *session.Registry, opts ...Option) *Router {
	if registry == nil {
		panic("registry cannot be nil")
	}

	r := &Router{
		registry:  registry,
		log:       logging.Nop(),
		listPorts: link.ListPorts,
		routes:    make(map[string]*Route),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, route := range r.builtins() {
		r.Register(route)
	}
	return r
}

// Register adds a route. It panics if the name is taken or the route has no
// handler.
func (r *Router) Register(route Route) {
	if route.Name == "" || route.Handler == nil {
		panic("route needs a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[route.Name]; ok {
		panic(fmt.Sprintf("duplicate route %q", route.Name))
	}
	rt := route
	r.routes[route.Name] = &rt
}

// Lookup returns the route registered as name.
func (r *Router) Lookup(name string) (*Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[name]
	return rt, ok
}

// Names returns every operation name, sorted.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch validates args against the schema of op and runs its handler.
// Progress may be nil.
func (r *Router) Dispatch(ctx context.Context, op string, args map[string]interface{}, progress ProgressFunc) (interface{}, error) {
	route, ok := r.Lookup(op)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if progress == nil {
		progress = func(map[string]interface{}) {}
	}

	req := &Request{Op: op, Args: args, Progress: progress}
	if err := r.validate(route, req); err != nil {
		return nil, err
	}

	r.log.Debug(">>>", "op", op, "port", req.Port())
	res, err := route.Handler(ctx, req)
	if err != nil {
		r.log.Info("operation failed", "op", op, "port", req.Port(), "error", err)
	}
	return res, err
}

// Handle runs op and shapes the outcome with Payload.
func (r *Router) Handle(ctx context.Context, op string, args map[string]interface{}, progress ProgressFunc) map[string]interface{} {
	res, err := r.Dispatch(ctx, op, args, progress)
	port, _ := args["port"].(string)
	return Payload(port, res, err)
}

func (r *Router) validate(route *Route, req *Request) error {
	for _, p := range route.Params {
		v, present := req.Args[p.Name]
		if present && v == nil {
			present = false
		}

		switch p.Kind {
		case KindPort, KindPortName:
			port, _ := v.(string)
			if port == "" {
				return &ValidationError{Param: p.Name, Reason: "No port name provided"}
			}
			if p.Kind == KindPortName {
				continue
			}
			s, err := r.registry.Active(port)
			if err != nil {
				return &ValidationError{Param: p.Name, Reason: capitalize(err.Error()), Err: err}
			}
			req.Session = s

		case KindString:
			if !present {
				if p.Required {
					return &ValidationError{Param: p.Name, Reason: fmt.Sprintf("Missing parameter %s", p.Name)}
				}
				continue
			}
			if _, ok := v.(string); !ok {
				return &ValidationError{Param: p.Name, Reason: fmt.Sprintf("Parameter %s should be a string", p.Name)}
			}

		case KindBool:
			if !present {
				if p.Required {
					return &ValidationError{Param: p.Name, Reason: fmt.Sprintf("Missing parameter %s", p.Name)}
				}
				continue
			}
			if _, ok := v.(bool); !ok {
				return &ValidationError{Param: p.Name, Reason: fmt.Sprintf("Parameter %s should be a boolean", p.Name)}
			}

		case KindMap:
			if _, ok := v.(map[string]interface{}); !ok && (present || p.Required) {
				return &ValidationError{Param: p.Name, Reason: capitalize(p.Name) + " should be an object"}
			}
		}
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
