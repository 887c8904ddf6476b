package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/moffa90/go-lightning/catalog"
	"github.com/moffa90/go-lightning/link"
	"github.com/moffa90/go-lightning/logging"
)

// Event names emitted through the EventSink.
const (
	EventClosePort = "closePort"
)

// ClosePortEvent is broadcast when a port goes away without being closed.
type ClosePortEvent struct {
	Port   string `json:"port"`
	Reason string `json:"reason"`
}

// EventSink receives fire-and-forget notifications not tied to a request.
type EventSink interface {
	Broadcast(event string, payload interface{})
}

// EventFunc adapts a function to EventSink.
type EventFunc func(event string, payload interface{})

// Broadcast calls f.
func (f EventFunc) Broadcast(event string, payload interface{}) {
	f(event, payload)
}

type nopSink struct{}

func (nopSink) Broadcast(string, interface{}) {}

// Dialer opens the serial port of a device.
type Dialer func(port string) (link.Port, error)

// SerialDialer returns a Dialer opening ports with cfg; cfg.Device is
// replaced by the requested port.
func SerialDialer(cfg link.Config) Dialer {
	return func(port string) (link.Port, error) {
		c := cfg
		c.Device = port
		return link.Open(&c)
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithDialer sets how ports are opened. The default opens them with
// link.DefaultConfig.
func WithDialer(d Dialer) Option {
	return func(r *Registry) {
		r.dial = d
	}
}

// WithCatalog sets the model catalog. The default is catalog.Default().
func WithCatalog(c *catalog.Catalog) Option {
	return func(r *Registry) {
		r.catalog = c
	}
}

// WithEventSink sets where unsolicited close notifications go.
func WithEventSink(sink EventSink) Option {
	return func(r *Registry) {
		r.events = sink
	}
}

// WithLogger sets a logger for the registry and its sessions.
func WithLogger(logger logging.Logger) Option {
	return func(r *Registry) {
		r.log = logging.OrNop(logger)
	}
}

// WithCommandTimeout sets the default command timeout of sessions.
func WithCommandTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.timeout = d
	}
}

// DefaultCommandTimeout is the command timeout of sessions opened by a
// Registry; it is longer than the protocol default to leave room for slow
// commands such as EAPP.
const DefaultCommandTimeout = 15 * time.Second

// Registry owns the sessions of all open ports, at most one per port.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	dial    Dialer
	catalog *catalog.Catalog
	events  EventSink
	log     logging.Logger
	timeout time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		dial: func(port string) (link.Port, error) {
			return link.Open(link.DefaultConfig(port))
		},
		catalog: catalog.Default(),
		events:  nopSink{},
		log:     logging.Nop(),
		timeout: DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.events == nil {
		r.events = nopSink{}
	}
	return r
}

// OpenResult describes an opened port.
type OpenResult struct {
	Version string `json:"version"`
	Model   string `json:"model"`

	// State is "already opened" when the port had an active session
	State string `json:"state,omitempty"`

	// Login is true when a password was given and accepted
	Login bool `json:"login,omitempty"`
}

// StateAlreadyOpened is reported by Open for a port that was already active.
const StateAlreadyOpened = "already opened"

// Open opens port and identifies the device. Opening an active port is a
// no-op reported as StateAlreadyOpened; opening a port whose open is still in
// progress fails with ErrAlreadyOpening, and one whose close failed with
// ErrNotActive until Close succeeds.
//
// When password is not empty a LOGIN follows. A failed login is returned as
// an error, but the session stays open so that the caller may retry.
// Any other failure closes the port and leaves no session behind.
func (r *Registry) Open(ctx context.Context, port, password string) (*OpenResult, error) {
	r.mu.Lock()
	if s, ok := r.sessions[port]; ok {
		r.mu.Unlock()
		switch s.State() {
		case StateActive:
			return r.login(ctx, s, password, StateAlreadyOpened)
		case StateFailed:
			return nil, fmt.Errorf("%w: %s", ErrNotActive, port)
		}
		return nil, ErrAlreadyOpening
	}
	s := newSession(port, r.catalog, r.log)
	r.sessions[port] = s
	r.mu.Unlock()

	r.log.Info("opening port", "port", port)

	p, err := r.dial(port)
	if err != nil {
		r.fail(s, err)
		return nil, err
	}

	l := link.New(port, p, link.WithLogger(r.log))
	s.attach(l, WithDefaultTimeout(r.timeout))

	if err := s.identify(ctx); err != nil {
		_ = s.close()
		r.fail(s, err)
		return nil, err
	}

	go r.watch(s, l)

	return r.login(ctx, s, password, "")
}

func (r *Registry) login(ctx context.Context, s *Session, password, state string) (*OpenResult, error) {
	res := &OpenResult{
		Version: s.Version(),
		Model:   s.Model(),
		State:   state,
	}
	if password == "" {
		return res, nil
	}
	if err := s.Login(ctx, password); err != nil {
		return nil, err
	}
	res.Login = true
	return res, nil
}

// fail removes a session whose open failed.
func (r *Registry) fail(s *Session, err error) {
	s.setState(StateFailed)
	r.remove(s)
	r.log.Error("failed to open port", "port", s.port, "error", err)
}

// remove deletes s if it is still the session registered for its port.
func (r *Registry) remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.port] != s {
		return false
	}
	delete(r.sessions, s.port)
	return true
}

// watch handles the link going away on its own.
func (r *Registry) watch(s *Session, l *link.Link) {
	<-l.Done()
	if l.Closed() {
		return
	}
	if !r.remove(s) {
		return
	}

	r.log.Info("port closed by device", "port", s.port, "error", l.Err())
	s.setState(StateClosing)
	_ = s.close()
	s.setState(StateClosed)

	r.events.Broadcast(EventClosePort, ClosePortEvent{
		Port:   s.port,
		Reason: "Port was closed",
	})
}

// Close closes port. The session record is removed before the link is
// closed so that no close notification is broadcast for it. If closing the
// link fails the failure is logged and the record restored in StateFailed:
// it no longer accepts commands, and a later Close retries closing the link.
// Close itself never fails. Closing a port without a session is a no-op.
func (r *Registry) Close(port string) error {
	r.mu.Lock()
	s, ok := r.sessions[port]
	if ok {
		delete(r.sessions, port)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	s.setState(StateClosing)
	if err := s.close(); err != nil {
		r.log.Error("failed to close port", "port", port, "error", err)
		r.mu.Lock()
		if _, taken := r.sessions[port]; !taken {
			r.sessions[port] = s
		}
		r.mu.Unlock()
		s.setState(StateFailed)
		return nil
	}

	s.setState(StateClosed)
	r.log.Info("port closed", "port", port)
	return nil
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	for _, port := range r.Ports() {
		_ = r.Close(port)
	}
}

// Get returns the session of port, active or not.
func (r *Registry) Get(port string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[port]
	return s, ok
}

// Active returns the session of port if it exists and is active.
func (r *Registry) Active(port string) (*Session, error) {
	s, ok := r.Get(port)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, port)
	}
	if !s.Active() {
		return nil, fmt.Errorf("%w: %s", ErrNotActive, port)
	}
	return s, nil
}

// Ports returns the ports with a session, sorted.
func (r *Registry) Ports() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ports := make([]string, 0, len(r.sessions))
	for p := range r.sessions {
		ports = append(ports, p)
	}
	sort.Strings(ports)
	return ports
}
