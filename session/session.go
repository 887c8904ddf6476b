package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/moffa90/go-lightning/catalog"
	"github.com/moffa90/go-lightning/logging"
	"github.com/moffa90/go-lightning/protocol"
)

// State is the lifecycle state of a session.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateActive
	StateClosing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// linkConn is the connection a session owns: a Conn that can be closed and
// reports when it goes away.
type linkConn interface {
	Conn
	Close() error
	Done() <-chan struct{}
	Closed() bool
	Err() error
}

// Session is one open device port.
type Session struct {
	port    string
	conn    linkConn
	queue   *Queue
	catalog *catalog.Catalog
	log     logging.Logger

	state atomic.Int32

	mu       sync.RWMutex
	version  *protocol.VersionInfo
	settings *catalog.Settings
	errors   *catalog.Errors
}

func newSession(port string, cat *catalog.Catalog, log logging.Logger) *Session {
	s := &Session{
		port:    port,
		catalog: cat,
		log:     log,
	}
	s.state.Store(int32(StateOpening))
	return s
}

// attach binds the session to its connection and starts its queue. Error
// codes are described with the common catalog until the model is known.
func (s *Session) attach(conn linkConn, opts ...QueueOption) {
	common, err := s.catalog.Errors(catalog.CommonGroup)
	if err != nil {
		common = nil
	}
	opts = append([]QueueOption{WithQueueLogger(s.log), WithMessages(common)}, opts...)

	s.conn = conn
	s.queue = NewQueue(s.port, conn, opts...)
}

// identify queries the version and resolves the model catalogs.
func (s *Session) identify(ctx context.Context) error {
	res, err := s.queue.Do(ctx, protocol.Command{Token: protocol.CmdVersion})
	if err != nil {
		return err
	}
	raw, _ := res.First()
	info, err := protocol.ParseVersion(raw)
	if err != nil {
		return err
	}

	settings, err := s.catalog.Settings(info.Model)
	if err != nil {
		return err
	}
	errs, err := s.catalog.Errors(info.Model)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.version = info
	s.settings = settings
	s.errors = errs
	s.mu.Unlock()

	s.queue.SetMessages(errs)
	s.setState(StateActive)
	s.log.Info("device identified", "port", s.port, "model", info.Model, "version", info.Raw)
	return nil
}

// close stops the queue and closes the connection.
func (s *Session) close() error {
	if s.queue != nil {
		s.queue.Close()
	}
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Port returns the port name.
func (s *Session) Port() string {
	return s.port
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Active reports whether the device has been identified.
func (s *Session) Active() bool {
	return s.State() == StateActive
}

// Version returns the full version string, empty before identification.
func (s *Session) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.version == nil {
		return ""
	}
	return s.version.Raw
}

// Model returns the device model, empty before identification.
func (s *Session) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.version == nil {
		return ""
	}
	return s.version.Model
}

// Settings returns the settings catalog of the device model.
func (s *Session) Settings() *catalog.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Errors returns the error catalog of the device model.
func (s *Session) Errors() *catalog.Errors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors
}

// Exec runs cmd through the session's queue.
func (s *Session) Exec(ctx context.Context, cmd protocol.Command) (*protocol.Result, error) {
	if s.queue == nil {
		return nil, ErrClosed
	}
	return s.queue.Do(ctx, cmd)
}

// Command runs token with args in the given mode using the session's
// default timeout.
func (s *Session) Command(ctx context.Context, token string, args []string, mode protocol.Mode) (*protocol.Result, error) {
	return s.Exec(ctx, protocol.Command{Token: token, Args: args, Mode: mode})
}
