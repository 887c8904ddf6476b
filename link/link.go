package link

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"go.uber.org/atomic"

	"github.com/moffa90/go-lightning/logging"
	"github.com/moffa90/go-lightning/protocol"
)

// DefaultLineBuffer is the number of received lines held until read.
const DefaultLineBuffer = 64

// ErrClosed is returned when writing to a closed link.
var ErrClosed = errors.New("link is closed")

// Option configures a Link.
type Option func(*Link)

// WithLogger sets a logger for frame tracing.
func WithLogger(logger logging.Logger) Option {
	return func(l *Link) {
		l.log = logging.OrNop(logger)
	}
}

// WithLineBuffer sets the capacity of the received line channel.
func WithLineBuffer(n int) Option {
	return func(l *Link) {
		if n > 0 {
			l.bufSize = n
		}
	}
}

// Link is a line-oriented connection over a Port.
//
// Reads are done by one background goroutine. When the buffer of received
// lines is full the reader waits, so lines are never dropped; Flush discards
// them explicitly.
type Link struct {
	name    string
	port    Port
	log     logging.Logger
	bufSize int

	lines chan string
	stop  chan struct{}
	done  chan struct{}

	writeMu  sync.Mutex
	closed   atomic.Bool
	err      atomic.Error
	closeMu  sync.Mutex
	closeErr error
}

// New wraps port and starts reading from it.
func New(name string, port Port, opts ...Option) *Link {
	l := &Link{
		name:    name,
		port:    port,
		log:     logging.Nop(),
		bufSize: DefaultLineBuffer,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lines = make(chan string, l.bufSize)

	go l.readLoop()
	return l
}

// Name returns the port name the link was created for.
func (l *Link) Name() string {
	return l.name
}

// Lines delivers received lines without their CR/LF terminator.
// The channel is closed when the reader stops.
func (l *Link) Lines() <-chan string {
	return l.lines
}

// Write sends a frame.
func (l *Link) Write(frame []byte) error {
	if l.closed.Load() {
		return &protocol.TransportError{Op: "write", Err: ErrClosed}
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.log.Debug("-->", "port", l.name, "frame", string(frame))
	if _, err := l.port.Write(frame); err != nil {
		return &protocol.TransportError{Op: "write", Err: err}
	}
	return nil
}

// Flush discards lines received but not yet consumed, then flushes the port's
// input buffer.
func (l *Link) Flush() error {
	if l.closed.Load() {
		return &protocol.TransportError{Op: "flush", Err: ErrClosed}
	}

	for {
		select {
		case line, ok := <-l.lines:
			if !ok {
				return &protocol.TransportError{Op: "flush", Err: l.cause()}
			}
			l.log.Debug("discarding stale line", "port", l.name, "line", line)
			continue
		default:
		}
		break
	}

	if err := l.port.Flush(); err != nil {
		return &protocol.TransportError{Op: "flush", Err: err}
	}
	return nil
}

// Close closes the port. It is safe to call more than once. Once the port
// has closed, later calls return nil; while closing the port keeps failing,
// each call tries again.
func (l *Link) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()

	if !l.closed.Load() {
		l.closed.Store(true)
		close(l.stop)
	} else if l.closeErr == nil {
		return nil
	}

	l.closeErr = l.port.Close()
	return l.closeErr
}

// Closed reports whether Close has been called.
func (l *Link) Closed() bool {
	return l.closed.Load()
}

// Done is closed when the reader stops, either after Close or because the
// port failed.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Err returns why the reader stopped. It is nil while the link is running and
// after an explicit Close.
func (l *Link) Err() error {
	return l.err.Load()
}

func (l *Link) cause() error {
	if err := l.err.Load(); err != nil {
		return err
	}
	return ErrClosed
}

func (l *Link) readLoop() {
	defer close(l.done)
	defer close(l.lines)

	scanner := bufio.NewScanner(l.port)
	for scanner.Scan() {
		line := scanner.Text()
		l.log.Debug("--<", "port", l.name, "line", line)

		select {
		case l.lines <- line:
		case <-l.stop:
			return
		}
	}

	if l.closed.Load() {
		return
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	l.err.Store(err)
	l.log.Info("port closed", "port", l.name, "error", err)
}
