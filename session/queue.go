package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/moffa90/go-lightning/logging"
	"github.com/moffa90/go-lightning/protocol"
)

// Conn is the line-oriented connection a Queue drives. *link.Link
// implements it.
type Conn interface {
	Write(frame []byte) error
	Flush() error
	Lines() <-chan string
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the logger for correlation warnings.
func WithQueueLogger(logger logging.Logger) QueueOption {
	return func(q *Queue) {
		q.log = logging.OrNop(logger)
	}
}

// WithDefaultTimeout sets the timeout for commands that carry none.
func WithDefaultTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithMessages sets the error catalog used to describe device error codes.
func WithMessages(m protocol.MessageLookup) QueueOption {
	return func(q *Queue) {
		q.messages = m
	}
}

type task struct {
	ctx    context.Context
	cmd    protocol.Command
	result chan taskResult
}

type taskResult struct {
	res *protocol.Result
	err error
}

// Queue executes commands on one connection, one at a time, in the order they
// were submitted. A single worker goroutine owns the connection; a command
// completes (OK, E,<code>, timeout or transport failure) before the next one is
// written.
type Queue struct {
	port    string
	conn    Conn
	log     logging.Logger
	timeout time.Duration

	msgMu    sync.RWMutex
	messages protocol.MessageLookup

	mu      sync.Mutex
	pending []*task
	closed  bool
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

// NewQueue starts a queue on conn. The port name is used for logging.
func NewQueue(port string, conn Conn, opts ...QueueOption) *Queue {
	q := &Queue{
		port:    port,
		conn:    conn,
		log:     logging.Nop(),
		timeout: protocol.DefaultTimeout,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	go q.run()
	return q
}

// SetMessages replaces the error catalog, e.g. once the device model is known.
func (q *Queue) SetMessages(m protocol.MessageLookup) {
	q.msgMu.Lock()
	defer q.msgMu.Unlock()
	q.messages = m
}

func (q *Queue) lookup() protocol.MessageLookup {
	q.msgMu.RLock()
	defer q.msgMu.RUnlock()
	return q.messages
}

// Do submits cmd and waits for its outcome.
//
// The error is a *protocol.ProtocolError when the device answered E,<code>,
// a *protocol.TimeoutError when no terminal line arrived in time, a
// *protocol.TransportError when the connection failed, ErrClosed when the
// queue was closed, or the context's error.
func (q *Queue) Do(ctx context.Context, cmd protocol.Command) (*protocol.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.Timeout <= 0 {
		cmd.Timeout = q.timeout
	}

	t := &task{ctx: ctx, cmd: cmd, result: make(chan taskResult, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case r := <-t.result:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of commands waiting, the one in flight excluded.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the worker. The command in flight and every waiting command
// fail with ErrClosed. Close waits for the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.quit)
	<-q.done
}

func (q *Queue) next() *task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	t := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return t
}

func (q *Queue) run() {
	defer close(q.done)
	defer q.failPending()

	for {
		t := q.next()
		if t == nil {
			select {
			case <-q.wake:
				continue
			case <-q.quit:
				return
			}
		}

		select {
		case <-q.quit:
			t.result <- taskResult{err: ErrClosed}
			return
		default:
		}

		res, err := q.exec(t)
		t.result <- taskResult{res: res, err: err}
	}
}

func (q *Queue) failPending() {
	for t := q.next(); t != nil; t = q.next() {
		t.result <- taskResult{err: ErrClosed}
	}
}

func (q *Queue) exec(t *task) (*protocol.Result, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}

	// Anything unread belongs to an earlier command.
	if err := q.conn.Flush(); err != nil {
		return nil, err
	}

	cmd := t.cmd
	corr := protocol.NewCorrelator(cmd, q.lookup())
	corr.OnWarning = func(msg, line string) {
		q.log.Info(msg, "port", q.port, "command", cmd.Token, "line", line)
	}

	if err := q.conn.Write(cmd.Frame()); err != nil {
		return nil, err
	}

	timer := time.NewTimer(cmd.Timeout)
	defer timer.Stop()

	lines := q.conn.Lines()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil, &protocol.TransportError{Op: "read", Err: io.EOF}
			}
			done, err := corr.Feed(line)
			if !done {
				continue
			}
			if err != nil {
				q.log.Debug("command failed", "port", q.port, "command", cmd.Token, "error", err)
				return nil, err
			}
			return corr.Result(), nil

		case <-timer.C:
			q.log.Info("command timed out", "port", q.port, "command", cmd.Token, "timeout", cmd.Timeout.String())
			return nil, &protocol.TimeoutError{Token: cmd.Token, After: cmd.Timeout}

		case <-t.ctx.Done():
			return nil, t.ctx.Err()

		case <-q.quit:
			return nil, ErrClosed
		}
	}
}
