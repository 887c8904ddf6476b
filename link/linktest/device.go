// Package linktest provides a scripted serial device for tests and demos.
package linktest

import (
	"io"
	"strings"
	"sync"
)

// Handler answers one received frame (without its CR terminator) with the
// lines the device sends back. Returning nil sends nothing, which makes the
// command time out.
type Handler func(frame string) []string

// Device implements link.Port. Frames written to it are recorded and passed
// to the handler; the replies are delivered to the reader in order, each
// terminated by CR LF.
type Device struct {
	handler Handler

	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	pending []byte
	frames  []string
	flushes int
	closed  bool

	closeErrs []error

	out  chan []string
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewDevice creates a device answering with h. A nil handler never answers.
func NewDevice(h Handler) *Device {
	if h == nil {
		h = func(string) []string { return nil }
	}
	pr, pw := io.Pipe()
	d := &Device{
		handler: h,
		pr:      pr,
		pw:      pw,
		out:     make(chan []string, 256),
		quit:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.writeLoop()
	return d
}

// Reply builds a handler from a table of exact frames to reply lines.
func Reply(table map[string][]string) Handler {
	return func(frame string) []string {
		return table[frame]
	}
}

func (d *Device) Read(p []byte) (int, error) {
	return d.pr.Read(p)
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	d.pending = append(d.pending, p...)

	var frames []string
	for {
		i := strings.IndexByte(string(d.pending), '\r')
		if i < 0 {
			break
		}
		frames = append(frames, string(d.pending[:i]))
		d.pending = d.pending[i+1:]
	}
	d.frames = append(d.frames, frames...)
	d.mu.Unlock()

	for _, f := range frames {
		if lines := d.handler(f); len(lines) > 0 {
			d.send(lines)
		}
	}
	return len(p), nil
}

// Flush counts calls; received data is never buffered on the device side.
func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return io.ErrClosedPipe
	}
	d.flushes++
	return nil
}

// Close closes the device as the host would. Errors queued with FailClose are
// returned first, one per call, leaving the device open.
func (d *Device) Close() error {
	d.mu.Lock()
	if len(d.closeErrs) > 0 {
		err := d.closeErrs[0]
		d.closeErrs = d.closeErrs[1:]
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()
	return d.shutdown(io.ErrClosedPipe)
}

// FailClose makes the next len(errs) calls to Close fail with errs, in order.
func (d *Device) FailClose(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeErrs = append(d.closeErrs, errs...)
}

// Drop simulates the device disappearing (unplugged or rebooted): the host
// side read fails with io.ErrUnexpectedEOF.
func (d *Device) Drop() {
	_ = d.shutdown(io.ErrUnexpectedEOF)
}

func (d *Device) shutdown(readErr error) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.quit)
	_ = d.pw.CloseWithError(readErr)
	d.wg.Wait()
	return nil
}

// Inject sends unsolicited lines to the host.
func (d *Device) Inject(lines ...string) {
	d.send(lines)
}

// Frames returns every frame received so far.
func (d *Device) Frames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.frames))
	copy(out, d.frames)
	return out
}

// Flushes returns how many times Flush was called.
func (d *Device) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

func (d *Device) send(lines []string) {
	select {
	case d.out <- lines:
	case <-d.quit:
	}
}

func (d *Device) writeLoop() {
	defer d.wg.Done()
	for {
		select {
		case lines := <-d.out:
			for _, line := range lines {
				if _, err := d.pw.Write([]byte(line + "\r\n")); err != nil {
					return
				}
			}
		case <-d.quit:
			return
		}
	}
}
