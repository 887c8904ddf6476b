package link

import (
	"fmt"
	"io"

	"github.com/moffa90/go-lightning/protocol"
)

// Port represents a serial port.
// This abstraction allows for different implementations:
// - go.bug.st/serial (default)
// - github.com/tarm/serial
// - a scripted device for tests (see linktest)
type Port interface {
	io.ReadWriteCloser

	// Flush discards any input received but not yet read
	Flush() error
}

// Driver selects the serial implementation.
type Driver string

const (
	DriverBugst Driver = "bugst"
	DriverTarm  Driver = "tarm"
)

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; Lightning devices use 19200 8N1
	Baud int

	// Driver defaults to DriverBugst
	Driver Driver
}

// DefaultConfig returns the configuration Lightning devices expect.
func DefaultConfig(device string) *Config {
	return &Config{
		Device: device,
		Baud:   protocol.DefaultBaudRate,
		Driver: DriverBugst,
	}
}

// openers can be replaced in tests.
var openers = map[Driver]func(cfg *Config) (Port, error){
	DriverBugst: openBugst,
	DriverTarm:  openTarm,
}

// Open opens a serial port with the configured driver.
// Reads block until data arrives or the port is closed.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("device cannot be empty")
	}

	c := *cfg
	if c.Baud == 0 {
		c.Baud = protocol.DefaultBaudRate
	}
	if c.Driver == "" {
		c.Driver = DriverBugst
	}

	open, ok := openers[c.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown serial driver %q", c.Driver)
	}

	port, err := open(&c)
	if err != nil {
		return nil, &protocol.TransportError{Op: "open", Err: err}
	}
	return port, nil
}
