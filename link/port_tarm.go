package link

import (
	"fmt"

	"github.com/tarm/serial"
)

// tarmPort wraps the github.com/tarm/serial implementation.
type tarmPort struct {
	port *serial.Port
}

func openTarm(cfg *Config) (Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name: cfg.Device,
		Baud: cfg.Baud,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return &tarmPort{port: port}, nil
}

func (p *tarmPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *tarmPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *tarmPort) Close() error {
	return p.port.Close()
}

// Flush discards pending input and output (tcflush on POSIX).
func (p *tarmPort) Flush() error {
	return p.port.Flush()
}
