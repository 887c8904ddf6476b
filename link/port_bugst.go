package link

import (
	"fmt"

	"go.bug.st/serial"
)

// bugstPort wraps the go.bug.st/serial implementation.
type bugstPort struct {
	port serial.Port
}

func openBugst(cfg *Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return &bugstPort{port: port}, nil
}

func (p *bugstPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *bugstPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *bugstPort) Close() error {
	return p.port.Close()
}

func (p *bugstPort) Flush() error {
	return p.port.ResetInputBuffer()
}
