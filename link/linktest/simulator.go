package linktest

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Default flash layout of the simulated bootloader.
const (
	DefaultFlashStart = 0x1400
	DefaultFlashEnd   = 0x3A00
)

// Simulator is a behavioral model of a Lightning device, usable as a Handler
// through its Handle method.
//
// It keeps setting values per token, enforces LOGIN when a password is set,
// and implements the bootloader commands over an in-memory flash so that the
// CHKAPP checksum reflects what was actually programmed.
type Simulator struct {
	mu sync.Mutex

	// Model and Firmware form the VER reply "Model:Firmware"
	Model    string
	Firmware string

	// Password, when set, must be sent with LOGIN before any write
	Password string

	// Values holds the reply fields of each setting token
	Values map[string][]string

	// Writable limits the number of arguments a setting accepts, by token;
	// tokens not listed accept writes of any width
	Writable map[string]int

	// Diagnostics are the raw DIAG lines
	Diagnostics []string

	// Calibration is the CAL reply; empty means calibration is running
	Calibration []string

	// InfraRed holds one RIR record per received frame
	InfraRed [][]string

	// Silent lists tokens that are never answered
	Silent map[string]bool

	FlashStart int
	FlashEnd   int

	loggedIn   bool
	bootloader bool
	flash      map[int]byte
	reboots    int
}

// NewSimulator returns a simulator for model with plausible defaults.
func NewSimulator(model string) *Simulator {
	s := &Simulator{
		Model:    model,
		Firmware: "V1.00:20100923_150338_P",
		Values: map[string][]string{
			"LOC": {"114"},
			"IRP": {"1"},
			"BRT": {"2"},
			"PAT": {"00FF"},
			"SN":  {"40000123"},
			"DC":  {"50"},
		},
		Writable: map[string]int{
			"LOC": 1, "IRP": 1, "BRT": 1, "PAT": 1, "SN": 1, "DC": 1,
		},
		Diagnostics: []string{
			"flash writes = 12",
			"seconds since reset = 3600",
			"ADC reading = 512",
		},
		Silent:     map[string]bool{},
		FlashStart: DefaultFlashStart,
		FlashEnd:   DefaultFlashEnd,
		flash:      map[int]byte{},
	}

	switch model {
	case "A740":
		s.Values["SEG"] = []string{"4", "4", "0", "0", "4", "5"}
		s.Writable["SEG"] = 2
	case "A750":
		s.Values["S"] = []string{"3"}
		s.Writable["S"] = 1
	}
	return s
}

// Handle answers one frame.
func (s *Simulator) Handle(frame string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := strings.Split(frame, ",")
	token := strings.ToUpper(parts[0])
	args := parts[1:]

	if s.Silent[token] {
		return nil
	}

	if s.bootloader {
		return s.handleBootloader(token, args)
	}

	switch token {
	case "VER":
		return []string{"=VER," + s.Model + ":" + s.Firmware, "OK"}

	case "LOGIN":
		if len(args) != 1 {
			return fail(3)
		}
		if s.Password != "" && args[0] != s.Password {
			return fail(6)
		}
		s.loggedIn = true
		return ok()

	case "PWD":
		if !s.authorized() {
			return fail(6)
		}
		if len(args) != 1 {
			return fail(3)
		}
		s.Password = args[0]
		return ok()

	case "INIT":
		if !s.authorized() {
			return fail(6)
		}
		return ok()

	case "DIAG":
		return append(append([]string{}, s.Diagnostics...), "OK")

	case "BOOTM":
		s.bootloader = true
		return ok()

	case "RUNAPP", "EAPP", "PROG", "CHKAPP":
		return fail(1)

	case "CAL":
		if s.Model != "A740" {
			return fail(1)
		}
		if len(args) == 1 {
			s.Calibration = nil
			return ok()
		}
		if len(s.Calibration) == 0 {
			return []string{"=CAL", "OK"}
		}
		return []string{"=CAL," + strings.Join(s.Calibration, ","), "OK"}

	case "RIR":
		if s.Model != "A750" {
			return fail(1)
		}
		out := make([]string, 0, len(s.InfraRed)+1)
		for _, rec := range s.InfraRed {
			out = append(out, "=RIR,"+strings.Join(rec, ","))
		}
		return append(out, "OK")
	}

	return s.handleSetting(token, args)
}

func (s *Simulator) handleSetting(token string, args []string) []string {
	current, known := s.Values[token]
	if !known {
		return fail(1)
	}

	if len(args) == 0 {
		return []string{"=" + token + "," + strings.Join(current, ","), "OK"}
	}

	if !s.authorized() {
		return fail(6)
	}
	if width, ok := s.Writable[token]; ok {
		if len(args) > width {
			return fail(2)
		}
		if len(args) < width {
			return fail(3)
		}
	}
	if token == "DC" {
		if n, err := strconv.Atoi(args[0]); err != nil || n < 0 || n > 83 {
			return fail(7)
		}
	}

	if len(args) < len(current) {
		// the device reports more fields than it accepts; keep the tail
		s.Values[token] = append(append([]string{}, args...), current[len(args):]...)
	} else {
		s.Values[token] = append([]string{}, args...)
	}
	return ok()
}

func (s *Simulator) handleBootloader(token string, args []string) []string {
	switch token {
	case "BOOTM":
		return fail(1)

	case "EAPP":
		s.flash = map[int]byte{}
		return ok()

	case "PROG":
		if len(args) != 3 {
			return fail(3)
		}
		addr, err1 := strconv.ParseUint(args[0], 16, 16)
		size, err2 := strconv.ParseUint(args[1], 16, 8)
		data, err3 := hex.DecodeString(args[2])
		if err1 != nil || err2 != nil || err3 != nil || int(size) != len(data) {
			return fail(4)
		}
		for i, b := range data {
			s.flash[int(addr)+i] = b
		}
		return ok()

	case "CHKAPP":
		return []string{fmt.Sprintf("=CHKAPP,%04X", s.checksum()), "OK"}

	case "RUNAPP":
		s.bootloader = false
		s.loggedIn = false
		s.reboots++
		return ok()
	}
	return fail(1)
}

func (s *Simulator) checksum() uint16 {
	var sum uint16
	for addr := s.FlashStart; addr < s.FlashEnd; addr++ {
		b, ok := s.flash[addr]
		if !ok {
			b = 0xFF
		}
		sum += uint16(b)
	}
	return sum
}

func (s *Simulator) authorized() bool {
	return s.Password == "" || s.loggedIn
}

// InBootloader reports whether the device is in bootloader mode.
func (s *Simulator) InBootloader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootloader
}

// SetBootloader forces bootloader mode, as after an interrupted update.
func (s *Simulator) SetBootloader(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bootloader = on
}

// Reboots returns how many times RUNAPP restarted the application.
func (s *Simulator) Reboots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reboots
}

// Flash returns the programmed byte at addr.
func (s *Simulator) Flash(addr int) (byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.flash[addr]
	return b, ok
}

// Value returns the current fields of a setting token.
func (s *Simulator) Value(token string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.Values[token]...)
}

func ok() []string {
	return []string{"OK"}
}

func fail(code int) []string {
	return []string{fmt.Sprintf("E,%d", code)}
}
