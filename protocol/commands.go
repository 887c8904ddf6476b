package protocol

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how the response lines of a command are accumulated.
type Mode int

const (
	// ModeSingle keeps the fields of the last =TOKEN line
	ModeSingle Mode = iota

	// ModeMultiple keeps the fields of every =TOKEN line
	ModeMultiple

	// ModeRaw keeps every line before OK verbatim
	ModeRaw
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeMultiple:
		return "multiple"
	case ModeRaw:
		return "raw"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Command is one request to the device. It exists for the duration of one
// queue slot.
type Command struct {
	// Token is the command name, e.g. "VER"
	Token string

	// Args are sent comma separated after the token
	Args []string

	// Mode shapes the accumulated result
	Mode Mode

	// Timeout bounds the wait for OK or E,<code>; zero means DefaultTimeout
	Timeout time.Duration
}

// Validate checks that the command can be framed unambiguously.
func (c Command) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("command token cannot be empty")
	}
	if strings.ContainsAny(c.Token, ",\r\n") {
		return fmt.Errorf("invalid command token %q", c.Token)
	}
	for i, arg := range c.Args {
		if strings.ContainsAny(arg, ",\r\n") {
			return fmt.Errorf("argument %d of %s contains a separator: %q", i, c.Token, arg)
		}
	}
	return nil
}

// Frame returns the wire representation of the command.
func (c Command) Frame() []byte {
	return BuildFrame(c.Token, c.Args...)
}

// String returns the frame without its terminator, for logging.
func (c Command) String() string {
	return strings.TrimSuffix(string(c.Frame()), FrameTerminator)
}

// EffectiveTimeout returns Timeout, or DefaultTimeout when unset.
func (c Command) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// BuildFrame constructs a command frame.
//
// Frame structure:
//
//	TOKEN[,ARG1,ARG2,...]<CR>
//
// No line feed is sent; the device accepts a bare carriage return.
func BuildFrame(token string, args ...string) []byte {
	var b strings.Builder
	b.WriteString(token)
	for _, arg := range args {
		b.WriteString(FieldSeparator)
		b.WriteString(arg)
	}
	b.WriteString(FrameTerminator)
	return []byte(b.String())
}

// FormatHex renders v as upper-case hex zero-padded to digits characters.
// Values wider than digits are truncated to their low-order digits.
func FormatHex(v uint64, digits int) string {
	s := fmt.Sprintf("%0*X", digits, v)
	if len(s) > digits {
		s = s[len(s)-digits:]
	}
	return s
}
