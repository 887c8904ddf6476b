package protocol

import (
	"strconv"
	"strings"
)

// Kind classifies one received line relative to the outstanding command.
type Kind int

const (
	// KindUnexpected is a line that matches nothing; it is ignored
	KindUnexpected Kind = iota

	// KindOK terminates the command successfully
	KindOK

	// KindError terminates the command with a device error code
	KindError

	// KindResponse is a =TOKEN payload line for the outstanding command
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindError:
		return "error"
	case KindResponse:
		return "response"
	default:
		return "unexpected"
	}
}

// Line is a classified response line.
type Line struct {
	Kind Kind

	// Code is the device error code for KindError
	Code int

	// Fields is the comma-split payload for KindResponse.
	// It is empty, not nil, for a bare "=TOKEN" line.
	Fields []string

	// Raw is the line as received
	Raw string
}

// Classify interprets a received line for the command identified by token.
//
// Checks are applied in order:
//  1. "OK" terminates successfully
//  2. "E,<digits>" terminates with an error code
//  3. "=TOKEN" or "=TOKEN,payload" (token case-insensitive) is a response
//  4. anything else is unexpected
func Classify(line, token string) Line {
	if line == ResponseOK {
		return Line{Kind: KindOK, Raw: line}
	}

	if code, ok := parseErrorLine(line); ok {
		return Line{Kind: KindError, Code: code, Raw: line}
	}

	if fields, ok := parseResponseLine(line, token); ok {
		return Line{Kind: KindResponse, Fields: fields, Raw: line}
	}

	return Line{Kind: KindUnexpected, Raw: line}
}

// parseErrorLine matches ^E,[0-9]+$.
func parseErrorLine(line string) (int, bool) {
	if !strings.HasPrefix(line, ErrorPrefix) {
		return 0, false
	}
	digits := line[len(ErrorPrefix):]
	if digits == "" {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	code, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return code, true
}

// parseResponseLine matches ^=TOKEN(,(.*))?$ case-insensitively.
func parseResponseLine(line, token string) ([]string, bool) {
	if token == "" || !strings.HasPrefix(line, ResponsePrefix) {
		return nil, false
	}
	rest := line[len(ResponsePrefix):]
	if len(rest) < len(token) || !strings.EqualFold(rest[:len(token)], token) {
		return nil, false
	}
	rest = rest[len(token):]
	if rest == "" {
		return []string{}, true
	}
	if !strings.HasPrefix(rest, FieldSeparator) {
		return nil, false
	}
	return strings.Split(rest[len(FieldSeparator):], FieldSeparator), true
}

// MessageLookup resolves device error codes to human-readable messages.
type MessageLookup interface {
	Message(code int) string
}

// Correlator is the state machine that consumes the lines received for one
// in-flight command and resolves it.
//
// A Correlator is used by a single goroutine and is discarded once Feed
// reports done.
type Correlator struct {
	cmd      Command
	messages MessageLookup
	result   Result
	done     bool

	// OnWarning, if set, is called for non-fatal inconsistencies:
	// a repeated single-mode response or an unexpected line.
	OnWarning func(msg string, line string)
}

// NewCorrelator creates a correlator for cmd. Messages may be nil, in which
// case protocol errors carry an empty message.
func NewCorrelator(cmd Command, messages MessageLookup) *Correlator {
	c := &Correlator{
		cmd:      cmd,
		messages: messages,
		result:   Result{Mode: cmd.Mode},
	}
	switch cmd.Mode {
	case ModeMultiple:
		c.result.Records = [][]string{}
	case ModeRaw:
		c.result.Lines = []string{}
	}
	return c
}

// Feed consumes one line. It reports done once a terminal line (OK or
// E,<code>) has been seen; err is a *ProtocolError for E,<code>.
// Lines fed after completion are ignored.
func (c *Correlator) Feed(line string) (done bool, err error) {
	if c.done {
		return true, nil
	}

	l := Classify(line, c.cmd.Token)
	switch l.Kind {
	case KindOK:
		c.done = true
		return true, nil

	case KindError:
		c.done = true
		msg := ""
		if c.messages != nil {
			msg = c.messages.Message(l.Code)
		}
		partial := c.result
		return true, &ProtocolError{
			Token:   c.cmd.Token,
			Code:    l.Code,
			Message: msg,
			Result:  &partial,
		}
	}

	if c.cmd.Mode == ModeRaw {
		c.result.Lines = append(c.result.Lines, line)
		return false, nil
	}

	if l.Kind == KindResponse {
		if c.cmd.Mode == ModeMultiple {
			c.result.Records = append(c.result.Records, l.Fields)
		} else {
			if c.result.Fields != nil {
				c.warn("more than one response in single mode; overwriting", line)
			}
			c.result.Fields = l.Fields
		}
		return false, nil
	}

	c.warn("unexpected line", line)
	return false, nil
}

// Done reports whether a terminal line has been consumed.
func (c *Correlator) Done() bool {
	return c.done
}

// Result returns the accumulated result.
func (c *Correlator) Result() *Result {
	r := c.result
	return &r
}

func (c *Correlator) warn(msg, line string) {
	if c.OnWarning != nil {
		c.OnWarning(msg, line)
	}
}
