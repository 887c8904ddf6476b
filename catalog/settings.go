package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Converter transforms formatted read values into the values expected on
// write, e.g. when a device reports more fields than it accepts.
type Converter func(values []interface{}) []interface{}

// Setting describes how one named setting is read and written.
type Setting struct {
	// Name is the setting key, e.g. "brightness"
	Name string

	// Command is the protocol token, e.g. "BRT"
	Command string

	// WriteArgs validate the values sent on write; empty for read-only settings
	WriteArgs []ArgType

	// ReadArgs format the fields received on read
	ReadArgs []ArgType

	// Convert is applied to read values before they are saved for a later
	// write; nil when read and write shapes match
	Convert Converter
}

// ReadOnly reports whether the setting can never be written.
func (s *Setting) ReadOnly() bool {
	return len(s.WriteArgs) == 0
}

// Format passes each response field through its positional formatter.
// The number of fields must match ReadArgs.
func (s *Setting) Format(fields []string) ([]interface{}, error) {
	if len(fields) != len(s.ReadArgs) {
		return nil, fmt.Errorf("Wrong args count for key %s: %s", s.Name, quoteFields(fields))
	}

	values := make([]interface{}, len(fields))
	for i, field := range fields {
		v, err := s.ReadArgs[i].Parse(field)
		if err != nil {
			return nil, fmt.Errorf("%s field %d: %w", s.Name, i, err)
		}
		values[i] = v
	}
	return values, nil
}

// Encode validates values against WriteArgs and renders them as command
// arguments.
func (s *Setting) Encode(values []interface{}) ([]string, error) {
	if s.ReadOnly() {
		return nil, fmt.Errorf("Read-only parameter")
	}
	if len(values) != len(s.WriteArgs) {
		return nil, fmt.Errorf("%s expects %d value(s), got %d", s.Name, len(s.WriteArgs), len(values))
	}

	args := make([]string, len(values))
	for i, v := range values {
		arg, err := s.WriteArgs[i].Encode(v)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return args, nil
}

func quoteFields(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = strconv.Quote(f)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

// ParseConverter decodes a convert spec. The only form is "head:N", which
// keeps the first N values.
func ParseConverter(spec string) (Converter, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
	if name != "head" {
		return nil, fmt.Errorf("unknown converter %q", spec)
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("invalid converter width in %q", spec)
	}

	return func(values []interface{}) []interface{} {
		if len(values) <= n {
			return values
		}
		return values[:n]
	}, nil
}

// Settings is the resolved settings table of one model.
type Settings struct {
	model  string
	byName map[string]*Setting
}

// Model returns the model the table was resolved for.
func (s *Settings) Model() string {
	return s.model
}

// Get returns the setting named name.
func (s *Settings) Get(name string) (*Setting, bool) {
	st, ok := s.byName[name]
	return st, ok
}

// Names returns all setting names in sorted order.
func (s *Settings) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of settings.
func (s *Settings) Len() int {
	return len(s.byName)
}
