package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ArgType formats one field read from the device and validates one value
// written to it.
type ArgType interface {
	// Name returns the type as written in the catalog file
	Name() string

	// Parse converts a response field into its typed value
	Parse(field string) (interface{}, error)

	// Encode validates a caller value and renders it as a command argument
	Encode(v interface{}) (string, error)
}

// ParseArgType decodes a type spec such as "number", "hex:4" or "range:0:83".
func ParseArgType(spec string) (ArgType, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")

	switch parts[0] {
	case "string":
		if len(parts) != 1 {
			break
		}
		return stringType{}, nil

	case "number":
		if len(parts) != 1 {
			break
		}
		return numberType{}, nil

	case "hex":
		if len(parts) != 2 {
			break
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid hex width in %q", spec)
		}
		return hexType{chars: n}, nil

	case "range":
		if len(parts) != 3 {
			break
		}
		lo, err1 := strconv.ParseFloat(parts[1], 64)
		hi, err2 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || lo > hi {
			return nil, fmt.Errorf("invalid range bounds in %q", spec)
		}
		return rangeType{min: lo, max: hi}, nil
	}

	return nil, fmt.Errorf("unknown argument type %q", spec)
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Parse(field string) (interface{}, error) {
	return field, nil
}

func (stringType) Encode(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	}
	if f, ok := toFloat(v); ok {
		return formatNumber(f), nil
	}
	return "", fmt.Errorf("String expected, got %v", v)
}

type numberType struct{}

func (numberType) Name() string { return "number" }

func (numberType) Parse(field string) (interface{}, error) {
	return parseNumber(field)
}

func (numberType) Encode(v interface{}) (string, error) {
	f, err := numberValue(v)
	if err != nil {
		return "", err
	}
	return formatNumber(f), nil
}

type hexType struct {
	chars int
}

func (h hexType) Name() string { return fmt.Sprintf("hex:%d", h.chars) }

func (h hexType) Parse(field string) (interface{}, error) {
	return h.check(field)
}

func (h hexType) Encode(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("String expected, got %v", v)
	}
	return h.check(s)
}

func (h hexType) check(s string) (string, error) {
	if len(s) != h.chars {
		return "", fmt.Errorf("Wrong string length, expected %d chars, got string %s", h.chars, s)
	}
	s = strings.ToUpper(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return "", fmt.Errorf("Not a valid hexadecimal value %s", s)
		}
	}
	return s, nil
}

type rangeType struct {
	min, max float64
}

func (r rangeType) Name() string {
	return fmt.Sprintf("range:%s:%s", formatNumber(r.min), formatNumber(r.max))
}

func (r rangeType) Parse(field string) (interface{}, error) {
	f, err := parseNumber(field)
	if err != nil {
		return nil, err
	}
	return r.check(f)
}

func (r rangeType) Encode(v interface{}) (string, error) {
	f, err := numberValue(v)
	if err != nil {
		return "", err
	}
	if _, err := r.check(f); err != nil {
		return "", err
	}
	return formatNumber(f), nil
}

func (r rangeType) check(f float64) (float64, error) {
	if f < r.min {
		return 0, fmt.Errorf("Value too small - %s", formatNumber(f))
	}
	if f > r.max {
		return 0, fmt.Errorf("Value too large - %s", formatNumber(f))
	}
	return f, nil
}

// parseNumber reads a decimal response field. Numbers are float64 so that
// values survive a JSON round trip unchanged.
func parseNumber(field string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("Not a valid number: %q", field)
	}
	return f, nil
}

// numberValue accepts any Go number, a json.Number or a numeric string.
func numberValue(v interface{}) (float64, error) {
	if s, ok := v.(string); ok {
		return parseNumber(s)
	}
	if f, ok := toFloat(v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("Not a valid number: %v", v)
}

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
