package protocol

import (
	"fmt"
	"strings"
)

// Result is the accumulated response of one command.
// Exactly one of Fields, Records or Lines is used, depending on Mode.
type Result struct {
	Mode Mode

	// Fields holds the last =TOKEN payload in ModeSingle.
	// It is nil when no payload line arrived, and empty for a bare "=TOKEN".
	Fields []string

	// Records holds every =TOKEN payload in ModeMultiple
	Records [][]string

	// Lines holds every line before OK in ModeRaw
	Lines []string
}

// First returns the first field of a single-mode result.
func (r *Result) First() (string, bool) {
	if r == nil || len(r.Fields) == 0 {
		return "", false
	}
	return r.Fields[0], true
}

// Empty reports whether nothing was accumulated.
func (r *Result) Empty() bool {
	if r == nil {
		return true
	}
	return len(r.Fields) == 0 && len(r.Records) == 0 && len(r.Lines) == 0
}

// VersionInfo is the parsed response of the VER command.
type VersionInfo struct {
	// Raw is the complete version string, e.g. "A740:V1.00:20100923_150338_P"
	Raw string

	// Model is the device family, e.g. "A740"; it selects the catalogs
	Model string

	// Rest is everything after the model separator
	Rest string
}

// ParseVersion splits a VER payload of the form MODEL:REST.
func ParseVersion(raw string) (*VersionInfo, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty version string")
	}

	model, rest, _ := strings.Cut(raw, ":")
	if model == "" {
		return nil, fmt.Errorf("version string %q has no model", raw)
	}

	return &VersionInfo{
		Raw:   raw,
		Model: model,
		Rest:  rest,
	}, nil
}
