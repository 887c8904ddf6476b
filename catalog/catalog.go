package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// CommonGroup is the group applied to every model.
const CommonGroup = "common"

//go:embed models.yaml
var embeddedModels []byte

var defaultCatalog = mustParse(embeddedModels)

// Catalog holds the settings and error groups of every known model.
type Catalog struct {
	groups map[string]*group
}

type group struct {
	settings map[string]*Setting
	errors   map[int]string
}

// File layout.
type fileGroup struct {
	Settings map[string]fileSetting `yaml:"settings"`
	Errors   map[int]string         `yaml:"errors"`
}

type fileSetting struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Read    []string `yaml:"read"`
	Convert string   `yaml:"convert"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. It must contain a "common" group.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]fileGroup
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if _, ok := raw[CommonGroup]; !ok {
		return nil, fmt.Errorf("catalog has no %q group", CommonGroup)
	}

	c := &Catalog{groups: make(map[string]*group, len(raw))}
	for name, fg := range raw {
		g, err := buildGroup(fg)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", name, err)
		}
		c.groups[name] = g
	}
	return c, nil
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded models.yaml: %v", err))
	}
	return c
}

func buildGroup(fg fileGroup) (*group, error) {
	g := &group{
		settings: make(map[string]*Setting, len(fg.Settings)),
		errors:   make(map[int]string, len(fg.Errors)),
	}

	for code, msg := range fg.Errors {
		if code <= 0 {
			return nil, fmt.Errorf("invalid error code %d", code)
		}
		g.errors[code] = msg
	}

	for name, fs := range fg.Settings {
		st, err := buildSetting(name, fs)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", name, err)
		}
		g.settings[name] = st
	}
	return g, nil
}

func buildSetting(name string, fs fileSetting) (*Setting, error) {
	if fs.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	st := &Setting{Name: name, Command: fs.Command}

	var err error
	if st.WriteArgs, err = parseArgTypes(fs.Args); err != nil {
		return nil, err
	}
	if len(fs.Read) > 0 {
		if st.ReadArgs, err = parseArgTypes(fs.Read); err != nil {
			return nil, err
		}
	} else {
		st.ReadArgs = st.WriteArgs
	}
	if len(st.ReadArgs) == 0 {
		return nil, fmt.Errorf("setting has neither args nor read types")
	}

	if fs.Convert != "" {
		if st.Convert, err = ParseConverter(fs.Convert); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func parseArgTypes(specs []string) ([]ArgType, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	types := make([]ArgType, len(specs))
	for i, spec := range specs {
		t, err := ParseArgType(spec)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}

// Models returns the model names, excluding the common group, sorted.
func (c *Catalog) Models() []string {
	models := make([]string, 0, len(c.groups))
	for name := range c.groups {
		if name != CommonGroup {
			models = append(models, name)
		}
	}
	sort.Strings(models)
	return models
}

// Supports reports whether model has a group.
func (c *Catalog) Supports(model string) bool {
	_, ok := c.groups[model]
	return ok
}

// Settings resolves the settings of model: common entries overlaid by the
// model's own.
func (c *Catalog) Settings(model string) (*Settings, error) {
	g, ok := c.groups[model]
	if !ok {
		return nil, &UnsupportedModelError{Model: model}
	}

	out := &Settings{model: model, byName: make(map[string]*Setting)}
	for _, src := range []*group{c.groups[CommonGroup], g} {
		for name, st := range src.settings {
			out.byName[name] = st
		}
	}
	return out, nil
}

// Errors resolves the error messages of model: common entries overlaid by the
// model's own. The common group itself is a valid model, used before the
// device model is known.
func (c *Catalog) Errors(model string) (*Errors, error) {
	g, ok := c.groups[model]
	if !ok {
		return nil, &UnsupportedModelError{Model: model}
	}

	out := &Errors{model: model, messages: make(map[int]string)}
	for _, src := range []*group{c.groups[CommonGroup], g} {
		for code, msg := range src.errors {
			out.messages[code] = msg
		}
	}
	return out, nil
}
