package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/erpsim/internal/params"
)

// Presets are the built-in ERP components a tab can start from.
var Presets = map[string]params.Fields{
	"P100": {
		Intercept: 5, Contrast: 1, RandomWidth: 0.5,
		Basis: "p100", Formula: "0 ~ 1 + condition", Projection: "[0.2, 0.6, 1]",
		Coding: params.CodingDummy,
	},
	"N170": {
		Intercept: 5, Contrast: 3, RandomWidth: 0.5,
		Basis: "n170", Formula: "0 ~ 1 + condition", Projection: "[0.4, 1, 0.6]",
		Coding: params.CodingDummy,
	},
	"P300": {
		Intercept: 5, Contrast: 2, RandomWidth: 1,
		Basis: "p300", Formula: "0 ~ 1 + condition", Projection: "[1, 0.7, 0.2]",
		Coding: params.CodingDummy,
	},
	"N400": {
		Intercept: 5, Contrast: 2, RandomWidth: 1,
		Basis: "n400", Formula: "0 ~ 1 + condition + (1 | subject)", Projection: "[0.8, 1, 0.5]",
		Coding: params.CodingEffects,
	},
}

func GetPreset(name string) (params.Fields, bool) {
	f, ok := Presets[name]
	return f, ok
}

// ListPresets returns the built-in preset names, sorted.
func ListPresets() []string {
	return sortedNames(Presets)
}

// PresetBook resolves preset names for new tabs: user presets first, then the
// built-ins.
type PresetBook struct {
	presets map[string]params.Fields
}

func NewPresetBook(user map[string]params.Fields) *PresetBook {
	all := make(map[string]params.Fields, len(Presets)+len(user))
	for k, v := range Presets {
		all[k] = v
	}
	for k, v := range user {
		all[k] = v
	}
	return &PresetBook{presets: all}
}

// LoadPresets reads a YAML map of preset name to fields. An empty path yields
// the built-ins only.
func LoadPresets(path string) (*PresetBook, error) {
	if path == "" {
		return NewPresetBook(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var user map[string]params.Fields
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("config: presets %s: %w", path, err)
	}
	return NewPresetBook(user), nil
}

func (b *PresetBook) Preset(name string) (params.Fields, error) {
	f, ok := b.presets[name]
	if !ok {
		return params.Fields{}, fmt.Errorf("config: no preset %q", name)
	}
	return f, nil
}

// Names returns every resolvable preset name, sorted.
func (b *PresetBook) Names() []string {
	return sortedNames(b.presets)
}

func sortedNames(m map[string]params.Fields) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
