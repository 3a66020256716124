// Package params defines the parameter bundles a dashboard session edits: the
// per-tab model fields, the global choices shared by every tab, and the
// experimental variable definitions.
package params

import (
	"fmt"
	"sort"
	"strings"
)

type ModelCategory string

const (
	ModelLinear ModelCategory = "Linear"
	ModelMixed  ModelCategory = "Mixed"
)

type DesignCategory string

const (
	DesignSingleSubject DesignCategory = "Single-subject"
	DesignMultiSubject  DesignCategory = "Multi-subject"
	DesignRepeat        DesignCategory = "Repeat"
)

// Designs lists the design categories in the order a UI cycles through them.
var Designs = []DesignCategory{DesignSingleSubject, DesignMultiSubject, DesignRepeat}

// Coding selects how a categorical predictor is turned into a number.
type Coding string

const (
	CodingDummy   Coding = "Dummy"
	CodingEffects Coding = "Effects"
)

const (
	OnsetUniform   = "uniform"
	OnsetLogNormal = "lognormal"
	OnsetNone      = "none"
)

const (
	NoiseNone  = "none"
	NoiseWhite = "white"
	NoiseRed   = "red"
)

// Fields are the model-specific parameters every tab owns independently.
// Basis, Formula and Projection hold user text that is parsed at recompute time.
type Fields struct {
	Intercept   float64 `yaml:"intercept"`
	Contrast    float64 `yaml:"contrast"`
	RandomWidth float64 `yaml:"random_width"`
	Basis       string  `yaml:"basis"`
	Formula     string  `yaml:"formula"`
	Projection  string  `yaml:"projection"`
	Coding      Coding  `yaml:"coding"`
}

// OnsetSpec configures inter-event timing. Width, Offset and Mu are seconds.
type OnsetSpec struct {
	Kind   string  `yaml:"kind"`
	Width  float64 `yaml:"width"`
	Offset float64 `yaml:"offset"`
	Mu     float64 `yaml:"mu"`
	Sigma  float64 `yaml:"sigma"`
}

type NoiseSpec struct {
	Kind  string  `yaml:"kind"`
	Level float64 `yaml:"level"`
}

// Global holds the choices shared by all tabs.
type Global struct {
	Model            ModelCategory  `yaml:"model"`
	Design           DesignCategory `yaml:"design"`
	Onset            OnsetSpec      `yaml:"onset"`
	Noise            NoiseSpec      `yaml:"noise"`
	Items            int            `yaml:"items"`
	Subjects         int            `yaml:"subjects"`
	Repeats          int            `yaml:"repeats"`
	SamplingRate     float64        `yaml:"sampling_rate"`
	Multichannel     bool           `yaml:"multichannel"`
	ReferenceChannel int            `yaml:"reference_channel"`
	Seed             int64          `yaml:"seed"`
}

func DefaultGlobal() Global {
	return Global{
		Model:            ModelLinear,
		Design:           DesignSingleSubject,
		Onset:            OnsetSpec{Kind: OnsetUniform, Width: 0.5, Offset: 0.8},
		Noise:            NoiseSpec{Kind: NoiseWhite, Level: 0.2},
		Items:            10,
		Subjects:         1,
		Repeats:          2,
		SamplingRate:     100,
		ReferenceChannel: 1,
		Seed:             1,
	}
}

// ContinuousRange describes a continuous predictor sampled at Steps evenly
// spaced values between Min and Max.
type ContinuousRange struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Steps int     `yaml:"steps"`
}

// Values expands the range. A single step yields Min.
func (r ContinuousRange) Values() []float64 {
	if r.Steps <= 1 {
		return []float64{r.Min}
	}
	out := make([]float64, r.Steps)
	step := (r.Max - r.Min) / float64(r.Steps-1)
	for i := range out {
		out[i] = r.Min + float64(i)*step
	}
	return out
}

// Variables are the experimental variable definitions used to build a design.
type Variables struct {
	Categorical map[string][]string        `yaml:"categorical"`
	Continuous  map[string]ContinuousRange `yaml:"continuous"`
}

func DefaultVariables() Variables {
	return Variables{
		Categorical: map[string][]string{"condition": {"car", "face"}},
		Continuous:  map[string]ContinuousRange{},
	}
}

// Clone returns a deep copy so callers can edit without aliasing a signal's value.
func (v Variables) Clone() Variables {
	out := Variables{
		Categorical: make(map[string][]string, len(v.Categorical)),
		Continuous:  make(map[string]ContinuousRange, len(v.Continuous)),
	}
	for k, levels := range v.Categorical {
		out.Categorical[k] = append([]string(nil), levels...)
	}
	for k, r := range v.Continuous {
		out.Continuous[k] = r
	}
	return out
}

// Names returns every variable name, sorted.
func (v Variables) Names() []string {
	names := make([]string, 0, len(v.Categorical)+len(v.Continuous))
	for k := range v.Categorical {
		names = append(names, k)
	}
	for k := range v.Continuous {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot is the full parameter tuple a recompute reads, captured at the
// moment a trigger fires.
type Snapshot struct {
	TabID  int
	Fields Fields
	Global Global
	Vars   Variables
}

func (s Snapshot) String() string {
	return fmt.Sprintf("tab=%d model=%s design=%s basis=%q formula=%q",
		s.TabID, s.Global.Model, s.Global.Design, s.Fields.Basis, strings.TrimSpace(s.Fields.Formula))
}
