package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/erpsim/internal/params"
)

type fieldKey struct {
	name string
	get  func(params.Fields) string
	set  func(*params.Fields, string) error
}

var fieldKeys = []fieldKey{
	{"intercept", func(f params.Fields) string { return ftoa(f.Intercept) }, func(f *params.Fields, v string) error { return atof(v, &f.Intercept) }},
	{"contrast", func(f params.Fields) string { return ftoa(f.Contrast) }, func(f *params.Fields, v string) error { return atof(v, &f.Contrast) }},
	{"random_width", func(f params.Fields) string { return ftoa(f.RandomWidth) }, func(f *params.Fields, v string) error { return atof(v, &f.RandomWidth) }},
	{"basis", func(f params.Fields) string { return f.Basis }, func(f *params.Fields, v string) error { f.Basis = v; return nil }},
	{"formula", func(f params.Fields) string { return f.Formula }, func(f *params.Fields, v string) error { f.Formula = v; return nil }},
	{"projection", func(f params.Fields) string { return f.Projection }, func(f *params.Fields, v string) error { f.Projection = v; return nil }},
	{"coding", func(f params.Fields) string { return string(f.Coding) }, setCoding},
}

type globalKey struct {
	name string
	get  func(params.Global) string
	set  func(*params.Global, string) error
}

var globalKeys = []globalKey{
	{"model", func(g params.Global) string { return string(g.Model) }, setModel},
	{"design", func(g params.Global) string { return string(g.Design) }, setDesign},
	{"onset.kind", func(g params.Global) string { return g.Onset.Kind }, func(g *params.Global, v string) error { g.Onset.Kind = v; return nil }},
	{"onset.width", func(g params.Global) string { return ftoa(g.Onset.Width) }, func(g *params.Global, v string) error { return atof(v, &g.Onset.Width) }},
	{"onset.offset", func(g params.Global) string { return ftoa(g.Onset.Offset) }, func(g *params.Global, v string) error { return atof(v, &g.Onset.Offset) }},
	{"onset.mu", func(g params.Global) string { return ftoa(g.Onset.Mu) }, func(g *params.Global, v string) error { return atof(v, &g.Onset.Mu) }},
	{"onset.sigma", func(g params.Global) string { return ftoa(g.Onset.Sigma) }, func(g *params.Global, v string) error { return atof(v, &g.Onset.Sigma) }},
	{"noise.kind", func(g params.Global) string { return g.Noise.Kind }, func(g *params.Global, v string) error { g.Noise.Kind = v; return nil }},
	{"noise.level", func(g params.Global) string { return ftoa(g.Noise.Level) }, func(g *params.Global, v string) error { return atof(v, &g.Noise.Level) }},
	{"items", func(g params.Global) string { return strconv.Itoa(g.Items) }, func(g *params.Global, v string) error { return atoi(v, &g.Items) }},
	{"subjects", func(g params.Global) string { return strconv.Itoa(g.Subjects) }, func(g *params.Global, v string) error { return atoi(v, &g.Subjects) }},
	{"repeats", func(g params.Global) string { return strconv.Itoa(g.Repeats) }, func(g *params.Global, v string) error { return atoi(v, &g.Repeats) }},
	{"sampling_rate", func(g params.Global) string { return ftoa(g.SamplingRate) }, func(g *params.Global, v string) error { return atof(v, &g.SamplingRate) }},
	{"multichannel", func(g params.Global) string { return strconv.FormatBool(g.Multichannel) }, func(g *params.Global, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		g.Multichannel = b
		return nil
	}},
	{"reference_channel", func(g params.Global) string { return strconv.Itoa(g.ReferenceChannel) }, func(g *params.Global, v string) error { return atoi(v, &g.ReferenceChannel) }},
	{"seed", func(g params.Global) string { return strconv.FormatInt(g.Seed, 10) }, func(g *params.Global, v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return err
		}
		g.Seed = n
		return nil
	}},
}

func setCoding(f *params.Fields, v string) error {
	switch c := params.Coding(v); c {
	case params.CodingDummy, params.CodingEffects:
		f.Coding = c
		return nil
	}
	return fmt.Errorf("unknown coding %q", v)
}

func setModel(g *params.Global, v string) error {
	switch m := params.ModelCategory(v); m {
	case params.ModelLinear, params.ModelMixed:
		g.Model = m
		return nil
	}
	return fmt.Errorf("unknown model %q", v)
}

func setDesign(g *params.Global, v string) error {
	for _, d := range params.Designs {
		if string(d) == v {
			g.Design = d
			return nil
		}
	}
	return fmt.Errorf("unknown design %q", v)
}

// encodeVariables writes categorical levels as "a|b" and continuous ranges as
// "min:max:steps".
func encodeVariables(out map[string]string, v params.Variables) {
	for name, levels := range v.Categorical {
		out["vars.cat."+name] = strings.Join(levels, "|")
	}
	for name, r := range v.Continuous {
		out["vars.cont."+name] = ftoa(r.Min) + ":" + ftoa(r.Max) + ":" + strconv.Itoa(r.Steps)
	}
}

func decodeContinuous(v string) (params.ContinuousRange, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return params.ContinuousRange{}, fmt.Errorf("want min:max:steps, got %q", v)
	}
	var r params.ContinuousRange
	if err := atof(parts[0], &r.Min); err != nil {
		return r, err
	}
	if err := atof(parts[1], &r.Max); err != nil {
		return r, err
	}
	if err := atoi(parts[2], &r.Steps); err != nil {
		return r, err
	}
	return r, nil
}

func decodeLevels(v string) []string {
	var levels []string
	for _, l := range strings.Split(v, "|") {
		if l = strings.TrimSpace(l); l != "" {
			levels = append(levels, l)
		}
	}
	return levels
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = ftoa(x)
	}
	return strings.Join(parts, ",")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func atof(s string, dst *float64) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func atoi(s string, dst *int) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
