package basis

import (
	"errors"
	"math"
	"testing"
)

func TestParseBasis(t *testing.T) {
	tests := []struct {
		input  string
		name   string
		args   int
		negate bool
	}{
		{"p300", "p300", 0, false},
		{"  N170 ", "n170", 0, false},
		{"-p100", "p100", 0, true},
		{"hanning(0.1, 0.2)", "hanning", 2, false},
		{"hanning(0.1, 0)", "hanning", 2, false},
		{"-gamma(3, 0.05, 0.5)", "gamma", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b, err := ParseBasis(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.Name != tt.name || len(b.Args) != tt.args || b.Negate != tt.negate {
				t.Errorf("got %+v", b)
			}
		})
	}
}

func TestParseBasisRejects(t *testing.T) {
	inputs := []string{
		"",
		"system(\"rm -rf\")",
		"hanning",
		"hanning(0.1)",
		"hanning(0.1, 0.2",
		"hanning(-0.1, 0.2)",
		"p300(1)",
		"p300 extra",
		"gamma(0, 1, 1)",
		"p3$0",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseBasis(in)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected SyntaxError, got %v", err)
			}
		})
	}
}

func TestBasisSample(t *testing.T) {
	b, err := ParseBasis("hanning(0.1, 0.05)")
	if err != nil {
		t.Fatal(err)
	}
	out, err := b.Sample(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 15 {
		t.Fatalf("expected 15 samples, got %d", len(out))
	}
	for i := 0; i < 5; i++ {
		if out[i] != 0 {
			t.Errorf("expected zero lead at %d, got %v", i, out[i])
		}
	}
	peak := 0.0
	for _, v := range out {
		peak = math.Max(peak, v)
	}
	if peak <= 0.9 || peak > 1 {
		t.Errorf("expected peak near 1, got %v", peak)
	}

	neg, _ := ParseBasis("-hanning(0.1, 0.05)")
	negOut, _ := neg.Sample(100)
	for i := range out {
		if negOut[i] != -out[i] {
			t.Fatalf("negation mismatch at %d", i)
		}
	}

	n170, _ := ParseBasis("n170")
	nOut, err := n170.Sample(100)
	if err != nil {
		t.Fatal(err)
	}
	minV := 0.0
	for _, v := range nOut {
		minV = math.Min(minV, v)
	}
	if minV >= 0 {
		t.Error("n170 should be a negative deflection")
	}
}

func TestBasisSampleTooShort(t *testing.T) {
	b, _ := ParseBasis("hanning(0.001, 0)")
	if _, err := b.Sample(100); err == nil {
		t.Error("expected error for sub-sample basis")
	}
	if _, err := b.Sample(0); err == nil {
		t.Error("expected error for zero sampling rate")
	}
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula("0 ~ 1 + condition + (1 + condition | subject)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Intercept {
		t.Error("expected intercept")
	}
	if len(f.Fixed) != 1 || f.Fixed[0] != "condition" {
		t.Errorf("unexpected fixed terms: %v", f.Fixed)
	}
	if len(f.Random) != 1 || f.Random[0].Group != "subject" || !f.Random[0].Intercept {
		t.Errorf("unexpected random terms: %+v", f.Random)
	}
	if !f.HasRandom("subject") || f.HasRandom("item") {
		t.Error("HasRandom mismatch")
	}

	round, err := ParseFormula(f.String())
	if err != nil {
		t.Fatalf("String() output does not parse: %v", err)
	}
	if round.String() != f.String() {
		t.Errorf("expected %q, got %q", f.String(), round.String())
	}

	noPrefix, err := ParseFormula("1 + condition")
	if err != nil || !noPrefix.Intercept || len(noPrefix.Fixed) != 1 {
		t.Errorf("prefix-free formula: %+v %v", noPrefix, err)
	}
}

func TestParseFormulaRejects(t *testing.T) {
	inputs := []string{
		"",
		"1 ~ 1 + a",
		"0 ~ 2 + a",
		"0 ~ 1 + a + a",
		"0 ~ 1 + (1 | session)",
		"0 ~ 1 + (1 + a subject)",
		"0 ~ 1 a",
		"0 ~ 1 + exec(a)",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseFormula(in); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFormulaCheck(t *testing.T) {
	f, _ := ParseFormula("0 ~ 1 + condition + (1 + difficulty | subject)")
	if err := f.Check([]string{"condition", "difficulty"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := f.Check([]string{"condition"}); err == nil {
		t.Error("expected unknown variable error")
	}
}

func TestParseProjection(t *testing.T) {
	tests := []struct {
		input string
		want  []float64
	}{
		{"[1, 0.5, -0.2]", []float64{1, 0.5, -0.2}},
		{"1 0.5 -0.2", []float64{1, 0.5, -0.2}},
		{"2", []float64{2}},
		{"[1e-1,3]", []float64{0.1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProjection(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("index %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}

	for _, bad := range []string{"", "[]", "[1, 2", "1, x", "__import__"} {
		if _, err := ParseProjection(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
