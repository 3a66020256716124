package basis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Basis is a parsed catalog entry. Args are in seconds except gamma's shape.
type Basis struct {
	Name   string
	Args   []float64
	Negate bool
}

type entry struct {
	arity    int
	defaults []float64
	sample   func(args []float64, sfreq float64) []float64
}

// Named components default to a (width, shift) hanning pair near their usual latency.
var catalog = map[string]entry{
	"hanning": {arity: 2, sample: sampleHanning},
	"gamma":   {arity: 3, sample: sampleGamma},
	"p100":    {arity: 0, defaults: []float64{0.06, 0.07}, sample: sampleHanning},
	"n170":    {arity: 0, defaults: []float64{0.075, 0.13}, sample: sampleNegHanning},
	"p300":    {arity: 0, defaults: []float64{0.3, 0.15}, sample: sampleHanning},
	"n400":    {arity: 0, defaults: []float64{0.4, 0.2}, sample: sampleNegHanning},
}

// Catalog returns the accepted basis names, sorted.
func Catalog() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseBasis parses text such as "p300", "-n170" or "hanning(0.1, 0.2)".
func ParseBasis(text string) (Basis, error) {
	toks, err := lex("basis", text)
	if err != nil {
		return Basis{}, err
	}
	c := &cursor{field: "basis", input: text, toks: toks}

	b := Basis{Negate: c.accept(tokMinus)}
	name := c.next()
	if name.kind != tokIdent {
		return Basis{}, c.fail(name, "expected a basis name")
	}
	b.Name = strings.ToLower(name.text)
	e, ok := catalog[b.Name]
	if !ok {
		return Basis{}, c.fail(name, fmt.Sprintf("unknown basis %q (known: %s)", name.text, strings.Join(Catalog(), ", ")))
	}

	if c.accept(tokLParen) {
		for {
			t := c.next()
			if t.kind != tokNumber {
				return Basis{}, c.fail(t, "expected a number")
			}
			b.Args = append(b.Args, t.num)
			if c.accept(tokComma) {
				continue
			}
			if t := c.next(); t.kind != tokRParen {
				return Basis{}, c.fail(t, "expected ')'")
			}
			break
		}
	}
	if t := c.peek(); t.kind != tokEOF {
		return Basis{}, c.fail(t, "unexpected trailing input")
	}

	if len(b.Args) != e.arity {
		return Basis{}, c.fail(name, fmt.Sprintf("%s takes %d arguments, got %d", b.Name, e.arity, len(b.Args)))
	}
	for i, a := range b.Args {
		// shift (second hanning arg) may be zero, everything else must be positive
		if a < 0 || (a == 0 && !(b.Name == "hanning" && i == 1)) {
			return Basis{}, c.fail(name, fmt.Sprintf("argument %d of %s must be positive", i+1, b.Name))
		}
	}
	return b, nil
}

// Sample evaluates the basis at the given sampling rate.
func (b Basis) Sample(sfreq float64) ([]float64, error) {
	e, ok := catalog[b.Name]
	if !ok {
		return nil, fmt.Errorf("basis: unknown basis %q", b.Name)
	}
	if sfreq <= 0 {
		return nil, fmt.Errorf("basis: sampling rate must be positive, got %g", sfreq)
	}
	args := b.Args
	if e.arity == 0 {
		args = e.defaults
	}
	out := e.sample(args, sfreq)
	if len(out) == 0 {
		return nil, fmt.Errorf("basis: %s is shorter than one sample at %g Hz", b.Name, sfreq)
	}
	if b.Negate {
		for i := range out {
			out[i] = -out[i]
		}
	}
	return out, nil
}

func (b Basis) String() string {
	var sb strings.Builder
	if b.Negate {
		sb.WriteByte('-')
	}
	sb.WriteString(b.Name)
	if len(b.Args) > 0 {
		parts := make([]string, len(b.Args))
		for i, a := range b.Args {
			parts[i] = fmt.Sprintf("%g", a)
		}
		sb.WriteString("(" + strings.Join(parts, ", ") + ")")
	}
	return sb.String()
}

// sampleHanning returns shift seconds of zeros followed by a hanning window of
// width seconds.
func sampleHanning(args []float64, sfreq float64) []float64 {
	width, shift := args[0], args[1]
	n := int(math.Round(width * sfreq))
	lead := int(math.Round(shift * sfreq))
	if n < 1 {
		return nil
	}
	out := make([]float64, lead+n)
	for i := 0; i < n; i++ {
		// sin^2 keeps both ends at zero and the peak at 1
		s := math.Sin(math.Pi * float64(i+1) / float64(n+1))
		out[lead+i] = s * s
	}
	return out
}

func sampleNegHanning(args []float64, sfreq float64) []float64 {
	out := sampleHanning(args, sfreq)
	for i := range out {
		out[i] = -out[i]
	}
	return out
}

// sampleGamma returns a peak-normalized gamma density over length seconds.
func sampleGamma(args []float64, sfreq float64) []float64 {
	shape, scale, length := args[0], args[1], args[2]
	n := int(math.Round(length * sfreq))
	if n < 1 {
		return nil
	}
	out := make([]float64, n)
	peak := 0.0
	for i := range out {
		t := float64(i) / sfreq
		v := math.Pow(t, shape-1) * math.Exp(-t/scale)
		if math.IsInf(v, 0) || math.IsNaN(v) {
			v = 0
		}
		out[i] = v
		if v > peak {
			peak = v
		}
	}
	if peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}
