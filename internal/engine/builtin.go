package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/erpsim/internal/params"
)

var (
	ErrNoComponents      = errors.New("engine: at least one component is required")
	ErrProjectionLengths = errors.New("engine: components disagree on channel count")
	ErrUnknownOnset      = errors.New("engine: unknown onset model")
	ErrUnknownNoise      = errors.New("engine: unknown noise model")
)

// redNoiseAR is the lag-one coefficient of the red (AR(1)) noise model.
const redNoiseAR = 0.9

// Builtin is the reference engine. Responses are placed on the time axis by
// overlap-and-add at onsets drawn from the onset model; onset kind "none"
// yields non-overlapping epochs instead. SamplingRate applies when the design
// does not carry one.
type Builtin struct {
	SamplingRate float64
}

func NewBuiltin(sfreq float64) *Builtin {
	return &Builtin{SamplingRate: sfreq}
}

func (b *Builtin) Simulate(ctx context.Context, seed int64, design Design, components []Component, onset params.OnsetSpec, noise params.NoiseSpec) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if len(components) == 0 {
		return Output{}, ErrNoComponents
	}
	sfreq := b.SamplingRate
	if design.SamplingRate > 0 {
		sfreq = design.SamplingRate
	}
	if sfreq <= 0 {
		return Output{}, fmt.Errorf("engine: sampling rate must be positive, got %g", sfreq)
	}
	channels, err := channelCount(components)
	if err != nil {
		return Output{}, err
	}
	switch noise.Kind {
	case params.NoiseNone, params.NoiseWhite, params.NoiseRed:
	default:
		return Output{}, fmt.Errorf("%w: %q", ErrUnknownNoise, noise.Kind)
	}

	rng := rand.New(rand.NewSource(seed))

	// structure draws come first so a noise-free run with the same seed
	// reproduces the exact same events and amplitudes
	amps := amplitudes(rng, design, components)

	if onset.Kind == params.OnsetNone {
		return epoched(rng, design, components, amps, channels, noise), nil
	}

	events := make([]Event, len(design.Rows))
	latency := 0
	prevSubject := 0
	for i, row := range design.Rows {
		gap, err := gapSamples(rng, onset, sfreq)
		if err != nil {
			return Output{}, err
		}
		if row.Subject != prevSubject && i > 0 {
			// leave one full response of silence between subjects
			latency += maxLen(components)
		}
		prevSubject = row.Subject
		latency += gap
		events[i] = Event{Latency: latency, Subject: row.Subject, Item: row.Item, Levels: row.Levels, Values: row.Values}
	}

	length := 0
	for _, e := range events {
		if end := e.Latency + maxLen(components); end > length {
			length = end
		}
	}

	flat := make([][]float64, channels)
	for ch := range flat {
		flat[ch] = make([]float64, length)
	}
	for i, e := range events {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Output{}, err
			}
		}
		for c, comp := range components {
			a := amps[c][i]
			for ch := 0; ch < channels; ch++ {
				w := weight(comp, ch)
				for k, v := range comp.Basis {
					flat[ch][e.Latency+k] += w * a * v
				}
			}
		}
	}

	for ch := range flat {
		addNoise(rng, flat[ch], noise)
	}

	return Output{Flat: flat, Events: EventTable{Events: events}}, nil
}

func epoched(rng *rand.Rand, design Design, components []Component, amps [][]float64, channels int, noise params.NoiseSpec) Output {
	n := maxLen(components)
	epochs := make([][][]float64, channels)
	for ch := range epochs {
		epochs[ch] = make([][]float64, n)
		for s := range epochs[ch] {
			epochs[ch][s] = make([]float64, len(design.Rows))
		}
	}

	events := make([]Event, len(design.Rows))
	for i, row := range design.Rows {
		events[i] = Event{Latency: i * n, Subject: row.Subject, Item: row.Item, Levels: row.Levels, Values: row.Values}
		for c, comp := range components {
			for ch := 0; ch < channels; ch++ {
				w := weight(comp, ch)
				for k, v := range comp.Basis {
					epochs[ch][k][i] += w * amps[c][i] * v
				}
			}
		}
	}

	for ch := range epochs {
		for i := range design.Rows {
			col := make([]float64, n)
			addNoise(rng, col, noise)
			for s := range col {
				epochs[ch][s][i] += col[s]
			}
		}
	}
	return Output{Epochs: epochs, Events: EventTable{Events: events}}
}

// amplitudes returns, per component, the scalar response amplitude of each row.
func amplitudes(rng *rand.Rand, design Design, components []Component) [][]float64 {
	out := make([][]float64, len(components))
	for c, comp := range components {
		subjectOffset := map[int]float64{}
		itemOffset := map[int]float64{}
		if comp.Formula.HasRandom("subject") {
			for s := 1; s <= design.Subjects; s++ {
				subjectOffset[s] = comp.RandomWidth * rng.NormFloat64()
			}
		}
		if comp.Formula.HasRandom("item") {
			for _, row := range design.Rows {
				if _, ok := itemOffset[row.Item]; !ok {
					itemOffset[row.Item] = comp.RandomWidth * rng.NormFloat64()
				}
			}
		}

		out[c] = make([]float64, len(design.Rows))
		for i, row := range design.Rows {
			a := 0.0
			if comp.Formula.Intercept {
				a += comp.Intercept
			}
			a += comp.Contrast * predictor(row, comp, design)
			a += subjectOffset[row.Subject] + itemOffset[row.Item]
			out[c][i] = a
		}
	}
	return out
}

func predictor(row Row, comp Component, design Design) float64 {
	sum := 0.0
	for _, term := range comp.Formula.Fixed {
		if v, ok := row.Values[term]; ok {
			sum += v
			continue
		}
		lvl, ok := row.Levels[term]
		if !ok {
			continue
		}
		idx := indexOf(design.Levels[term], lvl)
		switch comp.Coding {
		case params.CodingEffects:
			if idx == 0 {
				sum -= 0.5
			} else {
				sum += 0.5
			}
		default:
			if idx > 0 {
				sum++
			}
		}
	}
	return sum
}

func gapSamples(rng *rand.Rand, onset params.OnsetSpec, sfreq float64) (int, error) {
	var seconds float64
	switch onset.Kind {
	case params.OnsetUniform:
		seconds = onset.Offset + rng.Float64()*onset.Width
	case params.OnsetLogNormal:
		seconds = onset.Offset + math.Exp(onset.Mu+onset.Sigma*rng.NormFloat64())
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOnset, onset.Kind)
	}
	n := int(math.Round(seconds * sfreq))
	if n < 1 {
		n = 1
	}
	return n, nil
}

func addNoise(rng *rand.Rand, xs []float64, noise params.NoiseSpec) {
	switch noise.Kind {
	case params.NoiseWhite:
		for i := range xs {
			xs[i] += noise.Level * rng.NormFloat64()
		}
	case params.NoiseRed:
		scale := math.Sqrt(1 - redNoiseAR*redNoiseAR)
		prev := 0.0
		for i := range xs {
			prev = redNoiseAR*prev + scale*rng.NormFloat64()
			xs[i] += noise.Level * prev
		}
	}
}

func channelCount(components []Component) (int, error) {
	n := 0
	for _, c := range components {
		if len(c.Projection) == 0 {
			continue
		}
		if n != 0 && n != len(c.Projection) {
			return 0, ErrProjectionLengths
		}
		n = len(c.Projection)
	}
	if n == 0 {
		n = 1
	}
	return n, nil
}

func weight(c Component, ch int) float64 {
	if len(c.Projection) == 0 {
		return 1
	}
	return c.Projection[ch]
}

func maxLen(components []Component) int {
	n := 0
	for _, c := range components {
		if len(c.Basis) > n {
			n = len(c.Basis)
		}
	}
	return n
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}
