package engine

import (
	"context"
	"sort"

	"github.com/san-kum/erpsim/internal/basis"
	"github.com/san-kum/erpsim/internal/params"
)

// Row is one trial of a design.
type Row struct {
	Subject int
	Item    int
	Levels  map[string]string
	Values  map[string]float64
}

type Design struct {
	Kind      params.DesignCategory
	Variables []string
	Levels    map[string][]string
	Rows      []Row
	Subjects  int
	// SamplingRate in Hz. Zero leaves the choice to the engine.
	SamplingRate float64
}

type DesignBuilder interface {
	Build(vars params.Variables, kind params.DesignCategory, items, subjects, repeats int) (Design, error)
}

// Component describes how a formula and a sampled basis combine into a response.
type Component struct {
	Basis       []float64
	Formula     basis.Formula
	Intercept   float64
	Contrast    float64
	RandomWidth float64
	Coding      params.Coding
	// Projection holds one weight per channel. Nil means a single channel.
	Projection []float64
}

// Event is one row of the event table: a trial placed on the time axis.
type Event struct {
	Latency int
	Subject int
	Item    int
	Levels  map[string]string
	Values  map[string]float64
}

type EventTable struct {
	Events []Event
}

// Subjects returns the number of distinct subject ids in the table.
func (t EventTable) Subjects() int {
	seen := map[int]struct{}{}
	for _, e := range t.Events {
		seen[e.Subject] = struct{}{}
	}
	return len(seen)
}

// SubjectIDs returns the distinct subject ids, ascending.
func (t EventTable) SubjectIDs() []int {
	seen := map[int]struct{}{}
	ids := make([]int, 0)
	for _, e := range t.Events {
		if _, ok := seen[e.Subject]; ok {
			continue
		}
		seen[e.Subject] = struct{}{}
		ids = append(ids, e.Subject)
	}
	sort.Ints(ids)
	return ids
}

// Output is what an engine returns. Exactly one of Flat (channels x samples)
// or Epochs (channels x samples x epochs) is set.
type Output struct {
	Flat   [][]float64
	Epochs [][][]float64
	Events EventTable
}

// Engine simulates one draw. A fixed seed and fixed arguments must produce
// identical output.
type Engine interface {
	Simulate(ctx context.Context, seed int64, design Design, components []Component, onset params.OnsetSpec, noise params.NoiseSpec) (Output, error)
}
