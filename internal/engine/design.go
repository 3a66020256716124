package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/erpsim/internal/params"
)

var (
	ErrEmptyDesign   = errors.New("engine: design has no conditions")
	ErrDesignCounts  = errors.New("engine: item, subject and repeat counts must be positive")
	ErrUnknownDesign = errors.New("engine: unknown design category")
)

// Grid builds designs by fully crossing the categorical levels and the
// expanded continuous values.
type Grid struct{}

func NewGrid() *Grid { return &Grid{} }

func (g *Grid) Build(vars params.Variables, kind params.DesignCategory, items, subjects, repeats int) (Design, error) {
	cells := cross(vars)
	if len(cells) == 0 {
		return Design{}, ErrEmptyDesign
	}

	d := Design{
		Kind:      kind,
		Variables: vars.Names(),
		Levels:    make(map[string][]string, len(vars.Categorical)),
	}
	for k, levels := range vars.Categorical {
		d.Levels[k] = append([]string(nil), levels...)
	}

	switch kind {
	case params.DesignSingleSubject:
		d.Subjects = 1
		for i, c := range cells {
			d.Rows = append(d.Rows, c.row(1, i+1))
		}
	case params.DesignRepeat:
		if repeats < 1 {
			return Design{}, fmt.Errorf("%w: repeats=%d", ErrDesignCounts, repeats)
		}
		d.Subjects = 1
		item := 0
		for r := 0; r < repeats; r++ {
			for _, c := range cells {
				item++
				d.Rows = append(d.Rows, c.row(1, item))
			}
		}
	case params.DesignMultiSubject:
		if items < 1 || subjects < 1 {
			return Design{}, fmt.Errorf("%w: items=%d subjects=%d", ErrDesignCounts, items, subjects)
		}
		d.Subjects = subjects
		for s := 1; s <= subjects; s++ {
			for i := 0; i < items; i++ {
				d.Rows = append(d.Rows, cells[i%len(cells)].row(s, i+1))
			}
		}
	default:
		return Design{}, fmt.Errorf("%w: %q", ErrUnknownDesign, kind)
	}
	return d, nil
}

type cell struct {
	levels map[string]string
	values map[string]float64
}

func (c cell) row(subject, item int) Row {
	r := Row{
		Subject: subject,
		Item:    item,
		Levels:  make(map[string]string, len(c.levels)),
		Values:  make(map[string]float64, len(c.values)),
	}
	for k, v := range c.levels {
		r.Levels[k] = v
	}
	for k, v := range c.values {
		r.Values[k] = v
	}
	return r
}

// cross enumerates cells with variable names in sorted order so the row order
// is deterministic.
func cross(vars params.Variables) []cell {
	cells := []cell{{levels: map[string]string{}, values: map[string]float64{}}}

	cats := make([]string, 0, len(vars.Categorical))
	for k := range vars.Categorical {
		cats = append(cats, k)
	}
	sort.Strings(cats)
	for _, name := range cats {
		levels := vars.Categorical[name]
		if len(levels) == 0 {
			return nil
		}
		next := make([]cell, 0, len(cells)*len(levels))
		for _, c := range cells {
			for _, lvl := range levels {
				n := c.row(0, 0)
				n.Levels[name] = lvl
				next = append(next, cell{levels: n.Levels, values: n.Values})
			}
		}
		cells = next
	}

	conts := make([]string, 0, len(vars.Continuous))
	for k := range vars.Continuous {
		conts = append(conts, k)
	}
	sort.Strings(conts)
	for _, name := range conts {
		values := vars.Continuous[name].Values()
		next := make([]cell, 0, len(cells)*len(values))
		for _, c := range cells {
			for _, v := range values {
				n := c.row(0, 0)
				n.Values[name] = v
				next = append(next, cell{levels: n.Levels, values: n.Values})
			}
		}
		cells = next
	}
	return cells
}
