// Package aggregate combines every tab's cached Result into one cumulative
// view.
package aggregate

import "github.com/san-kum/erpsim/internal/sim"

// Cumulative is the sample-wise sum of the successful cached results, laid on
// the longest cached time base.
type Cumulative struct {
	Time  []float64
	Clean []float64
	Noisy []float64

	// ReferenceTab owns the time base; zero when nothing is cached.
	ReferenceTab int
	Included     []int
	Skipped      []int

	// Subjects is the largest subject count among included results.
	// Separators holds subject boundary times and is only set above one.
	Subjects   int
	Separators []float64
}

// Cumulate sums entries. The reference time base is the longest cached series,
// the lowest tab id winning a tie, so entries are expected in ascending id
// order as sim.Cache.Entries returns them. Failed results are skipped.
// Contributors shorter than the reference add nothing past their own end.
func Cumulate(entries []sim.Entry) Cumulative {
	var c Cumulative

	var ref *sim.Result
	for _, e := range entries {
		if e.Result == nil {
			continue
		}
		if ref == nil || e.Result.Len() > ref.Len() {
			ref, c.ReferenceTab = e.Result, e.TabID
		}
	}
	if ref == nil {
		return c
	}

	n := ref.Len()
	c.Time = append([]float64(nil), ref.Time...)
	c.Clean = make([]float64, n)
	c.Noisy = make([]float64, n)

	for _, e := range entries {
		r := e.Result
		if r == nil {
			continue
		}
		if r.Failed() {
			c.Skipped = append(c.Skipped, e.TabID)
			continue
		}
		c.Included = append(c.Included, e.TabID)
		addInto(c.Clean, r.Clean)
		addInto(c.Noisy, r.Noisy)
		if s := r.Events.Subjects(); s > c.Subjects {
			c.Subjects = s
		}
	}

	if c.Subjects > 1 && n > 0 {
		c.Separators = separators(c.Time[n-1], c.Subjects)
	}
	return c
}

func addInto(dst, src []float64) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] += src[i]
	}
}

// separators splits duration evenly into subjects parts and returns the inner
// boundaries.
func separators(duration float64, subjects int) []float64 {
	out := make([]float64, 0, subjects-1)
	step := duration / float64(subjects)
	for k := 1; k < subjects; k++ {
		out = append(out, float64(k)*step)
	}
	return out
}
