package tui

import (
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/erpsim/internal/aggregate"
	"github.com/san-kum/erpsim/internal/sim"
)

// PlotResult draws the noisy and clean series of r. Failed or empty results
// draw nothing.
func PlotResult(r *sim.Result, width, height int) string {
	if r == nil || r.Failed() || r.Len() < 2 {
		return ""
	}
	return plotPair(r.Noisy, r.Clean, width, height, "noisy (blue)  clean (yellow)")
}

// PlotCumulative draws the summed series of every cached tab.
func PlotCumulative(c aggregate.Cumulative, width, height int) string {
	if len(c.Time) < 2 {
		return ""
	}
	return plotPair(c.Noisy, c.Clean, width, height, "cumulative")
}

func plotPair(noisy, clean []float64, width, height int, caption string) string {
	if width < 10 {
		width = 10
	}
	if height < 3 {
		height = 3
	}
	return asciigraph.PlotMany([][]float64{noisy, clean},
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Yellow),
		asciigraph.Caption(caption),
	)
}
