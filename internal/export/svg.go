// Package export renders simulated series as standalone SVG plots.
package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/erpsim/internal/aggregate"
	"github.com/san-kum/erpsim/internal/sim"
)

const (
	ColorNoisy = "#5f87af"
	ColorClean = "#ffaf00"
)

// Series is one polyline drawn against the shared time axis.
type Series struct {
	Name  string
	Color string
	Y     []float64
}

// Plot holds everything a figure draws. Separators are times at which a
// dashed vertical line marks a subject boundary.
type Plot struct {
	Title      string
	Time       []float64
	Series     []Series
	Separators []float64
	Width      int
	Height     int
}

// ResultToSVG draws the noisy and clean series of a result.
func ResultToSVG(r *sim.Result, width, height int) string {
	return SeriesToSVG(Plot{
		Title:  fmt.Sprintf("tab %d", r.TabID),
		Time:   r.Time,
		Series: []Series{{"noisy", ColorNoisy, r.Noisy}, {"clean", ColorClean, r.Clean}},
		Width:  width,
		Height: height,
	})
}

// CumulativeToSVG draws the summed series with subject separators.
func CumulativeToSVG(c aggregate.Cumulative, width, height int) string {
	return SeriesToSVG(Plot{
		Title:      "cumulative",
		Time:       c.Time,
		Series:     []Series{{"noisy", ColorNoisy, c.Noisy}, {"clean", ColorClean, c.Clean}},
		Separators: c.Separators,
		Width:      width,
		Height:     height,
	})
}

// SeriesToSVG creates an SVG with one path per series. Series longer than
// the time axis are cut to it.
func SeriesToSVG(p Plot) string {
	if p.Width <= 0 {
		p.Width = 800
	}
	if p.Height <= 0 {
		p.Height = 300
	}
	if len(p.Time) < 2 {
		return ""
	}

	minX, maxX := p.Time[0], p.Time[len(p.Time)-1]
	minY, maxY := 0.0, 0.0
	first := true
	for _, s := range p.Series {
		for i, y := range s.Y {
			if i >= len(p.Time) {
				break
			}
			if first || y < minY {
				minY = y
			}
			if first || y > maxY {
				maxY = y
			}
			first = false
		}
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	w, h := float64(p.Width), float64(p.Height)
	px := func(x float64) float64 { return (x - minX) / rangeX * w }
	py := func(y float64) float64 { return h - (y-minY)/rangeY*h }

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, p.Width, p.Height, p.Width, p.Height)
	if p.Title != "" {
		fmt.Fprintf(&sb, "<title>%s</title>\n", escape(p.Title))
	}

	if minY < 0 && maxY > 0 {
		fmt.Fprintf(&sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#303030" stroke-width="1"/>
`, py(0), p.Width, py(0))
	}
	for _, t := range p.Separators {
		x := px(t)
		fmt.Fprintf(&sb, `<line class="separator" x1="%.1f" y1="0" x2="%.1f" y2="%d" stroke="#808080" stroke-dasharray="4 4"/>
`, x, x, p.Height)
	}

	for _, s := range p.Series {
		n := min(len(s.Y), len(p.Time))
		if n < 2 {
			continue
		}
		fmt.Fprintf(&sb, `<path id="%s" fill="none" stroke="%s" stroke-width="1.5" d="M`, escape(s.Name), s.Color)
		for i := 0; i < n; i++ {
			if i == 0 {
				fmt.Fprintf(&sb, "%.1f,%.1f", px(p.Time[i]), py(s.Y[i]))
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", px(p.Time[i]), py(s.Y[i]))
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string { return escaper.Replace(s) }
