package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/erpsim/internal/sim"
)

// WriteCSV writes one row per sample: time, noisy, clean, then one clean
// column per channel in multichannel mode.
func WriteCSV(w io.Writer, r *sim.Result) error {
	cw := csv.NewWriter(w)

	header := []string{"time", "noisy", "clean"}
	for i := range r.CleanChannels {
		header = append(header, fmt.Sprintf("ch%d", i+1))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range r.Time {
		row := []string{
			format(r.Time[i]),
			format(at(r.Noisy, i)),
			format(at(r.Clean, i)),
		}
		for _, ch := range r.CleanChannels {
			row = append(row, format(at(ch, i)))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSV writes r to path.
func ExportCSV(path string, r *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func format(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}
