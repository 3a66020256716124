package sim

import (
	"fmt"
	"time"

	"github.com/san-kum/erpsim/internal/engine"
	"github.com/san-kum/erpsim/internal/params"
)

type RunState int32

const (
	Idle RunState = iota
	Running
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	}
	return fmt.Sprintf("RunState(%d)", int32(s))
}

// Result is the outcome of one recompute. It is never modified after it is
// published.
type Result struct {
	TabID       int
	Fingerprint uint64
	Seed        int64

	Time  []float64
	Noisy []float64
	Clean []float64

	// Set in multichannel mode only: channels x samples.
	NoisyChannels [][]float64
	CleanChannels [][]float64

	Events engine.EventTable
	Onset  params.OnsetSpec

	// Err is empty on success.
	Err     string
	Elapsed time.Duration
}

func (r *Result) Failed() bool { return r.Err != "" }

// Len is the number of samples in the display series.
func (r *Result) Len() int { return len(r.Time) }

// failed builds the degenerate single-point result that carries an error.
func failed(snap params.Snapshot, fingerprint uint64, err error) *Result {
	return &Result{
		TabID:       snap.TabID,
		Fingerprint: fingerprint,
		Seed:        snap.Global.Seed,
		Time:        []float64{0},
		Noisy:       []float64{0},
		Clean:       []float64{0},
		Onset:       snap.Global.Onset,
		Err:         err.Error(),
	}
}
