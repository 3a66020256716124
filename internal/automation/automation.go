// Package automation replays scripted parameter edits against a session on a
// manual clock, so the coalescing of a burst of edits can be observed from
// the command line and in tests.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/erpsim/internal/metrics"
	"github.com/san-kum/erpsim/internal/session"
	"github.com/san-kum/erpsim/internal/signal"
	"github.com/san-kum/erpsim/internal/sim"
)

// Scenario defines a scripted edit sequence
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Tabs are presets opened before the first step.
	Tabs  []string `yaml:"tabs"`
	Steps []Step   `yaml:"steps"`
	// SettleMs is how long the clock runs after the last step.
	SettleMs int `yaml:"settle_ms"`
}

// Step is a single timed edit. AtMs is measured from the start of the replay
// and must not decrease. Key is an exported session key; with Tab set it
// names a field of the tab at that position instead.
type Step struct {
	AtMs      int    `yaml:"at_ms"`
	Key       string `yaml:"key"`
	Value     string `yaml:"value"`
	Tab       *int   `yaml:"tab"`
	NewTab    string `yaml:"new_tab"`
	Activate  *int   `yaml:"activate"`
	Recompute bool   `yaml:"recompute"`
}

const defaultSettle = 1000

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	last := 0
	for i, st := range scenario.Steps {
		if st.AtMs < last {
			return nil, fmt.Errorf("step %d: at_ms %d is before %d", i+1, st.AtMs, last)
		}
		last = st.AtMs
	}
	return &scenario, nil
}

// Report summarizes a replay.
type Report struct {
	Steps   int
	Edits   uint64 // distinct fingerprints observed
	Fires   uint64
	Results []*sim.Result
	// Errors holds per-step failures; the replay continues past them.
	Errors []error
}

// Published counts results that carry data.
func (r Report) Published() (ok, failed int) {
	for _, res := range r.Results {
		if res.Failed() {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}

// Replay applies every step at its scheduled time. clock must be the
// scheduler the session was built with.
func Replay(ctx context.Context, s *session.Session, clock *signal.ManualClock, sc *Scenario) (Report, error) {
	var rep Report
	cancel := s.Current().Subscribe(func(r *sim.Result) {
		if r != nil {
			rep.Results = append(rep.Results, r)
		}
	})
	defer cancel()

	for _, preset := range sc.Tabs {
		if _, err := s.NewTab(preset); err != nil {
			return rep, fmt.Errorf("open %s: %w", preset, err)
		}
	}
	startFires, startEdits := s.Coalescer().Fires(), s.Coalescer().Changes()

	now := 0
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		clock.Advance(time.Duration(st.AtMs-now) * time.Millisecond)
		now = st.AtMs

		if err := apply(s, st); err != nil {
			rep.Errors = append(rep.Errors, fmt.Errorf("step %d: %w", i+1, err))
		}
		rep.Steps++
	}

	settle := sc.SettleMs
	if settle <= 0 {
		settle = defaultSettle
	}
	clock.Advance(time.Duration(settle) * time.Millisecond)

	rep.Fires = s.Coalescer().Fires() - startFires
	rep.Edits = s.Coalescer().Changes() - startEdits
	return rep, nil
}

func apply(s *session.Session, st Step) error {
	var errs []error
	if st.NewTab != "" {
		if _, err := s.NewTab(st.NewTab); err != nil {
			errs = append(errs, err)
		}
	}
	if st.Activate != nil {
		tabs := s.Registry().Tabs()
		if *st.Activate < 0 || *st.Activate >= len(tabs) {
			errs = append(errs, fmt.Errorf("no tab at index %d", *st.Activate))
		} else {
			s.SetActive(tabs[*st.Activate].ID)
		}
	}
	if st.Key != "" {
		key := st.Key
		if st.Tab != nil {
			key = "tab." + strconv.Itoa(*st.Tab) + "." + st.Key
		}
		if err := s.Set(key, st.Value); err != nil {
			errs = append(errs, err)
		}
	}
	if st.Recompute {
		s.RecomputeNow()
	}
	return errors.Join(errs...)
}

// SweepPoint is one value of a parameter sweep.
type SweepPoint struct {
	Value     string
	Result    *sim.Result
	SNR       float64
	PeakTime  float64
	PeakValue float64
}

// Sweep writes each value to key in turn, recomputes immediately and
// measures the clean signal. The session's key is left at the last value.
func Sweep(ctx context.Context, s *session.Session, key string, values []string) ([]SweepPoint, error) {
	points := make([]SweepPoint, 0, len(values))
	for _, v := range values {
		if err := ctx.Err(); err != nil {
			return points, err
		}
		if err := s.Set(key, v); err != nil {
			return points, fmt.Errorf("%s=%s: %w", key, v, err)
		}
		s.RecomputeNow()
		r := s.Current().Get()
		if r == nil {
			return points, fmt.Errorf("%s=%s: no result", key, v)
		}

		p := SweepPoint{Value: v, Result: r}
		if !r.Failed() {
			p.SNR = metrics.SNR(r.Clean, r.Noisy)
			if idx, peak := metrics.Peak(r.Clean); idx >= 0 && idx < len(r.Time) {
				p.PeakTime, p.PeakValue = r.Time[idx], peak
			}
		}
		points = append(points, p)
	}
	return points, nil
}
