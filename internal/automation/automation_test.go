package automation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/erpsim/internal/config"
	"github.com/san-kum/erpsim/internal/engine"
	"github.com/san-kum/erpsim/internal/session"
	"github.com/san-kum/erpsim/internal/signal"
)

func newSession() (*session.Session, *signal.ManualClock) {
	clock := signal.NewManualClock()
	s := session.New(session.Options{
		Presets:   config.NewPresetBook(nil),
		Engine:    engine.NewBuiltin(100),
		Designs:   engine.NewGrid(),
		Scheduler: clock,
	})
	return s, clock
}

func burst(n, spacing int) string {
	var sb strings.Builder
	sb.WriteString("name: burst\ntabs: [P300]\nsteps:\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "  - at_ms: %d\n    key: active.intercept\n    value: \"%d\"\n", i*spacing, i+1)
	}
	return sb.String()
}

func TestReplayCoalescesBurst(t *testing.T) {
	sc, err := ParseScenario([]byte(burst(20, 40)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s, clock := newSession()

	rep, err := Replay(context.Background(), s, clock, sc)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rep.Steps != 20 {
		t.Errorf("expected 20 steps, got %d", rep.Steps)
	}
	if rep.Fires != 1 {
		t.Errorf("expected one recompute for the burst, got %d", rep.Fires)
	}
	if ok, failed := rep.Published(); ok != 1 || failed != 0 {
		t.Errorf("expected 1 good result, got ok=%d failed=%d", ok, failed)
	}
	if got := s.Active().Intercept.Get(); got != 20 {
		t.Errorf("expected final intercept 20, got %v", got)
	}
}

func TestReplaySeparatedEdits(t *testing.T) {
	sc, err := ParseScenario([]byte(burst(3, 700)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s, clock := newSession()

	rep, err := Replay(context.Background(), s, clock, sc)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rep.Fires != 3 {
		t.Errorf("expected a recompute per settled edit, got %d", rep.Fires)
	}
}

func TestReplayTabSteps(t *testing.T) {
	sc, err := ParseScenario([]byte(`
tabs: [P300]
steps:
  - at_ms: 0
    new_tab: N170
  - at_ms: 10
    tab: 0
    key: contrast
    value: "4"
  - at_ms: 20
    activate: 0
    recompute: true
  - at_ms: 30
    key: global.items
    value: lots
  - at_ms: 40
    activate: 5
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s, clock := newSession()

	rep, err := Replay(context.Background(), s, clock, sc)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if s.Registry().Len() != 2 {
		t.Fatalf("expected 2 tabs, got %d", s.Registry().Len())
	}
	first := s.Registry().Tabs()[0]
	if s.Registry().ActiveID() != first.ID {
		t.Errorf("expected first tab active")
	}
	if got := s.Active().Contrast.Get(); got != 4 {
		t.Errorf("expected contrast 4 on the active set, got %v", got)
	}
	if len(rep.Errors) != 2 {
		t.Errorf("expected 2 step errors, got %v", rep.Errors)
	}
	if _, ok := s.ActiveResult(); !ok {
		t.Errorf("recompute step did not cache a result")
	}
}

func TestParseScenarioRejectsBackwardsTime(t *testing.T) {
	_, err := ParseScenario([]byte("steps:\n  - at_ms: 50\n  - at_ms: 10\n"))
	if err == nil {
		t.Fatal("expected an error for decreasing at_ms")
	}
}

func TestSweep(t *testing.T) {
	s, _ := newSession()
	if _, err := s.NewTab("P300"); err != nil {
		t.Fatal(err)
	}

	points, err := Sweep(context.Background(), s, "active.intercept", []string{"1", "10"})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	for _, p := range points {
		if p.Result.Failed() {
			t.Fatalf("%s: run failed: %s", p.Value, p.Result.Err)
		}
		if math.IsNaN(p.SNR) {
			t.Errorf("%s: SNR is NaN", p.Value)
		}
	}
	if math.Abs(points[1].PeakValue) <= math.Abs(points[0].PeakValue) {
		t.Errorf("larger intercept should raise the peak: %v vs %v", points[0].PeakValue, points[1].PeakValue)
	}

	if _, err := Sweep(context.Background(), s, "active.coding", []string{"bogus"}); err == nil {
		t.Error("expected an error for a bad value")
	}
}
