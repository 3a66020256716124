package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/erpsim/internal/config"
	"github.com/san-kum/erpsim/internal/engine"
	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/session"
	"github.com/san-kum/erpsim/internal/signal"
	"github.com/san-kum/erpsim/internal/sim"
)

type memSaver struct {
	names []string
	state map[string]string
}

func (s *memSaver) Save(_ context.Context, name string, state map[string]string, _ *sim.Result) (string, error) {
	s.names = append(s.names, name)
	s.state = state
	return "0123456789abcdef", nil
}

func newDashboard(t *testing.T) (*model, *session.Session, *memSaver) {
	t.Helper()
	s := session.New(session.Options{
		Presets:   config.NewPresetBook(nil),
		Engine:    engine.NewBuiltin(100),
		Designs:   engine.NewGrid(),
		Scheduler: signal.NewManualClock(),
	})
	if _, err := s.NewTab("P300"); err != nil {
		t.Fatal(err)
	}
	saver := &memSaver{}
	m := New(Options{Session: s, Presets: []string{"N170", "N400"}, Saver: saver}).(*model)
	return m, s, saver
}

func press(m *model, keys ...string) {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "backspace":
			msg = tea.KeyMsg{Type: tea.KeyBackspace}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m.Update(msg)
	}
}

func TestAdjustNumericField(t *testing.T) {
	m, s, _ := newDashboard(t)
	before := s.Active().Intercept.Get()

	press(m, "l", "l")
	if got := s.Active().Intercept.Get(); got != before+1 {
		t.Errorf("expected intercept %v, got %v", before+1, got)
	}
	tab, _ := s.Registry().Active()
	if got := tab.Fields.Intercept.Get(); got != before+1 {
		t.Errorf("edit did not reach the active tab: %v", got)
	}
}

func TestEditTextField(t *testing.T) {
	m, s, _ := newDashboard(t)

	press(m, "j", "j", "j") // basis
	press(m, "enter")
	if !m.editing || m.editBuf != "p300" {
		t.Fatalf("expected editing with the current basis, got %v %q", m.editing, m.editBuf)
	}
	press(m, "backspace", "backspace", "backspace", "backspace", "n400", "enter")
	if got := s.Active().Basis.Get(); got != "n400" {
		t.Errorf("expected basis n400, got %q", got)
	}
}

func TestTabKeys(t *testing.T) {
	m, s, _ := newDashboard(t)

	press(m, "n", "n")
	if s.Registry().Len() != 3 {
		t.Fatalf("expected 3 tabs, got %d", s.Registry().Len())
	}
	labels := []string{}
	for _, tab := range s.Registry().Tabs() {
		labels = append(labels, tab.Label)
	}
	if strings.Join(labels, ",") != "P300,N170,N400" {
		t.Errorf("unexpected tabs %v", labels)
	}

	press(m, "tab")
	if s.Registry().Index(s.Registry().ActiveID()) != 0 {
		t.Errorf("tab should wrap to the first tab")
	}

	press(m, "x")
	if s.Registry().Len() != 2 {
		t.Errorf("expected 2 tabs after closing, got %d", s.Registry().Len())
	}
}

func TestModelAndDesignKeys(t *testing.T) {
	m, s, _ := newDashboard(t)

	press(m, "m", "d", "d")
	g := s.Global().Get()
	if g.Model != params.ModelMixed {
		t.Errorf("expected Mixed, got %s", g.Model)
	}
	if g.Design != params.DesignRepeat {
		t.Errorf("expected Repeat, got %s", g.Design)
	}

	press(m, "r")
	if !strings.Contains(m.View(), "Mixed") {
		t.Errorf("view does not show the model")
	}
	if r := s.Current().Get(); r == nil || !r.Failed() {
		t.Errorf("expected a validation failure to be published")
	}
}

func TestSaveAndView(t *testing.T) {
	m, s, saver := newDashboard(t)
	s.RecomputeNow()

	press(m, "s")
	if len(saver.names) != 1 || !strings.HasPrefix(saver.names[0], "P300 ") {
		t.Fatalf("unexpected saves %v", saver.names)
	}
	if saver.state["tabs"] != "1" {
		t.Errorf("saved state missing tab count: %v", saver.state["tabs"])
	}
	if m.status != "saved 01234567" {
		t.Errorf("unexpected status %q", m.status)
	}

	view := m.View()
	for _, want := range []string{"P300", "intercept", "cumulative", "1 tabs"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
