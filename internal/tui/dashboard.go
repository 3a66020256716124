// Package tui is the interactive terminal dashboard. It edits the active
// parameter set of a session and draws the active and cumulative results.
package tui

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/erpsim/internal/aggregate"
	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/session"
	"github.com/san-kum/erpsim/internal/sim"
)

// Saver persists an exported session.
type Saver interface {
	Save(ctx context.Context, name string, params map[string]string, result *sim.Result) (string, error)
}

type Options struct {
	Session *session.Session
	// Presets are cycled through by the new-tab key.
	Presets []string
	// Do runs fn on the goroutine that owns the session. Nil runs it inline.
	Do    func(fn func()) error
	Saver Saver
}

type rowKind int

const (
	numeric rowKind = iota
	text
	choice
)

type row struct {
	key  string
	name string
	kind rowKind
	step float64
	get  func(*session.Session) string
}

func activeNum(get func(params.Fields) float64) func(*session.Session) string {
	return func(s *session.Session) string { return formatNum(get(s.Active().Fields())) }
}

func activeText(get func(params.Fields) string) func(*session.Session) string {
	return func(s *session.Session) string { return get(s.Active().Fields()) }
}

var rows = []row{
	{"active.intercept", "intercept", numeric, 0.5, activeNum(func(f params.Fields) float64 { return f.Intercept })},
	{"active.contrast", "contrast", numeric, 0.5, activeNum(func(f params.Fields) float64 { return f.Contrast })},
	{"active.random_width", "random width", numeric, 0.1, activeNum(func(f params.Fields) float64 { return f.RandomWidth })},
	{"active.basis", "basis", text, 0, activeText(func(f params.Fields) string { return f.Basis })},
	{"active.formula", "formula", text, 0, activeText(func(f params.Fields) string { return f.Formula })},
	{"active.projection", "projection", text, 0, activeText(func(f params.Fields) string { return f.Projection })},
	{"active.coding", "coding", choice, 0, activeText(func(f params.Fields) string { return string(f.Coding) })},
	{"global.noise.level", "noise level", numeric, 0.05, func(s *session.Session) string { return formatNum(s.Global().Get().Noise.Level) }},
	{"global.items", "items", numeric, 1, func(s *session.Session) string { return strconv.Itoa(s.Global().Get().Items) }},
	{"global.subjects", "subjects", numeric, 1, func(s *session.Session) string { return strconv.Itoa(s.Global().Get().Subjects) }},
	{"global.seed", "seed", numeric, 1, func(s *session.Session) string { return strconv.FormatInt(s.Global().Get().Seed, 10) }},
}

type resultMsg struct{}

type model struct {
	sess    *session.Session
	presets []string
	next    int
	do      func(func()) error
	saver   Saver
	updates chan struct{}

	cursor  int
	editing bool
	editBuf string
	status  string

	width  int
	height int
}

// New builds the dashboard model. The session must already have a tab.
func New(opts Options) tea.Model {
	m := &model{
		sess:    opts.Session,
		presets: opts.Presets,
		do:      opts.Do,
		saver:   opts.Saver,
		updates: make(chan struct{}, 1),
		width:   100,
		height:  40,
	}
	if m.do == nil {
		m.do = func(fn func()) error { fn(); return nil }
	}
	notify := func() {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	}
	_ = m.do(func() {
		m.sess.Current().Subscribe(func(*sim.Result) { notify() })
		m.sess.Cumulative().Subscribe(func(aggregate.Cumulative) { notify() })
	})
	return m
}

func (m *model) Init() tea.Cmd { return m.wait() }

func (m *model) wait() tea.Cmd {
	return func() tea.Msg {
		<-m.updates
		return resultMsg{}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case resultMsg:
		return m, m.wait()
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		return m.editKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.cycleTab(1)
	case "shift+tab":
		m.cycleTab(-1)
	case "n":
		m.newTab()
	case "x":
		m.exec(func() error { return m.sess.RemoveTab(m.sess.Registry().ActiveID()) })
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case "left", "h":
		m.adjust(-1)
	case "right", "l":
		m.adjust(1)
	case "enter":
		m.enter()
	case "m":
		m.exec(func() error {
			m.sess.UpdateGlobal(func(g *params.Global) {
				if g.Model == params.ModelLinear {
					g.Model = params.ModelMixed
				} else {
					g.Model = params.ModelLinear
				}
			})
			return nil
		})
	case "d":
		m.exec(func() error {
			m.sess.UpdateGlobal(func(g *params.Global) {
				g.Design = params.Designs[(designIndex(g.Design)+1)%len(params.Designs)]
			})
			return nil
		})
	case "r":
		m.exec(func() error {
			if !m.sess.RecomputeNow() {
				m.status = "recompute not started"
			}
			return nil
		})
	case "s":
		m.save()
	}
	return m, nil
}

func (m *model) editKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		key, value := rows[m.cursor].key, m.editBuf
		m.editing = false
		m.editBuf = ""
		m.exec(func() error { return m.sess.Set(key, value) })
	case tea.KeyEsc:
		m.editing = false
		m.editBuf = ""
	case tea.KeyBackspace:
		if r := []rune(m.editBuf); len(r) > 0 {
			m.editBuf = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.editBuf += " "
	case tea.KeyRunes:
		m.editBuf += string(msg.Runes)
	}
	return m, nil
}

// exec runs fn on the session goroutine and records its error.
func (m *model) exec(fn func() error) {
	var err error
	if derr := m.do(func() { err = fn() }); derr != nil {
		err = derr
	}
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
}

func (m *model) cycleTab(dir int) {
	m.exec(func() error {
		tabs := m.sess.Registry().Tabs()
		if len(tabs) == 0 {
			return nil
		}
		idx := m.sess.Registry().Index(m.sess.Registry().ActiveID())
		idx = (idx + dir + len(tabs)) % len(tabs)
		m.sess.SetActive(tabs[idx].ID)
		return nil
	})
}

func (m *model) newTab() {
	if len(m.presets) == 0 {
		m.status = "no presets"
		return
	}
	preset := m.presets[m.next%len(m.presets)]
	m.next++
	m.exec(func() error {
		_, err := m.sess.NewTab(preset)
		return err
	})
}

func (m *model) adjust(dir float64) {
	r := rows[m.cursor]
	if r.kind != numeric {
		return
	}
	m.exec(func() error {
		v, err := strconv.ParseFloat(r.get(m.sess), 64)
		if err != nil {
			return err
		}
		return m.sess.Set(r.key, formatNum(v+dir*r.step))
	})
}

func (m *model) enter() {
	r := rows[m.cursor]
	switch r.kind {
	case choice:
		m.exec(func() error {
			next := params.CodingEffects
			if r.get(m.sess) == string(params.CodingEffects) {
				next = params.CodingDummy
			}
			return m.sess.Set(r.key, string(next))
		})
	default:
		var current string
		_ = m.do(func() { current = r.get(m.sess) })
		m.editing = true
		m.editBuf = current
	}
}

func (m *model) save() {
	if m.saver == nil {
		m.status = "no session store"
		return
	}
	var (
		state  map[string]string
		result *sim.Result
		label  string
	)
	_ = m.do(func() {
		state = m.sess.Export()
		result, _ = m.sess.ActiveResult()
		if t, ok := m.sess.Registry().Active(); ok {
			label = t.Label
		}
	})
	name := fmt.Sprintf("%s %s", label, time.Now().Format("2006-01-02 15:04:05"))
	id, err := m.saver.Save(context.Background(), name, state, result)
	if err != nil {
		m.status = "save failed: " + err.Error()
		return
	}
	if len(id) > 8 {
		id = id[:8]
	}
	m.status = "saved " + id
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString("\n   " + cyan.Render("e r p s i m") + "  ")
	g := m.sess.Global().Get()
	b.WriteString(dim.Render(fmt.Sprintf("%s · %s · %s noise", g.Model, g.Design, g.Noise.Kind)) + "\n\n")

	b.WriteString("   " + m.viewTabs() + "\n\n")
	b.WriteString(m.viewParams())
	b.WriteString("\n")
	b.WriteString(m.viewResults())

	if m.status != "" {
		b.WriteString("\n   " + yellow.Render(m.status) + "\n")
	}
	b.WriteString("\n" + dim.Render("   tab switch  n new  x close  j/k select  h/l adjust  enter edit  m model  d design  r run  s save  q quit") + "\n")
	return b.String()
}

func (m *model) viewTabs() string {
	activeID := m.sess.Registry().ActiveID()
	var parts []string
	for i, t := range m.sess.Registry().Tabs() {
		label := fmt.Sprintf("%d %s", i+1, t.Label)
		if _, ok := m.sess.Orchestrator().Cache().Get(t.ID); ok {
			label += " •"
		}
		if t.ID == activeID {
			parts = append(parts, activeTab.Render(label))
		} else {
			parts = append(parts, idleTab.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (m *model) viewParams() string {
	var b strings.Builder
	for i, r := range rows {
		val := r.get(m.sess)
		if m.editing && i == m.cursor {
			val = m.editBuf + "▋"
		}
		if i == m.cursor {
			b.WriteString("   " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-13s", r.name)) + magenta.Render(val) + "\n")
		} else {
			b.WriteString("     " + dim.Render(fmt.Sprintf("%-13s", r.name)) + dim.Render(val) + "\n")
		}
	}
	return b.String()
}

func (m *model) viewResults() string {
	var b strings.Builder

	state := m.sess.Orchestrator().State()
	icon, label := green.Render("●"), green.Render(state.String())
	if state == sim.Running {
		icon, label = yellow.Render("○"), yellow.Render(state.String())
	}
	b.WriteString(fmt.Sprintf("   %s %s  %s\n", icon, label,
		dim.Render(fmt.Sprintf("%d recomputes", m.sess.Coalescer().Fires()))))

	pw := max(m.width-16, 20)
	ph := max((m.height-len(rows)-16)/2, 4)

	current := m.sess.Current().Get()
	if current != nil && current.Failed() && current.TabID == m.sess.Registry().ActiveID() {
		b.WriteString("   " + red.Render(current.Err) + "\n")
	}
	if r, ok := m.sess.ActiveResult(); ok {
		if plot := PlotResult(r, pw, ph); plot != "" {
			b.WriteString(panel.Render(plot) + "\n")
			b.WriteString(dimmer.Render(fmt.Sprintf("   %d samples  %s", r.Len(), r.Elapsed.Round(time.Millisecond))) + "\n")
		}
	}

	c := m.sess.Cumulative().Get()
	if plot := PlotCumulative(c, pw, ph); plot != "" {
		b.WriteString(panel.Render(plot) + "\n")
		info := fmt.Sprintf("   %d tabs", len(c.Included))
		if len(c.Skipped) > 0 {
			info += fmt.Sprintf(", %d skipped", len(c.Skipped))
		}
		if c.Subjects > 1 {
			info += fmt.Sprintf(", %d subjects", c.Subjects)
		}
		b.WriteString(dimmer.Render(info) + "\n")
	}
	return b.String()
}

func designIndex(d params.DesignCategory) int {
	for i, x := range params.Designs {
		if x == d {
			return i
		}
	}
	return 0
}

func formatNum(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}
