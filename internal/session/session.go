// Package session declares the dashboard's signal graph once and owns it for
// the life of a process.
//
// Edits reach the graph through tab field signals, the shared active
// parameter set, the global choices and the variable definitions. The graph
// projects the active tab, coalesces edits into recompute triggers, runs the
// orchestrator and keeps the cumulative view of all cached results current.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/san-kum/erpsim/internal/aggregate"
	"github.com/san-kum/erpsim/internal/engine"
	"github.com/san-kum/erpsim/internal/logging"
	"github.com/san-kum/erpsim/internal/metrics"
	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/signal"
	"github.com/san-kum/erpsim/internal/sim"
	"github.com/san-kum/erpsim/internal/tabs"
	"github.com/san-kum/erpsim/internal/trigger"
)

type Options struct {
	Presets tabs.Presets
	Engine  engine.Engine
	Designs engine.DesignBuilder

	// Scheduler drives throttle and debounce timers. Without one the
	// debounce never fires and recomputes start only through RecomputeNow.
	// Dispatch marshals finished runs back onto the coordinating goroutine;
	// Exec decides where runs execute. Both default to the calling goroutine.
	Scheduler signal.Scheduler
	Dispatch  signal.Dispatcher
	Exec      sim.Executor

	Throttle time.Duration
	Debounce time.Duration
	MaxTabs  int

	Global params.Global
	Vars   params.Variables

	Logger  *slog.Logger
	Metrics *metrics.Recorder
	Journal *logging.RunJournal
}

type Session struct {
	registry  *tabs.Registry
	projector *tabs.Projector
	global    *signal.Signal[params.Global]
	vars      *signal.Signal[params.Variables]

	coalescer  *trigger.Coalescer
	orch       *sim.Orchestrator
	cumulative *signal.Signal[aggregate.Cumulative]

	presets tabs.Presets
	log     *slog.Logger
	metrics *metrics.Recorder
}

func New(opts Options) *Session {
	if opts.Vars.Categorical == nil && opts.Vars.Continuous == nil {
		opts.Vars = params.DefaultVariables()
	}
	if opts.Global == (params.Global{}) {
		opts.Global = params.DefaultGlobal()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = signal.NewManualClock()
	}

	s := &Session{
		registry:   tabs.NewRegistry(opts.Presets, tabs.WithMaxTabs(opts.MaxTabs)),
		global:     signal.NewComparable(opts.Global),
		vars:       signal.New(opts.Vars.Clone()),
		cumulative: signal.New(aggregate.Cumulative{}),
		presets:    opts.Presets,
		log:        logging.OrDiscard(opts.Logger),
		metrics:    opts.Metrics,
	}
	s.projector = tabs.NewProjector(s.registry)

	s.orch = sim.NewOrchestrator(s.Snapshot, sim.Deps{
		Engine:   opts.Engine,
		Designs:  opts.Designs,
		Dispatch: opts.Dispatch,
		Exec:     opts.Exec,
		Alive: func(id int) bool {
			_, ok := s.registry.Tab(id)
			return ok
		},
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
		Journal: opts.Journal,
	})

	active := s.projector.Active()
	s.coalescer = trigger.NewBuilder(opts.Scheduler, opts.Throttle, opts.Debounce).
		AddContinuous(active.Continuous()...).
		AddContinuous(s.global).
		AddDiscrete(active.Discrete()...).
		AddDiscrete(s.vars, s.registry.ActiveSignal()).
		Build(s.Fingerprint)

	s.coalescer.Fingerprint().Subscribe(func(fp uint64) {
		s.log.Log(context.Background(), logging.LevelTrace, "parameters changed", "fingerprint", fp)
	})
	s.coalescer.OnFire(func(fp uint64) { s.orch.Trigger(fp) })
	s.orch.Current().Subscribe(func(*sim.Result) { s.reaggregate() })
	s.registry.Changes().Subscribe(func(c tabs.Change) {
		if c.Kind == tabs.Removed {
			s.orch.Cache().Delete(c.ID)
			s.reaggregate()
		}
		s.metrics.Tabs(s.registry.Len())
	})
	return s
}

// Fingerprint hashes the parameter tuple the next recompute would read.
func (s *Session) Fingerprint() uint64 {
	return params.Fingerprint(s.registry.ActiveID(), s.projector.Snapshot(), s.global.Get(), s.vars.Get())
}

// Snapshot captures the parameter tuple as it is now.
func (s *Session) Snapshot() params.Snapshot {
	return params.Snapshot{
		TabID:  s.registry.ActiveID(),
		Fields: s.projector.Snapshot(),
		Global: s.global.Get(),
		Vars:   s.vars.Get().Clone(),
	}
}

// RecomputeNow starts a recompute without waiting for the debounce window. It
// still passes validation and is dropped while a run is in flight.
func (s *Session) RecomputeNow() bool {
	return s.orch.Trigger(s.Fingerprint())
}

func (s *Session) NewTab(preset string) (int, error) { return s.registry.CreateTab(preset) }

func (s *Session) RemoveTab(id int) error { return s.registry.RemoveTab(id) }

func (s *Session) SetActive(id int) bool { return s.registry.SetActive(id) }

func (s *Session) Registry() *tabs.Registry { return s.registry }

// Active is the shared active parameter set.
func (s *Session) Active() *tabs.FieldSet { return s.projector.Active() }

func (s *Session) Global() *signal.Signal[params.Global] { return s.global }

// UpdateGlobal applies fn to a copy of the global choices.
func (s *Session) UpdateGlobal(fn func(*params.Global)) {
	s.global.Update(func(g params.Global) params.Global {
		fn(&g)
		return g
	})
}

func (s *Session) Variables() params.Variables { return s.vars.Get().Clone() }

func (s *Session) SetVariables(v params.Variables) { s.vars.Set(v.Clone()) }

func (s *Session) Coalescer() *trigger.Coalescer { return s.coalescer }

func (s *Session) Orchestrator() *sim.Orchestrator { return s.orch }

// Current announces every published Result.
func (s *Session) Current() *signal.Signal[*sim.Result] { return s.orch.Current() }

// Cumulative announces the aggregate after every published Result and removal.
func (s *Session) Cumulative() *signal.Signal[aggregate.Cumulative] { return s.cumulative }

// ActiveResult returns the cached result of the active tab.
func (s *Session) ActiveResult() (*sim.Result, bool) {
	return s.orch.Cache().Get(s.registry.ActiveID())
}

func (s *Session) reaggregate() {
	s.cumulative.Set(aggregate.Cumulate(s.orch.Cache().Entries()))
}
