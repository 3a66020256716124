package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/san-kum/erpsim/internal/basis"
	"github.com/san-kum/erpsim/internal/engine"
	"github.com/san-kum/erpsim/internal/logging"
	"github.com/san-kum/erpsim/internal/metrics"
	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/signal"
	"github.com/san-kum/erpsim/internal/validate"
)

// Deps are the collaborators an Orchestrator is built from. Engine and
// Designs are required; the rest default to a fresh cache, in-place execution
// and no logging or metrics.
type Deps struct {
	Engine   engine.Engine
	Designs  engine.DesignBuilder
	Cache    *Cache
	Dispatch signal.Dispatcher
	Exec     Executor

	// Alive reports whether a tab still exists when its result is published.
	// Results for tabs that are gone are announced but not cached. Nil means
	// every tab is alive.
	Alive func(tabID int) bool

	Logger  *slog.Logger
	Metrics *metrics.Recorder
	Journal *logging.RunJournal
}

// Orchestrator owns the single in-flight recompute. Trigger reads the
// parameter snapshot, validates it, runs the engine twice with one seed and
// publishes the Result. At most one run is in flight; triggers that arrive
// meanwhile are dropped.
type Orchestrator struct {
	source func() params.Snapshot
	deps   Deps
	log    *slog.Logger

	state   atomic.Int32
	current *signal.Signal[*Result]
}

func NewOrchestrator(source func() params.Snapshot, deps Deps) *Orchestrator {
	if deps.Cache == nil {
		deps.Cache = NewCache()
	}
	if deps.Dispatch == nil {
		deps.Dispatch = signal.Immediate{}
	}
	if deps.Exec == nil {
		deps.Exec = Inline{}
	}
	return &Orchestrator{
		source:  source,
		deps:    deps,
		log:     logging.OrDiscard(deps.Logger),
		current: signal.New[*Result](nil),
	}
}

func (o *Orchestrator) State() RunState { return RunState(o.state.Load()) }

func (o *Orchestrator) Cache() *Cache { return o.deps.Cache }

// Current announces every published Result, failed ones included.
func (o *Orchestrator) Current() *signal.Signal[*Result] { return o.current }

// Trigger starts a recompute for the snapshot as it is now. It reports
// whether a run was started.
func (o *Orchestrator) Trigger(fingerprint uint64) bool {
	o.deps.Metrics.Trigger()
	snap := o.source()

	if err := validate.Check(snap.Global.Model, snap.Global.Design); err != nil {
		o.log.Warn("validation rejected", "tab", snap.TabID, "error", err)
		o.deps.Metrics.Run(metrics.OutcomeValidationError, 0)
		o.journal(snap.TabID, fingerprint, metrics.OutcomeValidationError, err.Error(), 0)
		o.current.Set(failed(snap, fingerprint, err))
		return false
	}

	if !o.state.CompareAndSwap(int32(Idle), int32(Running)) {
		o.log.Debug("trigger dropped", "tab", snap.TabID, "fingerprint", hex(fingerprint))
		o.deps.Metrics.Dropped()
		return false
	}

	o.log.Debug("run started", "tab", snap.TabID, "fingerprint", hex(fingerprint))
	o.deps.Exec.Go(func() { o.run(snap, fingerprint) })
	return true
}

// run releases Running once the result is handed to the dispatcher, whether
// or not the dispatcher ever runs it. Dispatch order keeps publications in run
// order.
func (o *Orchestrator) run(snap params.Snapshot, fingerprint uint64) {
	defer o.state.Store(int32(Idle))

	r := o.compute(snap, fingerprint)

	err := o.deps.Dispatch.Post(func() {
		if o.deps.Alive == nil || o.deps.Alive(snap.TabID) {
			o.deps.Cache.Put(snap.TabID, r)
		} else {
			o.log.Debug("result for removed tab not cached", "tab", snap.TabID)
		}
		o.current.Set(r)
	})
	if err != nil {
		o.log.Warn("result discarded", "tab", snap.TabID, "error", err)
	}

	outcome := metrics.OutcomeOK
	if r.Failed() {
		outcome = metrics.OutcomeComputeError
		o.log.Warn("run failed", "tab", snap.TabID, "error", r.Err, "elapsed", r.Elapsed)
	} else {
		o.log.Info("run finished", "tab", snap.TabID, "samples", r.Len(), "elapsed", r.Elapsed)
	}
	o.deps.Metrics.Run(outcome, r.Elapsed)
	o.journal(snap.TabID, fingerprint, outcome, r.Err, r.Elapsed)
}

func (o *Orchestrator) compute(snap params.Snapshot, fingerprint uint64) (r *Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r = failed(snap, fingerprint, &ComputeError{Stage: StagePanic, Err: fmt.Errorf("%v", p)})
		}
		r.Elapsed = time.Since(start)
	}()

	g := snap.Global
	comp, err := component(snap)
	if err != nil {
		return failed(snap, fingerprint, err)
	}

	design, err := o.deps.Designs.Build(snap.Vars, g.Design, g.Items, g.Subjects, g.Repeats)
	if err != nil {
		return failed(snap, fingerprint, &ComputeError{Stage: StageDesign, Err: err})
	}
	design.SamplingRate = g.SamplingRate
	if err := comp.Formula.Check(design.Variables); err != nil {
		return failed(snap, fingerprint, &ComputeError{Stage: StageFormula, Err: err})
	}

	ctx := context.Background()
	comps := []engine.Component{comp}
	noisy, err := o.deps.Engine.Simulate(ctx, g.Seed, design, comps, g.Onset, g.Noise)
	if err != nil {
		return failed(snap, fingerprint, &ComputeError{Stage: StageEngine, Err: err})
	}
	clean, err := o.deps.Engine.Simulate(ctx, g.Seed, design, comps, g.Onset, params.NoiseSpec{Kind: params.NoiseNone})
	if err != nil {
		return failed(snap, fingerprint, &ComputeError{Stage: StageEngine, Err: err})
	}

	noisyDisplay, noisyChannels, err := Normalize(noisy, g.Multichannel, g.ReferenceChannel)
	if err != nil {
		return failed(snap, fingerprint, &ComputeError{Stage: StageNormalize, Err: err})
	}
	cleanDisplay, cleanChannels, err := Normalize(clean, g.Multichannel, g.ReferenceChannel)
	if err != nil {
		return failed(snap, fingerprint, &ComputeError{Stage: StageNormalize, Err: err})
	}
	if len(noisyDisplay) != len(cleanDisplay) {
		return failed(snap, fingerprint, &ComputeError{Stage: StageNormalize, Err: ErrShapeMismatch})
	}

	return &Result{
		TabID:         snap.TabID,
		Fingerprint:   fingerprint,
		Seed:          g.Seed,
		Time:          TimeAxis(len(cleanDisplay), g.SamplingRate),
		Noisy:         noisyDisplay,
		Clean:         cleanDisplay,
		NoisyChannels: noisyChannels,
		CleanChannels: cleanChannels,
		Events:        noisy.Events,
		Onset:         g.Onset,
	}
}

// component parses the user text of the active fields into an engine component.
func component(snap params.Snapshot) (engine.Component, error) {
	f := snap.Fields

	b, err := basis.ParseBasis(f.Basis)
	if err != nil {
		return engine.Component{}, &ComputeError{Stage: StageBasis, Err: err}
	}
	samples, err := b.Sample(snap.Global.SamplingRate)
	if err != nil {
		return engine.Component{}, &ComputeError{Stage: StageBasis, Err: err}
	}

	formula, err := basis.ParseFormula(f.Formula)
	if err != nil {
		return engine.Component{}, &ComputeError{Stage: StageFormula, Err: err}
	}

	c := engine.Component{
		Basis:       samples,
		Formula:     formula,
		Intercept:   f.Intercept,
		Contrast:    f.Contrast,
		RandomWidth: f.RandomWidth,
		Coding:      f.Coding,
	}
	if !snap.Global.Multichannel {
		return c, nil
	}
	if f.Projection == "" {
		return engine.Component{}, &ComputeError{Stage: StageProjection, Err: ErrNoProjection}
	}
	c.Projection, err = basis.ParseProjection(f.Projection)
	if err != nil {
		return engine.Component{}, &ComputeError{Stage: StageProjection, Err: err}
	}
	return c, nil
}

func (o *Orchestrator) journal(tab int, fingerprint uint64, outcome, errText string, elapsed time.Duration) {
	o.deps.Journal.Record(map[string]any{
		"tab":         tab,
		"fingerprint": hex(fingerprint),
		"outcome":     outcome,
		"error":       errText,
		"elapsed_ms":  elapsed.Milliseconds(),
	})
}

func hex(fp uint64) string { return fmt.Sprintf("%016x", fp) }
