package sim_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/erpsim/internal/engine"
	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/signal"
	"github.com/san-kum/erpsim/internal/sim"
)

// countingEngine delegates to the builtin engine and records every call.
type countingEngine struct {
	mu     sync.Mutex
	inner  engine.Engine
	calls  int
	seeds  []int64
	noises []string
	fail   error
	panics bool
	gate   chan struct{}
}

func (e *countingEngine) Simulate(ctx context.Context, seed int64, d engine.Design, comps []engine.Component, onset params.OnsetSpec, noise params.NoiseSpec) (engine.Output, error) {
	e.mu.Lock()
	e.calls++
	e.seeds = append(e.seeds, seed)
	e.noises = append(e.noises, noise.Kind)
	gate, fail, panics := e.gate, e.fail, e.panics
	e.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if panics {
		panic("index out of range")
	}
	if fail != nil {
		return engine.Output{}, fail
	}
	return e.inner.Simulate(ctx, seed, d, comps, onset, noise)
}

func (e *countingEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func testSnapshot(tab int) params.Snapshot {
	return params.Snapshot{
		TabID: tab,
		Fields: params.Fields{
			Intercept: 5,
			Contrast:  2,
			Basis:     "p300",
			Formula:   "0 ~ 1 + condition",
			Coding:    params.CodingDummy,
		},
		Global: params.DefaultGlobal(),
		Vars:   params.DefaultVariables(),
	}
}

var _ = Describe("Orchestrator", func() {
	var (
		eng     *countingEngine
		snap    params.Snapshot
		orch    *sim.Orchestrator
		mu      sync.Mutex
		results []*sim.Result
	)

	published := func() []*sim.Result {
		mu.Lock()
		defer mu.Unlock()
		return append([]*sim.Result(nil), results...)
	}

	build := func(exec sim.Executor) {
		orch = sim.NewOrchestrator(func() params.Snapshot { return snap }, sim.Deps{
			Engine:  eng,
			Designs: engine.NewGrid(),
			Exec:    exec,
		})
		orch.Current().Subscribe(func(r *sim.Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		})
	}

	BeforeEach(func() {
		eng = &countingEngine{inner: engine.NewBuiltin(100)}
		snap = testSnapshot(1)
		results = nil
		build(sim.Inline{})
	})

	It("starts idle", func() {
		Expect(orch.State()).To(Equal(sim.Idle))
		Expect(orch.Current().Get()).To(BeNil())
	})

	Describe("a successful run", func() {
		It("publishes and caches a paired noisy and clean result", func() {
			Expect(orch.Trigger(42)).To(BeTrue())
			Expect(orch.State()).To(Equal(sim.Idle))

			r := orch.Current().Get()
			Expect(r).NotTo(BeNil())
			Expect(r.Err).To(BeEmpty())
			Expect(r.TabID).To(Equal(1))
			Expect(r.Fingerprint).To(Equal(uint64(42)))
			Expect(r.Len()).To(BeNumerically(">", 1))
			Expect(r.Noisy).To(HaveLen(r.Len()))
			Expect(r.Clean).To(HaveLen(r.Len()))
			Expect(r.Noisy).NotTo(Equal(r.Clean))
			Expect(r.Events.Events).To(HaveLen(2))
			Expect(r.NoisyChannels).To(BeNil())

			cached, ok := orch.Cache().Get(1)
			Expect(ok).To(BeTrue())
			Expect(cached).To(BeIdenticalTo(r))
		})

		It("calls the engine twice with the same seed, noisy then clean", func() {
			snap.Global.Seed = 99
			orch.Trigger(1)
			Expect(eng.Calls()).To(Equal(2))
			Expect(eng.seeds).To(Equal([]int64{99, 99}))
			Expect(eng.noises).To(Equal([]string{params.NoiseWhite, params.NoiseNone}))
		})

		It("is deterministic for an identical snapshot and seed", func() {
			orch.Trigger(1)
			first := orch.Current().Get()
			orch.Trigger(1)
			second := orch.Current().Get()

			Expect(second).NotTo(BeIdenticalTo(first))
			Expect(second.Noisy).To(Equal(first.Noisy))
			Expect(second.Clean).To(Equal(first.Clean))
		})

		It("keeps the full channel matrix in multichannel mode", func() {
			snap.Global.Multichannel = true
			snap.Global.ReferenceChannel = 2
			snap.Fields.Projection = "[1, -1]"
			snap.Global.Noise = params.NoiseSpec{Kind: params.NoiseNone}

			orch.Trigger(1)
			r := orch.Current().Get()
			Expect(r.Err).To(BeEmpty())
			Expect(r.CleanChannels).To(HaveLen(2))
			Expect(r.Clean).To(Equal(r.CleanChannels[1]))
			for i := range r.Clean {
				Expect(r.CleanChannels[0][i]).To(Equal(-r.Clean[i]))
			}
		})
	})

	DescribeTable("the validation gate",
		func(model params.ModelCategory, design params.DesignCategory) {
			snap.Global.Model = model
			snap.Global.Design = design

			Expect(orch.Trigger(7)).To(BeFalse())
			Expect(eng.Calls()).To(BeZero())
			Expect(orch.State()).To(Equal(sim.Idle))
			Expect(orch.Cache().Len()).To(BeZero())

			r := orch.Current().Get()
			Expect(r.Err).NotTo(BeEmpty())
			Expect(r.Time).To(Equal([]float64{0}))
			Expect(r.Clean).To(Equal([]float64{0}))
			Expect(r.Noisy).To(Equal([]float64{0}))
		},
		Entry("mixed single-subject", params.ModelMixed, params.DesignSingleSubject),
		Entry("mixed repeat", params.ModelMixed, params.DesignRepeat),
	)

	Describe("compute errors", func() {
		It("turns an engine error into a cached error result and returns to idle", func() {
			eng.fail = errors.New("singular design")
			Expect(orch.Trigger(1)).To(BeTrue())

			r := orch.Current().Get()
			Expect(r.Err).To(ContainSubstring("singular design"))
			Expect(r.Clean).To(Equal([]float64{0}))
			Expect(orch.State()).To(Equal(sim.Idle))

			cached, ok := orch.Cache().Get(1)
			Expect(ok).To(BeTrue())
			Expect(cached.Failed()).To(BeTrue())

			eng.fail = nil
			Expect(orch.Trigger(2)).To(BeTrue())
			Expect(orch.Current().Get().Err).To(BeEmpty())
		})

		It("recovers from an engine panic", func() {
			eng.panics = true
			orch.Trigger(1)
			Expect(orch.Current().Get().Err).To(ContainSubstring("panic"))
			Expect(orch.State()).To(Equal(sim.Idle))
		})

		It("rejects malformed basis text before the engine runs", func() {
			snap.Fields.Basis = "os.system('rm -rf /')"
			orch.Trigger(1)
			Expect(eng.Calls()).To(BeZero())
			Expect(orch.Current().Get().Err).To(HavePrefix(sim.StageBasis))
		})

		It("rejects formulas naming unknown variables", func() {
			snap.Fields.Formula = "0 ~ 1 + difficulty"
			orch.Trigger(1)
			Expect(eng.Calls()).To(BeZero())
			Expect(orch.Current().Get().Err).To(ContainSubstring("difficulty"))
		})

		It("rejects an out-of-range reference channel", func() {
			snap.Global.Multichannel = true
			snap.Global.ReferenceChannel = 3
			snap.Fields.Projection = "1 0.5"
			orch.Trigger(1)
			Expect(orch.Current().Get().Err).To(HavePrefix(sim.StageNormalize))
		})
	})

	Describe("mutual exclusion", func() {
		var workers *sim.Workers

		BeforeEach(func() {
			workers = &sim.Workers{}
			eng.gate = make(chan struct{})
			build(workers)
		})

		It("drops triggers while a run is in flight", func() {
			Expect(orch.Trigger(1)).To(BeTrue())
			Expect(orch.State()).To(Equal(sim.Running))

			Expect(orch.Trigger(2)).To(BeFalse())
			Expect(published()).To(BeEmpty())

			close(eng.gate)
			workers.Wait()

			Expect(published()).To(HaveLen(1))
			Expect(published()[0].Fingerprint).To(Equal(uint64(1)))
			Expect(orch.State()).To(Equal(sim.Idle))
			Expect(eng.Calls()).To(Equal(2))
		})

		It("files the result under the tab that was active when the run started", func() {
			orch.Trigger(1)
			snap = testSnapshot(2)

			close(eng.gate)
			workers.Wait()

			_, ok := orch.Cache().Get(1)
			Expect(ok).To(BeTrue())
			_, ok = orch.Cache().Get(2)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("publication", func() {
		It("announces a result for a removed tab without caching it", func() {
			alive := false
			orch = sim.NewOrchestrator(func() params.Snapshot { return snap }, sim.Deps{
				Engine:  eng,
				Designs: engine.NewGrid(),
				Alive:   func(int) bool { return alive },
			})

			Expect(orch.Trigger(1)).To(BeTrue())
			Expect(orch.Current().Get()).NotTo(BeNil())
			Expect(orch.Current().Get().TabID).To(Equal(1))
			Expect(orch.Cache().Len()).To(BeZero())

			alive = true
			orch.Trigger(2)
			_, ok := orch.Cache().Get(1)
			Expect(ok).To(BeTrue())
		})

		It("returns to idle when queued results are never delivered", func() {
			loop := signal.NewLoop(4)
			orch = sim.NewOrchestrator(func() params.Snapshot { return snap }, sim.Deps{
				Engine:   eng,
				Designs:  engine.NewGrid(),
				Dispatch: loop,
			})

			Expect(orch.Trigger(1)).To(BeTrue())
			Expect(orch.State()).To(Equal(sim.Idle))
			Expect(orch.Current().Get()).To(BeNil())

			loop.Close()
			Expect(orch.Trigger(2)).To(BeTrue())
			Expect(orch.State()).To(Equal(sim.Idle))
			Expect(orch.Cache().Len()).To(BeZero())
		})
	})
})
