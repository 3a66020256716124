package session_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/erpsim/internal/config"
	"github.com/san-kum/erpsim/internal/engine"
	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/session"
	"github.com/san-kum/erpsim/internal/signal"
	"github.com/san-kum/erpsim/internal/sim"
)

func newSession(clock *signal.ManualClock) *session.Session {
	return session.New(session.Options{
		Presets:   config.NewPresetBook(nil),
		Engine:    engine.NewBuiltin(100),
		Designs:   engine.NewGrid(),
		Scheduler: clock,
	})
}

// heldRuns keeps recompute jobs until the test releases them.
type heldRuns struct {
	jobs []func()
}

func (h *heldRuns) Go(job func()) { h.jobs = append(h.jobs, job) }

func (h *heldRuns) release() {
	jobs := h.jobs
	h.jobs = nil
	for _, job := range jobs {
		job()
	}
}

var _ = Describe("Session", func() {
	var (
		clock *signal.ManualClock
		s     *session.Session
	)

	BeforeEach(func() {
		clock = signal.NewManualClock()
		s = newSession(clock)
	})

	Describe("coalesced recompute", func() {
		It("runs once after edits settle", func() {
			_, err := s.NewTab("P300")
			Expect(err).NotTo(HaveOccurred())
			var results []*sim.Result
			s.Current().Subscribe(func(r *sim.Result) { results = append(results, r) })

			for i := 1; i <= 5; i++ {
				s.Active().Intercept.Set(float64(i))
				clock.Advance(50 * time.Millisecond)
			}
			Expect(results).To(BeEmpty())

			clock.Advance(time.Second)
			Expect(results).To(HaveLen(1))
			Expect(results[0].Failed()).To(BeFalse())
			Expect(results[0].Fingerprint).To(Equal(s.Fingerprint()))

			r, ok := s.ActiveResult()
			Expect(ok).To(BeTrue())
			Expect(r).To(BeIdenticalTo(results[0]))
		})

		It("publishes a validation failure without caching it", func() {
			_, err := s.NewTab("P300")
			Expect(err).NotTo(HaveOccurred())
			s.UpdateGlobal(func(g *params.Global) {
				g.Model = params.ModelMixed
				g.Design = params.DesignRepeat
			})

			Expect(s.RecomputeNow()).To(BeFalse())
			Expect(s.Current().Get()).NotTo(BeNil())
			Expect(s.Current().Get().Failed()).To(BeTrue())
			_, ok := s.ActiveResult()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("cumulative view", func() {
		It("sums every tab and forgets removed ones", func() {
			first, err := s.NewTab("P300")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.RecomputeNow()).To(BeTrue())
			second, err := s.NewTab("N170")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.RecomputeNow()).To(BeTrue())

			Expect(s.Orchestrator().Cache().Len()).To(Equal(2))
			Expect(s.Cumulative().Get().Included).To(ConsistOf(first, second))

			Expect(s.RemoveTab(second)).To(Succeed())
			Expect(s.Orchestrator().Cache().Len()).To(Equal(1))
			_, ok := s.Orchestrator().Cache().Get(second)
			Expect(ok).To(BeFalse())
			Expect(s.Cumulative().Get().Included).To(ConsistOf(first))
			Expect(s.Registry().ActiveID()).To(Equal(first))
		})

		It("does not cache a run that finishes after its tab is removed", func() {
			held := &heldRuns{}
			s = session.New(session.Options{
				Presets:   config.NewPresetBook(nil),
				Engine:    engine.NewBuiltin(100),
				Designs:   engine.NewGrid(),
				Scheduler: clock,
				Exec:      held,
			})
			first, err := s.NewTab("P300")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.RecomputeNow()).To(BeTrue())
			held.release()

			second, err := s.NewTab("N170")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.RecomputeNow()).To(BeTrue())
			Expect(s.RemoveTab(second)).To(Succeed())
			held.release()

			Expect(s.Current().Get().TabID).To(Equal(second))
			_, ok := s.Orchestrator().Cache().Get(second)
			Expect(ok).To(BeFalse())
			Expect(s.Cumulative().Get().Included).To(ConsistOf(first))
			Expect(s.Orchestrator().State()).To(Equal(sim.Idle))
		})
	})

	Describe("Export and Import", func() {
		BeforeEach(func() {
			_, err := s.NewTab("P300")
			Expect(err).NotTo(HaveOccurred())
			_, err = s.NewTab("N170")
			Expect(err).NotTo(HaveOccurred())
			s.Active().Contrast.Set(3.5)
			s.UpdateGlobal(func(g *params.Global) { g.Seed = 42 })
			s.SetVariables(params.Variables{
				Categorical: map[string][]string{"condition": {"car", "face"}},
				Continuous:  map[string]params.ContinuousRange{"difficulty": {Min: 0, Max: 1, Steps: 3}},
			})
		})

		It("restores an equal session in a fresh instance", func() {
			Expect(s.RecomputeNow()).To(BeTrue())
			want, ok := s.ActiveResult()
			Expect(ok).To(BeTrue())
			state := s.Export()
			Expect(state).To(HaveKeyWithValue("tabs", "2"))
			Expect(state).To(HaveKeyWithValue("active", "1"))
			Expect(state).To(HaveKeyWithValue("tab.1.label", "N170"))
			Expect(state).To(HaveKeyWithValue("active.contrast", "3.5"))
			Expect(state).To(HaveKeyWithValue("vars.cont.difficulty", "0:1:3"))
			Expect(state).To(HaveKey("result.clean"))

			fresh := newSession(signal.NewManualClock())
			Expect(fresh.Import(state)).To(Succeed())

			Expect(fresh.Registry().Len()).To(Equal(2))
			Expect(fresh.Snapshot()).To(Equal(s.Snapshot()))
			Expect(fresh.Fingerprint()).To(Equal(s.Fingerprint()))

			Expect(fresh.RecomputeNow()).To(BeTrue())
			got, ok := fresh.ActiveResult()
			Expect(ok).To(BeTrue())
			Expect(got.Clean).To(Equal(want.Clean))
			Expect(got.Noisy).To(Equal(want.Noisy))
			Expect(got.Time).To(Equal(want.Time))
		})

		It("round trips a session without tabs", func() {
			empty := newSession(signal.NewManualClock())
			state := empty.Export()
			Expect(state).To(HaveKeyWithValue("tabs", "0"))
			Expect(state).NotTo(HaveKey("active"))
			Expect(state).NotTo(HaveKey("active.coding"))

			fresh := newSession(signal.NewManualClock())
			Expect(fresh.Import(state)).To(Succeed())
			Expect(fresh.Registry().Len()).To(BeZero())
			Expect(fresh.Export()).To(Equal(state))
		})

		It("removes tabs beyond the imported count", func() {
			state := map[string]string{"tabs": "1", "active": "0"}
			Expect(s.Import(state)).To(Succeed())
			Expect(s.Registry().Len()).To(Equal(1))
			Expect(s.Registry().Tabs()[0].Label).To(Equal("P300"))
		})

		It("keeps going past malformed values", func() {
			err := s.Import(map[string]string{
				"global.items":     "many",
				"global.seed":      "7",
				"active.intercept": "-2",
				"active.coding":    "Helmert",
				"unknown.key":      "ignored",
				"result.samples":   "12",
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("global.items"))
			Expect(err.Error()).To(ContainSubstring("active.coding"))

			Expect(s.Global().Get().Seed).To(Equal(int64(7)))
			Expect(s.Global().Get().Items).To(Equal(params.DefaultGlobal().Items))
			Expect(s.Active().Intercept.Get()).To(Equal(-2.0))
		})

		It("writes single keys through Set", func() {
			Expect(s.Set("tab.0.intercept", "9")).To(Succeed())
			tab := s.Registry().Tabs()[0]
			Expect(tab.Fields.Intercept.Get()).To(Equal(9.0))
			Expect(s.Active().Intercept.Get()).NotTo(Equal(9.0))

			Expect(s.Set("tab.1.label", "mine")).To(Succeed())
			Expect(s.Registry().Tabs()[1].Label).To(Equal("mine"))
		})
	})
})
