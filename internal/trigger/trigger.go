// Package trigger merges many parameter-change signals into one recompute
// trigger.
//
// Continuous inputs pass through a short throttle first. Every input then
// feeds a fingerprint of the whole parameter tuple, and the fingerprint
// passes through a longer debounce. The debounced value is the trigger: it
// fires once per settled state, carrying the latest fingerprint.
package trigger

import (
	"sync/atomic"
	"time"

	"github.com/san-kum/erpsim/internal/signal"
)

const (
	DefaultThrottle = 100 * time.Millisecond
	DefaultDebounce = 500 * time.Millisecond
)

// Builder collects the inputs of a coalescer. The graph it builds is fixed
// once Build returns.
type Builder struct {
	sched    signal.Scheduler
	throttle time.Duration
	debounce time.Duration
	deps     []signal.Observable
}

func NewBuilder(sched signal.Scheduler, throttle, debounce time.Duration) *Builder {
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Builder{sched: sched, throttle: throttle, debounce: debounce}
}

// AddContinuous registers drag-style inputs. Each one is throttled on its own.
func (b *Builder) AddContinuous(srcs ...signal.Observable) *Builder {
	for _, src := range srcs {
		ticks := signal.New(uint64(0))
		src.OnChange(func() { ticks.Update(func(n uint64) uint64 { return n + 1 }) })
		b.deps = append(b.deps, signal.Throttle(ticks, b.throttle, b.sched))
	}
	return b
}

// AddDiscrete registers inputs that change as whole values.
func (b *Builder) AddDiscrete(srcs ...signal.Observable) *Builder {
	b.deps = append(b.deps, srcs...)
	return b
}

// Build wires the graph. fingerprint must read the current parameter tuple;
// it runs whenever any registered input announces a change.
func (b *Builder) Build(fingerprint func() uint64) *Coalescer {
	c := &Coalescer{}
	c.fingerprint = signal.Derive(fingerprint, b.deps...)
	c.fingerprint.OnChange(func() { c.changes.Add(1) })
	c.fired = signal.Debounce(c.fingerprint, b.debounce, b.sched)
	c.fired.OnChange(func() { c.count.Add(1) })
	return c
}

type Coalescer struct {
	fingerprint *signal.Signal[uint64]
	fired       *signal.Signal[uint64]
	changes     atomic.Uint64
	count       atomic.Uint64
}

// Fingerprint is the undebounced fingerprint of the parameter tuple.
func (c *Coalescer) Fingerprint() *signal.Signal[uint64] { return c.fingerprint }

// Fired is the recompute trigger.
func (c *Coalescer) Fired() *signal.Signal[uint64] { return c.fired }

// OnFire subscribes fn to the recompute trigger.
func (c *Coalescer) OnFire(fn func(fingerprint uint64)) (cancel func()) {
	return c.fired.Subscribe(fn)
}

// Fires returns how many triggers have fired.
func (c *Coalescer) Fires() uint64 { return c.count.Load() }

// Changes returns how many distinct fingerprints have been observed.
func (c *Coalescer) Changes() uint64 { return c.changes.Load() }
