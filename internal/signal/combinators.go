package signal

import (
	"sync"
	"time"
)

// Map derives a signal whose value is fn applied to every value of src.
func Map[A, B any](src *Signal[A], fn func(A) B) *Signal[B] {
	out := New(fn(src.Get()))
	src.Subscribe(func(v A) { out.Set(fn(v)) })
	return out
}

// Derive recomputes fn whenever any dependency changes. The result only
// propagates when it differs from the previous value.
func Derive[T comparable](fn func() T, deps ...Observable) *Signal[T] {
	out := NewComparable(fn())
	for _, dep := range deps {
		dep.OnChange(func() { out.Set(fn()) })
	}
	return out
}

// Throttle forwards at most one value of src per window. The first value of a
// burst passes immediately; later values in the same window are held and the
// most recent one is delivered when the window closes.
func Throttle[T any](src *Signal[T], window time.Duration, sched Scheduler) *Signal[T] {
	out := New(src.Get())

	var (
		mu      sync.Mutex
		open    bool
		pending bool
		latest  T
		tick    func()
	)

	tick = func() {
		mu.Lock()
		if !pending {
			open = false
			mu.Unlock()
			return
		}
		v := latest
		pending = false
		mu.Unlock()

		out.Set(v)
		sched.AfterFunc(window, tick)
	}

	src.Subscribe(func(v T) {
		mu.Lock()
		if open {
			latest, pending = v, true
			mu.Unlock()
			return
		}
		open = true
		mu.Unlock()

		out.Set(v)
		sched.AfterFunc(window, tick)
	})

	return out
}

// Debounce delivers the latest value of src once no new value has arrived for
// a full window. Intermediate values are discarded.
func Debounce[T any](src *Signal[T], window time.Duration, sched Scheduler) *Signal[T] {
	out := New(src.Get())

	var (
		mu     sync.Mutex
		latest T
		gen    uint64
		timer  Timer
	)

	src.Subscribe(func(v T) {
		mu.Lock()
		defer mu.Unlock()

		latest = v
		gen++
		armed := gen
		if timer != nil {
			timer.Stop()
		}
		timer = sched.AfterFunc(window, func() {
			mu.Lock()
			// a stale expiry may already be queued on the loop when Stop runs
			if armed != gen {
				mu.Unlock()
				return
			}
			val := latest
			timer = nil
			mu.Unlock()

			out.Set(val)
		})
	})

	return out
}
