// Package signal provides typed reactive values and the timing combinators used
// to turn bursts of parameter edits into a single recompute trigger.
//
// The package is the leaf of the dashboard's dependency graph:
//
//   - [Signal]: a typed value with ordered, synchronous subscribers
//   - [Map], [Derive]: derived signals declared once at startup
//   - [Throttle]: at most one value per window, always the most recent
//   - [Debounce]: the latest value after a quiet period
//   - [Loop]: the single coordinating goroutine all callbacks run on
//   - [ManualClock]: a deterministic [Scheduler] for tests and replays
//
// # Example
//
//	clock := signal.NewManualClock()
//	edits := signal.New(0.0)
//	settled := signal.Debounce(edits, 500*time.Millisecond, clock)
//	settled.Subscribe(func(v float64) { fmt.Println("settled at", v) })
//	edits.Set(1)
//	edits.Set(2)
//	clock.Advance(time.Second) // prints "settled at 2"
//
// # Thread Safety
//
// Get and Set are safe from any goroutine, but subscribers run on the caller's
// goroutine. The dashboard posts every mutation onto one [Loop] so callbacks never
// overlap.
package signal
