// Package engine defines the narrow contracts the dashboard core uses to reach
// the signal simulator, plus a deterministic reference implementation.
//
//   - [DesignBuilder]: enumerates trial, subject and item structure
//   - [Engine]: turns a design and components into samples and an event table
//   - [Grid]: crossing-based [DesignBuilder]
//   - [Builtin]: seeded overlap-and-add [Engine]
//
// The core never depends on how a signal is synthesized; tests substitute
// their own [Engine] to count calls or inject failures.
package engine
