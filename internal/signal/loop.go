package signal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLoopClosed is returned when work is posted to a stopped loop.
var ErrLoopClosed = errors.New("signal: loop closed")

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler delays delivery of a callback. It never blocks the caller.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Dispatcher runs fn on the coordinating goroutine.
type Dispatcher interface {
	Post(fn func()) error
}

// Immediate runs posted work on the caller's goroutine. Tests and the headless
// CLI use it where a single goroutine already owns all state.
type Immediate struct{}

func (Immediate) Post(fn func()) error {
	fn()
	return nil
}

// Loop is a single-owner actor: every posted callback runs on the goroutine
// executing Run, one at a time, in post order.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop with a queue of the given depth.
func NewLoop(depth int) *Loop {
	if depth <= 0 {
		depth = 256
	}
	return &Loop{
		queue: make(chan func(), depth),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until ctx is canceled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post enqueues fn. It blocks only while the queue is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.queue <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Do posts fn and waits for it to finish. It must not be called from the loop
// goroutine itself.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// AfterFunc schedules fn to run on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() {
		_ = l.Post(fn)
	})
}

func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}
