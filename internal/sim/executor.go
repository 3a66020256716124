package sim

import "sync"

// Executor runs a recompute job, either in place or elsewhere.
type Executor interface {
	Go(job func())
}

// Inline runs jobs on the calling goroutine.
type Inline struct{}

func (Inline) Go(job func()) { job() }

// Workers runs each job on its own goroutine.
type Workers struct {
	wg sync.WaitGroup
}

func (w *Workers) Go(job func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		job()
	}()
}

// Wait blocks until every started job has returned.
func (w *Workers) Wait() { w.wg.Wait() }
