package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("server: worker stopped")

// job represents a unit of work to be executed on the worker goroutine.
type job struct {
	fn   func() interface{}
	done chan jobResult
}

// jobResult holds the return value from a job.
type jobResult struct {
	value interface{}
	err   error
}

// Worker serializes evaluations through a single goroutine. Each job
// builds its own compiler and VM, so jobs never share state; running them
// one at a time bounds the work a busy server does at once.
type Worker struct {
	jobs     chan job
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker() *Worker {
	w := &Worker{
		jobs: make(chan job, 64),
		quit: make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes jobs sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case j := <-w.jobs:
			j.done <- w.execute(j.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func() interface{}) jobResult {
	var result jobResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("evaluation panicked: %v", r)
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn()
	}()
	return result
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. ctx bounds only the wait for a free slot; a job that has been
// accepted runs to completion.
func (w *Worker) Do(ctx context.Context, fn func() interface{}) (interface{}, error) {
	j := job{
		fn:   fn,
		done: make(chan jobResult, 1),
	}
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}

	select {
	case w.jobs <- j:
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-j.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
