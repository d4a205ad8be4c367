package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWorkerDo(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	v, err := w.Do(context.Background(), func() interface{} { return 42 })
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if v.(int) != 42 {
		t.Errorf("Do = %v, want 42", v)
	}
}

func TestWorkerRecoversPanic(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	_, err := w.Do(context.Background(), func() interface{} { panic("boom") })
	if err == nil || err.Error() != "boom" {
		t.Fatalf("Do error = %v, want boom", err)
	}

	// The worker keeps serving after a panic.
	v, err := w.Do(context.Background(), func() interface{} { return "ok" })
	if err != nil || v.(string) != "ok" {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorkerSerializesJobs(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	var (
		wg      sync.WaitGroup
		running int
		overlap bool
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Do(context.Background(), func() interface{} {
				mu.Lock()
				running++
				if running > 1 {
					overlap = true
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if overlap {
		t.Error("jobs ran concurrently")
	}
}

func TestWorkerStopped(t *testing.T) {
	w := NewWorker()
	w.Stop()
	w.Stop() // idempotent

	_, err := w.Do(context.Background(), func() interface{} { return nil })
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Do after Stop = %v, want ErrWorkerStopped", err)
	}
}

func TestWorkerContextCanceled(t *testing.T) {
	w := &Worker{
		jobs: make(chan job), // no loop running: nothing is ever accepted
		quit: make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Do(ctx, func() interface{} { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do with canceled context = %v, want context.Canceled", err)
	}
}
