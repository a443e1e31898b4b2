package wait

import (
	"sync"
	"time"
)

// Wait is a sync.WaitGroup which can wait with timeout
type Wait struct {
	wg sync.WaitGroup
}

// Add adds delta, which may be negative, to the counter
func (w *Wait) Add(delta int) {
	w.wg.Add(delta)
}

// Done decrements the counter by one
func (w *Wait) Done() {
	w.wg.Done()
}

// Wait blocks until the counter is zero
func (w *Wait) Wait() {
	w.wg.Wait()
}

// WaitWithTimeout blocks until the counter is zero or the timeout elapses.
// It returns true if the timeout fired first.
func (w *Wait) WaitWithTimeout(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		w.wg.Wait()
	}()
	select {
	case <-c:
		return false
	case <-time.After(timeout):
		return true
	}
}
