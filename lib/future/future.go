package future

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrTimeout is returned by Await when the timeout elapses first.
	// It says nothing about whether the command succeeded server side.
	ErrTimeout = errors.New("future: await timed out")

	// ErrCancelled is returned for a future cancelled before completion
	ErrCancelled = errors.New("future: cancelled")
)

type state int

const (
	pending state = iota
	completed
	failed
	cancelled
)

// Future is the one-shot completion handle for a single submitted command.
// It is completed or failed at most once, by the connection's reply path;
// callers may block on it, poll it, or register listeners.
type Future[T any] struct {
	mu        sync.Mutex
	state     state
	val       T
	err       error
	done      chan struct{}
	listeners []func(T, error)
	onCancel  func()
}

// New creates a pending future
func New[T any]() *Future[T] {
	return &Future[T]{
		done: make(chan struct{}),
	}
}

// NewWithCancel creates a pending future whose Cancel also runs hook,
// letting the owner of the pending entry suppress reply delivery.
func NewWithCancel[T any](hook func()) *Future[T] {
	f := New[T]()
	f.onCancel = hook
	return f
}

// Complete moves the future to the completed state and fires listeners.
// Completing a cancelled future is a no-op: the reply arrived after the
// caller gave up and must be discarded, not delivered. Completing an
// already completed or failed future panics.
func (f *Future[T]) Complete(val T) {
	f.settle(completed, val, nil)
}

// Fail moves the future to the failed state and fires listeners.
// Same terminal-state rules as Complete.
func (f *Future[T]) Fail(err error) {
	var zero T
	f.settle(failed, zero, err)
}

func (f *Future[T]) settle(to state, val T, err error) {
	f.mu.Lock()
	if f.state == cancelled {
		f.mu.Unlock()
		return
	}
	if f.state != pending {
		f.mu.Unlock()
		panic("future: settled twice")
	}
	f.state = to
	f.val = val
	f.err = err
	listeners := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(val, err)
	}
}

// Cancel transitions a still-pending future to cancelled and reports
// whether it did. Cancellation is local: a side effect the server already
// committed is not undone, only its notification is suppressed.
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	if f.state != pending {
		f.mu.Unlock()
		return false
	}
	f.state = cancelled
	f.err = ErrCancelled
	listeners := f.listeners
	f.listeners = nil
	hook := f.onCancel
	close(f.done)
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	var zero T
	for _, fn := range listeners {
		fn(zero, ErrCancelled)
	}
	return true
}

// Done returns a channel closed when the future reaches a terminal state
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Poll returns the outcome without blocking. ok is false while pending.
func (f *Future[T]) Poll() (val T, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == pending {
		ok = false
		return
	}
	return f.val, f.err, true
}

// Await blocks the calling goroutine until the future is terminal or the
// timeout elapses. timeout <= 0 waits forever.
func (f *Future[T]) Await(timeout time.Duration) (T, error) {
	if timeout <= 0 {
		<-f.done
		return f.outcome()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return f.outcome()
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}

// Get blocks until the future is terminal or ctx is done
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.outcome()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) outcome() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err
}

// OnComplete registers fn to run exactly once when the future settles.
// Listeners fire in registration order, on whichever goroutine settles
// the future; registering on an already-terminal future fires fn
// immediately on the calling goroutine.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	if f.state == pending {
		f.listeners = append(f.listeners, fn)
		f.mu.Unlock()
		return
	}
	val, err := f.val, f.err
	f.mu.Unlock()
	fn(val, err)
}

// Then derives a future of another type: when src settles successfully,
// mapFn converts the value; a conversion error fails the derived future.
// Failure and cancellation pass through. Cancelling the derived future
// cancels src, so the pending entry sees it.
func Then[T, U any](src *Future[T], mapFn func(T) (U, error)) *Future[U] {
	dst := NewWithCancel[U](func() {
		src.Cancel()
	})
	src.OnComplete(func(val T, err error) {
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				dst.Cancel()
				return
			}
			dst.Fail(err)
			return
		}
		mapped, mapErr := mapFn(val)
		if mapErr != nil {
			dst.Fail(mapErr)
			return
		}
		dst.Complete(mapped)
	})
	return dst
}
