package client

import (
	"sync"
)

// registry tracks commands that are on the wire and waiting for a reply.
// The protocol carries no request ids: replies correlate to requests only
// by position, so the registry is a strict FIFO queue. The writer
// goroutine pushes, the reader goroutine pops; once failed it stays
// closed and rejects further pushes.
type registry struct {
	mu      sync.Mutex
	entries []*request
	closed  bool
	cause   error
}

// push appends req to the queue. If the registry is already closed the
// connection's failure cause is returned and the entry is not retained.
func (r *registry) push(req *request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.cause
	}
	r.entries = append(r.entries, req)
	return nil
}

// pop removes and returns the oldest entry, or nil when empty
func (r *registry) pop() *request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	req := r.entries[0]
	r.entries[0] = nil
	r.entries = r.entries[1:]
	return req
}

// fail closes the registry and returns every pending entry in submission
// order so the caller can fail their futures. Idempotent: a second call
// returns nothing.
func (r *registry) fail(cause error) []*request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.cause = cause
	pending := r.entries
	r.entries = nil
	return pending
}

// size returns the number of entries awaiting replies
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
