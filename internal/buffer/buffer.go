// Package buffer provides the fixed-capacity, mutex-guarded event buffer that
// decouples request-path producers from the periodic batch dispatcher.
package buffer

import (
	"sync"

	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 256

// Ring is an array-backed circular FIFO of analytics events. Pushing into a
// full ring evicts the single oldest entry. All operations share one mutex,
// so a drain never interleaves with an eviction.
type Ring struct {
	mu   sync.Mutex
	buf  []telemetry.Event
	head int // index of the oldest entry
	size int

	pushed  uint64
	evicted uint64
}

// NewRing creates a ring holding at most capacity events.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]telemetry.Event, capacity)}
}

// Push admits evt, evicting the oldest entry when the ring is full. It never
// blocks beyond the lock and never fails; producers on the request path call
// it fire-and-forget.
func (r *Ring) Push(evt telemetry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == len(r.buf) {
		// Overwrite the oldest slot. The producer gets no signal; telemetry
		// loss under load is accepted.
		r.buf[r.head] = evt
		r.head = (r.head + 1) % len(r.buf)
		r.evicted++
	} else {
		r.buf[(r.head+r.size)%len(r.buf)] = evt
		r.size++
	}
	r.pushed++
}

// DrainUpTo removes and returns at most n events in oldest-first order. The
// lock is held for the whole drain, so entries are removed atomically with
// respect to being handed to the caller. Entries beyond n stay in the ring in
// their original order.
func (r *Ring) DrainUpTo(n int) []telemetry.Event {
	if n <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	count := n
	if count > r.size {
		count = r.size
	}
	if count == 0 {
		return nil
	}

	out := make([]telemetry.Event, count)
	for i := 0; i < count; i++ {
		idx := (r.head + i) % len(r.buf)
		out[i] = r.buf[idx]
		r.buf[idx] = telemetry.Event{}
	}
	r.head = (r.head + count) % len(r.buf)
	r.size -= count
	return out
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Stats returns the total events pushed and the total evicted by overflow.
func (r *Ring) Stats() (pushed, evicted uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushed, r.evicted
}
