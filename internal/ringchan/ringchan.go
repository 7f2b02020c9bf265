// Package ringchan provides a bounded channel with overwrite-oldest
// semantics. Producers never block: when the buffer is full the oldest
// element is dropped to make room. Advertisement streams use it so a slow
// consumer loses old frames instead of stalling the radio callback.
package ringchan

import "sync/atomic"

// Ring wraps a buffered channel. Readers range over C() like a normal
// channel; writers use Send, which always succeeds.
type Ring[T any] struct {
	ch          chan T
	written     atomic.Int64
	overwritten atomic.Int64
}

// New creates a Ring with the given capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. Consumers can range over it until Close.
func (r *Ring[T]) C() <-chan T { return r.ch }

// Send inserts v, dropping the oldest buffered element when full. It
// reports whether an element was dropped.
func (r *Ring[T]) Send(v T) bool {
	dropped := false
	select {
	case r.ch <- v:
	default:
		select {
		case <-r.ch:
			r.overwritten.Add(1)
			dropped = true
		default:
		}
		r.ch <- v
	}
	r.written.Add(1)
	return dropped
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int { return len(r.ch) }

// Cap returns the buffer capacity.
func (r *Ring[T]) Cap() int { return cap(r.ch) }

// Close closes the receive side. Send panics after Close.
func (r *Ring[T]) Close() { close(r.ch) }

// Stats reports how many elements were written and how many of those were
// dropped unread.
func (r *Ring[T]) Stats() (written, overwritten int64) {
	return r.written.Load(), r.overwritten.Load()
}
