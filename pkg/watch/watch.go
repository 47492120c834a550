// Package watch provides a single-slot "latest value" broadcast cell.
//
// A Cell holds exactly one value. Each Publish overwrites it and bumps a
// monotonically increasing version; subscribers are woken through a change
// signal and only ever observe the most recent value. Intermediate values
// published while a subscriber is busy are dropped. There is no queue.
package watch

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned once the cell has been closed by its writer.
var ErrClosed = errors.New("watch: cell closed")

// Cell is a latest-value broadcast slot with one writer and many readers.
type Cell[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{} // closed and replaced on every publish
	closed  bool
}

// New creates a cell holding initial at version 0.
func New[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Publish overwrites the held value and wakes all waiting receivers.
func (c *Cell[T]) Publish(v T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.value = v
	c.version++
	ch := c.changed
	c.changed = make(chan struct{})
	c.mu.Unlock()

	close(ch)
	return nil
}

// Load returns the current value and its version.
func (c *Cell[T]) Load() (T, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.version
}

// Close marks the cell closed and wakes all receivers. Idempotent.
func (c *Cell[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ch := c.changed
	c.mu.Unlock()

	close(ch)
}

// Closed reports whether Close has been called.
func (c *Cell[T]) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Subscribe returns a receiver that considers the current value already seen.
func (c *Cell[T]) Subscribe() *Receiver[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Receiver[T]{cell: c, seen: c.version}
}

// Receiver tracks the last version a subscriber has observed.
// A Receiver is not safe for concurrent use; give each goroutine its own.
type Receiver[T any] struct {
	cell *Cell[T]
	seen uint64
}

// Changed blocks until a value newer than the last observed one is available.
// It returns ErrClosed when the cell is closed and nothing newer is pending,
// or the context error when ctx is done first.
func (r *Receiver[T]) Changed(ctx context.Context) error {
	for {
		r.cell.mu.RLock()
		version := r.cell.version
		closed := r.cell.closed
		ch := r.cell.changed
		r.cell.mu.RUnlock()

		if version != r.seen {
			return nil
		}
		if closed {
			return ErrClosed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Value returns the latest value and marks it as seen.
func (r *Receiver[T]) Value() T {
	v, version := r.cell.Load()
	r.seen = version
	return v
}

// Peek returns the latest value without marking it as seen.
func (r *Receiver[T]) Peek() T {
	v, _ := r.cell.Load()
	return v
}
