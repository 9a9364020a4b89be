// Package queue defines the FIFO-with-leased-processing abstraction shared
// by the in-memory and persistent queue implementations, and the Lease type
// through which the worker closes out a borrowed task.
package queue

import (
	"context"
	"errors"
	"sync"

	"sigrelay/internal/task"
)

// ErrLeaseAlreadyClosed is returned by a second call to Ack/AckFailed/Nack
// on the same Lease.
var ErrLeaseAlreadyClosed = errors.New("queue: lease already closed")

// Queue is a FIFO of tasks with leased processing. add appends to the tail;
// Lease begins a scoped handle on the head task that must be closed by
// exactly one of the Lease's Ack/AckFailed/Nack methods.
//
// Named after this corpus's existing claim/lease vocabulary
// (internal/infra/task's TryClaimTask/RenewTaskLease/ReleaseTaskLease), even
// though sigrelay has a single worker and therefore never contends for a
// lease — the shape is kept because it is this codebase's idiom for
// "exclusive, time-bounded custody of one record."
type Queue interface {
	// Add appends t to the tail of the queue. It returns once t is durably
	// recorded (persistent) or in-memory enqueued.
	Add(ctx context.Context, t *task.Task) error

	// Lease begins a scoped handle on the head task. ok is false if the
	// queue was empty; Lease never blocks waiting for tasks.
	Lease(ctx context.Context) (lease *Lease, ok bool, err error)

	// Len reports the number of unacked tasks.
	Len() int
}

// Lease is a scoped handle on the head-of-queue task. Exactly one of
// Ack, AckFailed, or Nack must be called to close it; a second call
// returns ErrLeaseAlreadyClosed.
type Lease struct {
	Task *task.Task

	mu          sync.Mutex
	closed      bool
	onAck       func() error
	onAckFailed func() error
	onNack      func() error
}

// newLease constructs a non-empty lease. Each close callback may be nil, in
// which case that close action is a no-op beyond marking the lease closed.
func newLease(t *task.Task, onAck, onAckFailed, onNack func() error) *Lease {
	return &Lease{Task: t, onAck: onAck, onAckFailed: onAckFailed, onNack: onNack}
}

// emptyLease closes no-op under all three methods, per the "lease never
// blocks; an empty lease closes no-op" contract.
func emptyLease() *Lease {
	return &Lease{}
}

// Ack closes the lease as a success: the task is removed from the queue.
func (l *Lease) Ack() error { return l.close(l.onAck) }

// AckFailed closes the lease as a terminal failure: the task is removed
// from the queue (an implementation may forward it to a dead-letter sink).
func (l *Lease) AckFailed() error { return l.close(l.onAckFailed) }

// Nack closes the lease by returning the task to its original
// head-of-queue position so the next lease sees the same task.
func (l *Lease) Nack() error { return l.close(l.onNack) }

func (l *Lease) close(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLeaseAlreadyClosed
	}
	l.closed = true
	if fn == nil {
		return nil
	}
	return fn()
}
