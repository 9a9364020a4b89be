package queue

import (
	"context"
	"sync"

	"sigrelay/internal/task"
)

// MemoryQueue is a volatile, process-local FIFO. Grounded on
// original_source/app/queue.py's collections.deque (appendleft / pop from
// the opposite end); re-expressed here as a Go slice used in natural
// append-at-tail, lease-from-head order, which produces the identical FIFO
// contract without the deque's left/right orientation.
//
// Per spec.md §9 open question 3: a task discarded on FAIL leaves no
// durable record. Acceptable because the persistent variant is the intended
// production configuration; MemoryQueue exists for tests and
// QUEUE_TYPE=in_memory deployments that accept losing in-flight work on
// crash.
type MemoryQueue struct {
	mu    sync.Mutex
	items []*task.Task
	// leased is true while a lease on items[0] is outstanding, so a second
	// Lease call correctly reports empty rather than handing out the same
	// task twice (single-leaseholder guarantee).
	leased bool
}

// NewMemoryQueue returns an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Add appends t to the tail. Never fails; there is no durable store to
// reject the write.
func (q *MemoryQueue) Add(_ context.Context, t *task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
	return nil
}

// Lease returns a scoped handle on the head task, or ok=false if the queue
// is empty or already leased.
func (q *MemoryQueue) Lease(_ context.Context) (*Lease, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.leased {
		return emptyLease(), false, nil
	}

	q.leased = true
	head := q.items[0]

	lease := newLease(head,
		func() error { return q.popHead() }, // Ack
		func() error { return q.popHead() }, // AckFailed
		func() error { return q.clearLeased() }, // Nack: leave in place
	)
	return lease, true, nil
}

func (q *MemoryQueue) popHead() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
	q.leased = false
	return nil
}

func (q *MemoryQueue) clearLeased() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.leased = false
	return nil
}

// Len reports the number of unacked tasks, including one currently leased.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
