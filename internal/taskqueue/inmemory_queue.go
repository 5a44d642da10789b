package taskqueue

import (
	"context"
)

// InMemoryQueue is a Queue backed by buffered channels. Cancel tasks travel
// on their own channel and are dequeued ahead of pending executions, so a
// cancel never waits behind the backlog of the run it targets.
// It is safe for concurrent use.
type InMemoryQueue struct {
	runs    chan Task
	cancels chan Task
}

// NewInMemoryQueue creates a new queue with the given capacity per task kind.
// A non-positive capacity selects 1024. Enqueue blocks while the queue is full.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &InMemoryQueue{
		runs:    make(chan Task, capacity),
		cancels: make(chan Task, capacity),
	}
}

var _ Queue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	ch := q.runs
	if t.Type == TaskTypeCancelRun {
		ch = q.cancels
	}
	select {
	case ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case t := <-q.cancels:
		return &t, nil
	default:
	}

	select {
	case t := <-q.cancels:
		return &t, nil
	case t := <-q.runs:
		return &t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *InMemoryQueue) Len() int {
	return len(q.runs) + len(q.cancels)
}

// Backlog returns the number of queued execution tasks and cancel tasks.
func (q *InMemoryQueue) Backlog() (runs, cancels int) {
	return len(q.runs), len(q.cancels)
}
