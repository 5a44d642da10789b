package taskqueue

import (
	"context"
	"time"
)

// TaskType identifies what the worker should do.
type TaskType string

const (
	TaskTypeExecutePlan TaskType = "execute-plan"
	TaskTypeCancelRun   TaskType = "cancel-run"
)

// Task represents a unit of work for the worker.
type Task struct {
	ID   string   `json:"id"`
	Type TaskType `json:"type"`

	RunID     string `json:"runId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`

	// Payload is the JSON plan document for execute-plan tasks and empty
	// for cancel-run tasks.
	Payload []byte `json:"payload,omitempty"`

	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next task, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
