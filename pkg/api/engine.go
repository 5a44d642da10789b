package api

import "context"

// Engine executes plans against a frozen keyword registry and keeps the
// resulting run records.
type Engine interface {
	// Execute validates plan and runs its flows in sequenceOrder.
	//
	// The run id is runID when given, otherwise plan.RunID, otherwise a
	// generated UUID. Validation failures, step failures, timeouts and
	// cancellation are all reported inside the returned RunResult; the error
	// is non-nil only for contract violations (nil plan, registry not loaded)
	// or when the finished run could not be persisted.
	Execute(ctx context.Context, plan *ExecutionPlan, projectID string, runID ID) (*RunResult, error)

	// GetRun looks up a stored run. Returns ErrRunNotFound if it is unknown.
	GetRun(ctx context.Context, runID ID) (*RunRecord, error)

	// ListRuns returns stored runs matching opts, oldest first.
	ListRuns(ctx context.Context, opts RunListOptions) ([]*RunRecord, error)

	HistoryReader
}

// HistoryReader allows reading a run's audit events.
type HistoryReader interface {
	// ListEvents returns all events for a run in chronological order.
	ListEvents(ctx context.Context, runID ID) ([]RunEvent, error)
}
