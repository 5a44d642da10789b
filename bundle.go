package keycase

import (
	"database/sql"

	"github.com/petrijr/keycase/internal/taskqueue"
	workerpkg "github.com/petrijr/keycase/pkg/worker"
)

// WorkerBundle wires together an Engine, a durable task queue, and a Worker
// that consumes tasks from that queue.
type WorkerBundle struct {
	Engine Engine
	Worker *workerpkg.Worker

	// queue is kept unexported; it is primarily useful for internal
	// inspection and tests. The public API focuses on Engine and Worker.
	queue taskqueue.Queue
}

// NewSQLiteBundle constructs a durable Engine + Queue + Worker combo sharing
// the same SQLite database. Runs, run events and queued plans are persisted
// in the provided *sql.DB, so plans enqueued before a restart are still
// executed afterwards.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:keycase.db?_pragma=journal_mode(WAL)")
//	bundle, err := keycase.NewSQLiteBundle(reg, db, worker.Config{})
//	runID, err := bundle.Worker.EnqueueExecute(ctx, "local", plan, "")
//	go keycase.RunWorkerLoop(ctx, bundle.Worker)
func NewSQLiteBundle(reg *Registry, db *sql.DB, cfg workerpkg.Config) (*WorkerBundle, error) {
	eng, err := NewSQLiteEngine(reg, db)
	if err != nil {
		return nil, err
	}

	q, err := taskqueue.NewSQLiteQueue(db)
	if err != nil {
		return nil, err
	}

	w := workerpkg.NewWithConfig(eng, q, cfg)

	return &WorkerBundle{
		Engine: eng,
		Worker: w,
		queue:  q,
	}, nil
}
