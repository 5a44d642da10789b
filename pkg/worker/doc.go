// Package worker provides the background worker that executes queued plans.
//
// A Worker consumes tasks from a task queue and hands execute-plan tasks to
// an engine. Cancel-run tasks stop a run the worker is executing, or mark a
// run so that it starts already cancelled. Finished runs can be forwarded to
// a Reporter, which is how the agent returns results to its controller.
//
// Workers are decoupled from any particular persistence backend: the same
// Worker runs on the in-memory, SQLite, Redis or MongoDB queues. Several
// workers may share one queue.
//
// Most applications construct workers via the keycase package (LocalRunner,
// NewSQLiteBundle); this package is useful for custom worker loops.
package worker
