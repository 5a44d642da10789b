package keycase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/petrijr/keycase/internal/taskqueue"
	"github.com/petrijr/keycase/pkg/log"
	"github.com/petrijr/keycase/pkg/worker"
)

// LocalRunner bundles an in-memory Engine, an in-memory task queue, and a Worker
// to provide a simple "local runner" for development and debugging.
//
// Typical usage:
//
//	reg := keycase.NewRegistry()
//	keywords.RegisterAll(reg)
//	reg.Freeze()
//
//	runner := keycase.NewLocalRunner(reg)
//
//	// Synchronous run (no queue/worker involved):
//	res, err := keycase.Execute(ctx, runner.Engine, plan, "local", "")
//
//	// Asynchronous run:
//	_ = runner.StartWorkers(ctx, 2)
//	runID, _ := runner.ExecuteAsync(ctx, "local", plan, "")
//	...
//	runner.Stop()
type LocalRunner struct {
	// Registry holds the keywords plans may use.
	Registry *Registry

	// Engine is the in-memory engine used by this runner.
	Engine Engine

	// Queue is the in-memory task queue used by the Worker.
	Queue taskqueue.Queue

	// Worker processes tasks from Queue using Engine.
	Worker *worker.Worker

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocalRunner constructs a LocalRunner backed by an in-memory engine,
// in-memory queue, and a Worker with default config.
//
// This is intended for local development, tests, and simple single-process
// deployments.
func NewLocalRunner(reg *Registry) *LocalRunner {
	return NewLocalRunnerWithOptions(reg, EngineOptions{}, worker.Config{})
}

// NewLocalRunnerWithOptions is like NewLocalRunner with explicit engine and
// worker settings.
func NewLocalRunnerWithOptions(reg *Registry, opts EngineOptions, cfg worker.Config) *LocalRunner {
	eng := NewInMemoryEngineWithOptions(reg, opts)
	q := taskqueue.NewInMemoryQueue(1024)
	w := worker.NewWithConfig(eng, q, cfg)

	return &LocalRunner{
		Registry: reg,
		Engine:   eng,
		Queue:    q,
		Worker:   w,
	}
}

// StartWorkers starts 'concurrency' worker goroutines that continuously call
// Worker.ProcessOne(ctx) until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("keycase: LocalRunner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()
			RunWorkerLoop(ctx, r.Worker)
		}()
	}

	return nil
}

// RunWorkerLoop calls w.ProcessOne until ctx is cancelled. Task errors are
// logged so a single bad task doesn't kill the loop.
func RunWorkerLoop(ctx context.Context, w *worker.Worker) {
	for {
		_, err := w.ProcessOne(ctx)
		if err == nil {
			continue
		}
		// Cancellation is a clean shutdown signal.
		if ctx.Err() != nil {
			return
		}
		slog.WarnContext(ctx, "worker task failed", log.Error(err))
	}
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// ExecuteAsync enqueues plan for a worker and returns the run id it will
// execute under.
func (r *LocalRunner) ExecuteAsync(ctx context.Context, projectID string, plan *ExecutionPlan, runID ID) (ID, error) {
	return r.Worker.EnqueueExecute(ctx, projectID, plan, runID)
}

// Cancel stops a queued or running plan.
func (r *LocalRunner) Cancel(runID ID) {
	r.Worker.Cancel(runID)
}
