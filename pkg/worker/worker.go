package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/petrijr/keycase/internal/taskqueue"
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/log"
)

// ErrUnknownTaskType is returned by ProcessOne for tasks it cannot handle.
var ErrUnknownTaskType = errors.New("unknown task type")

// Reporter receives every finished run. The agent uses it to send results
// back to its controller.
type Reporter interface {
	ReportResult(ctx context.Context, projectID string, res *api.RunResult) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, projectID string, res *api.RunResult) error

func (f ReporterFunc) ReportResult(ctx context.Context, projectID string, res *api.RunResult) error {
	return f(ctx, projectID, res)
}

// Config controls optional worker behavior.
type Config struct {
	// Reporter is notified after each executed plan. Optional.
	Reporter Reporter

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Worker pulls tasks from a Queue and executes them using an Engine.
type Worker struct {
	engine   api.Engine
	queue    taskqueue.Queue
	reporter Reporter
	logger   *slog.Logger

	mu      sync.Mutex
	active  map[api.ID]context.CancelFunc
	queued  map[api.ID]int
	pending map[api.ID]bool
}

// New creates a new Worker with default config.
func New(engine api.Engine, queue taskqueue.Queue) *Worker {
	return NewWithConfig(engine, queue, Config{})
}

// NewWithConfig creates a Worker with the given config.
func NewWithConfig(engine api.Engine, queue taskqueue.Queue, cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		engine:   engine,
		queue:    queue,
		reporter: cfg.Reporter,
		logger:   logger,
		active:   map[api.ID]context.CancelFunc{},
		queued:   map[api.ID]int{},
		pending:  map[api.ID]bool{},
	}
}

// EnqueueExecute enqueues a plan for asynchronous execution and returns the
// run id it will execute under: runID if given, else plan.RunID, else a new
// UUID.
func (w *Worker) EnqueueExecute(ctx context.Context, projectID string, plan *api.ExecutionPlan, runID api.ID) (api.ID, error) {
	if plan == nil {
		return "", api.ErrNilPlan
	}
	if runID == "" {
		runID = plan.RunID
	}
	if runID == "" {
		runID = api.ID(uuid.NewString())
	}

	payload, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}

	t := taskqueue.Task{
		ID:         uuid.NewString(),
		Type:       taskqueue.TaskTypeExecutePlan,
		RunID:      runID.String(),
		ProjectID:  projectID,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
	if err := w.queue.Enqueue(ctx, t); err != nil {
		return "", err
	}

	w.mu.Lock()
	w.queued[runID]++
	w.mu.Unlock()
	return runID, nil
}

// EnqueueCancel enqueues a request to cancel a run. Any worker sharing the
// queue may pick it up.
func (w *Worker) EnqueueCancel(ctx context.Context, runID api.ID) error {
	return w.queue.Enqueue(ctx, taskqueue.Task{
		ID:         uuid.NewString(),
		Type:       taskqueue.TaskTypeCancelRun,
		RunID:      runID.String(),
		EnqueuedAt: time.Now(),
	})
}

// Cancel stops runID if this worker is executing it and reports whether it
// was. A run this worker enqueued but has not started yet starts already
// cancelled. Cancels for any other run id are ignored.
func (w *Worker) Cancel(runID api.ID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cancel, ok := w.active[runID]; ok {
		cancel()
		return true
	}
	if w.queued[runID] > 0 {
		w.pending[runID] = true
	}
	return false
}

// ActiveRuns returns the ids of the runs currently executing.
func (w *Worker) ActiveRuns() []api.ID {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]api.ID, 0, len(w.active))
	for id := range w.active {
		ids = append(ids, id)
	}
	return ids
}

// Busy reports whether any run is executing.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active) > 0
}

// ProcessOne pulls a single task from the queue and processes it.
// Returns (processed, error):
//   - processed == false: no task was obtained (ctx cancelled or dequeue failed)
//   - processed == true: a task was processed; err indicates whether handling succeeded.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	switch task.Type {
	case taskqueue.TaskTypeExecutePlan:
		return true, w.execute(ctx, task)

	case taskqueue.TaskTypeCancelRun:
		if !w.Cancel(api.ID(task.RunID)) {
			w.logger.DebugContext(ctx, "cancel requested for run not executing here", log.RunID(task.RunID))
		}
		return true, nil

	default:
		// Mark as processed but return an error so this isn't silently ignored.
		return true, fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
	}
}

func (w *Worker) execute(ctx context.Context, task *taskqueue.Task) error {
	runID := api.ID(task.RunID)
	cancelled := w.dequeued(runID)

	var plan api.ExecutionPlan
	if err := json.Unmarshal(task.Payload, &plan); err != nil {
		return fmt.Errorf("decode plan for run %s: %w", task.RunID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cancelled {
		cancel()
	}

	w.mu.Lock()
	w.active[runID] = cancel
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.active, runID)
		w.mu.Unlock()
	}()

	res, err := w.engine.Execute(runCtx, &plan, task.ProjectID, runID)
	if res == nil {
		return err
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "run finished with error", log.RunID(runID), log.Error(err))
	}

	if w.reporter != nil {
		if repErr := w.reporter.ReportResult(ctx, task.ProjectID, res); repErr != nil {
			return errors.Join(err, fmt.Errorf("report run %s: %w", runID, repErr))
		}
	}
	return err
}

// dequeued drops one queued entry for runID and reports whether a cancel was
// pending for it. The pending cancel is consumed by the first start.
func (w *Worker) dequeued(runID api.ID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n := w.queued[runID]; n > 1 {
		w.queued[runID] = n - 1
	} else {
		delete(w.queued, runID)
	}
	cancelled := w.pending[runID]
	delete(w.pending, runID)
	return cancelled
}
