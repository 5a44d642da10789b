package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/petrijr/keycase/pkg/log"
)

// StepInfo identifies the step an Observer callback refers to.
type StepInfo struct {
	RunID      ID
	FlowID     ID
	StepID     ID
	InstanceID ID
	Keyword    string

	// Index is the 0-based position of the step in execution order.
	Index int
}

// Observer receives callbacks from the engine for logging, metrics and
// auditing.
//
// Implementations should be fast and non-blocking. When flows run in
// parallel, callbacks for different flows may arrive concurrently.
type Observer interface {
	// OnRunStart is called once a run id is assigned, before validation.
	OnRunStart(ctx context.Context, runID ID, plan *ExecutionPlan)

	// OnRunCompleted is called with the final RunResult, including runs
	// rejected by validation (res.Error is set).
	OnRunCompleted(ctx context.Context, res *RunResult)

	// OnFlowStart is called when a flow enters RUNNING.
	OnFlowStart(ctx context.Context, runID ID, flow *Flow)

	// OnFlowCompleted is called when a flow reaches PASSED or FAILED.
	OnFlowCompleted(ctx context.Context, runID ID, res FlowResult)

	// OnStepStart is called before input resolution for a step.
	OnStepStart(ctx context.Context, step StepInfo)

	// OnStepCompleted is called after the step finished, for both successes
	// and failures (err != nil).
	OnStepCompleted(ctx context.Context, step StepInfo, err error, duration time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, runID ID, plan *ExecutionPlan) {}
func (NoopObserver) OnRunCompleted(ctx context.Context, res *RunResult)            {}
func (NoopObserver) OnFlowStart(ctx context.Context, runID ID, flow *Flow)         {}
func (NoopObserver) OnFlowCompleted(ctx context.Context, runID ID, res FlowResult) {}
func (NoopObserver) OnStepStart(ctx context.Context, step StepInfo)                {}
func (NoopObserver) OnStepCompleted(ctx context.Context, step StepInfo, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, runID ID, plan *ExecutionPlan) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, runID, plan)
	}
}

func (c *CompositeObserver) OnRunCompleted(ctx context.Context, res *RunResult) {
	for _, o := range c.observers {
		o.OnRunCompleted(ctx, res)
	}
}

func (c *CompositeObserver) OnFlowStart(ctx context.Context, runID ID, flow *Flow) {
	for _, o := range c.observers {
		o.OnFlowStart(ctx, runID, flow)
	}
}

func (c *CompositeObserver) OnFlowCompleted(ctx context.Context, runID ID, res FlowResult) {
	for _, o := range c.observers {
		o.OnFlowCompleted(ctx, runID, res)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, step StepInfo) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, step)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, step StepInfo, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, step, err, d)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs run, flow and step
// lifecycle events using the provided slog.Logger. If logger is nil,
// slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, runID ID, plan *ExecutionPlan) {
	o.Logger.InfoContext(ctx, "run_start",
		log.RunID(runID),
		slog.String("plan", plan.Name),
		slog.Int("flows", len(plan.Flows)),
	)
}

func (o *LoggingObserver) OnRunCompleted(ctx context.Context, res *RunResult) {
	if res.Error != nil {
		o.Logger.ErrorContext(ctx, "run_failed",
			log.RunID(res.RunID),
			slog.String("error_type", res.Error.Type),
			log.ErrorString(res.Error.Message),
		)
		return
	}
	o.Logger.InfoContext(ctx, "run_completed",
		log.RunID(res.RunID),
		log.Status(res.Status()),
		slog.Duration("duration", res.Duration()),
	)
}

func (o *LoggingObserver) OnFlowStart(ctx context.Context, runID ID, flow *Flow) {
	o.Logger.InfoContext(ctx, "flow_start",
		log.RunID(runID),
		log.FlowID(flow.ResultID()),
		slog.String("flow", flow.Name),
		slog.String("run_mode", string(flow.EffectiveRunMode())),
	)
}

func (o *LoggingObserver) OnFlowCompleted(ctx context.Context, runID ID, res FlowResult) {
	if res.Passed() {
		o.Logger.InfoContext(ctx, "flow_completed",
			log.RunID(runID),
			log.FlowID(res.FlowID),
			log.Status(res.Status),
		)
		return
	}

	attrs := []any{log.RunID(runID), log.FlowID(res.FlowID), log.Status(res.Status)}
	if res.FailedOnStepID != nil {
		attrs = append(attrs, log.StepID(*res.FailedOnStepID))
	}
	if res.Message != nil {
		attrs = append(attrs, log.ErrorString(*res.Message))
	}
	o.Logger.WarnContext(ctx, "flow_failed", attrs...)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, step StepInfo) {
	o.Logger.DebugContext(ctx, "step_start",
		log.RunID(step.RunID),
		log.FlowID(step.FlowID),
		log.StepID(step.StepID),
		log.Keyword(step.Keyword),
		slog.Int("step_index", step.Index),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, step StepInfo, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		log.RunID(step.RunID),
		log.FlowID(step.FlowID),
		log.StepID(step.StepID),
		log.Keyword(step.Keyword),
		slog.Int("step_index", step.Index),
		slog.Duration("duration", d),
		log.Error(err),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	runsStarted       atomic.Int64
	runsPassed        atomic.Int64
	runsFailed        atomic.Int64
	runsErrored       atomic.Int64
	flowsPassed       atomic.Int64
	flowsFailed       atomic.Int64
	stepsPassed       atomic.Int64
	stepsFailed       atomic.Int64
	totalStepDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunsStarted int64
	RunsPassed  int64
	RunsFailed  int64
	RunsErrored int64
	ActiveRuns  int64

	FlowsPassed int64
	FlowsFailed int64

	StepsPassed     int64
	StepsFailed     int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnRunStart(ctx context.Context, runID ID, plan *ExecutionPlan) {
	m.runsStarted.Add(1)
}

func (m *BasicMetrics) OnRunCompleted(ctx context.Context, res *RunResult) {
	switch res.Status() {
	case RunPassed:
		m.runsPassed.Add(1)
	case RunFailed:
		m.runsFailed.Add(1)
	default:
		m.runsErrored.Add(1)
	}
}

func (m *BasicMetrics) OnFlowCompleted(ctx context.Context, runID ID, res FlowResult) {
	if res.Passed() {
		m.flowsPassed.Add(1)
		return
	}
	m.flowsFailed.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, step StepInfo, err error, d time.Duration) {
	if err != nil {
		m.stepsFailed.Add(1)
		return
	}
	// Only successful steps count towards the average duration.
	m.stepsPassed.Add(1)
	m.totalStepDuration.Add(d.Nanoseconds())
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.runsStarted.Load()
	passed := m.runsPassed.Load()
	failed := m.runsFailed.Load()
	errored := m.runsErrored.Load()
	steps := m.stepsPassed.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		RunsStarted:     started,
		RunsPassed:      passed,
		RunsFailed:      failed,
		RunsErrored:     errored,
		ActiveRuns:      started - passed - failed - errored,
		FlowsPassed:     m.flowsPassed.Load(),
		FlowsFailed:     m.flowsFailed.Load(),
		StepsPassed:     steps,
		StepsFailed:     m.stepsFailed.Load(),
		AvgStepDuration: avg,
	}
}
