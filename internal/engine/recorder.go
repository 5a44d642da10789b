package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/petrijr/keycase/internal/persistence"
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/log"
)

// EventRecorder is an Observer that appends run history to an EventStore.
// Store failures are logged and never affect the run.
type EventRecorder struct {
	store persistence.EventStore
	now   func() time.Time
}

var _ api.Observer = (*EventRecorder)(nil)

func NewEventRecorder(store persistence.EventStore) *EventRecorder {
	return &EventRecorder{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (r *EventRecorder) append(ctx context.Context, ev api.RunEvent) {
	ev.At = r.now()
	if err := r.store.AppendEvent(context.WithoutCancel(ctx), ev); err != nil {
		slog.WarnContext(ctx, "append run event failed",
			log.RunID(ev.RunID),
			slog.String("event", string(ev.Type)),
			log.Error(err),
		)
	}
}

func (r *EventRecorder) OnRunStart(ctx context.Context, runID api.ID, plan *api.ExecutionPlan) {
	r.append(ctx, api.RunEvent{RunID: runID, Type: api.EventRunStarted, Detail: plan.Name})
}

func (r *EventRecorder) OnRunCompleted(ctx context.Context, res *api.RunResult) {
	ev := api.RunEvent{RunID: res.RunID, Type: api.EventRunCompleted, Detail: string(res.Status())}
	if res.Error != nil {
		ev.Detail = res.Error.Type
		if res.Error.Type == api.RunErrorValidation {
			ev.Type = api.EventRunRejected
		}
	}
	r.append(ctx, ev)
}

func (r *EventRecorder) OnFlowStart(ctx context.Context, runID api.ID, flow *api.Flow) {
	r.append(ctx, api.RunEvent{RunID: runID, Type: api.EventFlowStarted, FlowID: flow.ResultID()})
}

func (r *EventRecorder) OnFlowCompleted(ctx context.Context, runID api.ID, res api.FlowResult) {
	ev := api.RunEvent{RunID: runID, Type: api.EventFlowPassed, FlowID: res.FlowID}
	if !res.Passed() {
		ev.Type = api.EventFlowFailed
		if res.FailedOnStepID != nil {
			ev.StepID = *res.FailedOnStepID
		}
	}
	r.append(ctx, ev)
}

func (r *EventRecorder) OnStepStart(ctx context.Context, step api.StepInfo) {
	r.append(ctx, api.RunEvent{
		RunID:   step.RunID,
		Type:    api.EventStepStarted,
		FlowID:  step.FlowID,
		StepID:  step.StepID,
		Keyword: step.Keyword,
	})
}

func (r *EventRecorder) OnStepCompleted(ctx context.Context, step api.StepInfo, err error, d time.Duration) {
	ev := api.RunEvent{
		RunID:   step.RunID,
		Type:    api.EventStepPassed,
		FlowID:  step.FlowID,
		StepID:  step.StepID,
		Keyword: step.Keyword,
	}
	if err != nil {
		ev.Type = api.EventStepFailed
		ev.Detail = err.Error()
	}
	r.append(ctx, ev)
}
