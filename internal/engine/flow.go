package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
)

const cancelledMessage = "run cancelled"

// runFlow drives one flow from RUNNING to PASSED or FAILED. The returned
// error is non-nil only when the whole run must stop: cancellation or a
// wiring failure. The FlowResult is always usable.
func (e *engineImpl) runFlow(ctx context.Context, runID api.ID, cf *compiledFlow) (api.FlowResult, error) {
	f := cf.flow
	res := api.FlowResult{
		FlowID: f.ResultID(),
		Name:   f.Name,
		Status: api.FlowRunning,
	}
	e.observer.OnFlowStart(ctx, runID, f)

	failStep := func(stepID api.ID, msg string) {
		if res.FailedOnStepID == nil {
			id := stepID
			res.FailedOnStepID = &id
			res.Message = &msg
		}
	}

	st := newFlowState()
	var fatal error

steps:
	for _, cs := range cf.steps {
		if ctx.Err() != nil {
			fatal = api.ErrRunCancelled
			break
		}

		info := api.StepInfo{
			RunID:      runID,
			FlowID:     res.FlowID,
			StepID:     cs.step.ID,
			InstanceID: cs.instance.inst.ID,
			Keyword:    cs.instance.keyword.Name,
			Index:      cs.index,
		}
		e.observer.OnStepStart(ctx, info)
		start := time.Now()

		out, err := e.runStep(ctx, runID, res.FlowID, cs, st)
		e.observer.OnStepCompleted(ctx, info, err, time.Since(start))

		var wiringErr *api.WiringError
		switch {
		case err == nil:
			st.record(cs, out)
		case errors.As(err, &wiringErr):
			failStep(cs.step.ID, err.Error())
			fatal = err
			break steps
		case errors.Is(err, api.ErrRunCancelled):
			failStep(cs.step.ID, cancelledMessage)
			fatal = err
			break steps
		default:
			st.fail(cs)
			failStep(cs.step.ID, err.Error())
			if f.EffectiveRunMode() == api.RunModeDefault {
				break steps
			}
		}
	}

	if errors.Is(fatal, api.ErrRunCancelled) && res.Message == nil {
		msg := cancelledMessage
		res.Message = &msg
	}

	res.Status = api.FlowPassed
	if res.Message != nil {
		res.Status = api.FlowFailed
	}
	e.observer.OnFlowCompleted(ctx, runID, res)
	return res, fatal
}

func (e *engineImpl) runStep(ctx context.Context, runID, flowID api.ID, cs *compiledStep, st *flowState) (keyword.Values, error) {
	in, err := st.resolveInputs(cs)
	if err != nil {
		return nil, err
	}

	inv := keyword.Invocation{
		RunID:   runID.String(),
		FlowID:  flowID.String(),
		StepID:  cs.step.ID.String(),
		Keyword: cs.instance.keyword,
		Inputs:  in,
	}
	return e.invoke(ctx, cs.step.ID, inv)
}

type invocationOutcome struct {
	out keyword.Values
	err error
}

// invoke calls the keyword through the configured Invoker, enforcing the
// step timeout. Invokers that ignore ctx are abandoned once it expires.
func (e *engineImpl) invoke(ctx context.Context, stepID api.ID, inv keyword.Invocation) (keyword.Values, error) {
	stepCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.stepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, e.stepTimeout)
	}
	defer cancel()

	done := make(chan invocationOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invocationOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := e.invoker.Invoke(stepCtx, inv)
		done <- invocationOutcome{out: out, err: err}
	}()

	timedOut := func() error {
		return &api.KeywordExecutionError{
			Keyword: inv.Keyword.Name,
			StepID:  stepID,
			Timeout: true,
			Err:     fmt.Errorf("no result within %s", e.stepTimeout),
		}
	}

	select {
	case o := <-done:
		if o.err == nil {
			return o.out, nil
		}
		if ctx.Err() != nil {
			return nil, api.ErrRunCancelled
		}
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return nil, timedOut()
		}
		return nil, &api.KeywordExecutionError{Keyword: inv.Keyword.Name, StepID: stepID, Err: o.err}
	case <-stepCtx.Done():
		if ctx.Err() != nil {
			return nil, api.ErrRunCancelled
		}
		return nil, timedOut()
	}
}
