package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petrijr/keycase/internal/engine"
	"github.com/petrijr/keycase/internal/taskqueue"
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine  api.Engine
	queue   *taskqueue.InMemoryQueue
	started chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{started: make(chan struct{}, 1)}
	reg := keyword.NewRegistry()
	reg.MustRegister(&keyword.Keyword{
		Name:    "Echo",
		Inputs:  []keyword.ParamSpec{keyword.In("text", keyword.Required())},
		Outputs: []keyword.OutputSpec{keyword.Out("text")},
		Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
			return keyword.Values{"text": in["text"]}, nil
		},
	})
	reg.MustRegister(&keyword.Keyword{
		Name: "Block",
		Handler: func(ctx context.Context, in keyword.Values) (keyword.Values, error) {
			f.started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	reg.Freeze()

	f.engine = engine.NewInMemoryEngine(reg)
	f.queue = taskqueue.NewInMemoryQueue(16)
	return f
}

func plan(keywordName string, params ...api.Param) *api.ExecutionPlan {
	return &api.ExecutionPlan{
		Name: "worker-plan",
		KeywordInstances: []api.KeywordInstance{
			{ID: "1", Name: "only", KeywordName: keywordName, Params: params},
		},
		Flows: []api.Flow{{
			ID:            "1",
			FlowID:        "10",
			SequenceOrder: 1,
			Name:          "main",
			Steps:         []api.Step{{ID: "1", InstanceID: "1", SequenceOrder: 1}},
		}},
	}
}

func echoPlan() *api.ExecutionPlan {
	return plan("Echo", api.Param{ID: "p1", Name: "text", Direction: api.DirectionInput, Value: api.NewText("hi")})
}

func TestWorker_ExecutesQueuedPlan(t *testing.T) {
	f := newFixture(t)
	w := New(f.engine, f.queue)
	ctx := context.Background()

	runID, err := w.EnqueueExecute(ctx, "proj", echoPlan(), "")
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	assert.Equal(t, 1, f.queue.Len())

	processed, err := w.ProcessOne(ctx)
	require.True(t, processed)
	require.NoError(t, err)

	rec, err := f.engine.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "proj", rec.ProjectID)
	assert.Equal(t, api.RunPassed, rec.Status)
	assert.False(t, w.Busy())
}

func TestWorker_RunIDPrecedence(t *testing.T) {
	f := newFixture(t)
	w := New(f.engine, f.queue)
	ctx := context.Background()

	p := echoPlan()
	p.RunID = "from-plan"

	id, err := w.EnqueueExecute(ctx, "proj", p, "")
	require.NoError(t, err)
	assert.Equal(t, api.ID("from-plan"), id)

	id, err = w.EnqueueExecute(ctx, "proj", p, "explicit")
	require.NoError(t, err)
	assert.Equal(t, api.ID("explicit"), id)

	_, err = w.EnqueueExecute(ctx, "proj", nil, "")
	assert.ErrorIs(t, err, api.ErrNilPlan)
}

func TestWorker_ReportsResults(t *testing.T) {
	f := newFixture(t)

	var (
		mu       sync.Mutex
		reported []*api.RunResult
	)
	w := NewWithConfig(f.engine, f.queue, Config{
		Reporter: ReporterFunc(func(ctx context.Context, projectID string, res *api.RunResult) error {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, "proj", projectID)
			reported = append(reported, res)
			return nil
		}),
	})
	ctx := context.Background()

	_, err := w.EnqueueExecute(ctx, "proj", echoPlan(), "r-1")
	require.NoError(t, err)
	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.Equal(t, api.ID("r-1"), reported[0].RunID)
	require.Len(t, reported[0].FlowResults, 1)
	assert.Equal(t, api.ID("10"), reported[0].FlowResults[0].FlowID)
}

func TestWorker_ReporterErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("controller offline")
	w := NewWithConfig(f.engine, f.queue, Config{
		Reporter: ReporterFunc(func(context.Context, string, *api.RunResult) error { return boom }),
	})
	ctx := context.Background()

	_, err := w.EnqueueExecute(ctx, "proj", echoPlan(), "")
	require.NoError(t, err)

	processed, err := w.ProcessOne(ctx)
	assert.True(t, processed)
	assert.ErrorIs(t, err, boom)
}

func TestWorker_CancelActiveRun(t *testing.T) {
	f := newFixture(t)
	w := New(f.engine, f.queue)
	ctx := context.Background()

	runID, err := w.EnqueueExecute(ctx, "proj", plan("Block"), "blocked")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := w.ProcessOne(ctx)
		done <- err
	}()

	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}
	assert.True(t, w.Busy())
	assert.Equal(t, []api.ID{runID}, w.ActiveRuns())

	// Deliver the cancellation through the queue like a remote caller would.
	require.NoError(t, w.EnqueueCancel(ctx, runID))
	processed, err := w.ProcessOne(ctx)
	require.True(t, processed)
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not cancelled")
	}

	rec, err := f.engine.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, rec.Result.Error)
	assert.Equal(t, api.RunErrorCancelled, rec.Result.Error.Type)
	assert.Equal(t, api.RunErrored, rec.Status)
	assert.False(t, w.Busy())
}

func TestWorker_CancelBeforeStart(t *testing.T) {
	f := newFixture(t)
	w := New(f.engine, f.queue)
	ctx := context.Background()

	runID, err := w.EnqueueExecute(ctx, "proj", echoPlan(), "early")
	require.NoError(t, err)
	assert.False(t, w.Cancel(runID))

	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)

	rec, err := f.engine.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, rec.Result.Error)
	assert.Equal(t, api.RunErrorCancelled, rec.Result.Error.Type)
	assert.Empty(t, rec.Result.FlowResults)
}

func TestWorker_LateCancelDoesNotAffectRerun(t *testing.T) {
	f := newFixture(t)
	w := New(f.engine, f.queue)
	ctx := context.Background()

	_, err := w.EnqueueExecute(ctx, "proj", echoPlan(), "r1")
	require.NoError(t, err)
	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)

	assert.False(t, w.Cancel("r1"))
	assert.False(t, w.Cancel("never-queued"))

	_, err = w.EnqueueExecute(ctx, "proj", echoPlan(), "r1")
	require.NoError(t, err)
	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)

	rec, err := f.engine.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, rec.Result.Error)
	assert.Equal(t, api.RunPassed, rec.Status)
	require.Len(t, rec.Result.FlowResults, 1)
	assert.Equal(t, api.FlowPassed, rec.Result.FlowResults[0].Status)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.pending)
	assert.Empty(t, w.queued)
}

func TestWorker_PendingCancelAppliesOnce(t *testing.T) {
	f := newFixture(t)
	w := New(f.engine, f.queue)
	ctx := context.Background()

	_, err := w.EnqueueExecute(ctx, "proj", echoPlan(), "twice")
	require.NoError(t, err)
	assert.False(t, w.Cancel("twice"))
	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)

	rec, err := f.engine.GetRun(ctx, "twice")
	require.NoError(t, err)
	require.NotNil(t, rec.Result.Error)
	assert.Equal(t, api.RunErrorCancelled, rec.Result.Error.Type)

	_, err = w.EnqueueExecute(ctx, "proj", echoPlan(), "twice")
	require.NoError(t, err)
	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)

	rec, err = f.engine.GetRun(ctx, "twice")
	require.NoError(t, err)
	assert.Nil(t, rec.Result.Error)
	assert.Equal(t, api.RunPassed, rec.Status)
}

func TestWorker_BadTasks(t *testing.T) {
	f := newFixture(t)
	w := New(f.engine, f.queue)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, taskqueue.Task{Type: "bogus"}))
	processed, err := w.ProcessOne(ctx)
	assert.True(t, processed)
	assert.ErrorIs(t, err, ErrUnknownTaskType)

	require.NoError(t, f.queue.Enqueue(ctx, taskqueue.Task{Type: taskqueue.TaskTypeExecutePlan, RunID: "x", Payload: []byte("{")}))
	processed, err = w.ProcessOne(ctx)
	assert.True(t, processed)
	assert.Error(t, err)
}

func TestWorker_ProcessOneHonorsContext(t *testing.T) {
	f := newFixture(t)
	w := New(f.engine, f.queue)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	processed, err := w.ProcessOne(ctx)
	assert.False(t, processed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
