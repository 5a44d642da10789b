package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/keycase/pkg/api"
)

// testRunStoreContract exercises the behavior every RunStore must share.
func testRunStoreContract(t *testing.T, store RunStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.GetRun(ctx, "missing")
	require.True(t, errors.Is(err, ErrRunNotFound), "expected ErrRunNotFound, got %v", err)

	msg := "Cannot divide by zero"
	step := api.ID("3")
	failing := api.NewRunRecord("proj-a", "calc", &api.RunResult{
		RunID:         "10",
		StartDateTime: base,
		EndDateTime:   base.Add(time.Second),
		FlowResults: []api.FlowResult{
			{FlowID: "1", Name: "div", Status: api.FlowFailed, Message: &msg, FailedOnStepID: &step},
		},
	})
	require.NoError(t, store.SaveRun(ctx, failing))

	got, err := store.GetRun(ctx, "10")
	require.NoError(t, err)
	require.Equal(t, api.RunFailed, got.Status)
	require.Equal(t, "proj-a", got.ProjectID)
	require.Equal(t, "calc", got.PlanName)
	require.True(t, got.CreatedAt.Equal(base))
	require.Len(t, got.Result.FlowResults, 1)
	require.Equal(t, msg, *got.Result.FlowResults[0].Message)
	require.Equal(t, step, *got.Result.FlowResults[0].FailedOnStepID)

	passing := sampleRecord("9", "proj-a", api.FlowPassed, base.Add(time.Minute))
	other := sampleRecord("2", "proj-b", api.FlowPassed, base.Add(-time.Minute))
	require.NoError(t, store.SaveRun(ctx, passing))
	require.NoError(t, store.SaveRun(ctx, other))

	all, err := store.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Equal(t, []api.ID{"2", "10", "9"}, runIDs(all))

	projA, err := store.ListRuns(ctx, RunFilter{ProjectID: "proj-a"})
	require.NoError(t, err)
	require.Equal(t, []api.ID{"10", "9"}, runIDs(projA))

	passedA, err := store.ListRuns(ctx, RunFilter{ProjectID: "proj-a", Status: api.RunPassed})
	require.NoError(t, err)
	require.Equal(t, []api.ID{"9"}, runIDs(passedA))

	// Re-executing a run id replaces the stored record.
	rerun := sampleRecord("10", "proj-a", api.FlowPassed, base)
	require.NoError(t, store.SaveRun(ctx, rerun))

	got, err = store.GetRun(ctx, "10")
	require.NoError(t, err)
	require.Equal(t, api.RunPassed, got.Status)

	failed, err := store.ListRuns(ctx, RunFilter{Status: api.RunFailed})
	require.NoError(t, err)
	require.Empty(t, failed)
}
