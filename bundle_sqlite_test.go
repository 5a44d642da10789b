package keycase

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	workerpkg "github.com/petrijr/keycase/pkg/worker"
	"github.com/stretchr/testify/require"
)

// TestSQLiteBundle_DurableAcrossRestart demonstrates that a plan enqueued via
// the worker/queue combination survives a simulated process restart, as
// long as the same keywords are registered on startup.
func TestSQLiteBundle_DurableAcrossRestart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "keycase_bundle.db")
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)"

	// --- Phase 1: enqueue the plan, no processing yet.

	db1, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	bundle1, err := NewSQLiteBundle(testRegistry(t), db1, workerpkg.Config{})
	require.NoError(t, err)

	runID, err := bundle1.Worker.EnqueueExecute(ctx, "durable", samplePlan("41", "1", "42"), "")
	require.NoError(t, err)

	before, err := bundle1.Engine.ListRuns(ctx, RunListOptions{ProjectID: "durable"})
	require.NoError(t, err)
	require.Len(t, before, 0, "no runs should exist before the worker processes the queue")

	require.Equal(t, 1, bundle1.queue.Len())

	// Simulate a crash by closing the DB and discarding bundle1.
	require.NoError(t, db1.Close())

	// --- Phase 2: "restart" with a new DB handle and bundle.

	db2, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db2.Close()

	// Keywords live in memory only and must be registered on every start.
	bundle2, err := NewSQLiteBundle(testRegistry(t), db2, workerpkg.Config{})
	require.NoError(t, err)

	processed, err := bundle2.Worker.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, processed, "expected one task to be processed")

	rec, err := bundle2.Engine.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, RunPassed, rec.Status)
	require.Equal(t, "durable", rec.ProjectID)

	events, err := bundle2.Engine.ListEvents(ctx, runID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
}
