package persistence

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/petrijr/keycase/pkg/api"
)

func newTestSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	// Every pooled connection would get its own :memory: database.
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestSQLiteRunStore_Contract(t *testing.T) {
	store, err := NewSQLiteRunStore(newTestSQLiteDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteRunStore failed: %v", err)
	}
	testRunStoreContract(t, store)
}

func TestSQLiteRunStore_SchemaIsIdempotent(t *testing.T) {
	db := newTestSQLiteDB(t)
	if _, err := NewSQLiteRunStore(db); err != nil {
		t.Fatalf("first NewSQLiteRunStore failed: %v", err)
	}
	if _, err := NewSQLiteRunStore(db); err != nil {
		t.Fatalf("second NewSQLiteRunStore failed: %v", err)
	}
}

func TestSQLiteEventStore_AppendAndList(t *testing.T) {
	store, err := NewSQLiteEventStore(newTestSQLiteDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteEventStore failed: %v", err)
	}
	ctx := context.Background()

	events := []api.RunEvent{
		{RunID: "1", Type: api.EventRunStarted},
		{RunID: "1", Type: api.EventStepFailed, FlowID: "7", StepID: "3", Keyword: "Calculator Divide", Detail: "Cannot divide by zero"},
		{RunID: "2", Type: api.EventRunStarted},
	}
	for _, ev := range events {
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	got, err := store.ListEvents(ctx, "1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[1].Type != api.EventStepFailed || got[1].StepID != "3" || got[1].Keyword != "Calculator Divide" {
		t.Fatalf("unexpected event: %+v", got[1])
	}
	if got[0].At.IsZero() {
		t.Fatalf("expected AppendEvent to stamp missing times")
	}
}
