package taskqueue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/petrijr/keycase/internal/testutil"
)

func TestPostgresQueue(t *testing.T) {
	dsn := testutil.GetPostgresDSN(t)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	testQueueContract(t, func(t *testing.T) Queue {
		q, err := NewPostgresQueue(db)
		if err != nil {
			t.Fatalf("NewPostgresQueue failed: %v", err)
		}
		if _, err := db.ExecContext(context.Background(), `TRUNCATE TABLE queue_tasks`); err != nil {
			t.Fatalf("truncate failed: %v", err)
		}
		q.pollInterval = 10 * time.Millisecond
		return q
	})
}
