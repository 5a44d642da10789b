package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/keycase/pkg/api"
)

// SQLiteEventStore stores run events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements the interfaces.
var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			flow_id TEXT NOT NULL DEFAULT '',
			step_id TEXT NOT NULL DEFAULT '',
			keyword TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.RunEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, at, type, flow_id, step_id, keyword, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(ev.RunID),
		at.UnixNano(),
		string(ev.Type),
		string(ev.FlowID),
		string(ev.StepID),
		ev.Keyword,
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, runID api.ID) ([]api.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, at, type, flow_id, step_id, keyword, detail
		FROM run_events
		WHERE run_id = ?
		ORDER BY id ASC`, string(runID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.RunEvent
	for rows.Next() {
		var (
			id      string
			atN     int64
			typ     string
			flowID  string
			stepID  string
			keyword string
			detail  string
		)
		if err := rows.Scan(&id, &atN, &typ, &flowID, &stepID, &keyword, &detail); err != nil {
			return nil, err
		}
		out = append(out, api.RunEvent{
			RunID:   api.ID(id),
			At:      time.Unix(0, atN),
			Type:    api.EventType(typ),
			FlowID:  api.ID(flowID),
			StepID:  api.ID(stepID),
			Keyword: keyword,
			Detail:  detail,
		})
	}
	return out, rows.Err()
}
