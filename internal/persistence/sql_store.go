package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/petrijr/keycase/pkg/api"
)

// sqlRunStore holds the queries shared by the SQLite and PostgreSQL run
// stores. The dialects only differ in placeholders and column types.
type sqlRunStore struct {
	db          *sql.DB
	placeholder func(n int) string
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func (s *sqlRunStore) args(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = s.placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func (s *sqlRunStore) SaveRun(ctx context.Context, rec *api.RunRecord) error {
	result, err := EncodeValue(rec.Result)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, project_id, plan_name, status, created_at, result)
		VALUES (`+s.args(6)+`)
		ON CONFLICT (id) DO UPDATE SET
			project_id = excluded.project_id,
			plan_name = excluded.plan_name,
			status = excluded.status,
			created_at = excluded.created_at,
			result = excluded.result`,
		string(rec.RunID),
		rec.ProjectID,
		rec.PlanName,
		string(rec.Status),
		rec.CreatedAt.UnixNano(),
		result,
	)
	return err
}

func (s *sqlRunStore) GetRun(ctx context.Context, runID api.ID) (*api.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, plan_name, status, created_at, result
		FROM runs
		WHERE id = `+s.placeholder(1),
		string(runID),
	)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return rec, err
}

func (s *sqlRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*api.RunRecord, error) {
	query := `
		SELECT id, project_id, plan_name, status, created_at, result
		FROM runs`
	var args []any
	var clauses []string

	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		clauses = append(clauses, "project_id = "+s.placeholder(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, "status = "+s.placeholder(len(args)))
	}

	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*api.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// ids compare lexically in SQL; restore numeric ordering for ties.
	sortRecords(out)
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*api.RunRecord, error) {
	var (
		id, project, plan, status string
		createdAt                 int64
		result                    []byte
	)
	if err := row.Scan(&id, &project, &plan, &status, &createdAt, &result); err != nil {
		return nil, err
	}

	res, err := DecodeValue[*api.RunResult](result)
	if err != nil {
		return nil, err
	}

	return &api.RunRecord{
		RunID:     api.ID(id),
		ProjectID: project,
		PlanName:  plan,
		Status:    api.RunStatus(status),
		CreatedAt: time.Unix(0, createdAt).UTC(),
		Result:    res,
	}, nil
}
