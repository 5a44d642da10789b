package persistence

import (
	"context"

	"github.com/petrijr/keycase/pkg/api"
)

// ErrRunNotFound is returned when a run record is not found.
var ErrRunNotFound = api.ErrRunNotFound

// RunFilter is used to select runs from the store.
// Empty strings mean "no filter" for that field.
type RunFilter struct {
	ProjectID string
	Status    api.RunStatus
}

// Matches reports whether rec passes the filter.
func (f RunFilter) Matches(rec *api.RunRecord) bool {
	if f.ProjectID != "" && rec.ProjectID != f.ProjectID {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	return true
}

// RunStore handles storage of finished runs.
type RunStore interface {
	// SaveRun inserts rec, replacing any earlier record with the same run id.
	SaveRun(ctx context.Context, rec *api.RunRecord) error
	// GetRun returns ErrRunNotFound for unknown ids.
	GetRun(ctx context.Context, runID api.ID) (*api.RunRecord, error)
	// ListRuns returns matching runs ordered by creation time.
	ListRuns(ctx context.Context, filter RunFilter) ([]*api.RunRecord, error)
}
