package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/petrijr/keycase/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe implementation of
// RunStore and EventStore backed by maps.
type InMemoryStore struct {
	mu     sync.RWMutex
	runs   map[api.ID]*api.RunRecord
	events map[api.ID][]api.RunEvent
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:   make(map[api.ID]*api.RunRecord),
		events: make(map[api.ID][]api.RunEvent),
	}
}

// Ensure InMemoryStore implements the interfaces.
var _ RunStore = (*InMemoryStore)(nil)

var _ EventStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveRun(ctx context.Context, rec *api.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[rec.RunID] = rec
	return nil
}

func (s *InMemoryStore) GetRun(ctx context.Context, runID api.ID) (*api.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) ListRuns(ctx context.Context, filter RunFilter) ([]*api.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*api.RunRecord
	for _, rec := range s.runs {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *InMemoryStore) AppendEvent(ctx context.Context, ev api.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.RunID] = append(s.events[ev.RunID], ev)
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context, runID api.ID) ([]api.RunEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.events[runID]), nil
}

// sortRecords orders records by creation time, then run id.
func sortRecords(recs []*api.RunRecord) {
	slices.SortStableFunc(recs, func(a, b *api.RunRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.RunID.Less(b.RunID):
			return -1
		case b.RunID.Less(a.RunID):
			return 1
		}
		return 0
	})
}
