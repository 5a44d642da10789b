package persistence

import (
	"context"

	"github.com/petrijr/keycase/pkg/api"
)

// EventStore is an append-only history store for run execution events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.RunEvent) error
	ListEvents(ctx context.Context, runID api.ID) ([]api.RunEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.RunEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, runID api.ID) ([]api.RunEvent, error) {
	return nil, nil
}
