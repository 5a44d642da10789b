package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/keycase/pkg/api"
)

// RedisRunStore is a RunStore and EventStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>run:<id>                => JSON-encoded api.RunRecord
//	<prefix>idx:all                 => SET of all run IDs
//	<prefix>idx:project:<project>   => SET of run IDs for a given project
//	<prefix>idx:status:<status>     => SET of run IDs for a given status
//	<prefix>events:<id>             => LIST of JSON-encoded api.RunEvent
//
// The indexes are best-effort; they are always updated on Save, and
// ListRuns re-checks the filter against the stored record, so stale index
// entries left behind by a re-executed run id are harmless.
type RedisRunStore struct {
	client *redis.Client
	prefix string
}

var (
	_ RunStore   = (*RedisRunStore)(nil)
	_ EventStore = (*RedisRunStore)(nil)
)

// NewRedisRunStore creates a RedisRunStore.
// prefix is optional but recommended (e.g. "keycase:").
func NewRedisRunStore(client *redis.Client, prefix string) *RedisRunStore {
	if prefix == "" {
		prefix = "keycase:"
	}
	return &RedisRunStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisRunStore) keyRun(id api.ID) string {
	return s.prefix + "run:" + string(id)
}

func (s *RedisRunStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisRunStore) keyProject(project string) string {
	return s.prefix + "idx:project:" + project
}

func (s *RedisRunStore) keyStatus(status api.RunStatus) string {
	return s.prefix + "idx:status:" + string(status)
}

func (s *RedisRunStore) keyEvents(id api.ID) string {
	return s.prefix + "events:" + string(id)
}

func (s *RedisRunStore) SaveRun(ctx context.Context, rec *api.RunRecord) error {
	data, err := EncodeValue(rec)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.keyRun(rec.RunID), data, 0).Err(); err != nil {
		return err
	}

	// Update indexes (best-effort; we don't treat index failures as fatal)
	id := string(rec.RunID)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.keyAll(), id)
	pipe.SAdd(ctx, s.keyProject(rec.ProjectID), id)
	pipe.SAdd(ctx, s.keyStatus(rec.Status), id)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (s *RedisRunStore) GetRun(ctx context.Context, runID api.ID) (*api.RunRecord, error) {
	data, err := s.client.Get(ctx, s.keyRun(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return DecodeValue[*api.RunRecord](data)
}

func (s *RedisRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*api.RunRecord, error) {
	var ids []string
	var err error

	switch {
	case filter.ProjectID != "" && filter.Status != "":
		ids, err = s.client.SInter(ctx,
			s.keyProject(filter.ProjectID),
			s.keyStatus(filter.Status),
		).Result()
	case filter.ProjectID != "":
		ids, err = s.client.SMembers(ctx, s.keyProject(filter.ProjectID)).Result()
	case filter.Status != "":
		ids, err = s.client.SMembers(ctx, s.keyStatus(filter.Status)).Result()
	default:
		ids, err = s.client.SMembers(ctx, s.keyAll()).Result()
	}

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*api.RunRecord{}, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return []*api.RunRecord{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.keyRun(api.ID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var out []*api.RunRecord
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		rec, err := DecodeValue[*api.RunRecord](data)
		if err != nil {
			return nil, err
		}
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}

	sortRecords(out)
	return out, nil
}

func (s *RedisRunStore) AppendEvent(ctx context.Context, ev api.RunEvent) error {
	data, err := EncodeValue(ev)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.keyEvents(ev.RunID), data).Err()
}

func (s *RedisRunStore) ListEvents(ctx context.Context, runID api.ID) ([]api.RunEvent, error) {
	items, err := s.client.LRange(ctx, s.keyEvents(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]api.RunEvent, 0, len(items))
	for _, item := range items {
		ev, err := DecodeValue[api.RunEvent]([]byte(item))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
