// Package backend opens the run store, event store and task queue selected
// by the agent's store configuration.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/petrijr/keycase/internal/config"
	"github.com/petrijr/keycase/internal/persistence"
	"github.com/petrijr/keycase/internal/taskqueue"
)

// Backend is an opened storage stack.
type Backend struct {
	Name        string
	Persistence persistence.Persistence
	Queue       taskqueue.Queue

	closers []func(context.Context) error
}

// Open connects to the configured backend. queueSize only applies to the
// in-memory queue.
func Open(ctx context.Context, cfg config.StoreConfig, queueSize int) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return openMemory(queueSize), nil
	case config.BackendSQLite:
		return openSQLite(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		return openPostgres(ctx, cfg.PostgresDSN)
	case config.BackendRedis:
		return openRedis(ctx, cfg)
	case config.BackendMongo:
		return openMongo(ctx, cfg)
	}
	return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
}

// Close releases every connection opened by Open.
func (b *Backend) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func openMemory(queueSize int) *Backend {
	mem := persistence.NewInMemoryStore()
	return &Backend{
		Name:        config.BackendMemory,
		Persistence: persistence.Persistence{Runs: mem, Events: mem},
		Queue:       taskqueue.NewInMemoryQueue(queueSize),
	}
}

// SQLiteDSN returns the modernc.org/sqlite DSN used for path.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func openSQLite(ctx context.Context, path string) (*Backend, error) {
	db, err := sql.Open("sqlite", SQLiteDSN(path))
	if err != nil {
		return nil, err
	}
	b := &Backend{Name: config.BackendSQLite, closers: []func(context.Context) error{
		func(context.Context) error { return db.Close() },
	}}

	if err := db.PingContext(ctx); err != nil {
		return nil, closeOnError(ctx, b, err)
	}
	runs, err := persistence.NewSQLiteRunStore(db)
	if err != nil {
		return nil, closeOnError(ctx, b, err)
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, closeOnError(ctx, b, err)
	}
	q, err := taskqueue.NewSQLiteQueue(db)
	if err != nil {
		return nil, closeOnError(ctx, b, err)
	}

	b.Persistence = persistence.Persistence{Runs: runs, Events: events}
	b.Queue = q
	return b, nil
}

func openPostgres(ctx context.Context, dsn string) (*Backend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	b := &Backend{Name: config.BackendPostgres, closers: []func(context.Context) error{
		func(context.Context) error { return db.Close() },
	}}

	if err := db.PingContext(ctx); err != nil {
		return nil, closeOnError(ctx, b, err)
	}
	runs, err := persistence.NewPostgresRunStore(db)
	if err != nil {
		return nil, closeOnError(ctx, b, err)
	}
	q, err := taskqueue.NewPostgresQueue(db)
	if err != nil {
		return nil, closeOnError(ctx, b, err)
	}

	// Run events stay in memory; only final run records go to Postgres.
	b.Persistence = persistence.Persistence{Runs: runs, Events: persistence.NewInMemoryStore()}
	b.Queue = q
	return b, nil
}

func openRedis(ctx context.Context, cfg config.StoreConfig) (*Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	b := &Backend{Name: config.BackendRedis, closers: []func(context.Context) error{
		func(context.Context) error { return client.Close() },
	}}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, closeOnError(ctx, b, err)
	}

	store := persistence.NewRedisRunStore(client, cfg.RedisPrefix)
	b.Persistence = persistence.Persistence{Runs: store, Events: store}
	b.Queue = taskqueue.NewRedisQueue(client, cfg.RedisPrefix)
	return b, nil
}

func openMongo(ctx context.Context, cfg config.StoreConfig) (*Backend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	b := &Backend{Name: config.BackendMongo, closers: []func(context.Context) error{
		client.Disconnect,
	}}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, closeOnError(ctx, b, err)
	}

	b.Persistence = persistence.Persistence{
		Runs:   persistence.NewMongoRunStore(client, cfg.MongoDatabase, ""),
		Events: persistence.NewInMemoryStore(),
	}
	b.Queue = taskqueue.NewMongoQueue(client, cfg.MongoDatabase, "")
	return b, nil
}

func closeOnError(ctx context.Context, b *Backend, err error) error {
	return errors.Join(err, b.Close(ctx))
}
