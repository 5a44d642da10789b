package keycase

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/keycase/internal/engine"
	"github.com/petrijr/keycase/internal/persistence"
	"github.com/petrijr/keycase/internal/taskqueue"
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Re-export key types so users don't need to dig into pkg/api and pkg/keyword.

type (
	Engine               = api.Engine
	ExecutionPlan        = api.ExecutionPlan
	KeywordInstance      = api.KeywordInstance
	Param                = api.Param
	Step                 = api.Step
	Connection           = api.Connection
	Flow                 = api.Flow
	ID                   = api.ID
	Text                 = api.Text
	RunResult            = api.RunResult
	FlowResult           = api.FlowResult
	RunRecord            = api.RunRecord
	RunListOptions       = api.RunListOptions
	RunEvent             = api.RunEvent
	ResultDocument       = api.ResultDocument
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	Registry   = keyword.Registry
	Keyword    = keyword.Keyword
	Values     = keyword.Values
	Handler    = keyword.Handler
	ParamSpec  = keyword.ParamSpec
	OutputSpec = keyword.OutputSpec
	Schema     = keyword.Schema
	Invoker    = keyword.Invoker
	Invocation = keyword.Invocation

	Queue = taskqueue.Queue
)

// Re-export common helpers.

var (
	NewRegistry          = keyword.NewRegistry
	NewText              = api.NewText
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export status values for convenience.

const (
	FlowPassed = api.FlowPassed
	FlowFailed = api.FlowFailed

	RunPassed  = api.RunPassed
	RunFailed  = api.RunFailed
	RunErrored = api.RunErrored

	RunModeDefault         = api.RunModeDefault
	RunModeContinueOnError = api.RunModeContinueOnError
)

// EngineOptions tunes engine behavior. The zero value matches the plain
// constructors.
type EngineOptions struct {
	Observer Observer

	// Invoker replaces in-process keyword calls, e.g. with a remote invoker.
	Invoker Invoker

	// StepTimeout bounds every keyword invocation. Zero means no limit.
	StepTimeout time.Duration

	// MaxParallelFlows > 1 runs flows concurrently; results keep sequenceOrder.
	MaxParallelFlows int
}

func (o EngineOptions) config(p persistence.Persistence) engine.Config {
	return engine.Config{
		Persistence:      p,
		Observer:         o.Observer,
		Invoker:          o.Invoker,
		StepTimeout:      o.StepTimeout,
		MaxParallelFlows: o.MaxParallelFlows,
	}
}

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages. The registry must be frozen
// before the first Execute.

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine(reg *Registry) Engine {
	return engine.NewInMemoryEngine(reg)
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(reg *Registry, obs Observer) Engine {
	return NewInMemoryEngineWithOptions(reg, EngineOptions{Observer: obs})
}

// NewInMemoryEngineWithOptions returns an in-memory Engine configured by opts.
func NewInMemoryEngineWithOptions(reg *Registry, opts EngineOptions) Engine {
	mem := persistence.NewInMemoryStore()
	return engine.NewEngineWithConfig(reg, opts.config(persistence.Persistence{Runs: mem, Events: mem}))
}

// NewSQLiteEngine returns an Engine that stores runs and run events in a
// SQLite database.
func NewSQLiteEngine(reg *Registry, db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(reg, db)
}

// NewSQLiteEngineWithOptions returns a SQLite-backed Engine configured by opts.
func NewSQLiteEngineWithOptions(reg *Registry, db *sql.DB, opts EngineOptions) (Engine, error) {
	p, err := engine.SQLitePersistence(db)
	if err != nil {
		return nil, err
	}
	return engine.NewEngineWithConfig(reg, opts.config(p)), nil
}

// NewPostgresEngine returns an Engine that stores runs in PostgreSQL.
func NewPostgresEngine(reg *Registry, db *sql.DB) (Engine, error) {
	return engine.NewPostgresEngine(reg, db)
}

// NewRedisEngine returns an Engine that stores runs and events in Redis.
func NewRedisEngine(reg *Registry, client *redis.Client) Engine {
	return engine.NewRedisEngine(reg, client)
}

// NewMongoEngine returns an Engine that stores runs in MongoDB.
func NewMongoEngine(reg *Registry, client *mongo.Client) Engine {
	return engine.NewMongoEngine(reg, client)
}

// NewInMemoryQueue returns a channel-backed task queue.
func NewInMemoryQueue(capacity int) Queue {
	return taskqueue.NewInMemoryQueue(capacity)
}

// Convenience helpers that just forward to the underlying Engine.

// Execute runs plan synchronously and returns its result.
func Execute(ctx context.Context, eng Engine, plan *ExecutionPlan, projectID string, runID ID) (*RunResult, error) {
	return eng.Execute(ctx, plan, projectID, runID)
}

// GetRun fetches a stored run by id.
func GetRun(ctx context.Context, eng Engine, runID ID) (*RunRecord, error) {
	return eng.GetRun(ctx, runID)
}

// ListRuns lists stored runs according to the given options.
func ListRuns(ctx context.Context, eng Engine, opts RunListOptions) ([]*RunRecord, error) {
	return eng.ListRuns(ctx, opts)
}

// History returns the audit events of a run.
func History(ctx context.Context, eng Engine, runID ID) ([]RunEvent, error) {
	return eng.ListEvents(ctx, runID)
}
