package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/petrijr/keycase/internal/persistence"
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// engineImpl executes plans in-process against a frozen registry.
type engineImpl struct {
	registry *keyword.Registry
	runs     persistence.RunStore
	events   persistence.EventStore
	observer api.Observer
	invoker  keyword.Invoker

	stepTimeout      time.Duration
	maxParallelFlows int
}

// Config describes how to construct an engine.
type Config struct {
	Persistence persistence.Persistence
	Observer    api.Observer

	// Invoker performs keyword calls. Defaults to keyword.LocalInvoker.
	Invoker keyword.Invoker

	// StepTimeout bounds every keyword invocation. Zero means no limit.
	StepTimeout time.Duration

	// MaxParallelFlows > 1 runs up to that many flows concurrently.
	// Results are still reported in sequenceOrder.
	MaxParallelFlows int
}

var _ api.Engine = (*engineImpl)(nil)

func NewInMemoryEngine(reg *keyword.Registry) api.Engine {
	mem := persistence.NewInMemoryStore()
	return NewEngine(reg, persistence.Persistence{
		Runs:   mem,
		Events: mem,
	})
}

func NewSQLiteEngine(reg *keyword.Registry, db *sql.DB) (api.Engine, error) {
	p, err := SQLitePersistence(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(reg, p), nil
}

// SQLitePersistence keeps both runs and events in db.
func SQLitePersistence(db *sql.DB) (persistence.Persistence, error) {
	runs, err := persistence.NewSQLiteRunStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	return persistence.Persistence{Runs: runs, Events: events}, nil
}

func NewPostgresEngine(reg *keyword.Registry, db *sql.DB) (api.Engine, error) {
	runs, err := persistence.NewPostgresRunStore(db)
	if err != nil {
		return nil, err
	}
	// Run events stay in memory; only final run records go to Postgres.
	return NewEngine(reg, persistence.Persistence{
		Runs:   runs,
		Events: persistence.NewInMemoryStore(),
	}), nil
}

// NewRedisEngine creates an engine that keeps runs and events in Redis
// under the "keycase:" prefix.
func NewRedisEngine(reg *keyword.Registry, client *redis.Client) api.Engine {
	store := persistence.NewRedisRunStore(client, "keycase:")
	return NewEngine(reg, persistence.Persistence{
		Runs:   store,
		Events: store,
	})
}

func NewMongoEngine(reg *keyword.Registry, client *mongo.Client) api.Engine {
	runs := persistence.NewMongoRunStore(client, "", "")
	return NewEngine(reg, persistence.Persistence{
		Runs:   runs,
		Events: persistence.NewInMemoryStore(),
	})
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(reg *keyword.Registry, cfg Config) api.Engine {
	events := cfg.Persistence.Events
	if events == nil {
		events = persistence.NoopEventStore{}
	}
	runs := cfg.Persistence.Runs
	if runs == nil {
		runs = persistence.NewInMemoryStore()
	}
	invoker := cfg.Invoker
	if invoker == nil {
		invoker = keyword.LocalInvoker{}
	}

	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	if _, noop := events.(persistence.NoopEventStore); !noop {
		obs = api.NewCompositeObserver(NewEventRecorder(events), obs)
	}

	return &engineImpl{
		registry:         reg,
		runs:             runs,
		events:           events,
		observer:         obs,
		invoker:          invoker,
		stepTimeout:      cfg.StepTimeout,
		maxParallelFlows: cfg.MaxParallelFlows,
	}
}

// NewEngine returns an Engine with the given persistence and defaults for
// everything else.
func NewEngine(reg *keyword.Registry, p persistence.Persistence) api.Engine {
	return NewEngineWithConfig(reg, Config{Persistence: p})
}

func (e *engineImpl) Execute(ctx context.Context, plan *api.ExecutionPlan, projectID string, runID api.ID) (*api.RunResult, error) {
	if plan == nil {
		return nil, api.ErrNilPlan
	}
	if e.registry == nil || !e.registry.Frozen() {
		return nil, api.ErrRegistryNotLoaded
	}

	if runID == "" {
		runID = plan.RunID
	}
	if runID == "" {
		runID = api.ID(uuid.NewString())
	}

	res := &api.RunResult{
		RunID:         runID,
		StartDateTime: time.Now().UTC(),
		FlowResults:   []api.FlowResult{},
	}
	e.observer.OnRunStart(ctx, runID, plan)

	compiled, err := compile(plan, e.registry)
	if err != nil {
		res.Error = runErrorFor(err)
	} else {
		flows, err := e.runFlows(ctx, runID, compiled)
		res.FlowResults = flows
		if err != nil {
			res.Error = runErrorFor(err)
		}
	}

	res.EndDateTime = time.Now().UTC()
	e.observer.OnRunCompleted(ctx, res)

	rec := api.NewRunRecord(projectID, plan.Name, res)
	if err := e.runs.SaveRun(context.WithoutCancel(ctx), rec); err != nil {
		return res, fmt.Errorf("save run %s: %w", runID, err)
	}
	return res, nil
}

// runFlows executes the compiled flows and returns the results of every
// flow that started, in sequenceOrder.
func (e *engineImpl) runFlows(ctx context.Context, runID api.ID, cp *compiledPlan) ([]api.FlowResult, error) {
	if e.maxParallelFlows > 1 {
		return e.runFlowsParallel(ctx, runID, cp)
	}

	results := make([]api.FlowResult, 0, len(cp.flows))
	for _, cf := range cp.flows {
		if ctx.Err() != nil {
			return results, api.ErrRunCancelled
		}
		fr, err := e.runFlow(ctx, runID, cf)
		results = append(results, fr)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (e *engineImpl) runFlowsParallel(ctx context.Context, runID api.ID, cp *compiledPlan) ([]api.FlowResult, error) {
	slots := make([]*api.FlowResult, len(cp.flows))

	var g errgroup.Group
	g.SetLimit(e.maxParallelFlows)
	for i, cf := range cp.flows {
		g.Go(func() error {
			if ctx.Err() != nil {
				return api.ErrRunCancelled
			}
			fr, err := e.runFlow(ctx, runID, cf)
			slots[i] = &fr
			return err
		})
	}
	err := g.Wait()

	results := make([]api.FlowResult, 0, len(slots))
	for _, fr := range slots {
		if fr != nil {
			results = append(results, *fr)
		}
	}
	return results, err
}

func runErrorFor(err error) *api.RunError {
	var (
		pve    *api.PlanValidationError
		wiring *api.WiringError
	)
	switch {
	case errors.As(err, &pve):
		return &api.RunError{Type: api.RunErrorValidation, Message: err.Error(), Issues: pve.Issues}
	case errors.As(err, &wiring):
		return &api.RunError{Type: api.RunErrorWiring, Message: err.Error()}
	case errors.Is(err, api.ErrRunCancelled):
		return &api.RunError{Type: api.RunErrorCancelled, Message: cancelledMessage}
	default:
		return &api.RunError{Type: "Error", Message: err.Error()}
	}
}

func (e *engineImpl) GetRun(ctx context.Context, runID api.ID) (*api.RunRecord, error) {
	rec, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, persistence.ErrRunNotFound) {
			return nil, fmt.Errorf("run %s: %w", runID, api.ErrRunNotFound)
		}
		return nil, err
	}
	return rec, nil
}

func (e *engineImpl) ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.RunRecord, error) {
	return e.runs.ListRuns(ctx, persistence.RunFilter{
		ProjectID: opts.ProjectID,
		Status:    opts.Status,
	})
}

func (e *engineImpl) ListEvents(ctx context.Context, runID api.ID) ([]api.RunEvent, error) {
	return e.events.ListEvents(ctx, runID)
}
