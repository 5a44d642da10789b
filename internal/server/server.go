package server

import (
	"errors"
	"log/slog"
	"net/http"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
	"github.com/petrijr/keycase/pkg/worker"
)

type (
	// Server implements the HTTP API of the agent
	Server struct {
		registry  *keyword.Registry
		engine    api.Engine
		worker    *worker.Worker
		completer Completer
		service   string
		version   string
	}

	// Config wires optional collaborators into the server
	Config struct {
		// Worker enables queued execution and cancellation
		Worker *worker.Worker

		// Completer enables POST /invocations/:id/complete
		Completer Completer

		Service string
		Version string
	}

	// Completer resolves pending asynchronous keyword invocations
	Completer interface {
		Complete(invocationID string, outputs keyword.Values, errMsg string) error
	}
)

const (
	DefaultService = "keycase-agent"
	DefaultVersion = "1.0.0"
)

var (
	ErrInvalidJSON     = errors.New("invalid JSON")
	ErrMissingPlan     = errors.New("executionPlan is required")
	ErrNoWorker        = errors.New("queued execution is not enabled")
	ErrNoCompleter     = errors.New("asynchronous invocations are not enabled")
	ErrRunNotActive    = errors.New("run is not active on this agent")
	ErrKeywordNotFound = errors.New("keyword not found")
)

// NewServer creates a new HTTP API server
func NewServer(reg *keyword.Registry, eng api.Engine, cfg Config) *Server {
	s := &Server{
		registry:  reg,
		engine:    eng,
		worker:    cfg.Worker,
		completer: cfg.Completer,
		service:   cfg.Service,
		version:   cfg.Version,
	}
	if s.service == "" {
		s.service = DefaultService
	}
	if s.version == "" {
		s.version = DefaultVersion
	}
	return s
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	router.GET("/health", s.handleHealth)

	router.GET("/keywords", s.listKeywords)
	router.GET("/keywords/:name", s.getKeyword)

	runs := router.Group("/runs")
	{
		runs.POST("", s.executeRun)
		runs.POST("/async", s.enqueueRun)
		runs.GET("", s.listRuns)
		runs.GET("/:runID", s.getRun)
		runs.GET("/:runID/events", s.listRunEvents)
		runs.DELETE("/:runID", s.cancelRun)
	}

	router.POST("/invocations/:id/complete", s.completeInvocation)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	res := HealthResponse{
		Service:    s.service,
		Version:    s.version,
		Status:     "healthy",
		ActiveRuns: []api.ID{},
		Keywords:   s.registry.Len(),
	}
	if s.worker != nil {
		res.Busy = s.worker.Busy()
		res.ActiveRuns = append(res.ActiveRuns, s.worker.ActiveRuns()...)
	}
	c.JSON(http.StatusOK, res)
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}
