// Command keycase-agent runs the keyword execution agent: a worker pool, the
// HTTP API and, when HTTP_URL is set, the controller connection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/petrijr/keycase"
	"github.com/petrijr/keycase/internal/backend"
	"github.com/petrijr/keycase/internal/config"
	"github.com/petrijr/keycase/internal/engine"
	"github.com/petrijr/keycase/internal/server"
	"github.com/petrijr/keycase/pkg/agent"
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
	"github.com/petrijr/keycase/pkg/keywords"
	"github.com/petrijr/keycase/pkg/log"
	"github.com/petrijr/keycase/pkg/remote"
	"github.com/petrijr/keycase/pkg/worker"
)

const (
	appName    = "keycase-agent"
	appVersion = "1.0.0"
)

type keycaseAgent struct {
	cfg        *config.Config
	registry   *keyword.Registry
	backend    *backend.Backend
	engine     api.Engine
	worker     *worker.Worker
	agent      *agent.Agent
	httpServer *http.Server
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	quit       chan os.Signal
}

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &keycaseAgent{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start agent", log.Error(err))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if os.Getenv("KEYCASE_ENV") == "development" {
		if err := cfg.Merge(config.NewDevelopmentConfig()); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *keycaseAgent) run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()

	if err := s.initializeRegistry(); err != nil {
		return err
	}
	if err := s.initializeBackend(ctx); err != nil {
		return err
	}
	s.initializeEngine()
	s.startWorkers(ctx)
	s.startServer()
	s.startAgent(ctx)

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *keycaseAgent) setupLogging() {
	level := log.ParseLevel(s.cfg.LogLevel)
	env := os.Getenv("KEYCASE_ENV")
	logger := log.NewWithOptions(
		os.Stdout, s.cfg.LogFormat, appName, env, appVersion, level,
	)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("KeyCase agent starting",
		slog.String("log_level", s.cfg.LogLevel))
	slog.Info("Configuration loaded", slog.Any("config", s.cfg))
}

func (s *keycaseAgent) initializeRegistry() error {
	s.registry = keycase.NewRegistry()
	if err := keywords.RegisterAll(s.registry); err != nil {
		return fmt.Errorf("register keywords: %w", err)
	}
	s.registry.Freeze()
	slog.Info("Keywords registered",
		slog.Int("count", s.registry.Len()))
	return nil
}

func (s *keycaseAgent) initializeBackend(ctx context.Context) error {
	b, err := backend.Open(ctx, s.cfg.Store, s.cfg.QueueSize)
	if err != nil {
		return fmt.Errorf("open %s store: %w", s.cfg.Store.Backend, err)
	}
	s.backend = b
	slog.Info("Store opened", slog.String("backend", b.Name))
	return nil
}

func (s *keycaseAgent) initializeEngine() {
	var invoker keyword.Invoker
	if s.cfg.KeywordServiceURL != "" {
		invoker = remote.NewHTTPInvoker(s.cfg.KeywordServiceURL, s.cfg.StepTimeout)
		slog.Info("Keywords invoked remotely",
			slog.String("url", s.cfg.KeywordServiceURL))
	}

	s.engine = engine.NewEngineWithConfig(s.registry, engine.Config{
		Persistence:      s.backend.Persistence,
		Observer:         api.NewLoggingObserver(slog.Default()),
		Invoker:          invoker,
		StepTimeout:      s.cfg.StepTimeout,
		MaxParallelFlows: s.cfg.MaxParallelFlows,
	})

	var reporter worker.Reporter
	if s.cfg.ControllerEnabled() {
		auth := agent.NewAuthenticator(s.cfg.HTTPURL, s.cfg.AgentToken, nil)
		s.agent = agent.New(auth, agent.Config{
			Name:             s.cfg.AgentName,
			Version:          s.cfg.AgentVersion,
			Capabilities:     s.cfg.AgentCapabilities,
			Tags:             s.cfg.AgentTags,
			ReconnectBackoff: s.cfg.ReconnectBackoff,
		})
		reporter = s.agent
	}
	s.worker = worker.NewWithConfig(s.engine, s.backend.Queue, worker.Config{
		Reporter: reporter,
	})
}

func (s *keycaseAgent) startWorkers(ctx context.Context) {
	for range s.cfg.WorkerConcurrency {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			keycase.RunWorkerLoop(ctx, s.worker)
		}()
	}
	slog.Info("Workers started",
		slog.Int("concurrency", s.cfg.WorkerConcurrency))
}

func (s *keycaseAgent) startServer() {
	apiServer := server.NewServer(s.registry, s.engine, server.Config{
		Worker:  s.worker,
		Service: appName,
		Version: appVersion,
	})

	s.httpServer = &http.Server{
		Addr:    s.cfg.APIAddr(),
		Handler: apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *keycaseAgent) startAgent(ctx context.Context) {
	if s.agent == nil {
		slog.Info("HTTP_URL not set, running without a controller")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.agent.Run(ctx, s.worker); err != nil {
			slog.Error("Controller connection stopped", log.Error(err))
		}
	}()
}

func (s *keycaseAgent) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	for _, runID := range s.worker.ActiveRuns() {
		s.worker.Cancel(runID)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Workers did not stop before the shutdown timeout")
	}

	if err := s.backend.Close(ctx); err != nil {
		slog.Error("Store shutdown failed", log.Error(err))
	}

	slog.Info("Agent exited")
}
