package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
)

type (
	// Config holds the agent's settings
	Config struct {
		// Controller
		HTTPURL           string
		AgentToken        string
		AgentName         string
		AgentVersion      string
		AgentCapabilities []string
		AgentTags         []string
		ReconnectBackoff  time.Duration

		// Logging
		LogLevel  string
		LogFormat string

		// API Server
		APIHost string
		APIPort int

		// Engine & Worker
		KeywordServiceURL string
		StepTimeout       time.Duration
		MaxParallelFlows  int
		WorkerConcurrency int
		QueueSize         int
		ShutdownTimeout   time.Duration

		// Store
		Store StoreConfig
	}

	// StoreConfig selects and configures the run store and task queue
	StoreConfig struct {
		Backend       string
		SQLitePath    string
		PostgresDSN   string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		RedisPrefix   string
		MongoURI      string
		MongoDatabase string
	}
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
)

const (
	DefaultAPIPort           = 8090
	DefaultAPIHost           = "0.0.0.0"
	DefaultAgentName         = "keycase-agent"
	DefaultAgentVersion      = "1.0.0"
	DefaultWorkerConcurrency = 1
	DefaultMaxParallelFlows  = 1
	DefaultQueueSize         = 1024
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReconnectBackoff  = 5 * time.Second
	DefaultSQLitePath        = "keycase.db"
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPrefix       = "keycase:"
	DefaultMongoDatabase     = "keycase"

	MaxTCPPort          = 65535
	MaxParallelFlows    = 256
	MaxWorkers          = 256
	MaxQueueSize        = 1_000_000
	MaxRedisDB          = 15
	MaxStepTimeoutMs    = 24 * 60 * 60 * 1000
	MaxDurationMs       = 60 * 60 * 1000
	redactedPlaceholder = "***"
)

var backends = []string{
	BackendMemory, BackendSQLite, BackendPostgres, BackendRedis, BackendMongo,
}

var (
	ErrInvalidAPIPort      = errors.New("invalid API port")
	ErrInvalidStepTimeout  = errors.New("step timeout cannot be negative")
	ErrInvalidWorkers      = errors.New("worker concurrency must be positive")
	ErrInvalidParallel     = errors.New("max parallel flows must be positive")
	ErrInvalidQueueSize    = errors.New("queue size must be positive")
	ErrInvalidBackend      = errors.New("invalid store backend")
	ErrMissingStoreSetting = errors.New("store backend setting missing")
	ErrMissingAgentToken   = errors.New("AGENT_TOKEN is required when HTTP_URL is set")
)

// NewDefaultConfig creates a configuration for a standalone agent with an
// in-memory store and no controller connection
func NewDefaultConfig() *Config {
	return &Config{
		AgentName:         DefaultAgentName,
		AgentVersion:      DefaultAgentVersion,
		ReconnectBackoff:  DefaultReconnectBackoff,
		LogLevel:          "info",
		LogFormat:         "json",
		APIHost:           DefaultAPIHost,
		APIPort:           DefaultAPIPort,
		MaxParallelFlows:  DefaultMaxParallelFlows,
		WorkerConcurrency: DefaultWorkerConcurrency,
		QueueSize:         DefaultQueueSize,
		ShutdownTimeout:   DefaultShutdownTimeout,
		Store: StoreConfig{
			Backend:       BackendMemory,
			SQLitePath:    DefaultSQLitePath,
			RedisAddr:     DefaultRedisAddr,
			RedisPrefix:   DefaultRedisPrefix,
			MongoDatabase: DefaultMongoDatabase,
		},
	}
}

// NewDevelopmentConfig returns the settings used when KEYCASE_ENV is
// "development": a controller on localhost and a placeholder token
func NewDevelopmentConfig() *Config {
	return &Config{
		HTTPURL:           "http://localhost:3000/api",
		AgentToken:        "agt_dev_token_here",
		AgentName:         "dev-agent-01",
		AgentVersion:      "1.0.0",
		AgentCapabilities: []string{"selenium", "api"},
		AgentTags:         []string{"development", "local"},
		LogLevel:          "debug",
		LogFormat:         "text",
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	loadEnvString("HTTP_URL", &c.HTTPURL)
	loadEnvString("AGENT_TOKEN", &c.AgentToken)
	loadEnvString("AGENT_NAME", &c.AgentName)
	loadEnvString("AGENT_VERSION", &c.AgentVersion)
	loadEnvList("AGENT_CAPABILITIES", &c.AgentCapabilities)
	loadEnvList("AGENT_TAGS", &c.AgentTags)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("LOG_FORMAT", &c.LogFormat)
	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("KEYWORD_SERVICE_URL", &c.KeywordServiceURL)

	loadEnvString("STORE_BACKEND", &c.Store.Backend)
	loadEnvString("SQLITE_PATH", &c.Store.SQLitePath)
	loadEnvString("POSTGRES_DSN", &c.Store.PostgresDSN)
	loadEnvString("REDIS_ADDR", &c.Store.RedisAddr)
	loadEnvString("REDIS_PASSWORD", &c.Store.RedisPassword)
	loadEnvString("REDIS_PREFIX", &c.Store.RedisPrefix)
	loadEnvString("MONGO_URI", &c.Store.MongoURI)
	loadEnvString("MONGO_DATABASE", &c.Store.MongoDatabase)

	ints := []struct {
		key      string
		dst      *int
		min, max int
	}{
		{"API_PORT", &c.APIPort, 0, MaxTCPPort},
		{"MAX_PARALLEL_FLOWS", &c.MaxParallelFlows, 0, MaxParallelFlows},
		{"WORKER_CONCURRENCY", &c.WorkerConcurrency, 0, MaxWorkers},
		{"QUEUE_SIZE", &c.QueueSize, 0, MaxQueueSize},
		{"REDIS_DB", &c.Store.RedisDB, -1, MaxRedisDB},
	}
	for _, i := range ints {
		if err := loadEnvInt(i.key, i.dst, i.min, i.max); err != nil {
			return err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
		max int64
	}{
		{"STEP_TIMEOUT", &c.StepTimeout, MaxStepTimeoutMs},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout, MaxDurationMs},
		{"RECONNECT_BACKOFF", &c.ReconnectBackoff, MaxDurationMs},
	}
	for _, d := range durations {
		if err := loadEnvMillis(d.key, d.dst, d.max); err != nil {
			return err
		}
	}

	return nil
}

// Merge overlays the non-zero fields of override onto c
func (c *Config) Merge(override *Config) error {
	if override == nil {
		return nil
	}
	return mergo.Merge(c, override, mergo.WithOverride)
}

// ControllerEnabled reports whether the agent should connect to a
// controller
func (c *Config) ControllerEnabled() bool {
	return c.HTTPURL != ""
}

// APIAddr returns the host:port the HTTP API listens on
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.StepTimeout < 0 {
		return ErrInvalidStepTimeout
	}
	if c.WorkerConcurrency <= 0 {
		return ErrInvalidWorkers
	}
	if c.MaxParallelFlows <= 0 {
		return ErrInvalidParallel
	}
	if c.QueueSize <= 0 {
		return ErrInvalidQueueSize
	}
	if c.ControllerEnabled() && c.AgentToken == "" {
		return ErrMissingAgentToken
	}
	return c.Store.Validate()
}

// Validate checks that the selected backend has what it needs to connect
func (s *StoreConfig) Validate() error {
	if !slices.Contains(backends, s.Backend) {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, s.Backend)
	}

	var missing string
	switch s.Backend {
	case BackendSQLite:
		if s.SQLitePath == "" {
			missing = "SQLITE_PATH"
		}
	case BackendPostgres:
		if s.PostgresDSN == "" {
			missing = "POSTGRES_DSN"
		}
	case BackendRedis:
		if s.RedisAddr == "" {
			missing = "REDIS_ADDR"
		}
	case BackendMongo:
		if s.MongoURI == "" {
			missing = "MONGO_URI"
		}
	}
	if missing != "" {
		return fmt.Errorf("%w: %s for %s", ErrMissingStoreSetting, missing, s.Backend)
	}
	return nil
}

// LogValue renders the config for logging with secrets masked
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_url", c.HTTPURL),
		slog.String("agent_token", redact(c.AgentToken)),
		slog.String("agent_name", c.AgentName),
		slog.String("agent_version", c.AgentVersion),
		slog.Any("agent_capabilities", c.AgentCapabilities),
		slog.Any("agent_tags", c.AgentTags),
		slog.String("log_level", c.LogLevel),
		slog.String("api_addr", c.APIAddr()),
		slog.String("keyword_service_url", c.KeywordServiceURL),
		slog.Duration("step_timeout", c.StepTimeout),
		slog.Int("max_parallel_flows", c.MaxParallelFlows),
		slog.Int("worker_concurrency", c.WorkerConcurrency),
		slog.String("store_backend", c.Store.Backend),
		slog.String("redis_password", redact(c.Store.RedisPassword)),
	)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return redactedPlaceholder
}

func loadEnvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// loadEnvList reads a comma separated list, dropping empty items
func loadEnvList(key string, dst *[]string) {
	s := os.Getenv(key)
	if s == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

// loadEnvMillis reads a duration given in milliseconds. Zero is allowed.
func loadEnvMillis(key string, dst *time.Duration, max int64) error {
	var ms int64
	if err := loadEnvInt(key, &ms, -1, max); err != nil {
		return err
	}
	if os.Getenv(key) != "" {
		*dst = time.Duration(ms) * time.Millisecond
	}
	return nil
}
