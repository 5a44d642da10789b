package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/log"
	"github.com/petrijr/keycase/pkg/worker"
)

const (
	writeWait               = 10 * time.Second
	defaultReconnectBackoff = 5 * time.Second
)

var (
	// ErrNoWebSocketURL is returned when the controller issued credentials
	// without a websocket URL
	ErrNoWebSocketURL = errors.New("controller returned no websocket url")

	errNotConnected = errors.New("not connected to controller")
)

type (
	// Runner executes the plans the controller dispatches
	Runner interface {
		EnqueueExecute(
			ctx context.Context, projectID string, plan *api.ExecutionPlan,
			runID api.ID,
		) (api.ID, error)
		Cancel(runID api.ID) bool
		ActiveRuns() []api.ID
	}

	// TokenSource supplies access tokens and can be told to forget them
	TokenSource interface {
		Token() (*oauth2.Token, error)
		Invalidate()
	}

	// Config describes the agent to its controller
	Config struct {
		Name             string
		Version          string
		Capabilities     []string
		Tags             []string
		ReconnectBackoff time.Duration

		// Dialer defaults to websocket.DefaultDialer
		Dialer *websocket.Dialer

		// Logger defaults to slog.Default()
		Logger *slog.Logger
	}

	// Agent maintains the controller session and reports finished runs
	Agent struct {
		auth   TokenSource
		cfg    Config
		dialer *websocket.Dialer
		logger *slog.Logger

		mu      sync.Mutex
		conn    *websocket.Conn
		runner  Runner
		pending []Message
	}
)

var (
	_ Runner          = (*worker.Worker)(nil)
	_ TokenSource     = (*Authenticator)(nil)
	_ worker.Reporter = (*Agent)(nil)
)

// New creates an Agent. Pass it as the worker's Reporter, then call Run
// with that worker
func New(auth TokenSource, cfg Config) *Agent {
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaultReconnectBackoff
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		auth:   auth,
		cfg:    cfg,
		dialer: dialer,
		logger: logger,
	}
}

// Run keeps a controller session open until ctx is done, reconnecting
// after ReconnectBackoff whenever the session ends
func (a *Agent) Run(ctx context.Context, runner Runner) error {
	a.mu.Lock()
	a.runner = runner
	a.mu.Unlock()

	for {
		err := a.session(ctx, runner)
		if ctx.Err() != nil {
			return nil
		}
		a.logger.WarnContext(ctx, "Controller session ended",
			log.Error(err),
			slog.Duration("retry_in", a.cfg.ReconnectBackoff))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.cfg.ReconnectBackoff):
		}
	}
}

// Connected reports whether a controller session is open
func (a *Agent) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

// ReportResult sends a finished run to the controller, followed by a status
// update. Results are buffered while disconnected
func (a *Agent) ReportResult(
	ctx context.Context, projectID string, res *api.RunResult,
) error {
	err := a.deliver(Message{
		Type:      MessageResult,
		ProjectID: projectID,
		RunID:     res.RunID,
		Result:    res,
	})
	if err != nil {
		a.logger.DebugContext(ctx, "Result buffered until reconnect",
			log.RunID(res.RunID),
			log.Error(err))
	}

	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()
	if runner != nil {
		_ = a.send(a.status(runner, res.RunID))
	}
	return nil
}

func (a *Agent) session(ctx context.Context, runner Runner) error {
	tok, err := a.auth.Token()
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	creds := CredentialsFrom(tok)
	if creds.WebSocketURL == "" {
		return ErrNoWebSocketURL
	}

	header := http.Header{}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	conn, resp, err := a.dialer.DialContext(ctx, creds.WebSocketURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			a.auth.Invalidate()
		}
		return fmt.Errorf("connect %s: %w", creds.WebSocketURL, err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		a.mu.Lock()
		a.conn = nil
		a.mu.Unlock()
		_ = conn.Close()
	}()

	a.logger.InfoContext(ctx, "Connected to controller",
		slog.String("agent_id", creds.AgentID),
		slog.String("session_id", creds.SessionID))

	if err := a.send(Message{
		Type: MessageHello,
		Hello: &Hello{
			Name:         a.cfg.Name,
			Version:      a.cfg.Version,
			Capabilities: a.cfg.Capabilities,
			Tags:         a.cfg.Tags,
		},
	}); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	if err := a.flush(); err != nil {
		return fmt.Errorf("flush results: %w", err)
	}
	if err := a.send(a.status(runner, "")); err != nil {
		return fmt.Errorf("status: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		a.handle(ctx, runner, data)
	}
}

func (a *Agent) handle(ctx context.Context, runner Runner, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		a.logger.ErrorContext(ctx, "Failed to parse controller message",
			log.Error(err))
		_ = a.send(Message{Type: MessageError, Error: err.Error()})
		return
	}

	switch msg.Type {
	case MessageExecute:
		if msg.Plan == nil {
			_ = a.send(Message{
				Type:  MessageError,
				RunID: msg.RunID,
				Error: "execute message without executionPlan",
			})
			return
		}
		runID, err := runner.EnqueueExecute(
			ctx, msg.ProjectID, msg.Plan, msg.RunID,
		)
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to enqueue run",
				log.RunID(msg.RunID),
				log.Error(err))
			_ = a.send(Message{
				Type:  MessageError,
				RunID: msg.RunID,
				Error: err.Error(),
			})
			return
		}
		a.logger.InfoContext(ctx, "Run accepted",
			log.RunID(runID),
			log.ProjectID(msg.ProjectID))

	case MessageCancel:
		if !runner.Cancel(msg.RunID) {
			a.logger.DebugContext(ctx, "Cancel for run not executing",
				log.RunID(msg.RunID))
		}
		_ = a.send(a.status(runner, ""))

	default:
		a.logger.WarnContext(ctx, "Unknown controller message",
			slog.String("type", string(msg.Type)))
	}
}

// status describes the runner's active runs, leaving out a run that has
// just finished but is still being reported
func (a *Agent) status(runner Runner, finished api.ID) Message {
	active := slices.DeleteFunc(runner.ActiveRuns(), func(id api.ID) bool {
		return id == finished
	})
	slices.Sort(active)
	return Message{
		Type:   MessageStatus,
		Status: &Status{Busy: len(active) > 0, ActiveRuns: active},
	}
}

// deliver sends msg or buffers it for the next session
func (a *Agent) deliver(msg Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		a.pending = append(a.pending, msg)
		return errNotConnected
	}
	if err := a.write(msg); err != nil {
		a.pending = append(a.pending, msg)
		return err
	}
	return nil
}

func (a *Agent) send(msg Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return errNotConnected
	}
	return a.write(msg)
}

func (a *Agent) flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for len(a.pending) > 0 {
		if err := a.write(a.pending[0]); err != nil {
			return err
		}
		a.pending = a.pending[1:]
	}
	a.pending = nil
	return nil
}

// write must be called with mu held
func (a *Agent) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return a.conn.WriteMessage(websocket.TextMessage, data)
}
