package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/petrijr/keycase/pkg/log"
)

const (
	authPath    = "/agents/auth"
	refreshPath = "/agents/refresh"

	extraAgentID        = "agent_id"
	extraOrganizationID = "organization_id"
	extraSessionID      = "session_id"
	extraWebSocketURL   = "ws_url"
)

var (
	// ErrAuthFailed is returned when the controller rejects the agent
	ErrAuthFailed = errors.New("agent authentication failed")

	// ErrMissingToken is returned when no agent token was configured
	ErrMissingToken = errors.New("agent token is required")
)

type (
	// Credentials are the session details issued alongside an access token
	Credentials struct {
		AgentID        string
		OrganizationID string
		SessionID      string
		WebSocketURL   string
	}

	// Authenticator exchanges the agent token for short-lived access tokens.
	// Tokens are cached until they expire; expired tokens are renewed with
	// the refresh token, falling back to a full authentication
	Authenticator struct {
		baseURL    string
		agentToken string
		client     *http.Client
		logger     *slog.Logger

		mu           sync.Mutex
		refreshToken string
		source       oauth2.TokenSource
	}

	authResponse struct {
		AgentID        string `json:"agentId"`
		OrganizationID string `json:"organizationId"`
		AccessToken    string `json:"accessToken"`
		RefreshToken   string `json:"refreshToken"`
		SessionID      string `json:"sessionId"`
		WebSocketURL   string `json:"wsUrl"`
		ExpiresIn      int    `json:"expiresIn"`
	}

	tokenSourceFunc func() (*oauth2.Token, error)
)

var _ oauth2.TokenSource = (*Authenticator)(nil)

// NewAuthenticator creates an Authenticator for the controller at baseURL.
// A nil client uses http.DefaultClient
func NewAuthenticator(
	baseURL, agentToken string, client *http.Client,
) *Authenticator {
	if client == nil {
		client = http.DefaultClient
	}
	a := &Authenticator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		agentToken: agentToken,
		client:     client,
		logger:     slog.Default(),
	}
	a.source = oauth2.ReuseTokenSource(nil, tokenSourceFunc(a.fetch))
	return a
}

func (f tokenSourceFunc) Token() (*oauth2.Token, error) {
	return f()
}

// Token returns a valid access token, contacting the controller only when
// the cached one has expired
func (a *Authenticator) Token() (*oauth2.Token, error) {
	a.mu.Lock()
	src := a.source
	a.mu.Unlock()
	return src.Token()
}

// Invalidate drops the cached access token so the next Token call contacts
// the controller again
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = oauth2.ReuseTokenSource(nil, tokenSourceFunc(a.fetch))
}

// CredentialsFrom extracts the session details carried by a token issued
// by an Authenticator
func CredentialsFrom(tok *oauth2.Token) Credentials {
	str := func(key string) string {
		s, _ := tok.Extra(key).(string)
		return s
	}
	return Credentials{
		AgentID:        str(extraAgentID),
		OrganizationID: str(extraOrganizationID),
		SessionID:      str(extraSessionID),
		WebSocketURL:   str(extraWebSocketURL),
	}
}

func (a *Authenticator) fetch() (*oauth2.Token, error) {
	if a.agentToken == "" {
		return nil, ErrMissingToken
	}

	a.mu.Lock()
	refresh := a.refreshToken
	a.mu.Unlock()

	if refresh != "" {
		tok, err := a.post(refreshPath, map[string]string{
			"refreshToken": refresh,
		})
		if err == nil {
			return tok, nil
		}
		a.logger.Warn("Token refresh failed, re-authenticating",
			log.Error(err))
	}

	return a.post(authPath, map[string]string{"token": a.agentToken})
}

func (a *Authenticator) post(path string, body any) (*oauth2.Token, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d",
			ErrAuthFailed, path, resp.StatusCode)
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", path, err)
	}
	if ar.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s returned no access token",
			ErrAuthFailed, path)
	}

	a.mu.Lock()
	a.refreshToken = ar.RefreshToken
	a.mu.Unlock()

	tok := &oauth2.Token{
		AccessToken:  ar.AccessToken,
		RefreshToken: ar.RefreshToken,
		TokenType:    "Bearer",
	}
	if ar.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(ar.ExpiresIn) * time.Second)
	}
	return tok.WithExtra(map[string]any{
		extraAgentID:        ar.AgentID,
		extraOrganizationID: ar.OrganizationID,
		extraSessionID:      ar.SessionID,
		extraWebSocketURL:   ar.WebSocketURL,
	}), nil
}
