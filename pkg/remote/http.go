package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/petrijr/keycase/pkg/keyword"
	"github.com/petrijr/keycase/pkg/log"
)

type (
	// InvokeRequest is the body POSTed to a keyword service.
	InvokeRequest struct {
		Keyword   string         `json:"keyword"`
		Arguments keyword.Values `json:"arguments"`
		Metadata  Metadata       `json:"metadata"`
	}

	// Metadata identifies the step an invocation belongs to.
	Metadata struct {
		RunID  string `json:"runId"`
		FlowID string `json:"flowId"`
		StepID string `json:"stepId"`
	}

	// HTTPInvoker calls a keyword service over HTTP. The service answers
	// with {"success": bool, "outputs": {...}, "error": "..."}; output
	// values of any JSON scalar type are taken as text.
	HTTPInvoker struct {
		endpoint   string
		httpClient *http.Client
	}
)

var (
	ErrInvocationUnsuccessful = errors.New("keyword service returned success=false")
	ErrHTTPStatus             = errors.New("keyword service returned HTTP error")
)

var _ keyword.Invoker = (*HTTPInvoker)(nil)

// NewHTTPInvoker returns an invoker posting to endpoint. A zero timeout
// leaves the step timeout as the only bound.
func NewHTTPInvoker(endpoint string, timeout time.Duration) *HTTPInvoker {
	return &HTTPInvoker{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPInvoker) Invoke(ctx context.Context, inv keyword.Invocation) (keyword.Values, error) {
	body, err := json.Marshal(InvokeRequest{
		Keyword:   inv.Keyword.Name,
		Arguments: inv.Inputs,
		Metadata: Metadata{
			RunID:  inv.RunID,
			FlowID: inv.FlowID,
			StepID: inv.StepID,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "keycase-agent/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "keyword request failed",
			log.StepID(inv.StepID),
			log.Keyword(inv.Keyword.Name),
			slog.Duration("duration", time.Since(start)),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		slog.ErrorContext(ctx, "keyword service HTTP error",
			log.StepID(inv.StepID),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)))
		return nil, fmt.Errorf("%w: HTTP %d", ErrHTTPStatus, resp.StatusCode)
	}

	return parseResponse(respBody)
}

func parseResponse(body []byte) (keyword.Values, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid response body: %q", body)
	}
	res := gjson.ParseBytes(body)

	if !res.Get("success").Bool() {
		if msg := res.Get("error").String(); msg != "" {
			return nil, errors.New(msg)
		}
		return nil, ErrInvocationUnsuccessful
	}

	out := keyword.Values{}
	res.Get("outputs").ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.Null {
			out[k.String()] = v.String()
		}
		return true
	})
	return out, nil
}
