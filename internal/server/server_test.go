package server_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/keycase/internal/engine"
	"github.com/petrijr/keycase/internal/server"
	"github.com/petrijr/keycase/internal/taskqueue"
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
	"github.com/petrijr/keycase/pkg/keywords"
	"github.com/petrijr/keycase/pkg/remote"
	"github.com/petrijr/keycase/pkg/worker"
)

const samplePlan = `{
  "version": 1,
  "name": "Calculator Test",
  "runId": 123,
  "keywordInstances": [
    {"id": 1, "name": "Add", "keywordName": "calculator_postman", "params": [
      {"id": 1, "name": "num1", "direction": "INPUT", "isMandatory": false, "value": 5},
      {"id": 2, "name": "num2", "direction": "INPUT", "isMandatory": false, "value": 3},
      {"id": 3, "name": "return_sum", "direction": "OUTPUT", "isMandatory": false, "value": null}
    ]},
    {"id": 2, "name": "Validate", "keywordName": "calc_validation", "params": [
      {"id": 4, "name": "incoming_sum", "direction": "INPUT", "isMandatory": true, "value": null},
      {"id": 5, "name": "validation", "direction": "INPUT", "isMandatory": false, "value": "8"}
    ]}
  ],
  "flows": [
    {"id": 1, "sequenceOrder": 0, "name": "Calculate and Validate",
     "steps": [
       {"id": 1, "instanceId": 1, "sequenceOrder": 0},
       {"id": 2, "instanceId": 2, "sequenceOrder": 1}
     ],
     "connections": [
       {"id": 1, "fromStepId": 1, "toStepId": 2, "fromParamId": 3, "toParamId": 4}
     ]}
  ]
}`

type testEnv struct {
	router *gin.Engine
	engine api.Engine
	worker *worker.Worker
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEnv(t *testing.T, cfg server.Config) *testEnv {
	t.Helper()
	reg := keyword.NewRegistry()
	require.NoError(t, keywords.RegisterAll(reg))
	reg.Freeze()

	eng := engine.NewInMemoryEngine(reg)
	if cfg.Worker == nil {
		cfg.Worker = worker.New(eng, taskqueue.NewInMemoryQueue(16))
	}
	srv := server.NewServer(reg, eng, cfg)
	return &testEnv{router: srv.SetupRoutes(), engine: eng, worker: cfg.Worker}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func executeBody(projectID, runID string) string {
	return `{"projectId": "` + projectID + `", "runId": "` + runID + `", "executionPlan": ` + samplePlan + `}`
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, server.Config{Version: "2.0.0"})

	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	res := decode[server.HealthResponse](t, w)
	assert.Equal(t, server.DefaultService, res.Service)
	assert.Equal(t, "2.0.0", res.Version)
	assert.Equal(t, "healthy", res.Status)
	assert.False(t, res.Busy)
	assert.Equal(t, 16, res.Keywords)
}

func TestKeywordEndpoints(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	w := env.do(t, http.MethodGet, "/keywords", "")
	assert.Equal(t, http.StatusOK, w.Code)
	list := decode[server.KeywordsResponse](t, w)
	assert.Equal(t, 16, list.Count)

	w = env.do(t, http.MethodGet, "/keywords/Set%20Priority", "")
	assert.Equal(t, http.StatusOK, w.Code)
	schema := decode[keyword.Schema](t, w)
	require.Len(t, schema.Inputs, 1)
	assert.Equal(t, []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}, schema.Inputs[0].Choices)

	w = env.do(t, http.MethodGet, "/keywords/Nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[server.ErrorResponse](t, w).Error, "keyword not found: Nope")
}

func TestExecuteRun(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	w := env.do(t, http.MethodPost, "/runs", executeBody("p1", ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decode[api.ResultDocument](t, w)
	require.NotNil(t, doc.Result)
	assert.Equal(t, api.ID("123"), doc.Result.RunID)
	require.Len(t, doc.Result.FlowResults, 1)
	assert.Equal(t, api.FlowPassed, doc.Result.FlowResults[0].Status)

	w = env.do(t, http.MethodGet, "/runs/123", "")
	assert.Equal(t, http.StatusOK, w.Code)
	rec := decode[api.RunRecord](t, w)
	assert.Equal(t, "p1", rec.ProjectID)
	assert.Equal(t, api.RunPassed, rec.Status)

	w = env.do(t, http.MethodGet, "/runs/123/events", "")
	assert.Equal(t, http.StatusOK, w.Code)
	events := decode[server.EventsResponse](t, w)
	assert.NotZero(t, events.Count)
	assert.Equal(t, api.EventRunStarted, events.Events[0].Type)
}

func TestExecuteRun_ValidationFailureIsAResult(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	body := `{"runId": "bad", "executionPlan": {"keywordInstances": [{"id": 1, "keywordName": "Missing"}],
	  "flows": [{"id": 1, "steps": [{"id": 1, "instanceId": 1, "sequenceOrder": 1}]}]}}`
	w := env.do(t, http.MethodPost, "/runs", body)
	require.Equal(t, http.StatusOK, w.Code)

	doc := decode[api.ResultDocument](t, w)
	require.NotNil(t, doc.Result.Error)
	assert.Equal(t, api.RunErrorValidation, doc.Result.Error.Type)
	assert.Empty(t, doc.Result.FlowResults)
}

func TestExecuteRun_BadRequests(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	w := env.do(t, http.MethodPost, "/runs", `{"executionPlan": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[server.ErrorResponse](t, w).Error, "invalid JSON")

	w = env.do(t, http.MethodPost, "/runs", `{"projectId": "p"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, server.ErrMissingPlan.Error(), decode[server.ErrorResponse](t, w).Error)
}

func TestListRuns(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/runs", executeBody("a", "r1")).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/runs", executeBody("b", "r2")).Code)

	w := env.do(t, http.MethodGet, "/runs", "")
	assert.Equal(t, 2, decode[server.RunsResponse](t, w).Count)

	w = env.do(t, http.MethodGet, "/runs?projectId=b", "")
	runs := decode[server.RunsResponse](t, w)
	require.Equal(t, 1, runs.Count)
	assert.Equal(t, api.ID("r2"), runs.Runs[0].RunID)

	w = env.do(t, http.MethodGet, "/runs?status=FAILED", "")
	assert.Equal(t, 0, decode[server.RunsResponse](t, w).Count)

	w = env.do(t, http.MethodGet, "/runs/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnqueueRun(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	w := env.do(t, http.MethodPost, "/runs/async", executeBody("p", "queued-1"))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, api.ID("queued-1"), decode[server.RunAcceptedResponse](t, w).RunID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	processed, err := env.worker.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	w = env.do(t, http.MethodGet, "/runs/queued-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelRun_NotActive(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	w := env.do(t, http.MethodDelete, "/runs/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[server.ErrorResponse](t, w).Error, "run is not active")
}

func TestCompleteInvocation(t *testing.T) {
	ids := make(chan string, 1)
	inv := remote.NewAsyncInvoker(remote.DispatcherFunc(
		func(ctx context.Context, id string, _ keyword.Invocation) error {
			ids <- id
			return nil
		},
	))
	env := newTestEnv(t, server.Config{Completer: inv})

	type outcome struct {
		out keyword.Values
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := inv.Invoke(context.Background(), keyword.Invocation{
			Keyword: &keyword.Keyword{Name: "Remote"},
		})
		done <- outcome{out, err}
	}()

	var id string
	select {
	case id = <-ids:
	case <-time.After(time.Second):
		t.Fatal("invocation was not dispatched")
	}

	w := env.do(t, http.MethodPost, "/invocations/"+id+"/complete", `{"outputs": {"result": "8"}}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	select {
	case o := <-done:
		require.NoError(t, o.err)
		assert.Equal(t, keyword.Values{"result": "8"}, o.out)
	case <-time.After(time.Second):
		t.Fatal("invocation was not completed")
	}

	w = env.do(t, http.MethodPost, "/invocations/"+id+"/complete", `{"error": "late"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompleteInvocation_Disabled(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	w := env.do(t, http.MethodPost, "/invocations/x/complete", `{}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
