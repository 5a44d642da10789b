package server

import (
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keyword"
)

type (
	// ErrorResponse is the body of every non-2xx reply
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}

	// HealthResponse reports liveness and worker state
	HealthResponse struct {
		Service    string   `json:"service"`
		Version    string   `json:"version"`
		Status     string   `json:"status"`
		Busy       bool     `json:"busy"`
		ActiveRuns []api.ID `json:"activeRuns"`
		Keywords   int      `json:"keywords"`
	}

	// KeywordsResponse lists registered keyword schemas
	KeywordsResponse struct {
		Keywords []keyword.Schema `json:"keywords"`
		Count    int              `json:"count"`
	}

	// ExecuteRequest asks for a plan to be executed
	ExecuteRequest struct {
		ProjectID string             `json:"projectId"`
		RunID     api.ID             `json:"runId"`
		Plan      *api.ExecutionPlan `json:"executionPlan"`
	}

	// RunAcceptedResponse is returned for queued executions
	RunAcceptedResponse struct {
		RunID api.ID `json:"runId"`
	}

	// RunsResponse lists stored runs
	RunsResponse struct {
		Runs  []*api.RunRecord `json:"runs"`
		Count int              `json:"count"`
	}

	// EventsResponse lists the audit events of a run
	EventsResponse struct {
		RunID  api.ID         `json:"runId"`
		Events []api.RunEvent `json:"events"`
		Count  int            `json:"count"`
	}

	// CompleteRequest resolves an asynchronous keyword invocation. A
	// non-empty Error fails the step
	CompleteRequest struct {
		Outputs keyword.Values `json:"outputs"`
		Error   string         `json:"error"`
	}
)
