package api

import "time"

// FlowState is the lifecycle state of a flow while a run is in progress.
// Only the terminal states appear in a FlowResult.
type FlowState string

const (
	FlowNotStarted FlowState = "NOT_STARTED"
	FlowRunning    FlowState = "RUNNING"
	FlowPassed     FlowState = "PASSED"
	FlowFailed     FlowState = "FAILED"
)

// RunStatus summarizes a whole run for storage and listing.
type RunStatus string

const (
	RunPassed RunStatus = "PASSED"
	RunFailed RunStatus = "FAILED"
	// RunErrored marks runs that never produced flow results or were cut short:
	// validation failures, wiring failures and cancellations.
	RunErrored RunStatus = "ERROR"
)

// Error types reported in RunError.Type.
const (
	RunErrorValidation = "PlanValidationError"
	RunErrorWiring     = "WiringError"
	RunErrorCancelled  = "RunCancelled"
)

// FlowResult is the outcome of one flow.
type FlowResult struct {
	FlowID         ID        `json:"flowId"`
	Name           string    `json:"name"`
	Status         FlowState `json:"status"`
	Message        *string   `json:"message"`
	FailedOnStepID *ID       `json:"failedOnStepId"`
}

// Passed reports whether the flow finished without any failing step.
func (r FlowResult) Passed() bool {
	return r.Status == FlowPassed
}

// RunError describes a failure of the run as a whole.
type RunError struct {
	Type    string   `json:"type"`
	Message string   `json:"message"`
	Issues  []string `json:"issues,omitempty"`
}

// RunResult is the outcome of executing a plan. FlowResults are always
// ordered by the flows' sequenceOrder.
type RunResult struct {
	RunID         ID           `json:"runId"`
	StartDateTime time.Time    `json:"startDateTime"`
	EndDateTime   time.Time    `json:"endDateTime"`
	FlowResults   []FlowResult `json:"flowResults"`
	Error         *RunError    `json:"error,omitempty"`
}

// Status derives the overall run status.
func (r *RunResult) Status() RunStatus {
	if r.Error != nil {
		return RunErrored
	}
	for _, fr := range r.FlowResults {
		if !fr.Passed() {
			return RunFailed
		}
	}
	return RunPassed
}

// Duration returns the wall-clock time the run took.
func (r *RunResult) Duration() time.Duration {
	return r.EndDateTime.Sub(r.StartDateTime)
}

// ResultDocument is the JSON envelope returned to controllers and written by
// the local runner.
type ResultDocument struct {
	Result *RunResult `json:"result"`
}

// RunRecord is what run stores persist for every executed plan.
type RunRecord struct {
	RunID     ID         `json:"runId"`
	ProjectID string     `json:"projectId"`
	PlanName  string     `json:"planName"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NewRunRecord builds a record for res.
func NewRunRecord(projectID, planName string, res *RunResult) *RunRecord {
	return &RunRecord{
		RunID:     res.RunID,
		ProjectID: projectID,
		PlanName:  planName,
		Status:    res.Status(),
		Result:    res,
		CreatedAt: res.StartDateTime,
	}
}

// RunListOptions filters run listings. Zero values mean "no filter".
type RunListOptions struct {
	ProjectID string
	Status    RunStatus
}
