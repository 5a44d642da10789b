package api

import "time"

// EventType identifies a run history event.
type EventType string

const (
	EventRunStarted   EventType = "run.started"
	EventRunCompleted EventType = "run.completed"
	EventRunRejected  EventType = "run.rejected"

	EventFlowStarted EventType = "flow.started"
	EventFlowPassed  EventType = "flow.passed"
	EventFlowFailed  EventType = "flow.failed"

	EventStepStarted EventType = "step.started"
	EventStepPassed  EventType = "step.passed"
	EventStepFailed  EventType = "step.failed"
)

// RunEvent is a small append-only audit record.
type RunEvent struct {
	RunID ID        `json:"runId"`
	At    time.Time `json:"at"`
	Type  EventType `json:"type"`

	FlowID  ID     `json:"flowId,omitempty"`
	StepID  ID     `json:"stepId,omitempty"`
	Keyword string `json:"keyword,omitempty"`

	// Short human-oriented detail such as a status or an error message.
	Detail string `json:"detail,omitempty"`
}
