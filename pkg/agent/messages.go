package agent

import "github.com/petrijr/keycase/pkg/api"

// MessageType identifies a message exchanged with the controller
type MessageType string

// Controller to agent
const (
	MessageExecute MessageType = "execute"
	MessageCancel  MessageType = "cancel"
)

// Agent to controller
const (
	MessageHello  MessageType = "hello"
	MessageResult MessageType = "result"
	MessageStatus MessageType = "status"
	MessageError  MessageType = "error"
)

type (
	// Message is the envelope for every websocket frame. Only the fields
	// relevant to Type are set
	Message struct {
		Type      MessageType        `json:"type"`
		ProjectID string             `json:"projectId,omitempty"`
		RunID     api.ID             `json:"runId,omitempty"`
		Plan      *api.ExecutionPlan `json:"executionPlan,omitempty"`
		Result    *api.RunResult     `json:"result,omitempty"`
		Hello     *Hello             `json:"hello,omitempty"`
		Status    *Status            `json:"status,omitempty"`
		Error     string             `json:"error,omitempty"`
	}

	// Hello introduces the agent after each connect
	Hello struct {
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		Capabilities []string `json:"capabilities"`
		Tags         []string `json:"tags"`
	}

	// Status reports whether the agent is executing runs
	Status struct {
		Busy       bool     `json:"busy"`
		ActiveRuns []api.ID `json:"activeRuns"`
	}
)
