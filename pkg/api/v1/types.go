// Package v1 defines the A2A (agent-to-agent) wire types exchanged over the
// JSON-RPC protocol layer: messages, tasks, artifacts, and the discovery
// AgentCard. These are pure data shapes; validation happens at the call
// site (internal/a2a) and the executor (internal/executor).
package v1

import "encoding/json"

// TaskState is the externally-visible lifecycle state of a Task.
type TaskState string

const (
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateCanceled  TaskState = "canceled"
	TaskStateFailed    TaskState = "failed"
)

// PartKind discriminates the two supported artifact/message part shapes.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindData PartKind = "data"
)

// Part is a tagged union: Kind selects which of Text/Data is populated.
type Part struct {
	Kind PartKind        `json:"kind"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TextPart constructs a text Part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// DataPart constructs a data Part from an arbitrary JSON-marshalable value.
func DataPart(v interface{}) (Part, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Part{}, err
	}
	return Part{Kind: PartKindData, Data: raw}, nil
}

// TransferData is the payload of a data Part with data.type == "transfer".
type TransferData struct {
	Type           string `json:"type"` // always "transfer"
	TargetAgentID  string `json:"targetAgentId"`
}

// DelegateData is the payload of a data Part with data.type == "delegate".
type DelegateData struct {
	Type          string `json:"type"` // always "delegate"
	TargetAgentID string `json:"targetAgentId"`
	ChildTaskID   string `json:"childTaskId"`
}

// Message is one turn of conversation content, as exchanged over A2A.
type Message struct {
	Role      string            `json:"role"` // "user" | "agent" | "system"
	Parts     []Part            `json:"parts"`
	ContextID string            `json:"contextId,omitempty"`
	TaskID    string            `json:"taskId,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Artifact is a structured output attached to a task.
type Artifact struct {
	ArtifactID  string `json:"artifactId"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Parts       []Part `json:"parts"`
}

// Task is the externally-visible snapshot of a task row plus its artifacts.
// Message/SessionID/FromAgentID/FromExternalAgentID are request-only input
// fields (never serialized) the A2A dispatcher fills in when handing a
// fresh turn to the executor; a response Task leaves them empty.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	State     TaskState  `json:"state"`
	Artifacts []Artifact `json:"artifacts,omitempty"`

	Message             *Message `json:"-"`
	SessionID           string   `json:"-"`
	FromAgentID         string   `json:"-"`
	FromExternalAgentID string   `json:"-"`
}

// TaskStatusUpdateEvent is an SSE frame payload announcing a task state
// transition without new artifact content.
type TaskStatusUpdateEvent struct {
	TaskID    string    `json:"taskId"`
	ContextID string    `json:"contextId"`
	State     TaskState `json:"state"`
	Final     bool      `json:"final"`
}

// TaskArtifactUpdateEvent is an SSE frame payload announcing a new or
// updated artifact on a task still in progress.
type TaskArtifactUpdateEvent struct {
	TaskID    string   `json:"taskId"`
	ContextID string   `json:"contextId"`
	Artifact  Artifact `json:"artifact"`
}

// AgentCapabilities advertises what an agent/graph supports.
type AgentCapabilities struct {
	Streaming bool `json:"streaming"`
}

// AgentProvider identifies who publishes an agent, per the A2A discovery
// convention.
type AgentProvider struct {
	Organization string `json:"organization,omitempty"`
	URL          string `json:"url,omitempty"`
}

// AgentCard is the public descriptor returned from
// `/agents/{graphId}/.well-known/agent.json`.
type AgentCard struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	URL          string            `json:"url"`
	Version      string            `json:"version"`
	Capabilities AgentCapabilities `json:"capabilities"`
	Provider     AgentProvider     `json:"provider,omitempty"`
}

// MessageSendConfiguration controls message/send behavior.
type MessageSendConfiguration struct {
	// Blocking, when true, waits for the turn to finish and returns a
	// Message; when false, returns a Task snapshot immediately. Default
	// per spec.md §4.6 is true for direct chat.
	Blocking bool `json:"blocking"`
}

// MessageSendParams is the params shape for message/send and message/stream.
type MessageSendParams struct {
	Message       Message                   `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
}

// TasksGetParams is the params shape for tasks/get.
type TasksGetParams struct {
	ID string `json:"id"`
}

// TasksCancelParams is the params shape for tasks/cancel.
type TasksCancelParams struct {
	ID string `json:"id"`
}

// TasksCancelResult is the result shape for tasks/cancel.
type TasksCancelResult struct {
	Success bool `json:"success"`
}

// TasksResubscribeParams is the params shape for tasks/resubscribe.
type TasksResubscribeParams struct {
	ID string `json:"id"`
}
