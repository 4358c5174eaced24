// Package models defines the relational entities persisted by the ledger
// store (internal/ledger), mirroring spec section 3 verbatim.
package models

import (
	"encoding/json"
	"time"
)

// Tenant is the top-level isolation boundary. It carries no other fields;
// every other row is scoped to one.
type Tenant struct {
	ID string `db:"id" json:"id"`
}

// Project belongs to a tenant.
type Project struct {
	TenantID    string `db:"tenant_id" json:"tenantId"`
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	// DefaultModel is the project-level default model identifier, overridable
	// per graph/agent.
	DefaultModel string `db:"default_model" json:"defaultModel,omitempty"`
}

// Graph is a topology of agents within a project, plus its stop conditions.
type Graph struct {
	TenantID       string `db:"tenant_id" json:"tenantId"`
	ProjectID      string `db:"project_id" json:"projectId"`
	ID             string `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	DefaultAgentID string `db:"default_agent_id" json:"defaultAgentId"`
	DefaultModel   string `db:"default_model" json:"defaultModel,omitempty"`
	// StopWhenMaxTurns caps the number of agent turns in one delegate chain
	// (the top-level turn plus nested delegated sub-tasks). A delegation past
	// the cap is refused with executor.ErrStopLimit, which the delegating
	// agent receives as a failed tool result; its own task carries on. Zero
	// selects the executor's default of 5.
	StopWhenMaxTurns int `db:"stop_when_max_turns" json:"stopWhenMaxTurns,omitempty"`
}

// ConversationHistoryConfig controls how C4 shapes history for an agent's
// prompt. Zero value is not valid on its own; callers should apply
// DefaultConversationHistoryConfig() when an agent hasn't overridden it.
type ConversationHistoryConfig struct {
	Mode             string   `json:"mode"` // "none" | "full" | "scoped"
	Limit            int      `json:"limit"`
	IncludeInternal  bool     `json:"includeInternal"`
	MessageTypes     []string `json:"messageTypes"`
	MaxOutputTokens  int      `json:"maxOutputTokens"`
}

// DefaultConversationHistoryConfig returns the spec.md §4.7 step-3 default.
func DefaultConversationHistoryConfig() ConversationHistoryConfig {
	return ConversationHistoryConfig{
		Mode:            "full",
		Limit:           50,
		IncludeInternal: true,
		MessageTypes:    []string{"chat"},
		MaxOutputTokens: 4000,
	}
}

// Agent is a configured role within a graph.
type Agent struct {
	TenantID                  string                     `db:"tenant_id" json:"tenantId"`
	ProjectID                 string                     `db:"project_id" json:"projectId"`
	GraphID                   string                     `db:"graph_id" json:"graphId"`
	ID                        string                     `db:"id" json:"id"`
	Name                      string                     `db:"name" json:"name"`
	Description               string                     `db:"description" json:"description"`
	Prompt                    string                     `db:"prompt" json:"prompt"`
	ToolIDs                   []string                   `db:"-" json:"toolIds,omitempty"`
	ConversationHistoryConfig *ConversationHistoryConfig `db:"-" json:"conversationHistoryConfig,omitempty"`
}

// RelationType discriminates an AgentRelation.
type RelationType string

const (
	RelationTransfer RelationType = "transfer"
	RelationDelegate RelationType = "delegate"
)

// AgentRelation is a directed edge in a graph's topology. When
// ExternalAgentURL is set, TargetAgentID addresses an out-of-graph agent
// reachable at that URL rather than a sibling Agent row.
type AgentRelation struct {
	GraphID          string       `db:"graph_id" json:"graphId"`
	SourceAgentID    string       `db:"source_agent_id" json:"sourceAgentId"`
	TargetAgentID    string       `db:"target_agent_id" json:"targetAgentId"`
	RelationType     RelationType `db:"relation_type" json:"relationType"`
	ExternalAgentURL string       `db:"external_agent_url" json:"externalAgentUrl,omitempty"`
}

// ToolStatus is the health state of a registered Tool.
type ToolStatus string

const (
	ToolStatusUnknown   ToolStatus = "unknown"
	ToolStatusHealthy   ToolStatus = "healthy"
	ToolStatusUnhealthy ToolStatus = "unhealthy"
	ToolStatusDisabled  ToolStatus = "disabled"
)

// ToolConfigKind discriminates Tool.Config's tagged variant.
type ToolConfigKind string

const (
	ToolConfigRemoteMCP ToolConfigKind = "remote_mcp"
	ToolConfigFunction  ToolConfigKind = "function"
)

// ToolConfig is a tagged union: Kind selects which of the remote-MCP or
// function-variant fields apply.
type ToolConfig struct {
	Kind ToolConfigKind `json:"kind"`

	// Remote MCP variant.
	ServerURL string `json:"serverUrl,omitempty"`

	// Function variant.
	ExecuteCode  string            `json:"executeCode,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	TimeoutSec   int               `json:"timeoutSec,omitempty"`
}

// Tool is a registered invocable capability, either a remote MCP server or
// sandboxed function code.
type Tool struct {
	TenantID             string          `db:"tenant_id" json:"tenantId"`
	ProjectID            string          `db:"project_id" json:"projectId"`
	ID                   string          `db:"id" json:"id"`
	Name                 string          `db:"name" json:"name"`
	Config               ToolConfig      `db:"-" json:"config"`
	CredentialReferenceID string         `db:"credential_reference_id" json:"credentialReferenceId,omitempty"`
	Status               ToolStatus      `db:"status" json:"status"`
	AvailableTools       json.RawMessage `db:"available_tools" json:"availableTools,omitempty"`
	LastHealthCheck      *time.Time      `db:"last_health_check" json:"lastHealthCheck,omitempty"`
}

// CredentialReference is opaque to the runtime; RetrievalParams is resolved
// by a pluggable CredentialStore (internal/credentials).
type CredentialReference struct {
	TenantID          string          `db:"tenant_id" json:"tenantId"`
	ProjectID         string          `db:"project_id" json:"projectId"`
	ID                string          `db:"id" json:"id"`
	Type              string          `db:"type" json:"type"`
	CredentialStoreID string          `db:"credential_store_id" json:"credentialStoreId"`
	RetrievalParams   json.RawMessage `db:"retrieval_params" json:"retrievalParams,omitempty"`
}

// ContextVariableTrigger discriminates when a ContextVariable is fetched.
type ContextVariableTrigger string

const (
	TriggerInitialization ContextVariableTrigger = "initialization"
	TriggerInvocation      ContextVariableTrigger = "invocation"
)

// ContextVariable describes one value resolved into the prompt context per
// spec.md §4.7 step 3.
type ContextVariable struct {
	Name         string                  `json:"name"`
	Trigger      ContextVariableTrigger  `json:"trigger"`
	FetchSpec    json.RawMessage         `json:"fetchSpec"`
	DefaultValue json.RawMessage         `json:"defaultValue,omitempty"`
}

// ContextConfig is a graph-scoped description of header validation and
// context variables available to its agents.
type ContextConfig struct {
	TenantID         string            `db:"tenant_id" json:"tenantId"`
	ProjectID        string            `db:"project_id" json:"projectId"`
	GraphID          string            `db:"graph_id" json:"graphId"`
	ID               string            `db:"id" json:"id"`
	HeadersSchema    json.RawMessage   `db:"headers_schema" json:"headersSchema,omitempty"`
	ContextVariables []ContextVariable `db:"-" json:"contextVariables,omitempty"`
}

// Conversation is a persistent thread. ActiveAgentID is the transfer target
// and survives across requests.
type Conversation struct {
	TenantID      string `db:"tenant_id" json:"tenantId"`
	ProjectID     string `db:"project_id" json:"projectId"`
	ID            string `db:"id" json:"id"`
	ActiveAgentID string `db:"active_agent_id" json:"activeAgentId"`
	Title         string `db:"title" json:"title,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// TaskStatus is the lifecycle state of a Task row.
type TaskStatus string

const (
	TaskStatusWorking   TaskStatus = "working"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCanceled  TaskStatus = "canceled"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskMetadata holds the free-form bookkeeping fields spec.md §3 groups
// under Task.metadata.
type TaskMetadata struct {
	MessageIDs      []string `json:"messageIds,omitempty"`
	StreamRequestID string   `json:"streamRequestId,omitempty"`
	FailureReason   string   `json:"failureReason,omitempty"`
}

// Task is one agent turn (or delegated sub-turn).
type Task struct {
	TenantID  string       `db:"tenant_id" json:"tenantId"`
	ProjectID string       `db:"project_id" json:"projectId"`
	GraphID   string       `db:"graph_id" json:"graphId"`
	ID        string       `db:"id" json:"id"`
	ContextID string       `db:"context_id" json:"contextId"`
	AgentID   string       `db:"agent_id" json:"agentId"`
	Status    TaskStatus   `db:"status" json:"status"`
	Metadata  TaskMetadata `db:"-" json:"metadata,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time    `db:"updated_at" json:"updatedAt"`
}

// MessageRole mirrors spec.md §3.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// MessageType mirrors spec.md §3.
type MessageType string

const (
	MessageTypeChat        MessageType = "chat"
	MessageTypeA2ARequest  MessageType = "a2a-request"
	MessageTypeA2AResponse MessageType = "a2a-response"
	MessageTypeSystem      MessageType = "system"
)

// MessageVisibility mirrors spec.md §3.
type MessageVisibility string

const (
	VisibilityUserFacing MessageVisibility = "user-facing"
	VisibilityInternal   MessageVisibility = "internal"
	VisibilityExternal   MessageVisibility = "external"
)

// Message is one entry in a conversation's ledger.
type Message struct {
	TenantID            string            `db:"tenant_id" json:"tenantId"`
	ProjectID           string            `db:"project_id" json:"projectId"`
	ConversationID      string            `db:"conversation_id" json:"conversationId"`
	ID                  string            `db:"id" json:"id"`
	Role                MessageRole       `db:"role" json:"role"`
	Text                string            `db:"text" json:"text"`
	MessageType         MessageType       `db:"message_type" json:"messageType"`
	Visibility          MessageVisibility `db:"visibility" json:"visibility"`
	FromAgentID         string            `db:"from_agent_id" json:"fromAgentId,omitempty"`
	ToAgentID           string            `db:"to_agent_id" json:"toAgentId,omitempty"`
	FromExternalAgentID string            `db:"from_external_agent_id" json:"fromExternalAgentId,omitempty"`
	ToExternalAgentID   string            `db:"to_external_agent_id" json:"toExternalAgentId,omitempty"`
	TaskID              string            `db:"task_id" json:"taskId,omitempty"`
	A2ATaskID           string            `db:"a2a_task_id" json:"a2aTaskId,omitempty"`
	Metadata            json.RawMessage   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt           time.Time         `db:"created_at" json:"createdAt"`
}

// Artifact is a structured output attached to a task.
type Artifact struct {
	TenantID    string          `db:"tenant_id" json:"tenantId"`
	ProjectID   string          `db:"project_id" json:"projectId"`
	TaskID      string          `db:"task_id" json:"taskId"`
	ArtifactID  string          `db:"artifact_id" json:"artifactId"`
	Name        string          `db:"name" json:"name,omitempty"`
	Description string          `db:"description" json:"description,omitempty"`
	Parts       json.RawMessage `db:"parts" json:"parts"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// ApiKey is stored as a salted hash plus a public prefix; the raw secret is
// returned exactly once, from the creation endpoint.
type ApiKey struct {
	TenantID  string     `db:"tenant_id" json:"tenantId"`
	ProjectID string     `db:"project_id" json:"projectId"`
	GraphID   string     `db:"graph_id" json:"graphId"`
	ID        string     `db:"id" json:"id"`
	PublicID  string     `db:"public_id" json:"publicId"` // 12-char prefix
	KeyHash   string     `db:"key_hash" json:"-"`          // bcrypt hash, never serialized
	ExpiresAt *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}
