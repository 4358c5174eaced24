// Package ledger defines the persistence contract (C1) for tenants,
// projects, graphs, agents, conversations, tasks, messages, artifacts, and
// API keys. Concrete backends live in the postgres and sqlite
// subpackages; both satisfy Store.
package ledger

import (
	"context"
	"errors"

	"github.com/kandev/agentrun/internal/ledger/models"
)

// ErrNotFound is returned for any lookup that misses — including, per
// spec.md §3's tenant-isolation invariant, a lookup that matches a row
// owned by a different tenant. Callers MUST NOT distinguish the two cases.
var ErrNotFound = errors.New("ledger: not found")

// ErrConflict names a create that would duplicate an existing id or
// relation. Neither the postgres nor the sqlite backend maps a duplicate-key
// failure to it: a duplicate create returns the driver's own error.
var ErrConflict = errors.New("ledger: conflict")

// Store is the full persistence contract consumed by the registry,
// conversation service, and task executor. All methods are tenant-scoped:
// implementations MUST filter by tenantId (and projectId/graphId where
// applicable) in the underlying query, never by an in-memory check after a
// broader fetch, so that cross-tenant rows are indistinguishable from
// rows that simply don't exist.
type Store interface {
	// Configuration reads (owned by the out-of-scope CRUD surface; the
	// runtime only reads these rows).
	GetProject(ctx context.Context, tenantID, projectID string) (*models.Project, error)
	GetGraph(ctx context.Context, tenantID, projectID, graphID string) (*models.Graph, error)
	GetAgent(ctx context.Context, tenantID, projectID, graphID, agentID string) (*models.Agent, error)
	ListAgentRelations(ctx context.Context, tenantID, projectID, graphID string) ([]*models.AgentRelation, error)
	GetTool(ctx context.Context, tenantID, projectID, toolID string) (*models.Tool, error)
	GetCredentialReference(ctx context.Context, tenantID, projectID, id string) (*models.CredentialReference, error)
	GetContextConfig(ctx context.Context, tenantID, projectID, graphID, id string) (*models.ContextConfig, error)

	// Conversation lifecycle (runtime-owned).
	GetConversation(ctx context.Context, tenantID, projectID, id string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	SetActiveAgent(ctx context.Context, tenantID, projectID, id, activeAgentID string) error

	// Task lifecycle (runtime-owned).
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, tenantID, projectID, id string) (*models.Task, error)
	UpdateTaskStatus(ctx context.Context, tenantID, projectID, id string, status models.TaskStatus, metadata models.TaskMetadata) error

	// Messages (runtime-owned, append-only).
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, tenantID, projectID, conversationID string) ([]*models.Message, error)

	// Artifacts (runtime-owned, append-only).
	CreateArtifact(ctx context.Context, artifact *models.Artifact) error
	ListArtifactsByTaskIDs(ctx context.Context, tenantID, projectID string, taskIDs []string) ([]*models.Artifact, error)

	// API keys.
	CreateAPIKey(ctx context.Context, key *models.ApiKey) error
	GetAPIKeyByPublicID(ctx context.Context, publicID string) (*models.ApiKey, error)
	GetAPIKey(ctx context.Context, tenantID, projectID, graphID, id string) (*models.ApiKey, error)
	DeleteAPIKey(ctx context.Context, tenantID, projectID, graphID, id string) error

	// TransferAndCompleteTask atomically updates the conversation's active
	// agent and marks the task completed — spec.md §5's "cross-row updates
	// (activeAgent + task status) SHOULD occur in one transaction".
	TransferAndCompleteTask(ctx context.Context, tenantID, projectID, conversationID, taskID, targetAgentID string, metadata models.TaskMetadata) error

	Close()
}
