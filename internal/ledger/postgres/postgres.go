// Package postgres implements ledger.Store backed by PostgreSQL via
// github.com/jackc/pgx/v5, the primary deployment target. Built on the
// teacher's internal/common/database pgxpool wrapper.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kandev/agentrun/internal/common/config"
	"github.com/kandev/agentrun/internal/common/database"
	"github.com/kandev/agentrun/internal/ledger"
	"github.com/kandev/agentrun/internal/ledger/migrations"
	"github.com/kandev/agentrun/internal/ledger/models"
)

// Store is a PostgreSQL-backed ledger.Store.
type Store struct {
	db *database.DB
}

// Open connects to PostgreSQL using cfg and applies the embedded schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(ctx, migrations.Postgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	s.db.Close()
}

var _ ledger.Store = (*Store)(nil)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

// --- configuration reads ---

func (s *Store) GetProject(ctx context.Context, tenantID, projectID string) (*models.Project, error) {
	var p models.Project
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, id, name, description, default_model FROM projects WHERE tenant_id=$1 AND id=$2`,
		tenantID, projectID).Scan(&p.TenantID, &p.ID, &p.Name, &p.Description, &p.DefaultModel)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) GetGraph(ctx context.Context, tenantID, projectID, graphID string) (*models.Graph, error) {
	var g models.Graph
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, project_id, id, name, default_agent_id, default_model, stop_when_max_turns
		 FROM graphs WHERE tenant_id=$1 AND project_id=$2 AND id=$3`,
		tenantID, projectID, graphID).Scan(&g.TenantID, &g.ProjectID, &g.ID, &g.Name, &g.DefaultAgentID, &g.DefaultModel, &g.StopWhenMaxTurns)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (s *Store) GetAgent(ctx context.Context, tenantID, projectID, graphID, agentID string) (*models.Agent, error) {
	var a models.Agent
	var toolIDs []byte
	var histCfg []byte
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, project_id, graph_id, id, name, description, prompt, tool_ids, conversation_history_config
		 FROM agents WHERE tenant_id=$1 AND project_id=$2 AND graph_id=$3 AND id=$4`,
		tenantID, projectID, graphID, agentID).Scan(
		&a.TenantID, &a.ProjectID, &a.GraphID, &a.ID, &a.Name, &a.Description, &a.Prompt, &toolIDs, &histCfg)
	if err != nil {
		return nil, notFound(err)
	}
	if len(toolIDs) > 0 {
		if err := json.Unmarshal(toolIDs, &a.ToolIDs); err != nil {
			return nil, fmt.Errorf("decode tool_ids: %w", err)
		}
	}
	if len(histCfg) > 0 {
		var cfg models.ConversationHistoryConfig
		if err := json.Unmarshal(histCfg, &cfg); err != nil {
			return nil, fmt.Errorf("decode conversation_history_config: %w", err)
		}
		a.ConversationHistoryConfig = &cfg
	}
	return &a, nil
}

func (s *Store) ListAgentRelations(ctx context.Context, tenantID, projectID, graphID string) ([]*models.AgentRelation, error) {
	if _, err := s.GetGraph(ctx, tenantID, projectID, graphID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT graph_id, source_agent_id, target_agent_id, relation_type, external_agent_url
		 FROM agent_relations WHERE graph_id=$1`, graphID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.AgentRelation
	for rows.Next() {
		var r models.AgentRelation
		var relType string
		if err := rows.Scan(&r.GraphID, &r.SourceAgentID, &r.TargetAgentID, &relType, &r.ExternalAgentURL); err != nil {
			return nil, err
		}
		r.RelationType = models.RelationType(relType)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *Store) GetTool(ctx context.Context, tenantID, projectID, toolID string) (*models.Tool, error) {
	var t models.Tool
	var configRaw, availableRaw []byte
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, project_id, id, name, config, credential_reference_id, status, available_tools, last_health_check
		 FROM tools WHERE tenant_id=$1 AND project_id=$2 AND id=$3`,
		tenantID, projectID, toolID).Scan(
		&t.TenantID, &t.ProjectID, &t.ID, &t.Name, &configRaw, &t.CredentialReferenceID, &status, &availableRaw, &t.LastHealthCheck)
	if err != nil {
		return nil, notFound(err)
	}
	t.Status = models.ToolStatus(status)
	if err := json.Unmarshal(configRaw, &t.Config); err != nil {
		return nil, fmt.Errorf("decode tool config: %w", err)
	}
	if len(availableRaw) > 0 {
		t.AvailableTools = availableRaw
	}
	return &t, nil
}

func (s *Store) GetCredentialReference(ctx context.Context, tenantID, projectID, id string) (*models.CredentialReference, error) {
	var cr models.CredentialReference
	var params []byte
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, project_id, id, type, credential_store_id, retrieval_params
		 FROM credential_references WHERE tenant_id=$1 AND project_id=$2 AND id=$3`,
		tenantID, projectID, id).Scan(&cr.TenantID, &cr.ProjectID, &cr.ID, &cr.Type, &cr.CredentialStoreID, &params)
	if err != nil {
		return nil, notFound(err)
	}
	if len(params) > 0 {
		cr.RetrievalParams = params
	}
	return &cr, nil
}

func (s *Store) GetContextConfig(ctx context.Context, tenantID, projectID, graphID, id string) (*models.ContextConfig, error) {
	var cc models.ContextConfig
	var headers []byte
	var vars []byte
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, project_id, graph_id, id, headers_schema, context_variables
		 FROM context_configs WHERE tenant_id=$1 AND project_id=$2 AND graph_id=$3 AND id=$4`,
		tenantID, projectID, graphID, id).Scan(&cc.TenantID, &cc.ProjectID, &cc.GraphID, &cc.ID, &headers, &vars)
	if err != nil {
		return nil, notFound(err)
	}
	if len(headers) > 0 {
		cc.HeadersSchema = headers
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &cc.ContextVariables); err != nil {
			return nil, fmt.Errorf("decode context_variables: %w", err)
		}
	}
	return &cc, nil
}

// --- conversations ---

func (s *Store) GetConversation(ctx context.Context, tenantID, projectID, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, project_id, id, active_agent_id, title, created_at
		 FROM conversations WHERE tenant_id=$1 AND project_id=$2 AND id=$3`,
		tenantID, projectID, id).Scan(&c.TenantID, &c.ProjectID, &c.ID, &c.ActiveAgentID, &c.Title, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO conversations (tenant_id, project_id, id, active_agent_id, title, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		conv.TenantID, conv.ProjectID, conv.ID, conv.ActiveAgentID, conv.Title, conv.CreatedAt)
	return err
}

func (s *Store) SetActiveAgent(ctx context.Context, tenantID, projectID, id, activeAgentID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE conversations SET active_agent_id=$1 WHERE tenant_id=$2 AND project_id=$3 AND id=$4`,
		activeAgentID, tenantID, projectID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// --- tasks ---

func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	metaJSON, err := json.Marshal(task.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO tasks (tenant_id, project_id, graph_id, id, context_id, agent_id, status, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.TenantID, task.ProjectID, task.GraphID, task.ID, task.ContextID, task.AgentID,
		string(task.Status), metaJSON, task.CreatedAt, task.UpdatedAt)
	return err
}

func (s *Store) GetTask(ctx context.Context, tenantID, projectID, id string) (*models.Task, error) {
	var t models.Task
	var status string
	var metaRaw []byte
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, project_id, graph_id, id, context_id, agent_id, status, metadata, created_at, updated_at
		 FROM tasks WHERE tenant_id=$1 AND project_id=$2 AND id=$3`,
		tenantID, projectID, id).Scan(
		&t.TenantID, &t.ProjectID, &t.GraphID, &t.ID, &t.ContextID, &t.AgentID, &status, &metaRaw, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	t.Status = models.TaskStatus(status)
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode task metadata: %w", err)
		}
	}
	return &t, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, tenantID, projectID, id string, status models.TaskStatus, metadata models.TaskMetadata) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE tasks SET status=$1, metadata=$2, updated_at=$3 WHERE tenant_id=$4 AND project_id=$5 AND id=$6`,
		string(status), metaJSON, time.Now().UTC(), tenantID, projectID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// --- messages ---

func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	var meta []byte
	if len(msg.Metadata) > 0 {
		meta = msg.Metadata
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO messages (tenant_id, project_id, conversation_id, id, role, text, message_type, visibility,
		  from_agent_id, to_agent_id, from_external_agent_id, to_external_agent_id, task_id, a2a_task_id, metadata, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		msg.TenantID, msg.ProjectID, msg.ConversationID, msg.ID, string(msg.Role), msg.Text, string(msg.MessageType), string(msg.Visibility),
		msg.FromAgentID, msg.ToAgentID, msg.FromExternalAgentID, msg.ToExternalAgentID, msg.TaskID, msg.A2ATaskID,
		meta, msg.CreatedAt)
	return err
}

func (s *Store) ListMessages(ctx context.Context, tenantID, projectID, conversationID string) ([]*models.Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT tenant_id, project_id, conversation_id, id, role, text, message_type, visibility,
		  from_agent_id, to_agent_id, from_external_agent_id, to_external_agent_id, task_id, a2a_task_id, metadata, created_at
		 FROM messages WHERE tenant_id=$1 AND project_id=$2 AND conversation_id=$3 ORDER BY created_at ASC`,
		tenantID, projectID, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		var m models.Message
		var role, msgType, vis string
		var meta []byte
		if err := rows.Scan(&m.TenantID, &m.ProjectID, &m.ConversationID, &m.ID, &role, &m.Text, &msgType, &vis,
			&m.FromAgentID, &m.ToAgentID, &m.FromExternalAgentID, &m.ToExternalAgentID, &m.TaskID, &m.A2ATaskID, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = models.MessageRole(role)
		m.MessageType = models.MessageType(msgType)
		m.Visibility = models.MessageVisibility(vis)
		if len(meta) > 0 {
			m.Metadata = meta
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- artifacts ---

func (s *Store) CreateArtifact(ctx context.Context, artifact *models.Artifact) error {
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO artifacts (tenant_id, project_id, task_id, artifact_id, name, description, parts, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		artifact.TenantID, artifact.ProjectID, artifact.TaskID, artifact.ArtifactID,
		artifact.Name, artifact.Description, []byte(artifact.Parts), artifact.CreatedAt)
	return err
}

func (s *Store) ListArtifactsByTaskIDs(ctx context.Context, tenantID, projectID string, taskIDs []string) ([]*models.Artifact, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT tenant_id, project_id, task_id, artifact_id, name, description, parts, created_at
		 FROM artifacts WHERE tenant_id=$1 AND project_id=$2 AND task_id = ANY($3) ORDER BY created_at ASC`,
		tenantID, projectID, taskIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Artifact
	for rows.Next() {
		var a models.Artifact
		var parts []byte
		if err := rows.Scan(&a.TenantID, &a.ProjectID, &a.TaskID, &a.ArtifactID, &a.Name, &a.Description, &parts, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Parts = parts
		out = append(out, &a)
	}
	return out, rows.Err()
}

// --- API keys ---

func (s *Store) CreateAPIKey(ctx context.Context, key *models.ApiKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO api_keys (tenant_id, project_id, graph_id, id, public_id, key_hash, expires_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		key.TenantID, key.ProjectID, key.GraphID, key.ID, key.PublicID, key.KeyHash, key.ExpiresAt, key.CreatedAt)
	return err
}

func (s *Store) GetAPIKeyByPublicID(ctx context.Context, publicID string) (*models.ApiKey, error) {
	var k models.ApiKey
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, project_id, graph_id, id, public_id, key_hash, expires_at, created_at
		 FROM api_keys WHERE public_id=$1`, publicID).Scan(
		&k.TenantID, &k.ProjectID, &k.GraphID, &k.ID, &k.PublicID, &k.KeyHash, &k.ExpiresAt, &k.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &k, nil
}

func (s *Store) GetAPIKey(ctx context.Context, tenantID, projectID, graphID, id string) (*models.ApiKey, error) {
	var k models.ApiKey
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, project_id, graph_id, id, public_id, key_hash, expires_at, created_at
		 FROM api_keys WHERE tenant_id=$1 AND project_id=$2 AND graph_id=$3 AND id=$4`,
		tenantID, projectID, graphID, id).Scan(
		&k.TenantID, &k.ProjectID, &k.GraphID, &k.ID, &k.PublicID, &k.KeyHash, &k.ExpiresAt, &k.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &k, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, tenantID, projectID, graphID, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM api_keys WHERE tenant_id=$1 AND project_id=$2 AND graph_id=$3 AND id=$4`,
		tenantID, projectID, graphID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// --- combined transaction ---

func (s *Store) TransferAndCompleteTask(ctx context.Context, tenantID, projectID, conversationID, taskID, targetAgentID string, metadata models.TaskMetadata) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE conversations SET active_agent_id=$1 WHERE tenant_id=$2 AND project_id=$3 AND id=$4`,
			targetAgentID, tenantID, projectID, conversationID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ledger.ErrNotFound
		}

		tag, err = tx.Exec(ctx,
			`UPDATE tasks SET status=$1, metadata=$2, updated_at=$3 WHERE tenant_id=$4 AND project_id=$5 AND id=$6`,
			string(models.TaskStatusCompleted), metaJSON, time.Now().UTC(), tenantID, projectID, taskID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ledger.ErrNotFound
		}
		return nil
	})
}
