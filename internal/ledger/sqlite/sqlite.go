// Package sqlite implements ledger.Store backed by SQLite
// (github.com/mattn/go-sqlite3 via github.com/jmoiron/sqlx), for local
// development and tests. Adapted from the teacher's
// internal/common/sqlite helpers and its dual sqlite/postgres persistence
// pattern.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kandev/agentrun/internal/ledger"
	"github.com/kandev/agentrun/internal/ledger/migrations"
	"github.com/kandev/agentrun/internal/ledger/models"
)

// Store is a SQLite-backed ledger.Store.
type Store struct {
	db *sqlx.DB
}

// Open creates (if needed) the SQLite database at path and applies the
// embedded schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // go-sqlite3 + WAL-less single-file: serialize writers
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, migrations.SQLite); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	_ = s.db.Close()
}

var _ ledger.Store = (*Store)(nil)

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

// --- configuration reads ---

func (s *Store) GetProject(ctx context.Context, tenantID, projectID string) (*models.Project, error) {
	var p models.Project
	err := s.db.GetContext(ctx, &p,
		`SELECT tenant_id, id, name, description, default_model FROM projects WHERE tenant_id=? AND id=?`,
		tenantID, projectID)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) GetGraph(ctx context.Context, tenantID, projectID, graphID string) (*models.Graph, error) {
	var g models.Graph
	err := s.db.GetContext(ctx, &g,
		`SELECT tenant_id, project_id, id, name, default_agent_id, default_model, stop_when_max_turns
		 FROM graphs WHERE tenant_id=? AND project_id=? AND id=?`,
		tenantID, projectID, graphID)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

type agentRow struct {
	TenantID                  string         `db:"tenant_id"`
	ProjectID                 string         `db:"project_id"`
	GraphID                   string         `db:"graph_id"`
	ID                        string         `db:"id"`
	Name                      string         `db:"name"`
	Description               string         `db:"description"`
	Prompt                    string         `db:"prompt"`
	ToolIDs                   string         `db:"tool_ids"`
	ConversationHistoryConfig sql.NullString `db:"conversation_history_config"`
}

func (r agentRow) toModel() (*models.Agent, error) {
	a := &models.Agent{
		TenantID:    r.TenantID,
		ProjectID:   r.ProjectID,
		GraphID:     r.GraphID,
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Prompt:      r.Prompt,
	}
	if r.ToolIDs != "" {
		if err := json.Unmarshal([]byte(r.ToolIDs), &a.ToolIDs); err != nil {
			return nil, fmt.Errorf("decode tool_ids: %w", err)
		}
	}
	if r.ConversationHistoryConfig.Valid && r.ConversationHistoryConfig.String != "" {
		var cfg models.ConversationHistoryConfig
		if err := json.Unmarshal([]byte(r.ConversationHistoryConfig.String), &cfg); err != nil {
			return nil, fmt.Errorf("decode conversation_history_config: %w", err)
		}
		a.ConversationHistoryConfig = &cfg
	}
	return a, nil
}

func (s *Store) GetAgent(ctx context.Context, tenantID, projectID, graphID, agentID string) (*models.Agent, error) {
	var row agentRow
	err := s.db.GetContext(ctx, &row,
		`SELECT tenant_id, project_id, graph_id, id, name, description, prompt, tool_ids, conversation_history_config
		 FROM agents WHERE tenant_id=? AND project_id=? AND graph_id=? AND id=?`,
		tenantID, projectID, graphID, agentID)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

func (s *Store) ListAgentRelations(ctx context.Context, tenantID, projectID, graphID string) ([]*models.AgentRelation, error) {
	// agent_relations has no tenant column of its own; graphs are
	// tenant-scoped, so verifying the graph exists under this
	// tenant/project first enforces the isolation invariant.
	if _, err := s.GetGraph(ctx, tenantID, projectID, graphID); err != nil {
		return nil, err
	}
	var rels []*models.AgentRelation
	err := s.db.SelectContext(ctx, &rels,
		`SELECT graph_id, source_agent_id, target_agent_id, relation_type, external_agent_url
		 FROM agent_relations WHERE graph_id=?`, graphID)
	if err != nil {
		return nil, err
	}
	return rels, nil
}

type toolRow struct {
	TenantID              string         `db:"tenant_id"`
	ProjectID             string         `db:"project_id"`
	ID                    string         `db:"id"`
	Name                  string         `db:"name"`
	Config                string         `db:"config"`
	CredentialReferenceID string         `db:"credential_reference_id"`
	Status                string         `db:"status"`
	AvailableTools        sql.NullString `db:"available_tools"`
	LastHealthCheck       sql.NullTime   `db:"last_health_check"`
}

func (r toolRow) toModel() (*models.Tool, error) {
	t := &models.Tool{
		TenantID:              r.TenantID,
		ProjectID:             r.ProjectID,
		ID:                    r.ID,
		Name:                  r.Name,
		CredentialReferenceID: r.CredentialReferenceID,
		Status:                models.ToolStatus(r.Status),
	}
	if err := json.Unmarshal([]byte(r.Config), &t.Config); err != nil {
		return nil, fmt.Errorf("decode tool config: %w", err)
	}
	if r.AvailableTools.Valid {
		t.AvailableTools = json.RawMessage(r.AvailableTools.String)
	}
	if r.LastHealthCheck.Valid {
		t.LastHealthCheck = &r.LastHealthCheck.Time
	}
	return t, nil
}

func (s *Store) GetTool(ctx context.Context, tenantID, projectID, toolID string) (*models.Tool, error) {
	var row toolRow
	err := s.db.GetContext(ctx, &row,
		`SELECT tenant_id, project_id, id, name, config, credential_reference_id, status, available_tools, last_health_check
		 FROM tools WHERE tenant_id=? AND project_id=? AND id=?`,
		tenantID, projectID, toolID)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

func (s *Store) GetCredentialReference(ctx context.Context, tenantID, projectID, id string) (*models.CredentialReference, error) {
	var row struct {
		TenantID          string         `db:"tenant_id"`
		ProjectID         string         `db:"project_id"`
		ID                string         `db:"id"`
		Type              string         `db:"type"`
		CredentialStoreID string         `db:"credential_store_id"`
		RetrievalParams   sql.NullString `db:"retrieval_params"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT tenant_id, project_id, id, type, credential_store_id, retrieval_params
		 FROM credential_references WHERE tenant_id=? AND project_id=? AND id=?`,
		tenantID, projectID, id)
	if err != nil {
		return nil, notFound(err)
	}
	cr := &models.CredentialReference{
		TenantID:          row.TenantID,
		ProjectID:         row.ProjectID,
		ID:                row.ID,
		Type:              row.Type,
		CredentialStoreID: row.CredentialStoreID,
	}
	if row.RetrievalParams.Valid {
		cr.RetrievalParams = json.RawMessage(row.RetrievalParams.String)
	}
	return cr, nil
}

func (s *Store) GetContextConfig(ctx context.Context, tenantID, projectID, graphID, id string) (*models.ContextConfig, error) {
	var row struct {
		TenantID         string         `db:"tenant_id"`
		ProjectID        string         `db:"project_id"`
		GraphID          string         `db:"graph_id"`
		ID               string         `db:"id"`
		HeadersSchema    sql.NullString `db:"headers_schema"`
		ContextVariables string         `db:"context_variables"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT tenant_id, project_id, graph_id, id, headers_schema, context_variables
		 FROM context_configs WHERE tenant_id=? AND project_id=? AND graph_id=? AND id=?`,
		tenantID, projectID, graphID, id)
	if err != nil {
		return nil, notFound(err)
	}
	cc := &models.ContextConfig{
		TenantID:  row.TenantID,
		ProjectID: row.ProjectID,
		GraphID:   row.GraphID,
		ID:        row.ID,
	}
	if row.HeadersSchema.Valid {
		cc.HeadersSchema = json.RawMessage(row.HeadersSchema.String)
	}
	if row.ContextVariables != "" {
		if err := json.Unmarshal([]byte(row.ContextVariables), &cc.ContextVariables); err != nil {
			return nil, fmt.Errorf("decode context_variables: %w", err)
		}
	}
	return cc, nil
}

// --- conversations ---

func (s *Store) GetConversation(ctx context.Context, tenantID, projectID, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.GetContext(ctx, &c,
		`SELECT tenant_id, project_id, id, active_agent_id, title, created_at
		 FROM conversations WHERE tenant_id=? AND project_id=? AND id=?`,
		tenantID, projectID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (tenant_id, project_id, id, active_agent_id, title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conv.TenantID, conv.ProjectID, conv.ID, conv.ActiveAgentID, conv.Title, conv.CreatedAt)
	return err
}

func (s *Store) SetActiveAgent(ctx context.Context, tenantID, projectID, id, activeAgentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET active_agent_id=? WHERE tenant_id=? AND project_id=? AND id=?`,
		activeAgentID, tenantID, projectID, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (tenant_id, project_id, graph_id, id, context_id, agent_id, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TenantID, task.ProjectID, task.GraphID, task.ID, task.ContextID, task.AgentID,
		task.Status, string(metaJSON), task.CreatedAt, task.UpdatedAt)
	return err
}

type taskRow struct {
	TenantID  string    `db:"tenant_id"`
	ProjectID string    `db:"project_id"`
	GraphID   string    `db:"graph_id"`
	ID        string    `db:"id"`
	ContextID string    `db:"context_id"`
	AgentID   string    `db:"agent_id"`
	Status    string    `db:"status"`
	Metadata  string    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r taskRow) toModel() (*models.Task, error) {
	t := &models.Task{
		TenantID:  r.TenantID,
		ProjectID: r.ProjectID,
		GraphID:   r.GraphID,
		ID:        r.ID,
		ContextID: r.ContextID,
		AgentID:   r.AgentID,
		Status:    models.TaskStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode task metadata: %w", err)
		}
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, tenantID, projectID, id string) (*models.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row,
		`SELECT tenant_id, project_id, graph_id, id, context_id, agent_id, status, metadata, created_at, updated_at
		 FROM tasks WHERE tenant_id=? AND project_id=? AND id=?`,
		tenantID, projectID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

func (s *Store) UpdateTaskStatus(ctx context.Context, tenantID, projectID, id string, status models.TaskStatus, metadata models.TaskMetadata) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status=?, metadata=?, updated_at=? WHERE tenant_id=? AND project_id=? AND id=?`,
		status, string(metaJSON), time.Now().UTC(), tenantID, projectID, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// --- messages ---

func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	var metaStr sql.NullString
	if len(msg.Metadata) > 0 {
		metaStr = sql.NullString{String: string(msg.Metadata), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (tenant_id, project_id, conversation_id, id, role, text, message_type, visibility,
		  from_agent_id, to_agent_id, from_external_agent_id, to_external_agent_id, task_id, a2a_task_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.TenantID, msg.ProjectID, msg.ConversationID, msg.ID, msg.Role, msg.Text, msg.MessageType, msg.Visibility,
		msg.FromAgentID, msg.ToAgentID, msg.FromExternalAgentID, msg.ToExternalAgentID, msg.TaskID, msg.A2ATaskID,
		metaStr, msg.CreatedAt)
	return err
}

func (s *Store) ListMessages(ctx context.Context, tenantID, projectID, conversationID string) ([]*models.Message, error) {
	var rows []struct {
		models.Message
		Metadata sql.NullString `db:"metadata"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT tenant_id, project_id, conversation_id, id, role, text, message_type, visibility,
		  from_agent_id, to_agent_id, from_external_agent_id, to_external_agent_id, task_id, a2a_task_id, metadata, created_at
		 FROM messages WHERE tenant_id=? AND project_id=? AND conversation_id=? ORDER BY created_at ASC`,
		tenantID, projectID, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Message, 0, len(rows))
	for _, r := range rows {
		m := r.Message
		if r.Metadata.Valid {
			m.Metadata = json.RawMessage(r.Metadata.String)
		}
		mCopy := m
		out = append(out, &mCopy)
	}
	return out, nil
}

// --- artifacts ---

func (s *Store) CreateArtifact(ctx context.Context, artifact *models.Artifact) error {
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (tenant_id, project_id, task_id, artifact_id, name, description, parts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.TenantID, artifact.ProjectID, artifact.TaskID, artifact.ArtifactID,
		artifact.Name, artifact.Description, string(artifact.Parts), artifact.CreatedAt)
	return err
}

func (s *Store) ListArtifactsByTaskIDs(ctx context.Context, tenantID, projectID string, taskIDs []string) ([]*models.Artifact, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT tenant_id, project_id, task_id, artifact_id, name, description, parts, created_at
		 FROM artifacts WHERE tenant_id=? AND project_id=? AND task_id IN (?) ORDER BY created_at ASC`,
		tenantID, projectID, taskIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)
	var artifacts []*models.Artifact
	err = s.db.SelectContext(ctx, &artifacts, query, args...)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

// --- API keys ---

func (s *Store) CreateAPIKey(ctx context.Context, key *models.ApiKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (tenant_id, project_id, graph_id, id, public_id, key_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.TenantID, key.ProjectID, key.GraphID, key.ID, key.PublicID, key.KeyHash, key.ExpiresAt, key.CreatedAt)
	return err
}

func (s *Store) GetAPIKeyByPublicID(ctx context.Context, publicID string) (*models.ApiKey, error) {
	var k models.ApiKey
	err := s.db.GetContext(ctx, &k,
		`SELECT tenant_id, project_id, graph_id, id, public_id, key_hash, expires_at, created_at
		 FROM api_keys WHERE public_id=?`, publicID)
	if err != nil {
		return nil, notFound(err)
	}
	return &k, nil
}

func (s *Store) GetAPIKey(ctx context.Context, tenantID, projectID, graphID, id string) (*models.ApiKey, error) {
	var k models.ApiKey
	err := s.db.GetContext(ctx, &k,
		`SELECT tenant_id, project_id, graph_id, id, public_id, key_hash, expires_at, created_at
		 FROM api_keys WHERE tenant_id=? AND project_id=? AND graph_id=? AND id=?`,
		tenantID, projectID, graphID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &k, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, tenantID, projectID, graphID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE tenant_id=? AND project_id=? AND graph_id=? AND id=?`,
		tenantID, projectID, graphID, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// --- combined transaction ---

func (s *Store) TransferAndCompleteTask(ctx context.Context, tenantID, projectID, conversationID, taskID, targetAgentID string, metadata models.TaskMetadata) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET active_agent_id=? WHERE tenant_id=? AND project_id=? AND id=?`,
		targetAgentID, tenantID, projectID, conversationID)
	if err != nil {
		return err
	}
	if err := checkAffected(res); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE tasks SET status=?, metadata=?, updated_at=? WHERE tenant_id=? AND project_id=? AND id=?`,
		models.TaskStatusCompleted, string(metaJSON), time.Now().UTC(), tenantID, projectID, taskID)
	if err != nil {
		return err
	}
	if err := checkAffected(res); err != nil {
		return err
	}

	return tx.Commit()
}
