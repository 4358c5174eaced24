// Package registry builds RegisteredAgent values — the agent card an A2A
// peer discovers plus the task handler closure the executor invokes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kandev/agentrun/internal/auth"
	apiv1 "github.com/kandev/agentrun/pkg/api/v1"

	"github.com/kandev/agentrun/internal/ledger"
	"github.com/kandev/agentrun/internal/ledger/models"
)

// TaskHandler executes an A2A task for a resolved agent and returns its
// result. The executor (C8) supplies the concrete implementation; Registry
// only captures the closure's bindings.
type TaskHandler func(ctx context.Context, task *apiv1.Task) (*apiv1.Task, error)

// RegisteredAgent bundles an agent's external card with the closure that
// runs its turns.
type RegisteredAgent struct {
	Card        apiv1.AgentCard
	Agent       *models.Agent
	TaskHandler TaskHandler
}

// Registry looks up agents and hydrates them into RegisteredAgent values.
type Registry struct {
	store      ledger.Store
	baseURL    string
	version    string
	newHandler func(scope *auth.ExecutionScope, agent *models.Agent) TaskHandler
}

// New builds a Registry. newHandler constructs the task handler closure for
// a hydrated agent — supplied by the executor package to avoid an import
// cycle (registry must not depend on executor).
func New(store ledger.Store, baseURL, version string, newHandler func(*auth.ExecutionScope, *models.Agent) TaskHandler) *Registry {
	return &Registry{store: store, baseURL: baseURL, version: version, newHandler: newHandler}
}

// GetRegisteredAgent resolves the agent named by scope.AgentID within
// scope.GraphID and builds its card plus task handler. Returns
// ledger.ErrNotFound (unchanged) when the agent does not exist — including
// cross-tenant lookups, which the ledger already renders indistinguishable.
func (r *Registry) GetRegisteredAgent(ctx context.Context, scope *auth.ExecutionScope) (*RegisteredAgent, error) {
	agent, err := r.store.GetAgent(ctx, scope.TenantID, scope.ProjectID, scope.GraphID, scope.AgentID)
	if err != nil {
		return nil, err
	}

	card, err := r.buildCard(ctx, scope, agent)
	if err != nil {
		return nil, err
	}

	return &RegisteredAgent{
		Card:        card,
		Agent:       agent,
		TaskHandler: r.newHandler(scope, agent),
	}, nil
}

func (r *Registry) buildCard(ctx context.Context, scope *auth.ExecutionScope, agent *models.Agent) (apiv1.AgentCard, error) {
	desc, err := r.enhancedDescription(ctx, scope, agent)
	if err != nil {
		return apiv1.AgentCard{}, err
	}

	return apiv1.AgentCard{
		Name:        agent.Name,
		Description: desc,
		URL:         fmt.Sprintf("%s/agents/%s/%s", strings.TrimRight(r.baseURL, "/"), agent.GraphID, agent.ID),
		Version:     r.version,
		Capabilities: apiv1.AgentCapabilities{
			Streaming: true,
		},
		Provider: apiv1.AgentProvider{
			Organization: "agentrun",
			URL:          r.baseURL,
		},
	}, nil
}

// enhancedDescription appends transfer/delegate target sections to the
// agent's base description, per spec.md §4.2: what peers see when deciding
// to hand off a conversation.
func (r *Registry) enhancedDescription(ctx context.Context, scope *auth.ExecutionScope, agent *models.Agent) (string, error) {
	relations, err := r.store.ListAgentRelations(ctx, scope.TenantID, scope.ProjectID, agent.GraphID)
	if err != nil {
		return "", err
	}

	var transfers, delegates []string
	for _, rel := range relations {
		if rel.SourceAgentID != agent.ID {
			continue
		}
		label, err := r.targetLabel(ctx, scope, rel)
		if err != nil {
			return "", err
		}
		switch rel.RelationType {
		case models.RelationTransfer:
			transfers = append(transfers, label)
		case models.RelationDelegate:
			delegates = append(delegates, label)
		}
	}

	var b strings.Builder
	b.WriteString(agent.Description)
	if len(transfers) > 0 {
		b.WriteString("\n\nCan transfer to:\n")
		b.WriteString(strings.Join(transfers, "\n"))
	}
	if len(delegates) > 0 {
		b.WriteString("\n\nCan delegate to:\n")
		b.WriteString(strings.Join(delegates, "\n"))
	}
	return b.String(), nil
}

func (r *Registry) targetLabel(ctx context.Context, scope *auth.ExecutionScope, rel *models.AgentRelation) (string, error) {
	if rel.ExternalAgentURL != "" {
		return fmt.Sprintf("- %s (external: %s)", rel.TargetAgentID, rel.ExternalAgentURL), nil
	}
	target, err := r.store.GetAgent(ctx, scope.TenantID, scope.ProjectID, scope.GraphID, rel.TargetAgentID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fmt.Sprintf("- %s", rel.TargetAgentID), nil
		}
		return "", err
	}
	return fmt.Sprintf("- %s: %s", target.Name, target.Description), nil
}
