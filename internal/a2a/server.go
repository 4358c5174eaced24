// Package a2a implements the A2A (agent-to-agent) JSON-RPC protocol layer
// (C7): HTTP/SSE transport, method dispatch, and the convenience chat
// endpoints that wrap message/send and message/stream for simple clients.
package a2a

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/common/logger"
	"github.com/kandev/agentrun/internal/executor"
	"github.com/kandev/agentrun/internal/ledger"
	"github.com/kandev/agentrun/internal/registry"
	"github.com/kandev/agentrun/internal/streaming"
)

// Server holds the collaborators the A2A dispatcher needs to resolve an
// incoming JSON-RPC call to a running agent turn.
type Server struct {
	store    ledger.Store
	registry *registry.Registry
	exec     *executor.Executor
	stream   *streaming.Writer
	log      *logger.Logger
}

// New builds a Server.
func New(store ledger.Store, reg *registry.Registry, exec *executor.Executor, log *logger.Logger) *Server {
	return &Server{
		store:    store,
		registry: reg,
		exec:     exec,
		stream:   streaming.New(log),
		log:      log.WithFields(zap.String("component", "a2a")),
	}
}

// resolveAgentID determines which agent handles a message on a given
// conversation: the conversation's current activeAgentId if it already
// exists, else the graph's configured default entry agent. Spec.md §3:
// "conversation.activeAgentId is non-null after the first agent response".
func (s *Server) resolveAgentID(ctx context.Context, tenantID, projectID, graphID, contextID string) (string, error) {
	conv, err := s.store.GetConversation(ctx, tenantID, projectID, contextID)
	if err == nil {
		return conv.ActiveAgentID, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return "", err
	}

	graph, err := s.store.GetGraph(ctx, tenantID, projectID, graphID)
	if err != nil {
		return "", fmt.Errorf("resolve default agent: %w", err)
	}
	if graph.DefaultAgentID == "" {
		return "", fmt.Errorf("graph %q has no default agent configured", graphID)
	}
	return graph.DefaultAgentID, nil
}

// defaultAgentID returns the graph's configured entry agent, independent of
// any conversation state — used for agent-card discovery, which has no
// contextId to resolve an activeAgentId from.
func (s *Server) defaultAgentID(ctx context.Context, tenantID, projectID, graphID string) (string, error) {
	graph, err := s.store.GetGraph(ctx, tenantID, projectID, graphID)
	if err != nil {
		return "", err
	}
	if graph.DefaultAgentID == "" {
		return "", fmt.Errorf("graph %q has no default agent configured", graphID)
	}
	return graph.DefaultAgentID, nil
}

func newSessionID() string {
	return uuid.NewString()
}
