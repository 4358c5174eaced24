package a2a

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kandev/agentrun/internal/auth"
	"github.com/kandev/agentrun/internal/common/problem"
	"github.com/kandev/agentrun/internal/ledger"
)

// AgentCard handles GET /agents/{graphId}/.well-known/agent.json, the A2A
// discovery endpoint for the graph's default entry agent.
func (s *Server) AgentCard(c *gin.Context) {
	scope, ok := auth.ScopeFromGin(c)
	if !ok {
		problem.Unauthorized(c)
		return
	}
	reqScope := *scope
	reqScope.GraphID = c.Param("graphId")

	ctx := c.Request.Context()
	agentID, err := s.defaultAgentID(ctx, reqScope.TenantID, reqScope.ProjectID, reqScope.GraphID)
	if err != nil {
		problem.NotFound(c, "graph or default agent not found")
		return
	}
	reqScope.AgentID = agentID

	reg, err := s.registry.GetRegisteredAgent(ctx, &reqScope)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			problem.NotFound(c, "agent not found")
			return
		}
		problem.Internal(c)
		return
	}

	c.JSON(http.StatusOK, reg.Card)
}
