package a2a

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/a2a/jsonrpc"
	"github.com/kandev/agentrun/internal/auth"
	"github.com/kandev/agentrun/internal/common/problem"
)

// Dispatch handles POST /agents/{graphId}/a2a: one JSON-RPC 2.0 request,
// routed to the matching A2A method handler. Per spec.md §7, JSON-RPC level
// failures are carried in the response body with HTTP 200 — only auth and
// transport-level failures use non-200 status codes.
func (s *Server) Dispatch(c *gin.Context) {
	scope, ok := auth.ScopeFromGin(c)
	if !ok {
		problem.Unauthorized(c)
		return
	}
	reqScope := *scope
	reqScope.GraphID = c.Param("graphId")

	var req jsonrpc.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, jsonrpc.Failure(nil, jsonrpc.NewError(jsonrpc.CodeParseError, "parse error", err.Error())))
		return
	}
	if req.JSONRPC != "2.0" {
		c.JSON(http.StatusOK, jsonrpc.Failure(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "invalid request", `jsonrpc must be "2.0"`)))
		return
	}

	switch req.Method {
	case jsonrpc.MethodMessageSend:
		s.handleMessageSend(c, &reqScope, &req)
	case jsonrpc.MethodMessageStream:
		s.handleMessageStream(c, &reqScope, &req)
	case jsonrpc.MethodTasksGet:
		s.handleTasksGet(c, &reqScope, &req)
	case jsonrpc.MethodTasksCancel:
		s.handleTasksCancel(c, &reqScope, &req)
	case jsonrpc.MethodTasksResubscribe:
		s.handleTasksResubscribe(c, &reqScope, &req)
	default:
		s.log.Debug("a2a: unknown method", zap.String("method", req.Method))
		c.JSON(http.StatusOK, jsonrpc.Failure(req.ID, jsonrpc.NewError(jsonrpc.CodeMethodNotFound, "method not found", req.Method)))
	}
}

func (s *Server) writeResult(c *gin.Context, id interface{}, result interface{}) {
	c.JSON(http.StatusOK, jsonrpc.Success(id, result))
}

func (s *Server) writeError(c *gin.Context, id interface{}, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, jsonrpc.Failure(id, jsonrpc.NewError(code, message, data)))
}
