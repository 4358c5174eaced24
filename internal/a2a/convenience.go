package a2a

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/kandev/agentrun/internal/a2a/jsonrpc"
	"github.com/kandev/agentrun/internal/auth"
	"github.com/kandev/agentrun/internal/common/problem"
	apiv1 "github.com/kandev/agentrun/pkg/api/v1"
)

// chatRequest is the simplified body POST /v1/chat and GET /api/chat/stream
// accept, for clients that don't want to construct a full JSON-RPC
// message/send envelope.
type chatRequest struct {
	GraphID   string `json:"graphId" form:"graphId"`
	ContextID string `json:"contextId" form:"contextId"`
	Text      string `json:"text" form:"text" binding:"required"`
}

func (s *Server) scopeWithGraph(c *gin.Context, graphID string) (*auth.ExecutionScope, bool) {
	scope, ok := auth.ScopeFromGin(c)
	if !ok {
		return nil, false
	}
	reqScope := *scope
	if graphID != "" {
		reqScope.GraphID = graphID
	}
	return &reqScope, true
}

func chatMessage(text, contextID string) apiv1.Message {
	return apiv1.Message{
		Role:      "user",
		Parts:     []apiv1.Part{apiv1.TextPart(text)},
		ContextID: contextID,
	}
}

// Chat handles POST /v1/chat: a convenience wrapper over a blocking
// message/send for a simple single-turn user prompt. The response is the
// same JSON-RPC envelope message/send would return — convenience callers
// only need to skip constructing the request side of it.
func (s *Server) Chat(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		problem.Validation(c, err.Error())
		return
	}
	scope, ok := s.scopeWithGraph(c, body.GraphID)
	if !ok {
		problem.Unauthorized(c)
		return
	}

	params := apiv1.MessageSendParams{
		Message:       chatMessage(body.Text, body.ContextID),
		Configuration: &apiv1.MessageSendConfiguration{Blocking: true},
	}
	raw, _ := json.Marshal(params)
	req := &jsonrpc.Request{JSONRPC: "2.0", ID: 1, Method: jsonrpc.MethodMessageSend, Params: raw}
	s.handleMessageSend(c, scope, req)
}

// ChatStream handles GET /api/chat/stream: a convenience SSE wrapper over
// message/stream for a simple single-turn user prompt.
func (s *Server) ChatStream(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindQuery(&body); err != nil {
		problem.Validation(c, err.Error())
		return
	}
	scope, ok := s.scopeWithGraph(c, body.GraphID)
	if !ok {
		problem.Unauthorized(c)
		return
	}

	params := apiv1.MessageSendParams{Message: chatMessage(body.Text, body.ContextID)}
	raw, _ := json.Marshal(params)
	req := &jsonrpc.Request{JSONRPC: "2.0", ID: 1, Method: jsonrpc.MethodMessageStream, Params: raw}
	s.handleMessageStream(c, scope, req)
}
