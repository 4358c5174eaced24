package a2a

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// openapiDoc is a minimal, hand-written OpenAPI 3.0 description of the
// execution surface (§6). The CRUD management surface (agents, graphs,
// tools, credentials as configuration) is an external collaborator per
// spec.md §1 and is not described here.
var openapiDoc = gin.H{
	"openapi": "3.0.3",
	"info": gin.H{
		"title":   "agentrun execution API",
		"version": "1.0.0",
	},
	"paths": gin.H{
		"/agents/{graphId}/a2a": gin.H{
			"post": gin.H{
				"summary": "A2A JSON-RPC 2.0 dispatch: message/send, message/stream, tasks/get, tasks/cancel, tasks/resubscribe",
				"parameters": []gin.H{
					{"name": "graphId", "in": "path", "required": true, "schema": gin.H{"type": "string"}},
				},
				"responses": gin.H{"200": gin.H{"description": "JSON-RPC 2.0 response envelope"}},
			},
		},
		"/agents/{graphId}/.well-known/agent.json": gin.H{
			"get": gin.H{
				"summary":   "AgentCard discovery document for the graph's default entry agent",
				"responses": gin.H{"200": gin.H{"description": "AgentCard"}},
			},
		},
		"/v1/chat": gin.H{
			"post": gin.H{
				"summary":   "Convenience wrapper over a blocking message/send",
				"responses": gin.H{"200": gin.H{"description": "JSON-RPC 2.0 response envelope"}},
			},
		},
		"/api/chat/stream": gin.H{
			"get": gin.H{
				"summary":   "Convenience SSE wrapper over message/stream",
				"responses": gin.H{"200": gin.H{"description": "text/event-stream"}},
			},
		},
		"/health": gin.H{
			"get": gin.H{
				"summary":   "Liveness probe",
				"responses": gin.H{"204": gin.H{"description": "ok"}},
			},
		},
	},
}

const docsHTML = `<!doctype html>
<html>
<head><title>agentrun API docs</title></head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<script>
  window.onload = () => SwaggerUIBundle({url: '/openapi.json', dom_id: '#swagger-ui'});
</script>
</body>
</html>`

// OpenAPI serves the static execution-API schema document.
func (s *Server) OpenAPI(c *gin.Context) {
	c.JSON(http.StatusOK, openapiDoc)
}

// Docs serves a minimal Swagger UI page pointed at /openapi.json.
func (s *Server) Docs(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(docsHTML))
}
