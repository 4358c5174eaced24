package a2a

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the A2A execution surface (§6) onto router. authMW
// resolves every tenanted request's ExecutionScope before it reaches a
// handler; health/docs endpoints are intentionally left unauthenticated.
func (s *Server) RegisterRoutes(router *gin.Engine, authMW gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/openapi.json", s.OpenAPI)
	router.GET("/docs", s.Docs)

	tenanted := router.Group("/")
	tenanted.Use(authMW)
	{
		tenanted.POST("/agents/:graphId/a2a", s.Dispatch)
		tenanted.GET("/agents/:graphId/.well-known/agent.json", s.AgentCard)
		tenanted.POST("/v1/chat", s.Chat)
		tenanted.GET("/api/chat/stream", s.ChatStream)
	}
}
