package auth

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/kandev/agentrun/internal/common/problem"
)

const scopeContextKey = "auth.scope"

// Middleware resolves the Authorization header (plus x-inkeep-* hints) into
// an ExecutionScope and attaches it to both the gin context and the
// request's context.Context for downstream components.
func Middleware(resolver *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		hdrs := Headers{
			TenantID:  c.GetHeader("x-inkeep-tenant-id"),
			ProjectID: c.GetHeader("x-inkeep-project-id"),
			GraphID:   c.GetHeader("x-inkeep-graph-id"),
		}

		scope, err := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"), hdrs)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				problem.Unauthorized(c)
				return
			}
			problem.Internal(c)
			return
		}

		c.Set(scopeContextKey, scope)
		c.Request = c.Request.WithContext(WithScope(c.Request.Context(), scope))
		c.Next()
	}
}

// ScopeFromGin retrieves the scope attached by Middleware.
func ScopeFromGin(c *gin.Context) (*ExecutionScope, bool) {
	v, ok := c.Get(scopeContextKey)
	if !ok {
		return nil, false
	}
	scope, ok := v.(*ExecutionScope)
	return scope, ok
}
