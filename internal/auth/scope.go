package auth

import "context"

// ExecutionScope identifies the tenant/project/graph (and, once an agent is
// selected by the registry, agent) a request executes under. Every ledger
// read or write downstream of the auth resolver is scoped by this value —
// there is no other source of tenant identity in the system.
type ExecutionScope struct {
	TenantID  string
	ProjectID string
	GraphID   string
	AgentID   string
}

type scopeKey struct{}

// WithScope attaches scope to ctx.
func WithScope(ctx context.Context, scope *ExecutionScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext retrieves the scope attached by WithScope, if any.
func ScopeFromContext(ctx context.Context) (*ExecutionScope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*ExecutionScope)
	return scope, ok
}
