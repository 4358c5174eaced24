package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kandev/agentrun/internal/common/config"
	"github.com/kandev/agentrun/internal/ledger"
)

// ErrUnauthorized is returned for any failed resolution. The message is
// always generic — callers must not surface internal detail to the client,
// and Resolve never logs the presented token.
var ErrUnauthorized = errors.New("unauthorized")

// Headers carries the x-inkeep-* scope hint headers consumed only under the
// bypass-secret mode.
type Headers struct {
	TenantID  string
	ProjectID string
	GraphID   string
}

// devScope is returned by mode 3 (development|test dummy scope).
var devScope = &ExecutionScope{TenantID: "test-tenant", ProjectID: "test-project", GraphID: "test-graph"}

// Resolver maps an incoming bearer token to an ExecutionScope.
type Resolver struct {
	cfg   config.AuthConfig
	store ledger.Store
}

// New builds a Resolver backed by store for API-key lookups.
func New(cfg config.AuthConfig, store ledger.Store) *Resolver {
	return &Resolver{cfg: cfg, store: store}
}

// Resolve implements the three accepted modes, evaluated in order:
// bypass secret, API key, and (when enabled) a dev/test dummy scope.
func (r *Resolver) Resolve(ctx context.Context, authHeader string, hdrs Headers) (*ExecutionScope, error) {
	token := strings.TrimPrefix(strings.TrimSpace(authHeader), "Bearer ")
	token = strings.TrimSpace(token)

	if token == "" {
		if r.cfg.DevTestDummy {
			return devScope, nil
		}
		return nil, ErrUnauthorized
	}

	if r.cfg.BypassSecret != "" && constantTimeEquals(token, r.cfg.BypassSecret) {
		return r.bypassScope(hdrs)
	}

	if publicID, secret, ok := parseAPIKey(token); ok {
		return r.apiKeyScope(ctx, publicID, secret)
	}

	if r.cfg.DevTestDummy {
		return devScope, nil
	}
	return nil, ErrUnauthorized
}

// constantTimeEquals compares two equal-length secrets in time independent
// of their content. Inputs of different lengths return false immediately, so
// the length itself is not hidden.
func constantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (r *Resolver) bypassScope(hdrs Headers) (*ExecutionScope, error) {
	if hdrs.TenantID == "" || hdrs.ProjectID == "" || hdrs.GraphID == "" {
		return nil, ErrUnauthorized
	}
	return &ExecutionScope{
		TenantID:  hdrs.TenantID,
		ProjectID: hdrs.ProjectID,
		GraphID:   hdrs.GraphID,
	}, nil
}

func (r *Resolver) apiKeyScope(ctx context.Context, publicID, secret string) (*ExecutionScope, error) {
	key, err := r.store.GetAPIKeyByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	if !verifySecret(key.KeyHash, secret) {
		return nil, ErrUnauthorized
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now().UTC()) {
		return nil, ErrUnauthorized
	}

	return &ExecutionScope{
		TenantID:  key.TenantID,
		ProjectID: key.ProjectID,
		GraphID:   key.GraphID,
	}, nil
}
