package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentrun/internal/common/config"
)

func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, constantTimeEquals("s3cr3t", "s3cr3t"))
	assert.False(t, constantTimeEquals("s3cr3t", "other"))
	assert.False(t, constantTimeEquals("short", "longer-value"))
	assert.True(t, constantTimeEquals("", ""))
}

func TestResolveUsesBypassSecretWithScopeHeaders(t *testing.T) {
	r := New(config.AuthConfig{BypassSecret: "topsecret"}, nil)

	scope, err := r.Resolve(context.Background(), "Bearer topsecret", Headers{
		TenantID: "t1", ProjectID: "p1", GraphID: "g1",
	})

	require.NoError(t, err)
	assert.Equal(t, "t1", scope.TenantID)
	assert.Equal(t, "p1", scope.ProjectID)
	assert.Equal(t, "g1", scope.GraphID)
}

func TestResolveRejectsWrongBypassSecret(t *testing.T) {
	r := New(config.AuthConfig{BypassSecret: "topsecret"}, nil)

	_, err := r.Resolve(context.Background(), "Bearer wrong", Headers{TenantID: "t1", ProjectID: "p1", GraphID: "g1"})

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveRejectsBypassSecretWithMissingScopeHeaders(t *testing.T) {
	r := New(config.AuthConfig{BypassSecret: "topsecret"}, nil)

	_, err := r.Resolve(context.Background(), "Bearer topsecret", Headers{TenantID: "t1"})

	assert.ErrorIs(t, err, ErrUnauthorized)
}
