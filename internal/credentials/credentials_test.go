package credentials

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentrun/internal/ledger/models"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds.json")
	s := NewFileStore(path)

	_, err := s.Get(ctx, "API_KEY")
	assert.ErrorIs(t, err, ErrNotFound)

	has, err := s.Has(ctx, "API_KEY")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.Set(ctx, "API_KEY", "sekret"))

	v, err := s.Get(ctx, "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sekret", v)

	has, err = s.Has(ctx, "API_KEY")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.Delete(ctx, "API_KEY"))
	_, err = s.Get(ctx, "API_KEY")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.json")
	s := NewFileStore(path)

	has, err := s.Has(context.Background(), "whatever")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds.json")
	s1 := NewFileStore(path)
	require.NoError(t, s1.Set(ctx, "TOKEN", "abc123"))

	s2 := NewFileStore(path)
	v, err := s2.Get(ctx, "TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "abc123", raw["TOKEN"])
}

func TestEnvStore(t *testing.T) {
	t.Setenv("AGENTRUN_TEST_CRED", "envval")
	s := NewEnvStore()
	ctx := context.Background()

	v, err := s.Get(ctx, "AGENTRUN_TEST_CRED")
	require.NoError(t, err)
	assert.Equal(t, "envval", v)

	has, err := s.Has(ctx, "AGENTRUN_TEST_CRED")
	require.NoError(t, err)
	assert.True(t, has)

	_, err = s.Get(ctx, "AGENTRUN_TEST_CRED_MISSING")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Set(ctx, "X", "Y"))
	assert.Error(t, s.Delete(ctx, "X"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("file")
	assert.False(t, ok)

	fs := NewFileStore(filepath.Join(t.TempDir(), "c.json"))
	r.Register("file", fs)

	got, ok := r.Get("file")
	require.True(t, ok)
	assert.Same(t, fs, got)
}

func TestResolverNilReference(t *testing.T) {
	r := NewResolver(NewRegistry())
	v, err := r.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	assert.NoError(t, r.DeleteReference(context.Background(), nil))
}

func TestResolverUsesKeyFromRetrievalParams(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	fs := NewFileStore(filepath.Join(t.TempDir(), "c.json"))
	require.NoError(t, fs.Set(ctx, "custom-key", "v1"))
	reg.Register("file-store", fs)

	resolver := NewResolver(reg)
	ref := &models.CredentialReference{
		ID:                "ref-1",
		CredentialStoreID: "file-store",
		RetrievalParams:   json.RawMessage(`{"key":"custom-key"}`),
	}

	v, err := resolver.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestResolverDefaultsKeyToReferenceID(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	fs := NewFileStore(filepath.Join(t.TempDir(), "c.json"))
	require.NoError(t, fs.Set(ctx, "ref-2", "v2"))
	reg.Register("file-store", fs)

	resolver := NewResolver(reg)
	ref := &models.CredentialReference{ID: "ref-2", CredentialStoreID: "file-store"}

	v, err := resolver.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestResolverUnknownStore(t *testing.T) {
	resolver := NewResolver(NewRegistry())
	ref := &models.CredentialReference{ID: "ref-3", CredentialStoreID: "nope"}

	_, err := resolver.Resolve(context.Background(), ref)
	assert.Error(t, err)
}

func TestResolverDeleteReferenceIsBestEffort(t *testing.T) {
	resolver := NewResolver(NewRegistry())
	ref := &models.CredentialReference{ID: "ref-4", CredentialStoreID: "nope"}

	assert.NoError(t, resolver.DeleteReference(context.Background(), ref))
}
