package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kandev/agentrun/internal/ledger/models"
)

// retrievalParams is the shape RetrievalParams decodes into: which key in
// the backing store holds the credential value.
type retrievalParams struct {
	Key string `json:"key"`
}

// Resolver looks up the concrete secret value a CredentialReference names.
type Resolver struct {
	registry *Registry
}

// NewResolver builds a Resolver over registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve returns the secret value named by ref, or "" with no error when
// ref is nil (the "no credential needed" case per DESIGN.md's Open Question
// decision for an empty credentialReferenceId on a Tool).
func (r *Resolver) Resolve(ctx context.Context, ref *models.CredentialReference) (string, error) {
	if ref == nil {
		return "", nil
	}

	store, ok := r.registry.Get(ref.CredentialStoreID)
	if !ok {
		return "", fmt.Errorf("credentials: unknown store %q", ref.CredentialStoreID)
	}

	var params retrievalParams
	if len(ref.RetrievalParams) > 0 {
		if err := json.Unmarshal(ref.RetrievalParams, &params); err != nil {
			return "", fmt.Errorf("decode retrieval params: %w", err)
		}
	}
	if params.Key == "" {
		params.Key = ref.ID
	}

	return store.Get(ctx, params.Key)
}

// DeleteReference fires the backing store's best-effort delete for a
// credential reference's key. Per spec.md §9, this MUST NOT block local
// row removal — callers should invoke this first, log any failure, and
// proceed with the local delete regardless of its outcome.
func (r *Resolver) DeleteReference(ctx context.Context, ref *models.CredentialReference) error {
	if ref == nil {
		return nil
	}
	store, ok := r.registry.Get(ref.CredentialStoreID)
	if !ok {
		return nil
	}
	var params retrievalParams
	if len(ref.RetrievalParams) > 0 {
		_ = json.Unmarshal(ref.RetrievalParams, &params)
	}
	if params.Key == "" {
		params.Key = ref.ID
	}
	return store.Delete(ctx, params.Key)
}
