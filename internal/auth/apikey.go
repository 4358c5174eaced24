package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kandev/agentrun/internal/ledger/models"
)

const (
	publicIDLen  = 12
	publicIDset  = "abcdefghijklmnopqrstuvwxyz0123456789"
	secretBytes  = 32
	keyPrefix    = "sk_"
	bcryptCost   = bcrypt.DefaultCost
)

// GenerateAPIKey creates a new API key record plus the raw key string
// (sk_<publicId>.<secret>) returned to the caller exactly once. Only the
// bcrypt hash of the secret is persisted.
func GenerateAPIKey(tenantID, projectID, graphID, id string) (raw string, record *models.ApiKey, err error) {
	publicID, err := randomFromSet(publicIDLen, publicIDset)
	if err != nil {
		return "", nil, fmt.Errorf("generate public id: %w", err)
	}

	secretRaw := make([]byte, secretBytes)
	if _, err := rand.Read(secretRaw); err != nil {
		return "", nil, fmt.Errorf("generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretRaw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash secret: %w", err)
	}

	raw = fmt.Sprintf("%s%s.%s", keyPrefix, publicID, secret)
	record = &models.ApiKey{
		TenantID:  tenantID,
		ProjectID: projectID,
		GraphID:   graphID,
		ID:        id,
		PublicID:  publicID,
		KeyHash:   string(hash),
	}
	return raw, record, nil
}

// parseAPIKey splits a raw "sk_<publicId>.<secret>" token into its parts.
func parseAPIKey(token string) (publicID, secret string, ok bool) {
	if !strings.HasPrefix(token, keyPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(token, keyPrefix)
	publicID, secret, found := strings.Cut(rest, ".")
	if !found || publicID == "" || secret == "" {
		return "", "", false
	}
	return publicID, secret, true
}

// verifySecret compares secret against the bcrypt hash stored for the key.
// bcrypt.CompareHashAndPassword runs in constant time with respect to the
// secret's content.
func verifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func randomFromSet(n int, set string) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = set[int(b)%len(set)]
	}
	return string(out), nil
}
