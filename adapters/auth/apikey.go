package auth

import (
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/samgate/ports"
)

// APIKeyProvider authenticates requests by a header key checked against a
// fixed set of bcrypt hashes. Plaintext keys never appear in configuration.
type APIKeyProvider struct {
	header string
	hashes [][]byte
}

// NewAPIKeyProvider creates a provider over the given hashes. Each hash is
// the bcrypt form of one accepted key.
func NewAPIKeyProvider(header string, hashes []string) *APIKeyProvider {
	p := &APIKeyProvider{header: header, hashes: make([][]byte, 0, len(hashes))}
	for _, h := range hashes {
		p.hashes = append(p.hashes, []byte(h))
	}
	return p
}

// Name implements ports.IdentityProvider.
func (p *APIKeyProvider) Name() string { return "apikey" }

// Authenticate compares the request's key against the accepted hashes.
func (p *APIKeyProvider) Authenticate(r *http.Request) (ports.Identity, error) {
	key := r.Header.Get(p.header)
	if key == "" {
		return ports.Identity{}, ErrNoCredentials
	}
	for i, hash := range p.hashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil {
			return ports.Identity{
				Subject: fmt.Sprintf("key-%d", i),
				Claims:  map[string]any{"principalId": fmt.Sprintf("key-%d", i)},
			}, nil
		}
	}
	return ports.Identity{}, ErrInvalidCredentials
}

// HashKey produces the bcrypt hash of a plaintext key for configuration.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(hash), nil
}

// Ensure interface compliance.
var _ ports.IdentityProvider = (*APIKeyProvider)(nil)
