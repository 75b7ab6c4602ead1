// Package auth provides identity providers for gateway requests.
//
// A provider inspects the raw HTTP request before the proxy event is built;
// on success its identity lands in the event's authorizer context, on
// failure the request is rejected without invoking a handler.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/artpar/samgate/ports"
)

// Authentication failures. Providers wrap these so callers can treat every
// failure as a credential rejection.
var (
	ErrNoCredentials      = errors.New("no credentials presented")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// JWTProvider authenticates bearer tokens signed with an HMAC secret.
// Stateless and safe for concurrent use.
type JWTProvider struct {
	secret []byte
	header string
}

// NewJWTProvider creates a provider validating tokens against secret.
// Tokens are read from the Authorization header in Bearer form, falling
// back to the raw value of header.
func NewJWTProvider(secret, header string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), header: header}
}

// Name implements ports.IdentityProvider.
func (p *JWTProvider) Name() string { return "jwt" }

// Authenticate validates the request's token and returns its claims.
func (p *JWTProvider) Authenticate(r *http.Request) (ports.Identity, error) {
	tokenString := bearerToken(r)
	if tokenString == "" && p.header != "" {
		tokenString = r.Header.Get(p.header)
	}
	if tokenString == "" {
		return ports.Identity{}, ErrNoCredentials
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return ports.Identity{}, errors.Join(ErrInvalidCredentials, err)
	}
	if !token.Valid {
		return ports.Identity{}, ErrInvalidCredentials
	}

	identity := ports.Identity{Claims: make(map[string]any, len(claims))}
	for k, v := range claims {
		identity.Claims[k] = v
	}
	if sub, err := claims.GetSubject(); err == nil {
		identity.Subject = sub
	}
	return identity, nil
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GenerateSecret generates a random secret suitable for JWT signing.
func GenerateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Ensure interface compliance.
var _ ports.IdentityProvider = (*JWTProvider)(nil)
