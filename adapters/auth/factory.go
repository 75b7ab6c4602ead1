package auth

import (
	"fmt"
	"net/http"

	"github.com/artpar/samgate/ports"
)

// Options selects and configures a provider.
type Options struct {
	Mode      string // "none", "jwt" or "apikey"
	Header    string
	JWTSecret string
	APIKeys   []string // bcrypt hashes (mode=apikey)
}

// NoneProvider accepts every request as anonymous.
type NoneProvider struct{}

// Name implements ports.IdentityProvider.
func (NoneProvider) Name() string { return "none" }

// Authenticate implements ports.IdentityProvider.
func (NoneProvider) Authenticate(*http.Request) (ports.Identity, error) {
	return ports.Identity{}, nil
}

// NewProvider creates the provider selected by opts.Mode.
func NewProvider(opts Options) (ports.IdentityProvider, error) {
	switch opts.Mode {
	case "", "none":
		return NoneProvider{}, nil
	case "jwt":
		if opts.JWTSecret == "" {
			return nil, fmt.Errorf("jwt provider requires a secret")
		}
		return NewJWTProvider(opts.JWTSecret, opts.Header), nil
	case "apikey":
		if len(opts.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey provider requires at least one key hash")
		}
		return NewAPIKeyProvider(opts.Header, opts.APIKeys), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", opts.Mode)
	}
}

// Ensure interface compliance.
var _ ports.IdentityProvider = NoneProvider{}
