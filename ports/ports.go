// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Cache Port
// -----------------------------------------------------------------------------

// Cache memoizes expensive lookups by key. Backends range from an
// in-process map to persistent storage surviving restarts.
type Cache interface {
	// Get retrieves a value; ok is false on a miss or after expiry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores a value with a time-to-live. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes a key.
	Invalidate(ctx context.Context, key string) error
}

// -----------------------------------------------------------------------------
// Invocation Ports
// -----------------------------------------------------------------------------

// Handler is an invocable function target speaking the proxy event contract.
type Handler interface {
	Invoke(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return f(ctx, event)
}

// HandlerResolver resolves a dotted handler reference to its invocable
// target. Resolution is a pure function of the reference, so results are
// cached; concurrent resolution of one reference is harmless.
type HandlerResolver interface {
	Resolve(ref string) (Handler, error)
}

// HealthChecker is implemented by handlers whose backing transport can be
// probed.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// Identity Ports
// -----------------------------------------------------------------------------

// Identity is the authenticated caller attached to an invocation event's
// authorizer context.
type Identity struct {
	Subject string
	Claims  map[string]any
}

// IdentityProvider authenticates raw requests before handler invocation.
type IdentityProvider interface {
	// Name returns the provider name (e.g., "jwt", "apikey").
	Name() string

	// Authenticate inspects the request and returns the caller's identity,
	// or an error when the request carries no acceptable credentials.
	Authenticate(r *http.Request) (Identity, error)
}
