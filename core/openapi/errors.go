package openapi

import (
	"fmt"
	"strings"
)

// MissingIntegrationError reports an operation in an API definition that
// cannot be routed because its integration metadata is absent or unusable.
type MissingIntegrationError struct {
	API    string // owning gateway logical ID
	Path   string
	Method string
	Reason string
}

func (e *MissingIntegrationError) Error() string {
	return fmt.Sprintf("api %q: operation %s %s: %s", e.API, e.Method, e.Path, e.Reason)
}

// GatewayLookupError reports a failed gateway selection: either the
// configured gateway ID is not declared, or the template declares several
// gateways and no explicit ID was configured.
type GatewayLookupError struct {
	Requested  string
	Candidates []string
}

func (e *GatewayLookupError) Error() string {
	declared := strings.Join(e.Candidates, ", ")
	if e.Requested != "" {
		return fmt.Sprintf("api gateway %q not declared in template (declared: %s)", e.Requested, declared)
	}
	return fmt.Sprintf("template declares %d api gateways, an explicit gateway id is required (declared: %s)", len(e.Candidates), declared)
}
