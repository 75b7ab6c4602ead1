package invoke

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/artpar/samgate/ports"
)

// refPattern is the dotted "<module-path>.<callable>" form of a handler
// reference.
var refPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)+$`)

// Registry resolves handler references against in-process registrations.
// Hosts embedding the gateway as a library register their handlers here.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]ports.Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ports.Handler)}
}

// Register binds a handler to a dotted reference, replacing any previous
// binding for it.
func (r *Registry) Register(ref string, h ports.Handler) error {
	if !refPattern.MatchString(ref) {
		return fmt.Errorf("invalid handler reference %q", ref)
	}
	if h == nil {
		return fmt.Errorf("nil handler for reference %q", ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[ref] = h
	return nil
}

// RegisterFunc binds a plain function.
func (r *Registry) RegisterFunc(ref string, f ports.HandlerFunc) error {
	return r.Register(ref, f)
}

// Resolve returns the handler bound to ref.
func (r *Registry) Resolve(ref string) (ports.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[ref]
	if !ok {
		return nil, fmt.Errorf("no handler registered for %q", ref)
	}
	return h, nil
}

// Refs returns the registered references, sorted, for diagnostics.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]string, 0, len(r.handlers))
	for ref := range r.handlers {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Ensure interface compliance.
var _ ports.HandlerResolver = (*Registry)(nil)
