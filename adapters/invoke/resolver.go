// Package invoke provides handler resolution and invocation backends.
//
// Handler references use the dotted "<module-path>.<callable>" form that
// function definitions produce. Two backends can serve a reference: a
// configured container endpoint invoked over HTTP, or an in-process
// registration made by a host embedding the gateway. The Resolver composes
// both behind a single lookup with per-reference memoization.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artpar/samgate/ports"
)

// ResolverConfig holds settings for the composite resolver.
type ResolverConfig struct {
	// Endpoints maps a handler reference, or a dotted prefix of one, to a
	// container base URL. An exact entry wins over prefix entries; among
	// prefixes the longest wins.
	Endpoints map[string]string

	// Timeout is the per-invocation timeout applied to container calls.
	Timeout time.Duration
}

// Resolver resolves handler references, consulting configured container
// endpoints first and the in-process registry second. Successful
// resolutions are memoized; concurrent first lookups of one reference may
// both resolve, and the first writer wins.
type Resolver struct {
	cfg      ResolverConfig
	registry *Registry

	mu      sync.RWMutex
	cache   map[string]ports.Handler
	clients map[string]*HTTPInvoker
}

// NewResolver creates a resolver over the given endpoints and registry.
// The registry may be nil when nothing is registered in-process.
func NewResolver(cfg ResolverConfig, registry *Registry) *Resolver {
	return &Resolver{
		cfg:      cfg,
		registry: registry,
		cache:    make(map[string]ports.Handler),
		clients:  make(map[string]*HTTPInvoker),
	}
}

// Resolve returns the handler serving ref.
func (r *Resolver) Resolve(ref string) (ports.Handler, error) {
	r.mu.RLock()
	h, ok := r.cache[ref]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	h, err := r.lookup(ref)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.cache[ref]; ok {
		return prev, nil
	}
	r.cache[ref] = h
	return h, nil
}

func (r *Resolver) lookup(ref string) (ports.Handler, error) {
	if base, ok := r.endpointFor(ref); ok {
		return r.client(base)
	}
	if r.registry != nil {
		h, err := r.registry.Resolve(ref)
		if err != nil {
			return nil, err
		}
		// In-process handlers run under the guard so a panic or a hang
		// stays contained to the one invocation.
		return NewGuard(h, r.cfg.Timeout), nil
	}
	return nil, fmt.Errorf("no handler for reference %q", ref)
}

// endpointFor finds the endpoint configured for ref: the exact entry if one
// exists, otherwise the longest dotted prefix entry.
func (r *Resolver) endpointFor(ref string) (string, bool) {
	if base, ok := r.cfg.Endpoints[ref]; ok {
		return base, true
	}
	best := ""
	for key := range r.cfg.Endpoints {
		if strings.HasPrefix(ref, key+".") && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return "", false
	}
	return r.cfg.Endpoints[best], true
}

// client returns the shared invoker for a container base URL, creating it
// on first use.
func (r *Resolver) client(base string) (ports.Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[base]; ok {
		return c, nil
	}
	c, err := NewHTTPInvoker(HTTPInvokerConfig{BaseURL: base, Timeout: r.cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", base, err)
	}
	r.clients[base] = c
	return c, nil
}

// HealthCheck probes every configured container endpoint and reports the
// failures together.
func (r *Resolver) HealthCheck(ctx context.Context) error {
	bases := make(map[string]struct{})
	for _, base := range r.cfg.Endpoints {
		bases[base] = struct{}{}
	}

	var errs []error
	for base := range bases {
		h, err := r.client(base)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := h.(*HTTPInvoker).HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", base, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the container clients.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		c.Close()
	}
}

// Ensure interface compliance.
var (
	_ ports.HandlerResolver = (*Resolver)(nil)
	_ ports.HealthChecker   = (*Resolver)(nil)
)
