package app

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/artpar/samgate/domain/event"
	"github.com/artpar/samgate/domain/route"
	"github.com/artpar/samgate/ports"
)

// Failure reasons attached to HandleResult for classification.
const (
	FailureResolve = "resolve" // no handler serves the reference
	FailureInvoke  = "invoke"  // handler errored, panicked, or timed out
	FailureResult  = "result"  // handler returned a malformed result
)

// GatewayService handles incoming gateway requests against the serving
// state the pipeline last built.
type GatewayService struct {
	resolver ports.HandlerResolver
	identity ports.IdentityProvider
	clock    ports.Clock
	idGen    ports.IDGenerator

	// Serving state (swapped wholesale on reload)
	state atomic.Pointer[servingState]
}

// servingState snapshots one pipeline build. Requests load it once and keep
// it for their lifetime; a reload swaps the pointer, never the contents.
type servingState struct {
	table       *route.Table
	openAPIJSON []byte
}

// GatewayDeps contains dependencies for GatewayService.
type GatewayDeps struct {
	Resolver ports.HandlerResolver
	Identity ports.IdentityProvider // nil disables authentication
	Clock    ports.Clock
	IDGen    ports.IDGenerator
}

// NewGatewayService creates a new gateway service. It serves nothing until
// the first Swap.
func NewGatewayService(deps GatewayDeps) *GatewayService {
	return &GatewayService{
		resolver: deps.Resolver,
		identity: deps.Identity,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
	}
}

// Swap atomically replaces the serving state with a fresh pipeline build.
// Safe to call while requests are in flight.
func (s *GatewayService) Swap(out *BuildOutput) {
	s.state.Store(&servingState{
		table:       out.Table,
		openAPIJSON: out.OpenAPIJSON,
	})
}

// Table returns the route table currently serving, or nil before the first
// Swap.
func (s *GatewayService) Table() *route.Table {
	if st := s.state.Load(); st != nil {
		return st.table
	}
	return nil
}

// OpenAPIJSON returns the rendered API document currently serving.
func (s *GatewayService) OpenAPIJSON() ([]byte, bool) {
	if st := s.state.Load(); st != nil {
		return st.openAPIJSON, true
	}
	return nil, false
}

// HandleResult represents the outcome of handling a gateway request. The
// response is always populated; the other fields carry what the transport
// layer needs for logging and metrics.
type HandleResult struct {
	Response event.HTTPResponse
	Route    *route.Route    // matched route, nil on a table miss
	Identity *ports.Identity // authenticated identity, nil otherwise

	// Err is the underlying fault behind a canned response, for logging.
	Err error

	// FailureReason classifies a failed invocation, empty otherwise.
	FailureReason string

	// AuthFailed marks a rejection by the identity provider named by
	// AuthProvider.
	AuthFailed   bool
	AuthProvider string

	// InvokeDuration is the time spent inside the handler.
	InvokeDuration time.Duration
}

// Handle processes one gateway request: match, authenticate, adapt, invoke,
// adapt back. Every failure maps to a canned response; nothing escapes as a
// transport-level error.
func (s *GatewayService) Handle(ctx context.Context, r *http.Request, body []byte) HandleResult {
	st := s.state.Load()
	if st == nil {
		return HandleResult{
			Response: event.InternalError(),
			Err:      errors.New("no serving state"),
		}
	}
	table := st.table

	// 1. Match against the frozen route table (pure).
	m := table.Match(r.Method, r.URL.Path)
	if m == nil {
		return HandleResult{Response: event.RouteNotFound()}
	}

	// 2. Authenticate before any handler work. Gateway routes only; the
	// operational endpoints never pass through here.
	var identity ports.Identity
	if s.identity != nil {
		var err error
		identity, err = s.identity.Authenticate(r)
		if err != nil {
			return HandleResult{
				Response:     event.Unauthorized(),
				Route:        m.Route,
				Err:          err,
				AuthFailed:   true,
				AuthProvider: s.identity.Name(),
			}
		}
	}

	// 3. Build the proxy event (pure).
	ev := event.Build(event.BuildInput{
		Request:          r,
		Body:             body,
		PathParams:       m.PathParams,
		ResourcePath:     m.Route.Pattern,
		Stage:            table.Stage(),
		APIID:            m.Route.SourceAPIID,
		RequestID:        s.idGen.New(),
		RequestTime:      s.clock.Now(),
		BinaryMediaTypes: table.BinaryMediaTypes(),
		Authorizer:       authorizerContext(identity),
	})

	// 4. Resolve the handler reference (memoized).
	h, err := s.resolver.Resolve(m.Route.HandlerRef)
	if err != nil {
		return HandleResult{
			Response:      event.InternalError(),
			Route:         m.Route,
			Err:           err,
			FailureReason: FailureResolve,
		}
	}

	// 5. Invoke. Faults are contained to this request.
	started := s.clock.Now()
	result, err := h.Invoke(ctx, ev)
	elapsed := s.clock.Now().Sub(started)
	if err != nil {
		return HandleResult{
			Response:       event.InternalError(),
			Route:          m.Route,
			Err:            err,
			FailureReason:  FailureInvoke,
			InvokeDuration: elapsed,
		}
	}

	// 6. Validate the result and translate it back to HTTP (pure).
	resp, err := event.FromResult(result)
	if err != nil {
		return HandleResult{
			Response:       event.InternalError(),
			Route:          m.Route,
			Err:            err,
			FailureReason:  FailureResult,
			InvokeDuration: elapsed,
		}
	}

	res := HandleResult{Response: resp, Route: m.Route, InvokeDuration: elapsed}
	if identity.Subject != "" || len(identity.Claims) > 0 {
		res.Identity = &identity
	}
	return res
}

// authorizerContext shapes an authenticated identity into the event's
// authorizer map. Anonymous identities contribute nothing.
func authorizerContext(id ports.Identity) map[string]any {
	if id.Subject == "" && len(id.Claims) == 0 {
		return nil
	}
	claims := make(map[string]any, len(id.Claims)+1)
	for k, v := range id.Claims {
		claims[k] = v
	}
	if id.Subject != "" {
		if _, ok := claims["principalId"]; !ok {
			claims["principalId"] = id.Subject
		}
	}
	return claims
}
