package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/artpar/samgate/adapters/clock"
	"github.com/artpar/samgate/adapters/idgen"
	"github.com/artpar/samgate/adapters/invoke"
	"github.com/artpar/samgate/app"
	"github.com/artpar/samgate/domain/route"
	"github.com/artpar/samgate/ports"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// staticIdentity is an identity provider with a fixed outcome.
type staticIdentity struct {
	id  ports.Identity
	err error
}

func (s staticIdentity) Name() string { return "static" }

func (s staticIdentity) Authenticate(*http.Request) (ports.Identity, error) {
	return s.id, s.err
}

func buildTable(t *testing.T, specs ...route.Spec) *route.Table {
	t.Helper()
	table, err := route.Build(specs, route.Options{Stage: "dev"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return table
}

// newTestGateway wires a gateway service over an in-process registry.
func newTestGateway(t *testing.T, identity ports.IdentityProvider, register func(*invoke.Registry)) *app.GatewayService {
	t.Helper()
	reg := invoke.NewRegistry()
	if register != nil {
		register(reg)
	}
	resolver := invoke.NewResolver(invoke.ResolverConfig{Timeout: 2 * time.Second}, reg)
	t.Cleanup(resolver.Close)

	return app.NewGatewayService(app.GatewayDeps{
		Resolver: resolver,
		Identity: identity,
		Clock:    clock.NewFake(baseTime),
		IDGen:    idgen.NewSequential("req-"),
	})
}

func serve(svc *app.GatewayService, table *route.Table) {
	svc.Swap(&app.BuildOutput{Table: table, OpenAPIJSON: []byte("{}")})
}

func TestGatewayService_Handle(t *testing.T) {
	var seen events.APIGatewayProxyRequest
	svc := newTestGateway(t, nil, func(reg *invoke.Registry) {
		reg.RegisterFunc("src.app.handler", func(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			seen = ev
			return events.APIGatewayProxyResponse{
				StatusCode: 200,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"ok":true}`,
			}, nil
		})
	})
	serve(svc, buildTable(t, route.Spec{
		Method:      "GET",
		Pattern:     "/users/{id}",
		HandlerRef:  "src.app.handler",
		SourceAPIID: "DemoApi",
	}))

	r := httptest.NewRequest("GET", "/users/42?verbose=1", nil)
	res := svc.Handle(context.Background(), r, nil)

	if res.Err != nil {
		t.Fatalf("Handle() err = %v", res.Err)
	}
	if res.Response.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", res.Response.StatusCode)
	}
	if string(res.Response.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", res.Response.Body)
	}
	if got := res.Response.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if res.Route == nil || res.Route.Pattern != "/users/{id}" {
		t.Errorf("Route = %+v, want the matched pattern", res.Route)
	}

	// The handler saw the adapted event.
	if seen.PathParameters["id"] != "42" {
		t.Errorf("PathParameters = %v", seen.PathParameters)
	}
	if seen.QueryStringParameters["verbose"] != "1" {
		t.Errorf("QueryStringParameters = %v", seen.QueryStringParameters)
	}
	if seen.Resource != "/users/{id}" {
		t.Errorf("Resource = %q", seen.Resource)
	}
	if seen.RequestContext.Stage != "dev" {
		t.Errorf("Stage = %q", seen.RequestContext.Stage)
	}
	if seen.RequestContext.APIID != "DemoApi" {
		t.Errorf("APIID = %q", seen.RequestContext.APIID)
	}
	if seen.RequestContext.RequestID != "req-1" {
		t.Errorf("RequestID = %q", seen.RequestContext.RequestID)
	}
}

func TestGatewayService_Handle_RouteMiss(t *testing.T) {
	svc := newTestGateway(t, nil, nil)
	serve(svc, buildTable(t, route.Spec{Method: "GET", Pattern: "/hello", HandlerRef: "a.b"}))

	res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/nope", nil), nil)

	if res.Response.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", res.Response.StatusCode)
	}
	if res.Route != nil {
		t.Errorf("Route = %+v, want nil on a miss", res.Route)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, a miss is not a fault", res.Err)
	}
}

func TestGatewayService_Handle_BeforeFirstSwap(t *testing.T) {
	svc := newTestGateway(t, nil, nil)

	res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/hello", nil), nil)

	if res.Response.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", res.Response.StatusCode)
	}
	if res.Err == nil {
		t.Error("Err = nil, want the missing-state fault")
	}
}

func TestGatewayService_Handle_UnresolvedHandler(t *testing.T) {
	svc := newTestGateway(t, nil, nil)
	serve(svc, buildTable(t, route.Spec{Method: "GET", Pattern: "/hello", HandlerRef: "no.such"}))

	res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/hello", nil), nil)

	if res.Response.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", res.Response.StatusCode)
	}
	if res.FailureReason != app.FailureResolve {
		t.Errorf("FailureReason = %q, want %q", res.FailureReason, app.FailureResolve)
	}
}

func TestGatewayService_Handle_HandlerError(t *testing.T) {
	svc := newTestGateway(t, nil, func(reg *invoke.Registry) {
		reg.RegisterFunc("src.bad", func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{}, errors.New("boom")
		})
	})
	serve(svc, buildTable(t, route.Spec{Method: "GET", Pattern: "/hello", HandlerRef: "src.bad"}))

	res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/hello", nil), nil)

	if res.Response.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", res.Response.StatusCode)
	}
	if res.FailureReason != app.FailureInvoke {
		t.Errorf("FailureReason = %q, want %q", res.FailureReason, app.FailureInvoke)
	}
}

func TestGatewayService_Handle_PanicIsolated(t *testing.T) {
	svc := newTestGateway(t, nil, func(reg *invoke.Registry) {
		reg.RegisterFunc("src.panics", func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			panic("unhandled")
		})
		reg.RegisterFunc("src.fine", func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{StatusCode: 204}, nil
		})
	})
	serve(svc, buildTable(t,
		route.Spec{Method: "GET", Pattern: "/panic", HandlerRef: "src.panics"},
		route.Spec{Method: "GET", Pattern: "/fine", HandlerRef: "src.fine"},
	))

	res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/panic", nil), nil)
	if res.Response.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500 from the contained panic", res.Response.StatusCode)
	}
	if res.FailureReason != app.FailureInvoke {
		t.Errorf("FailureReason = %q, want %q", res.FailureReason, app.FailureInvoke)
	}

	// The other route is unaffected.
	res = svc.Handle(context.Background(), httptest.NewRequest("GET", "/fine", nil), nil)
	if res.Response.StatusCode != 204 {
		t.Errorf("StatusCode = %d, want 204 after the panic", res.Response.StatusCode)
	}
}

func TestGatewayService_Handle_MalformedResult(t *testing.T) {
	svc := newTestGateway(t, nil, func(reg *invoke.Registry) {
		reg.RegisterFunc("src.zero", func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{Body: "no status"}, nil
		})
	})
	serve(svc, buildTable(t, route.Spec{Method: "GET", Pattern: "/hello", HandlerRef: "src.zero"}))

	res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/hello", nil), nil)

	if res.Response.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", res.Response.StatusCode)
	}
	if res.FailureReason != app.FailureResult {
		t.Errorf("FailureReason = %q, want %q", res.FailureReason, app.FailureResult)
	}
}

func TestGatewayService_Handle_AuthRejected(t *testing.T) {
	invoked := false
	provider := staticIdentity{err: errors.New("no credentials presented")}
	svc := newTestGateway(t, provider, func(reg *invoke.Registry) {
		reg.RegisterFunc("src.app.handler", func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			invoked = true
			return events.APIGatewayProxyResponse{StatusCode: 200}, nil
		})
	})
	serve(svc, buildTable(t, route.Spec{Method: "GET", Pattern: "/hello", HandlerRef: "src.app.handler"}))

	res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/hello", nil), nil)

	if res.Response.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want 401", res.Response.StatusCode)
	}
	if !res.AuthFailed {
		t.Error("AuthFailed = false, want true")
	}
	if invoked {
		t.Error("handler ran for a rejected request")
	}
}

func TestGatewayService_Handle_AuthorizerClaims(t *testing.T) {
	var seen events.APIGatewayProxyRequest
	provider := staticIdentity{id: ports.Identity{
		Subject: "user-1",
		Claims:  map[string]any{"scope": "read"},
	}}
	svc := newTestGateway(t, provider, func(reg *invoke.Registry) {
		reg.RegisterFunc("src.app.handler", func(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			seen = ev
			return events.APIGatewayProxyResponse{StatusCode: 200}, nil
		})
	})
	serve(svc, buildTable(t, route.Spec{Method: "GET", Pattern: "/hello", HandlerRef: "src.app.handler"}))

	res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/hello", nil), nil)

	if res.Identity == nil || res.Identity.Subject != "user-1" {
		t.Errorf("Identity = %+v, want subject user-1", res.Identity)
	}
	auth := seen.RequestContext.Authorizer
	if auth["principalId"] != "user-1" {
		t.Errorf("Authorizer[principalId] = %v, want user-1", auth["principalId"])
	}
	if auth["scope"] != "read" {
		t.Errorf("Authorizer[scope] = %v, want read", auth["scope"])
	}
}

func TestGatewayService_Swap(t *testing.T) {
	svc := newTestGateway(t, nil, func(reg *invoke.Registry) {
		reg.RegisterFunc("src.app.handler", func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{StatusCode: 200}, nil
		})
	})
	serve(svc, buildTable(t, route.Spec{Method: "GET", Pattern: "/old", HandlerRef: "src.app.handler"}))

	if res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/old", nil), nil); res.Response.StatusCode != 200 {
		t.Fatalf("StatusCode = %d before swap, want 200", res.Response.StatusCode)
	}

	serve(svc, buildTable(t, route.Spec{Method: "GET", Pattern: "/new", HandlerRef: "src.app.handler"}))

	if res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/old", nil), nil); res.Response.StatusCode != 404 {
		t.Errorf("StatusCode = %d for the retired route, want 404", res.Response.StatusCode)
	}
	if res := svc.Handle(context.Background(), httptest.NewRequest("GET", "/new", nil), nil); res.Response.StatusCode != 200 {
		t.Errorf("StatusCode = %d for the new route, want 200", res.Response.StatusCode)
	}
}

func TestGatewayService_OpenAPIJSON(t *testing.T) {
	svc := newTestGateway(t, nil, nil)

	if _, ok := svc.OpenAPIJSON(); ok {
		t.Error("OpenAPIJSON() ok = true before the first swap")
	}

	serve(svc, buildTable(t, route.Spec{Method: "GET", Pattern: "/hello", HandlerRef: "a.b"}))

	data, ok := svc.OpenAPIJSON()
	if !ok || string(data) != "{}" {
		t.Errorf("OpenAPIJSON() = %q, %v", data, ok)
	}
}
