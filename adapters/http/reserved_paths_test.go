package http_test

import (
	"testing"

	apihttp "github.com/artpar/samgate/adapters/http"
	"github.com/artpar/samgate/adapters/invoke"
	"github.com/artpar/samgate/domain/route"
)

// The operational namespace must stay reserved: a template declaring routes
// under it would otherwise shadow the endpoints needed to inspect the
// running emulator.
func TestReservedNamespace_NeverReachesTemplateRoutes(t *testing.T) {
	srv := newTestServer(t, nil, apihttp.RouterConfig{}, func(reg *invoke.Registry) {
		reg.RegisterFunc("src.app.handler", echo(200, "leaked"))
	}, route.Spec{Method: "GET", Pattern: "/_samgate/hidden", HandlerRef: "src.app.handler"})

	resp, body := get(t, srv.URL+"/_samgate/hidden")

	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body == "leaked" {
		t.Error("template route served under the reserved namespace")
	}
}

func TestReservedNamespace_UnknownPath(t *testing.T) {
	srv := newTestServer(t, nil, apihttp.RouterConfig{Docs: true}, nil,
		route.Spec{Method: "GET", Pattern: "/hello", HandlerRef: "a.b"})

	resp, _ := get(t, srv.URL+"/_samgate/no-such-endpoint")

	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// Sibling paths that merely share the prefix text are ordinary routes.
func TestReservedNamespace_PrefixBoundary(t *testing.T) {
	srv := newTestServer(t, nil, apihttp.RouterConfig{}, func(reg *invoke.Registry) {
		reg.RegisterFunc("src.app.handler", echo(200, "ok"))
	}, route.Spec{Method: "GET", Pattern: "/_samgate2", HandlerRef: "src.app.handler"})

	resp, body := get(t, srv.URL+"/_samgate2")

	if resp.StatusCode != 200 || body != "ok" {
		t.Errorf("status = %d body = %q, want the template route to serve", resp.StatusCode, body)
	}
}
