package route_test

import (
	"testing"

	"github.com/artpar/samgate/domain/route"
)

func mustBuild(t *testing.T, specs []route.Spec, opts route.Options) *route.Table {
	t.Helper()
	table, err := route.Build(specs, opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return table
}

func TestTable_ExactMatch(t *testing.T) {
	table := mustBuild(t, []route.Spec{
		{Method: "GET", Pattern: "/api/users", HandlerRef: "src.users.list"},
		{Method: "GET", Pattern: "/api/posts", HandlerRef: "src.posts.list"},
	}, route.Options{})

	tests := []struct {
		name    string
		method  string
		path    string
		wantRef string
		wantNil bool
	}{
		{"exact match /api/users", "GET", "/api/users", "src.users.list", false},
		{"exact match /api/posts", "GET", "/api/posts", "src.posts.list", false},
		{"lower-case method", "get", "/api/users", "src.users.list", false},
		{"wrong method", "POST", "/api/users", "", true},
		{"no match below", "GET", "/api", "", true},
		{"no match above", "GET", "/api/users/123", "", true},
		{"no match sibling", "GET", "/api/other", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := table.Match(tt.method, tt.path)
			if tt.wantNil {
				if result != nil {
					t.Errorf("expected nil, got route %s", result.Route.HandlerRef)
				}
				return
			}
			if result == nil {
				t.Fatalf("expected match, got nil")
			}
			if result.Route.HandlerRef != tt.wantRef {
				t.Errorf("handler = %s, want %s", result.Route.HandlerRef, tt.wantRef)
			}
		})
	}
}

func TestTable_ParamCapture(t *testing.T) {
	table := mustBuild(t, []route.Spec{
		{Method: "GET", Pattern: "/users/{id}", HandlerRef: "src.users.get"},
		{Method: "GET", Pattern: "/orgs/{org}/users/{user}", HandlerRef: "src.orgs.member"},
	}, route.Options{})

	tests := []struct {
		name       string
		path       string
		wantRef    string
		wantParams map[string]string
		wantNil    bool
	}{
		{"single param", "/users/123", "src.users.get", map[string]string{"id": "123"}, false},
		{"two params", "/orgs/acme/users/jo", "src.orgs.member", map[string]string{"org": "acme", "user": "jo"}, false},
		{"param never spans a slash", "/users/1/2", "", nil, true},
		{"missing segment", "/orgs/acme/users", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := table.Match("GET", tt.path)
			if tt.wantNil {
				if result != nil {
					t.Errorf("expected nil, got %s", result.Route.HandlerRef)
				}
				return
			}
			if result == nil {
				t.Fatalf("expected match, got nil")
			}
			if result.Route.HandlerRef != tt.wantRef {
				t.Errorf("handler = %s, want %s", result.Route.HandlerRef, tt.wantRef)
			}
			if len(result.PathParams) != len(tt.wantParams) {
				t.Fatalf("params = %v, want %v", result.PathParams, tt.wantParams)
			}
			for k, v := range tt.wantParams {
				if result.PathParams[k] != v {
					t.Errorf("param %s = %q, want %q", k, result.PathParams[k], v)
				}
			}
		})
	}
}

func TestTable_LiteralBeatsParam(t *testing.T) {
	// The parameterized routes are declared first; order of declaration
	// must not decide the winner.
	table := mustBuild(t, []route.Spec{
		{Method: "GET", Pattern: "/users/{id}", HandlerRef: "src.users.get"},
		{Method: "GET", Pattern: "/users/me", HandlerRef: "src.users.self"},
		{Method: "GET", Pattern: "/items/{id}", HandlerRef: "src.items.get"},
		{Method: "GET", Pattern: "/items/active", HandlerRef: "src.items.active"},
	}, route.Options{})

	tests := []struct {
		name    string
		path    string
		wantRef string
	}{
		{"literal /users/me", "/users/me", "src.users.self"},
		{"param still reachable", "/users/42", "src.users.get"},
		{"literal /items/active", "/items/active", "src.items.active"},
		{"param /items/7", "/items/7", "src.items.get"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := table.Match("GET", tt.path)
			if result == nil {
				t.Fatalf("expected match, got nil")
			}
			if result.Route.HandlerRef != tt.wantRef {
				t.Errorf("handler = %s, want %s", result.Route.HandlerRef, tt.wantRef)
			}
		})
	}
}

func TestTable_LiteralPositionPreference(t *testing.T) {
	table := mustBuild(t, []route.Spec{
		{Method: "GET", Pattern: "/{group}/detail", HandlerRef: "src.group.detail"},
		{Method: "GET", Pattern: "/files/{name}", HandlerRef: "src.files.get"},
	}, route.Options{})

	// Both patterns match /files/detail; the one literal in the earlier
	// position wins.
	result := table.Match("GET", "/files/detail")
	if result == nil {
		t.Fatal("expected match")
	}
	if result.Route.HandlerRef != "src.files.get" {
		t.Errorf("handler = %s, want src.files.get", result.Route.HandlerRef)
	}
}

func TestTable_DotsInLiteralsStayLiteral(t *testing.T) {
	table := mustBuild(t, []route.Spec{
		{Method: "GET", Pattern: "/v1.0/{name}", HandlerRef: "src.v1.get"},
	}, route.Options{})

	if table.Match("GET", "/v1x0/ping") != nil {
		t.Error("dot in literal segment matched an arbitrary character")
	}
	if table.Match("GET", "/v1.0/ping") == nil {
		t.Error("expected literal dot to match")
	}
}

func TestTable_AnyMethod(t *testing.T) {
	table := mustBuild(t, []route.Spec{
		{Method: "ANY", Pattern: "/proxy", HandlerRef: "src.proxy.handle"},
	}, route.Options{})

	if table.Len() != 7 {
		t.Errorf("Len = %d, want 7 expanded methods", table.Len())
	}
	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"} {
		if table.Match(method, "/proxy") == nil {
			t.Errorf("method %s did not match", method)
		}
	}
	if table.Match("TRACE", "/proxy") != nil {
		t.Error("TRACE matched an ANY route")
	}
}

func TestTable_Accessors(t *testing.T) {
	table := mustBuild(t, []route.Spec{
		{Method: "GET", Pattern: "/users/{id}", HandlerRef: "src.users.get", SourceAPIID: "Gateway"},
		{Method: "GET", Pattern: "/users/me", HandlerRef: "src.users.self", SourceAPIID: "Gateway"},
	}, route.Options{
		Stage:            "v1",
		BinaryMediaTypes: []string{"image/png"},
	})

	if table.Stage() != "v1" {
		t.Errorf("Stage = %q", table.Stage())
	}
	if types := table.BinaryMediaTypes(); len(types) != 1 || types[0] != "image/png" {
		t.Errorf("BinaryMediaTypes = %v", types)
	}

	routes := table.Routes()
	if len(routes) != 2 {
		t.Fatalf("Routes = %d entries", len(routes))
	}
	// Matching order: the literal pattern first.
	if routes[0].Pattern != "/users/me" || routes[1].Pattern != "/users/{id}" {
		t.Errorf("route order = %s, %s", routes[0].Pattern, routes[1].Pattern)
	}
	if routes[1].ParamNames[0] != "id" {
		t.Errorf("param names = %v", routes[1].ParamNames)
	}
	if routes[0].SourceAPIID != "Gateway" {
		t.Errorf("source = %q", routes[0].SourceAPIID)
	}
}
