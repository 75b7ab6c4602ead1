package event_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/artpar/samgate/domain/event"
)

func TestBuild(t *testing.T) {
	req := httptest.NewRequest("POST", "http://api.local/users/42?tag=a&tag=b&page=2", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Add("X-Tag", "one")
	req.Header.Add("X-Tag", "two")
	req.Header.Set("User-Agent", "samgate-test/1.0")

	when := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	built := event.Build(event.BuildInput{
		Request:      req,
		Body:         []byte(`{"name":"jo"}`),
		PathParams:   map[string]string{"id": "42"},
		ResourcePath: "/users/{id}",
		Stage:        "v1",
		APIID:        "Gateway",
		RequestID:    "req-123",
		RequestTime:  when,
		Authorizer:   map[string]any{"sub": "user-1"},
	})

	if built.HTTPMethod != "POST" || built.Path != "/users/42" {
		t.Errorf("method/path = %s %s", built.HTTPMethod, built.Path)
	}
	if built.Resource != "/users/{id}" {
		t.Errorf("resource = %q", built.Resource)
	}
	if built.Body != `{"name":"jo"}` || built.IsBase64Encoded {
		t.Errorf("body = %q encoded=%v", built.Body, built.IsBase64Encoded)
	}
	if built.PathParameters["id"] != "42" {
		t.Errorf("path params = %v", built.PathParameters)
	}

	if got := built.Headers["X-Tag"]; got != "two" {
		t.Errorf("single-value header = %q, want last occurrence", got)
	}
	if got := built.MultiValueHeaders["X-Tag"]; len(got) != 2 || got[0] != "one" {
		t.Errorf("multi-value header = %v", got)
	}
	if built.Headers["Host"] != "api.local" {
		t.Errorf("host header = %q", built.Headers["Host"])
	}

	if got := built.QueryStringParameters["tag"]; got != "b" {
		t.Errorf("single-value query = %q, want last occurrence", got)
	}
	if got := built.MultiValueQueryStringParameters["tag"]; len(got) != 2 || got[1] != "b" {
		t.Errorf("multi-value query = %v", got)
	}
	if built.QueryStringParameters["page"] != "2" {
		t.Errorf("query = %v", built.QueryStringParameters)
	}

	rc := built.RequestContext
	if rc.Stage != "v1" || rc.ResourcePath != "/users/{id}" || rc.Path != "/users/42" {
		t.Errorf("request context = %+v", rc)
	}
	if rc.RequestID != "req-123" || rc.APIID != "Gateway" {
		t.Errorf("request ids = %q %q", rc.RequestID, rc.APIID)
	}
	if rc.HTTPMethod != "POST" || rc.Protocol != "HTTP/1.1" {
		t.Errorf("context method/protocol = %s %s", rc.HTTPMethod, rc.Protocol)
	}
	if rc.RequestTime != "25/Aug/2026:12:00:00 +0000" {
		t.Errorf("request time = %q", rc.RequestTime)
	}
	if rc.RequestTimeEpoch != when.UnixMilli() {
		t.Errorf("request epoch = %d", rc.RequestTimeEpoch)
	}
	if rc.Identity.SourceIP != "192.0.2.1" {
		t.Errorf("source ip = %q", rc.Identity.SourceIP)
	}
	if rc.Identity.UserAgent != "samgate-test/1.0" {
		t.Errorf("user agent = %q", rc.Identity.UserAgent)
	}
	if rc.Authorizer["sub"] != "user-1" {
		t.Errorf("authorizer = %v", rc.Authorizer)
	}
}

func TestBuildBinaryBody(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff}

	tests := []struct {
		name        string
		contentType string
		binaryTypes []string
		wantBinary  bool
	}{
		{"exact match", "image/png", []string{"image/png"}, true},
		{"exact match with charset", "image/png; charset=binary", []string{"image/png"}, true},
		{"subtype wildcard", "image/png", []string{"image/*"}, true},
		{"catch-all", "application/octet-stream", []string{"*/*"}, true},
		{"case-insensitive", "Image/PNG", []string{"image/png"}, true},
		{"no configured types", "image/png", nil, false},
		{"unlisted type", "application/json", []string{"image/*"}, false},
		{"empty content type", "", []string{"*/*"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "http://api.local/upload", strings.NewReader(""))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			built := event.Build(event.BuildInput{
				Request:          req,
				Body:             payload,
				BinaryMediaTypes: tt.binaryTypes,
			})
			if built.IsBase64Encoded != tt.wantBinary {
				t.Fatalf("IsBase64Encoded = %v, want %v", built.IsBase64Encoded, tt.wantBinary)
			}
			if tt.wantBinary {
				if built.Body != "iVBORwD/" {
					t.Errorf("encoded body = %q", built.Body)
				}
			} else if built.Body != string(payload) {
				t.Errorf("raw body = %q", built.Body)
			}
		})
	}
}

func TestBuildDefaultsRequestTime(t *testing.T) {
	req := httptest.NewRequest("GET", "http://api.local/hello", nil)
	before := time.Now().UnixMilli()
	built := event.Build(event.BuildInput{Request: req})
	after := time.Now().UnixMilli()

	if built.RequestContext.RequestTimeEpoch < before || built.RequestContext.RequestTimeEpoch > after {
		t.Errorf("epoch %d outside [%d, %d]", built.RequestContext.RequestTimeEpoch, before, after)
	}
}

func TestBuildEmptyQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "http://api.local/hello", nil)
	built := event.Build(event.BuildInput{Request: req})

	if built.QueryStringParameters != nil {
		t.Errorf("query = %v, want nil", built.QueryStringParameters)
	}
	if built.MultiValueQueryStringParameters != nil {
		t.Errorf("multi query = %v, want nil", built.MultiValueQueryStringParameters)
	}
}
