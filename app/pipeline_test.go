package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/samgate/adapters/memory"
	"github.com/artpar/samgate/app"
	"github.com/artpar/samgate/core/openapi"
)

const implicitTemplate = `AWSTemplateFormatVersion: "2010-09-09"
Transform: AWS::Serverless-2016-10-31
Resources:
  HelloFunction:
    Type: AWS::Serverless::Function
    Properties:
      Handler: app.handler
      CodeUri: src/handlers
      Runtime: python3.11
      Events:
        Hello:
          Type: Api
          Properties:
            Path: /hello
            Method: get
`

const explicitTemplate = `AWSTemplateFormatVersion: "2010-09-09"
Transform: AWS::Serverless-2016-10-31
Resources:
  UsersFunction:
    Type: AWS::Serverless::Function
    Properties:
      Handler: users.get
      CodeUri: src
      Runtime: python3.11
  DemoApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: dev
      DefinitionBody:
        openapi: "3.0.1"
        info:
          title: Demo
          version: "1.0"
        paths:
          /users/{id}:
            get:
              parameters:
                - name: id
                  in: path
                  required: true
              x-amazon-apigateway-integration:
                type: aws_proxy
                httpMethod: POST
                uri: !Sub arn:aws:apigateway:${AWS::Region}:lambda:path/2015-03-31/functions/${UsersFunction.Arn}/invocations
`

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	return path
}

func buildPipeline(t *testing.T, content string, cfg app.PipelineConfig) *app.BuildOutput {
	t.Helper()
	cfg.TemplatePath = writeTemplate(t, content)
	p := app.NewPipeline(app.PipelineDeps{}, cfg)
	out, err := p.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return out
}

func TestPipeline_ImplicitRoutes(t *testing.T) {
	out := buildPipeline(t, implicitTemplate, app.PipelineConfig{})

	if out.Table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", out.Table.Len())
	}
	m := out.Table.Match("GET", "/hello")
	if m == nil {
		t.Fatal("Match(GET /hello) = nil, want route")
	}
	if m.Route.HandlerRef != "src.handlers.app.handler" {
		t.Errorf("HandlerRef = %q, want src.handlers.app.handler", m.Route.HandlerRef)
	}
	if m.Route.SourceAPIID != openapi.ImplicitGatewayID {
		t.Errorf("SourceAPIID = %q, want %q", m.Route.SourceAPIID, openapi.ImplicitGatewayID)
	}
	if out.Table.Stage() != app.DefaultStage {
		t.Errorf("Stage() = %q, want %q", out.Table.Stage(), app.DefaultStage)
	}
	if len(out.Functions) != 1 {
		t.Errorf("len(Functions) = %d, want 1", len(out.Functions))
	}
}

func TestPipeline_ExplicitGateway(t *testing.T) {
	out := buildPipeline(t, explicitTemplate, app.PipelineConfig{})

	if out.Table.Stage() != "dev" {
		t.Errorf("Stage() = %q, want dev", out.Table.Stage())
	}
	m := out.Table.Match("GET", "/users/42")
	if m == nil {
		t.Fatal("Match(GET /users/42) = nil, want route")
	}
	if m.Route.HandlerRef != "src.users.get" {
		t.Errorf("HandlerRef = %q, want src.users.get", m.Route.HandlerRef)
	}
	if m.Route.SourceAPIID != "DemoApi" {
		t.Errorf("SourceAPIID = %q, want DemoApi", m.Route.SourceAPIID)
	}
	if got := m.PathParams["id"]; got != "42" {
		t.Errorf("PathParams[id] = %q, want 42", got)
	}
	if out.Document.Title != "Demo" {
		t.Errorf("Title = %q, want Demo", out.Document.Title)
	}
}

func TestPipeline_StageOverride(t *testing.T) {
	out := buildPipeline(t, explicitTemplate, app.PipelineConfig{Stage: "staging"})

	if out.Table.Stage() != "staging" {
		t.Errorf("Stage() = %q, want the configured override", out.Table.Stage())
	}
}

func TestPipeline_UnknownGatewayFails(t *testing.T) {
	path := writeTemplate(t, explicitTemplate)
	p := app.NewPipeline(app.PipelineDeps{}, app.PipelineConfig{
		TemplatePath: path,
		GatewayID:    "NoSuchApi",
	})
	_, err := p.Build(context.Background())
	if err == nil {
		t.Fatal("Build() = nil error, want gateway lookup failure")
	}
	var lookupErr *openapi.GatewayLookupError
	if !errors.As(err, &lookupErr) {
		t.Errorf("error = %v, want GatewayLookupError", err)
	}
}

func TestPipeline_DuplicateRoutesFail(t *testing.T) {
	dup := strings.Replace(implicitTemplate, "  HelloFunction:",
		`  OtherFunction:
    Type: AWS::Serverless::Function
    Properties:
      Handler: other.handler
      CodeUri: src
      Runtime: python3.11
      Events:
        Hello:
          Type: Api
          Properties:
            Path: /hello
            Method: get
  HelloFunction:`, 1)

	path := writeTemplate(t, dup)
	p := app.NewPipeline(app.PipelineDeps{}, app.PipelineConfig{TemplatePath: path})
	if _, err := p.Build(context.Background()); err == nil {
		t.Fatal("Build() = nil error, want duplicate route failure")
	}
}

func TestPipeline_MemoizationCache(t *testing.T) {
	cache := memory.NewCache()
	path := writeTemplate(t, implicitTemplate)
	cfg := app.PipelineConfig{TemplatePath: path}

	first, err := app.NewPipeline(app.PipelineDeps{Cache: cache}, cfg).Build(context.Background())
	if err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	if first.FromCache {
		t.Error("first build reported a cache hit")
	}

	second, err := app.NewPipeline(app.PipelineDeps{Cache: cache}, cfg).Build(context.Background())
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if !second.FromCache {
		t.Error("second build missed the cache")
	}
	if second.Table.Len() != first.Table.Len() {
		t.Errorf("cached build has %d routes, fresh build %d", second.Table.Len(), first.Table.Len())
	}
	if m := second.Table.Match("GET", "/hello"); m == nil {
		t.Error("cached build lost GET /hello")
	}
}

func TestPipeline_CacheKeyedOnParameters(t *testing.T) {
	cache := memory.NewCache()
	path := writeTemplate(t, implicitTemplate)

	if _, err := app.NewPipeline(app.PipelineDeps{Cache: cache}, app.PipelineConfig{
		TemplatePath: path,
	}).Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	out, err := app.NewPipeline(app.PipelineDeps{Cache: cache}, app.PipelineConfig{
		TemplatePath: path,
		Parameters:   map[string]string{"Stage": "dev"},
	}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if out.FromCache {
		t.Error("different parameters hit the same cache entry")
	}
}

func TestPipeline_CacheInvalidatedByEdit(t *testing.T) {
	cache := memory.NewCache()
	path := writeTemplate(t, implicitTemplate)
	cfg := app.PipelineConfig{TemplatePath: path}

	if _, err := app.NewPipeline(app.PipelineDeps{Cache: cache}, cfg).Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	edited := strings.Replace(implicitTemplate, "Path: /hello", "Path: /goodbye", 1) + "# edited\n"
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatalf("rewrite template: %v", err)
	}

	out, err := app.NewPipeline(app.PipelineDeps{Cache: cache}, cfg).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if out.FromCache {
		t.Error("edited template hit the stale cache entry")
	}
	if m := out.Table.Match("GET", "/goodbye"); m == nil {
		t.Error("edited template did not produce GET /goodbye")
	}
}

func TestPipeline_ServingDocumentCoversImplicitRoutes(t *testing.T) {
	combined := explicitTemplate + `  PingFunction:
    Type: AWS::Serverless::Function
    Properties:
      Handler: ping.handler
      CodeUri: src
      Runtime: python3.11
      Events:
        Ping:
          Type: Api
          Properties:
            Path: /ping
            Method: get
`
	out := buildPipeline(t, combined, app.PipelineConfig{})

	if out.Table.Len() != 2 {
		t.Fatalf("Len() = %d, want the authored and the implicit route", out.Table.Len())
	}

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(out.OpenAPIJSON, &doc); err != nil {
		t.Fatalf("unmarshal serving document: %v", err)
	}
	for _, pattern := range []string{"/users/{id}", "/ping"} {
		if _, ok := doc.Paths[pattern]; !ok {
			t.Errorf("serving document is missing %s", pattern)
		}
	}
}

func TestPipeline_BinaryMediaTypesMerged(t *testing.T) {
	withBinary := strings.Replace(explicitTemplate, "      StageName: dev",
		"      StageName: dev\n      BinaryMediaTypes:\n        - image/png", 1)
	out := buildPipeline(t, withBinary, app.PipelineConfig{
		BinaryMediaTypes: []string{"application/octet-stream", "image/png"},
	})

	got := out.Table.BinaryMediaTypes()
	want := []string{"image/png", "application/octet-stream"}
	if len(got) != len(want) {
		t.Fatalf("BinaryMediaTypes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("BinaryMediaTypes()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPipeline_MissingTemplateFile(t *testing.T) {
	p := app.NewPipeline(app.PipelineDeps{}, app.PipelineConfig{
		TemplatePath: filepath.Join(t.TempDir(), "absent.yaml"),
	})
	if _, err := p.Build(context.Background()); err == nil {
		t.Fatal("Build() = nil error for a missing template file")
	}
}
