// Package openapi extracts routable operations from the API definition
// documents embedded in a resolved template. Each operation carries the
// handler reference recovered from its integration metadata, tagged with
// the owning gateway's logical ID.
package openapi

import (
	"encoding/json"
	"strings"

	"github.com/artpar/samgate/core/template"
)

// MethodAny marks an operation that accepts every standard HTTP method.
const MethodAny = "ANY"

// Parameter is a declared operation parameter.
type Parameter struct {
	Name     string
	In       string // path, query or header
	Required bool
}

// Operation is one routable method on a path.
type Operation struct {
	Method            string // upper-case HTTP method, or MethodAny
	IntegrationTarget string // dotted handler reference
	Parameters        []Parameter
}

// Path groups the operations declared under one path pattern.
type Path struct {
	Pattern    string
	Operations []Operation
}

// Document is the canonical, routable view of one API definition.
// Body keeps the resolved definition document for serving; a document
// synthesized from function events has no body.
type Document struct {
	SourceAPIID      string
	StageName        string
	BinaryMediaTypes []string
	Title            string
	Version          string
	Paths            []Path
	Body             *template.Node
}

// PathParameters returns the names of path-location parameters, or nil when
// the operation declares no parameter list at all.
func (o Operation) PathParameters() []string {
	if o.Parameters == nil {
		return nil
	}
	names := []string{}
	for _, p := range o.Parameters {
		if p.In == "path" {
			names = append(names, p.Name)
		}
	}
	return names
}

// SyntheticPaths renders the extracted operations as plain OpenAPI path
// items carrying the integration extension, for serving when the document
// has no authored body, or for merging event-derived routes into one.
func (d *Document) SyntheticPaths() map[string]any {
	paths := make(map[string]any, len(d.Paths))
	for _, p := range d.Paths {
		item := make(map[string]any, len(p.Operations))
		for _, op := range p.Operations {
			key := strings.ToLower(op.Method)
			if op.Method == MethodAny {
				key = anyMethodKey
			}
			entry := map[string]any{
				IntegrationExtension: map[string]any{
					"type":       "aws_proxy",
					"httpMethod": "POST",
					"uri":        op.IntegrationTarget,
				},
			}
			if op.Parameters != nil {
				params := make([]any, 0, len(op.Parameters))
				for _, pr := range op.Parameters {
					params = append(params, map[string]any{
						"name":     pr.Name,
						"in":       pr.In,
						"required": pr.Required,
					})
				}
				entry["parameters"] = params
			}
			item[key] = entry
		}
		paths[p.Pattern] = item
	}
	return paths
}

// ServingJSON renders the document for the openapi.json endpoint. An
// authored body is served as resolved; otherwise a minimal document is
// synthesized from the extracted operations. Title and version, when set,
// override the body's info section.
func (d *Document) ServingJSON() ([]byte, error) {
	var doc map[string]any
	if d.Body != nil {
		if m, ok := d.Body.ToGo().(map[string]any); ok {
			doc = m
		}
	}
	if doc == nil {
		doc = map[string]any{
			"openapi": "3.0.1",
			"paths":   d.SyntheticPaths(),
		}
	}
	info, ok := doc["info"].(map[string]any)
	if !ok {
		info = map[string]any{}
	}
	if d.Title != "" {
		info["title"] = d.Title
	}
	if d.Version != "" {
		info["version"] = d.Version
	}
	if _, ok := info["title"]; !ok {
		info["title"] = d.SourceAPIID
	}
	if _, ok := info["version"]; !ok {
		info["version"] = d.StageName
	}
	doc["info"] = info
	return json.MarshalIndent(doc, "", "  ")
}
