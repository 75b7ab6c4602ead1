// Package app provides application services that orchestrate domain logic:
// the template pipeline that builds serving state, and per-request gateway
// handling against that state.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/artpar/samgate/core/openapi"
	"github.com/artpar/samgate/core/template"
	"github.com/artpar/samgate/domain/route"
	"github.com/artpar/samgate/ports"
)

// DefaultStage names the serving stage when neither the configuration nor
// the selected gateway declares one.
const DefaultStage = "Prod"

// Pipeline runs the template build: read, parse, resolve, normalize,
// extract, compile. One run produces the complete serving state; nothing is
// mutated afterwards, so a Pipeline is safe to re-run for hot reload while
// the previous output keeps serving.
type Pipeline struct {
	fragments template.FragmentLoader
	cache     ports.Cache

	cfg PipelineConfig
}

// PipelineDeps contains dependencies for Pipeline.
type PipelineDeps struct {
	Fragments template.FragmentLoader
	Cache     ports.Cache // nil disables memoization
}

// PipelineConfig contains configuration for Pipeline.
type PipelineConfig struct {
	TemplatePath     string
	Parameters       map[string]string
	Stage            string // overrides the gateway's StageName
	GatewayID        string // explicit gateway logical ID, empty selects the sole one
	BinaryMediaTypes []string
	CacheTTL         time.Duration
}

// NewPipeline creates a new template pipeline.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		fragments: deps.Fragments,
		cache:     deps.Cache,
		cfg:       cfg,
	}
}

// BuildOutput is the serving state produced by one pipeline run.
type BuildOutput struct {
	Table     *route.Table
	Document  *openapi.Document
	Functions map[string]template.FunctionDefinition

	// OpenAPIJSON is the rendered serving document, computed once per build.
	OpenAPIJSON []byte

	// FromCache reports whether the resolved tree came from the memoization
	// cache instead of a fresh resolution pass.
	FromCache bool
}

// Build runs the whole pipeline once. Any error is startup-fatal for the
// state under construction: the caller must not serve a partial result.
func (p *Pipeline) Build(ctx context.Context) (*BuildOutput, error) {
	info, err := os.Stat(p.cfg.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("stat template: %w", err)
	}
	raw, err := os.ReadFile(p.cfg.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	// 1. Parse the raw template into the intrinsic-aware tree.
	root, err := template.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	// 2. Bind the resolution context from the template's own declarations.
	rc := &template.Context{
		Parameters: template.DeclaredParameters(root, p.cfg.Parameters),
		Mappings:   template.DeclaredMappings(root),
		Pseudo:     template.DefaultPseudo(stackName(p.cfg.TemplatePath)),
		LogicalIDs: template.DeclaredLogicalIDs(root),
		Fragments:  p.fragments,
	}

	// 3. Resolve, consulting the memoization cache first. A cache hit that
	// fails to decode falls through to a fresh resolution pass.
	key := p.cacheKey(info)
	resolved, fromCache := p.cachedTree(ctx, key)
	if resolved == nil {
		resolved, err = template.Resolve(ctx, root, rc)
		if err != nil {
			return nil, fmt.Errorf("resolve template: %w", err)
		}
		p.storeTree(ctx, key, resolved)
	}

	// 4. Normalize: merge globals, evaluate conditions, order resources.
	tpl, err := template.Normalize(resolved)
	if err != nil {
		return nil, fmt.Errorf("normalize template: %w", err)
	}

	// 5. Decode the typed resources the routing layer understands.
	functions := map[string]template.FunctionDefinition{}
	for _, r := range tpl.ByType(template.TypeServerlessFunction) {
		fn, err := template.DecodeFunction(r)
		if err != nil {
			return nil, fmt.Errorf("decode function %s: %w", r.LogicalID, err)
		}
		functions[r.LogicalID] = fn
	}
	apis := map[string]template.ApiDefinition{}
	for _, typ := range []string{template.TypeServerlessApi, template.TypeRestApi} {
		for _, r := range tpl.ByType(typ) {
			api, err := template.DecodeApi(r)
			if err != nil {
				return nil, fmt.Errorf("decode api %s: %w", r.LogicalID, err)
			}
			apis[r.LogicalID] = api
		}
	}

	// 6. Select the gateway and extract its document; function events not
	// claimed by it become implicit routes.
	api, hasGateway, err := openapi.SelectGateway(apis, tpl.Order, p.cfg.GatewayID)
	if err != nil {
		return nil, err
	}
	var doc *openapi.Document
	gatewayID := ""
	gatewayHasBody := false
	if hasGateway {
		doc, err = openapi.Extract(api, functions)
		if err != nil {
			return nil, err
		}
		gatewayID = api.LogicalID
		gatewayHasBody = api.DefinitionBody != nil
	}
	implicit := openapi.ImplicitDocument(orderedFunctions(tpl.Order, functions), gatewayID, gatewayHasBody)

	// 7. Compile the route table.
	specs := routeSpecs(doc, implicit)
	opts := route.Options{
		Stage:            p.stage(doc),
		BinaryMediaTypes: p.binaryTypes(doc),
	}
	table, err := route.Build(specs, opts)
	if err != nil {
		return nil, err
	}

	serving := doc
	if serving == nil {
		serving = implicit
	}
	served, err := servingJSON(serving, implicit)
	if err != nil {
		return nil, fmt.Errorf("render api document: %w", err)
	}

	return &BuildOutput{
		Table:       table,
		Document:    serving,
		Functions:   functions,
		OpenAPIJSON: served,
		FromCache:   fromCache,
	}, nil
}

// cacheKey identifies one resolution input: the template path, the supplied
// parameter bindings, and the file's mtime+size so edits invalidate.
func (p *Pipeline) cacheKey(info os.FileInfo) string {
	h := sha256.New()
	names := make([]string, 0, len(p.cfg.Parameters))
	for name := range p.cfg.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s\n", name, p.cfg.Parameters[name])
	}
	params := hex.EncodeToString(h.Sum(nil)[:8])
	return fmt.Sprintf("template:%s:%s:%d:%d",
		p.cfg.TemplatePath, params, info.ModTime().UnixNano(), info.Size())
}

// cachedTree loads a previously resolved tree from the cache. Misses and
// undecodable entries both return nil; the caller resolves fresh.
func (p *Pipeline) cachedTree(ctx context.Context, key string) (*template.Node, bool) {
	if p.cache == nil {
		return nil, false
	}
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	n, err := template.FromGo(v)
	if err != nil {
		return nil, false
	}
	return n, true
}

// storeTree writes a resolved tree to the cache. Failures are ignored; the
// cache only ever saves work.
func (p *Pipeline) storeTree(ctx context.Context, key string, n *template.Node) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(n.ToGo())
	if err != nil {
		return
	}
	_ = p.cache.Set(ctx, key, data, p.cfg.CacheTTL)
}

// stage picks the serving stage: configuration override first, then the
// gateway's declared StageName, then the conventional default.
func (p *Pipeline) stage(doc *openapi.Document) string {
	if p.cfg.Stage != "" {
		return p.cfg.Stage
	}
	if doc != nil && doc.StageName != "" {
		return doc.StageName
	}
	return DefaultStage
}

// binaryTypes merges the gateway's declared binary media types with the
// configured ones, preserving declaration order and dropping duplicates.
func (p *Pipeline) binaryTypes(doc *openapi.Document) []string {
	var merged []string
	seen := map[string]struct{}{}
	add := func(types []string) {
		for _, t := range types {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			merged = append(merged, t)
		}
	}
	if doc != nil {
		add(doc.BinaryMediaTypes)
	}
	add(p.cfg.BinaryMediaTypes)
	return merged
}

// routeSpecs flattens extracted documents into the operation specs the route
// compiler consumes. Nil documents contribute nothing.
func routeSpecs(docs ...*openapi.Document) []route.Spec {
	var specs []route.Spec
	for _, d := range docs {
		if d == nil {
			continue
		}
		for _, path := range d.Paths {
			for _, op := range path.Operations {
				specs = append(specs, route.Spec{
					Method:         op.Method,
					Pattern:        path.Pattern,
					HandlerRef:     op.IntegrationTarget,
					SourceAPIID:    d.SourceAPIID,
					DeclaredParams: op.PathParameters(),
				})
			}
		}
	}
	return specs
}

// orderedFunctions lists decoded functions in template declaration order so
// implicit route extraction is deterministic.
func orderedFunctions(order []string, functions map[string]template.FunctionDefinition) []template.FunctionDefinition {
	out := make([]template.FunctionDefinition, 0, len(functions))
	for _, id := range order {
		if fn, ok := functions[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// servingJSON renders the primary document, folding in implicit paths the
// authored body does not already declare so the served document covers every
// compiled route.
func servingJSON(primary, implicit *openapi.Document) ([]byte, error) {
	data, err := primary.ServingJSON()
	if err != nil {
		return nil, err
	}
	if primary == implicit || implicit == nil || len(implicit.Paths) == 0 {
		return data, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		paths = map[string]any{}
	}
	for pattern, item := range implicit.SyntheticPaths() {
		if _, ok := paths[pattern]; !ok {
			paths[pattern] = item
		}
	}
	doc["paths"] = paths
	return json.MarshalIndent(doc, "", "  ")
}

// stackName derives the pseudo stack name from the template file name.
func stackName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
