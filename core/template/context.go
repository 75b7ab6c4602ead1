package template

import (
	"context"
	"os"
)

// FragmentLoader fetches and parses an external template fragment named by a
// location string. Implementations live outside this package (file system,
// object storage); resolution only needs this contract.
type FragmentLoader interface {
	Load(ctx context.Context, location string) (*Node, error)
}

// Context carries everything a resolution pass may look up: parameter
// bindings, the two-level mappings table, pseudo-parameter constants, the
// logical IDs declared by the template, and the fragment loader. It is not
// mutated during a pass; fragment inclusion derives child contexts instead.
type Context struct {
	Parameters map[string]any
	Mappings   map[string]map[string]map[string]any
	Pseudo     map[string]any
	LogicalIDs map[string]struct{}
	Fragments  FragmentLoader
}

// WithParameters returns a child context whose parameters are the receiver's
// overlaid with params. Mappings, pseudo-parameters, logical IDs, and the
// fragment loader are shared.
func (c *Context) WithParameters(params map[string]any) *Context {
	if len(params) == 0 {
		return c
	}
	merged := make(map[string]any, len(c.Parameters)+len(params))
	for k, v := range c.Parameters {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	child := *c
	child.Parameters = merged
	return &child
}

// lookupParameter resolves name against parameters first, then
// pseudo-parameters.
func (c *Context) lookupParameter(name string) (any, bool) {
	if v, ok := c.Parameters[name]; ok {
		return v, true
	}
	if v, ok := c.Pseudo[name]; ok {
		return v, true
	}
	return nil, false
}

func (c *Context) isLogicalID(name string) bool {
	_, ok := c.LogicalIDs[name]
	return ok
}

// DefaultPseudo builds the pseudo-parameter table for offline emulation.
// Region and account honor the usual AWS environment variables so templates
// resolve the way their authors expect; the rest are fixed stand-ins.
func DefaultPseudo(stackName string) map[string]any {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	account := os.Getenv("AWS_ACCOUNT_ID")
	if account == "" {
		account = "123456789012"
	}
	if stackName == "" {
		stackName = "local"
	}
	return map[string]any{
		"AWS::Region":    region,
		"AWS::AccountId": account,
		"AWS::Partition": "aws",
		"AWS::StackName": stackName,
		"AWS::StackId":   "arn:aws:cloudformation:" + region + ":" + account + ":stack/" + stackName + "/0",
		"AWS::URLSuffix": "amazonaws.com",
	}
}

// DeclaredParameters reads the Parameters section of a raw template and
// returns the declared defaults. Supplied bindings override defaults;
// declared parameters without a default or a binding are absent from the
// result and resolve as unresolved references.
func DeclaredParameters(root *Node, supplied map[string]string) map[string]any {
	out := make(map[string]any)
	params, ok := root.Get("Parameters")
	if ok && params.Kind == KindMapping {
		for _, e := range params.Entries {
			if def, ok := e.Value.Get("Default"); ok && def.Kind == KindScalar {
				out[e.Key] = def.Value
			}
		}
	}
	for k, v := range supplied {
		out[k] = v
	}
	return out
}

// DeclaredMappings reads the Mappings section of a raw template into the
// two-level lookup table consumed by Fn::FindInMap.
func DeclaredMappings(root *Node) map[string]map[string]map[string]any {
	out := make(map[string]map[string]map[string]any)
	maps, ok := root.Get("Mappings")
	if !ok || maps.Kind != KindMapping {
		return out
	}
	for _, m := range maps.Entries {
		if m.Value.Kind != KindMapping {
			continue
		}
		top := make(map[string]map[string]any, len(m.Value.Entries))
		for _, t := range m.Value.Entries {
			if t.Value.Kind != KindMapping {
				continue
			}
			second := make(map[string]any, len(t.Value.Entries))
			for _, s := range t.Value.Entries {
				second[s.Key] = s.Value.ToGo()
			}
			top[t.Key] = second
		}
		out[m.Key] = top
	}
	return out
}

// DeclaredLogicalIDs reads the Resources section and returns the set of
// declared logical IDs, the names Ref falls back to as stable placeholders.
func DeclaredLogicalIDs(root *Node) map[string]struct{} {
	out := make(map[string]struct{})
	res, ok := root.Get("Resources")
	if !ok || res.Kind != KindMapping {
		return out
	}
	for _, e := range res.Entries {
		out[e.Key] = struct{}{}
	}
	return out
}
