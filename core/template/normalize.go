package template

import (
	"fmt"
)

// Resource is one resolved resource definition.
type Resource struct {
	LogicalID  string
	Type       string
	Properties *Node
	Metadata   *Node
}

// ResolvedTemplate is the normalized output of a resolution pass: resources
// by logical ID, with declaration order preserved for deterministic
// downstream construction.
type ResolvedTemplate struct {
	Resources map[string]Resource
	Order     []string
}

// globalsSection maps resource types to their key under Globals.
var globalsSection = map[string]string{
	"AWS::Serverless::Function":    "Function",
	"AWS::Serverless::Api":         "Api",
	"AWS::Serverless::HttpApi":     "HttpApi",
	"AWS::Serverless::SimpleTable": "SimpleTable",
}

// Normalize turns a resolved template tree into a ResolvedTemplate. Globals
// merge under each resource's properties with the resource winning per
// top-level key (shallow, matching the format's documented behavior), and
// resources whose condition evaluated false are omitted. A reference to an
// undeclared condition fails with UndefinedConditionError.
func Normalize(root *Node) (*ResolvedTemplate, error) {
	if root == nil || root.Kind != KindMapping {
		return nil, fmt.Errorf("template root must be a mapping")
	}
	resources, ok := root.Get("Resources")
	if !ok || resources.Kind != KindMapping || len(resources.Entries) == 0 {
		return nil, fmt.Errorf("template has no Resources section")
	}

	globals := map[string]*Node{}
	if g, ok := root.Get("Globals"); ok && g.Kind == KindMapping {
		for _, e := range g.Entries {
			globals[e.Key] = e.Value
		}
	}

	conditions := map[string]bool{}
	if c, ok := root.Get("Conditions"); ok && c.Kind == KindMapping {
		for _, e := range c.Entries {
			b, ok := e.Value.BoolValue()
			if !ok {
				return nil, fmt.Errorf("condition %q does not evaluate to a boolean", e.Key)
			}
			conditions[e.Key] = b
		}
	}

	out := &ResolvedTemplate{
		Resources: make(map[string]Resource, len(resources.Entries)),
		Order:     make([]string, 0, len(resources.Entries)),
	}

	for _, e := range resources.Entries {
		body := e.Value
		if body.Kind != KindMapping {
			return nil, fmt.Errorf("resource %q must be a mapping", e.Key)
		}
		typeNode, ok := body.Get("Type")
		if !ok {
			return nil, fmt.Errorf("resource %q has no Type", e.Key)
		}
		typ, ok := typeNode.StringValue()
		if !ok || typ == "" {
			return nil, fmt.Errorf("resource %q has a non-string Type", e.Key)
		}

		if cond, ok := body.Get("Condition"); ok {
			name, _ := cond.StringValue()
			val, declared := conditions[name]
			if !declared {
				return nil, &UndefinedConditionError{Name: name}
			}
			if !val {
				continue
			}
		}

		props, _ := body.Get("Properties")
		if g, ok := globals[globalsSection[typ]]; ok {
			props = mergeGlobals(props, g)
		}
		meta, _ := body.Get("Metadata")

		out.Resources[e.Key] = Resource{
			LogicalID:  e.Key,
			Type:       typ,
			Properties: props,
			Metadata:   meta,
		}
		out.Order = append(out.Order, e.Key)
	}

	return out, nil
}

// ByType returns the resources of one type in declaration order.
func (t *ResolvedTemplate) ByType(typ string) []Resource {
	var out []Resource
	for _, id := range t.Order {
		if r := t.Resources[id]; r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// mergeGlobals overlays resource properties on a Globals section. The merge
// is shallow: a top-level key present on the resource hides the global key
// entirely, nested mappings are not combined. Resource key order is kept,
// with globals-only keys appended in their own order.
func mergeGlobals(props, globals *Node) *Node {
	if globals == nil || globals.Kind != KindMapping {
		return props
	}
	if props == nil || props.Kind != KindMapping {
		return globals
	}
	entries := make([]Entry, 0, len(props.Entries)+len(globals.Entries))
	entries = append(entries, props.Entries...)
	for _, g := range globals.Entries {
		if _, ok := props.Get(g.Key); !ok {
			entries = append(entries, g)
		}
	}
	return Mapping(entries...)
}
