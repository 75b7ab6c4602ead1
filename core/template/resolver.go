package template

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// subPattern matches ${Name}, ${Logical.Attribute}, and the ${!Literal}
// escape form inside Fn::Sub templates.
var subPattern = regexp.MustCompile(`\$\{([!]?[A-Za-z0-9_.:]+)\}`)

// Resolve walks node depth-first and evaluates every intrinsic against rc,
// returning a tree with no intrinsic nodes left. Children resolve before
// their parent intrinsic consumes them, so nesting works to any depth.
// Resolution is deterministic and idempotent: resolving a resolved tree
// returns an equal tree.
func Resolve(ctx context.Context, node *Node, rc *Context) (*Node, error) {
	r := &resolver{rc: rc}
	return r.resolve(ctx, node)
}

type resolver struct {
	rc *Context

	// includes is the stack of fragment locations on the current resolution
	// path, used to detect cyclic inclusion.
	includes []string
}

func (r *resolver) resolve(ctx context.Context, n *Node) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case KindScalar:
		return n, nil

	case KindMapping:
		entries := make([]Entry, 0, len(n.Entries))
		for _, e := range n.Entries {
			v, err := r.resolve(ctx, e.Value)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: e.Key, Value: v})
		}
		return Mapping(entries...), nil

	case KindSequence:
		items := make([]*Node, 0, len(n.Items))
		for _, it := range n.Items {
			v, err := r.resolve(ctx, it)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return Sequence(items...), nil

	case KindIntrinsic:
		operand, err := r.resolve(ctx, n.Operand)
		if err != nil {
			return nil, err
		}
		switch n.Fn {
		case "Ref":
			return r.evalRef(operand)
		case "Fn::GetAtt":
			return r.evalGetAtt(operand)
		case "Fn::FindInMap":
			return r.evalFindInMap(operand)
		case "Fn::Sub":
			return r.evalSub(operand)
		case "Fn::Transform":
			return r.evalTransform(ctx, operand)
		default:
			return nil, &MalformedIntrinsicError{Intrinsic: n.Fn, Reason: "unknown intrinsic"}
		}

	default:
		return nil, fmt.Errorf("unsupported node kind %v", n.Kind)
	}
}

// evalRef resolves a name against parameters, then pseudo-parameters, then
// declared logical IDs. A logical ID resolves to itself: with no deployed
// resources there is no runtime value to substitute, and the name is the
// stable placeholder downstream consumers key on.
func (r *resolver) evalRef(operand *Node) (*Node, error) {
	name, ok := operand.StringValue()
	if !ok || name == "" {
		return nil, &MalformedIntrinsicError{Intrinsic: "Ref", Reason: "operand must be a non-empty name"}
	}
	if v, ok := r.rc.lookupParameter(name); ok {
		return Scalar(v), nil
	}
	if r.rc.isLogicalID(name) {
		return Scalar(name), nil
	}
	return nil, &UnresolvedReferenceError{Name: name}
}

// evalGetAtt yields the placeholder "<LogicalId>.<AttributeName>". No live
// resource attributes exist outside a deployment, so the dotted name is the
// documented stand-in. Both the ["Id", "Attr"] and "Id.Attr" operand forms
// are accepted.
func (r *resolver) evalGetAtt(operand *Node) (*Node, error) {
	switch operand.Kind {
	case KindScalar:
		s, _ := operand.StringValue()
		if !strings.Contains(s, ".") {
			return nil, &MalformedIntrinsicError{Intrinsic: "Fn::GetAtt", Reason: "scalar operand must be \"LogicalId.Attribute\""}
		}
		return Scalar(s), nil
	case KindSequence:
		if len(operand.Items) < 2 {
			return nil, &MalformedIntrinsicError{Intrinsic: "Fn::GetAtt", Reason: "list operand needs a logical ID and an attribute"}
		}
		parts := make([]string, 0, len(operand.Items))
		for _, it := range operand.Items {
			s, ok := it.StringValue()
			if !ok {
				return nil, &MalformedIntrinsicError{Intrinsic: "Fn::GetAtt", Reason: "operand elements must be scalars"}
			}
			parts = append(parts, s)
		}
		return Scalar(strings.Join(parts, ".")), nil
	default:
		return nil, &MalformedIntrinsicError{Intrinsic: "Fn::GetAtt", Reason: "operand must be a list or dotted string"}
	}
}

// evalFindInMap performs the two-level table lookup. The three operand
// elements were already resolved by the bottom-up walk.
func (r *resolver) evalFindInMap(operand *Node) (*Node, error) {
	if operand.Kind != KindSequence || len(operand.Items) != 3 {
		return nil, &MalformedIntrinsicError{Intrinsic: "Fn::FindInMap", Reason: "operand must be [map, top key, second key]"}
	}
	keys := make([]string, 3)
	for i, it := range operand.Items {
		s, ok := it.StringValue()
		if !ok {
			return nil, &MalformedIntrinsicError{Intrinsic: "Fn::FindInMap", Reason: "keys must resolve to scalars"}
		}
		keys[i] = s
	}
	top, ok := r.rc.Mappings[keys[0]]
	if !ok {
		return nil, &UnresolvedReferenceError{Name: keys[0]}
	}
	second, ok := top[keys[1]]
	if !ok {
		return nil, &UnresolvedReferenceError{Name: keys[0] + "." + keys[1]}
	}
	v, ok := second[keys[2]]
	if !ok {
		return nil, &UnresolvedReferenceError{Name: keys[0] + "." + keys[1] + "." + keys[2]}
	}
	return FromGo(v)
}

// evalSub interpolates ${name} placeholders. Plain names resolve like Ref,
// dotted names collapse to the Fn::GetAtt placeholder string, and ${!x}
// escapes to the literal ${x}. The two-element form layers its variable map
// over the context's parameters for the duration of the template.
func (r *resolver) evalSub(operand *Node) (*Node, error) {
	tmpl := operand
	locals := map[string]any{}

	if operand.Kind == KindSequence {
		if len(operand.Items) != 2 || operand.Items[1].Kind != KindMapping {
			return nil, &MalformedIntrinsicError{Intrinsic: "Fn::Sub", Reason: "list operand must be [template, variable map]"}
		}
		tmpl = operand.Items[0]
		for _, e := range operand.Items[1].Entries {
			if e.Value.Kind != KindScalar {
				return nil, &MalformedIntrinsicError{Intrinsic: "Fn::Sub", Reason: "variable values must resolve to scalars"}
			}
			locals[e.Key] = e.Value.Value
		}
	}

	s, ok := tmpl.StringValue()
	if !ok {
		return nil, &MalformedIntrinsicError{Intrinsic: "Fn::Sub", Reason: "template must be a string"}
	}

	var firstErr error
	out := subPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if strings.HasPrefix(name, "!") {
			return "${" + name[1:] + "}"
		}
		if v, ok := locals[name]; ok {
			return formatScalar(v)
		}
		if v, ok := r.rc.lookupParameter(name); ok {
			return formatScalar(v)
		}
		if strings.Contains(name, ".") {
			// The attribute placeholder, same as Fn::GetAtt.
			return name
		}
		if r.rc.isLogicalID(name) {
			return name
		}
		if firstErr == nil {
			firstErr = &UnresolvedReferenceError{Name: name}
		}
		return match
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return Scalar(out), nil
}

// evalTransform splices an external fragment in place of the intrinsic. The
// operand names the fragment location and optionally parameters that layer
// over the parent context for the fragment's own resolution. Locations on
// the current include path trip cycle detection.
func (r *resolver) evalTransform(ctx context.Context, operand *Node) (*Node, error) {
	if operand.Kind != KindMapping {
		return nil, &MalformedIntrinsicError{Intrinsic: "Fn::Transform", Reason: "operand must be a mapping"}
	}
	if name, ok := operand.Get("Name"); ok {
		s, _ := name.StringValue()
		if s != "" && s != "AWS::Include" {
			return nil, &MalformedIntrinsicError{Intrinsic: "Fn::Transform", Reason: fmt.Sprintf("unsupported transform %q", s)}
		}
	}
	params, _ := operand.Get("Parameters")
	if params == nil || params.Kind != KindMapping {
		return nil, &MalformedIntrinsicError{Intrinsic: "Fn::Transform", Reason: "missing Parameters mapping"}
	}

	var location string
	overlay := map[string]any{}
	for _, e := range params.Entries {
		if e.Key == "Location" {
			location, _ = e.Value.StringValue()
			continue
		}
		if e.Value.Kind == KindScalar {
			overlay[e.Key] = e.Value.Value
		}
	}
	if location == "" {
		return nil, &MalformedIntrinsicError{Intrinsic: "Fn::Transform", Reason: "missing Location parameter"}
	}

	for _, seen := range r.includes {
		if seen == location {
			return nil, &CyclicIncludeError{Chain: append(append([]string{}, r.includes...), location)}
		}
	}
	if r.rc.Fragments == nil {
		return nil, fmt.Errorf("include %q: no fragment loader configured", location)
	}

	fragment, err := r.rc.Fragments.Load(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("include %q: %w", location, err)
	}

	child := &resolver{
		rc:       r.rc.WithParameters(overlay),
		includes: append(r.includes, location),
	}
	resolved, err := child.resolve(ctx, fragment)
	if err != nil {
		return nil, fmt.Errorf("include %q: %w", location, err)
	}
	return resolved, nil
}
