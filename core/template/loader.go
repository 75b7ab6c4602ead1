package template

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// intrinsicNames maps long-form mapping keys to canonical intrinsic names.
// A single-key mapping whose key appears here is an intrinsic invocation.
var intrinsicNames = map[string]string{
	"Ref":           "Ref",
	"Fn::GetAtt":    "Fn::GetAtt",
	"Fn::FindInMap": "Fn::FindInMap",
	"Fn::Sub":       "Fn::Sub",
	"Fn::Transform": "Fn::Transform",
}

// shortTags maps YAML short-form tags to canonical intrinsic names.
var shortTags = map[string]string{
	"!Ref":       "Ref",
	"!GetAtt":    "Fn::GetAtt",
	"!FindInMap": "Fn::FindInMap",
	"!Sub":       "Fn::Sub",
	"!Transform": "Fn::Transform",
}

// Parse reads a YAML or JSON template document into a node tree. Mapping key
// order is preserved, duplicate keys are rejected, and both the tag short
// form (!Ref Name) and the mapping long form ({"Ref": "Name"}) of intrinsic
// functions become KindIntrinsic nodes.
func Parse(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, fmt.Errorf("parse template: empty document")
	}
	return fromYAML(doc.Content[0])
}

func fromYAML(yn *yaml.Node) (*Node, error) {
	// Aliases point at their anchor's node.
	if yn.Kind == yaml.AliasNode {
		return fromYAML(yn.Alias)
	}

	if fn, ok := shortTags[yn.Tag]; ok {
		return Intrinsic(fn, taggedOperand(yn)), nil
	}
	if strings.HasPrefix(yn.Tag, "!") && !strings.HasPrefix(yn.Tag, "!!") {
		return nil, &MalformedIntrinsicError{Intrinsic: yn.Tag, Reason: "unsupported intrinsic tag"}
	}

	switch yn.Kind {
	case yaml.ScalarNode:
		v, err := scalarValue(yn)
		if err != nil {
			return nil, err
		}
		return Scalar(v), nil

	case yaml.SequenceNode:
		items := make([]*Node, 0, len(yn.Content))
		for _, c := range yn.Content {
			child, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			items = append(items, child)
		}
		return Sequence(items...), nil

	case yaml.MappingNode:
		entries := make([]Entry, 0, len(yn.Content)/2)
		seen := make(map[string]bool, len(yn.Content)/2)
		for i := 0; i+1 < len(yn.Content); i += 2 {
			keyNode := yn.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", keyNode.Line)
			}
			key := keyNode.Value
			if seen[key] {
				return nil, fmt.Errorf("line %d: duplicate mapping key %q", keyNode.Line, key)
			}
			seen[key] = true
			val, err := fromYAML(yn.Content[i+1])
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: key, Value: val})
		}
		// The long form: a single-key mapping named after an intrinsic.
		if len(entries) == 1 {
			if fn, ok := intrinsicNames[entries[0].Key]; ok {
				return Intrinsic(fn, entries[0].Value), nil
			}
		}
		return Mapping(entries...), nil

	default:
		return nil, fmt.Errorf("line %d: unsupported node kind", yn.Line)
	}
}

// taggedOperand parses the operand of a short-form intrinsic. The custom tag
// suppressed the scalar's implicit typing, so it is re-resolved here;
// collection operands keep their children's resolved tags and recurse
// through fromYAML with the custom tag cleared. Operand shape errors are the
// resolver's to report, so this never fails.
func taggedOperand(yn *yaml.Node) *Node {
	if yn.Kind == yaml.ScalarNode {
		return Scalar(untaggedScalar(yn))
	}
	clone := *yn
	clone.Tag = ""
	n, err := fromYAML(&clone)
	if err != nil {
		return Scalar(yn.Value)
	}
	return n
}

func scalarValue(yn *yaml.Node) (any, error) {
	switch yn.Tag {
	case "!!null":
		return nil, nil
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(yn.Value))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid boolean %q", yn.Line, yn.Value)
		}
		return b, nil
	case "!!int":
		n, err := strconv.ParseInt(yn.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid integer %q", yn.Line, yn.Value)
		}
		return n, nil
	case "!!float":
		f, err := strconv.ParseFloat(yn.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid float %q", yn.Line, yn.Value)
		}
		return f, nil
	default:
		return yn.Value, nil
	}
}

// untaggedScalar types a scalar whose implicit tag was displaced by a custom
// tag. Quoted scalars stay strings.
func untaggedScalar(yn *yaml.Node) any {
	quoted := yn.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0
	if quoted {
		return yn.Value
	}
	s := yn.Value
	switch s {
	case "null", "~", "":
		return nil
	case "true", "True":
		return true
	case "false", "False":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
