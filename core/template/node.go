// Package template loads, resolves, and normalizes CloudFormation/SAM-style
// templates: YAML or JSON documents whose mappings keep key order and whose
// intrinsic functions (Ref, Fn::GetAtt, Fn::FindInMap, Fn::Sub,
// Fn::Transform) are evaluated against a resolution context before the
// template is consumed by anything else.
package template

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind discriminates the Node variants.
type Kind int

const (
	KindScalar Kind = iota
	KindMapping
	KindSequence
	KindIntrinsic
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	case KindIntrinsic:
		return "intrinsic"
	default:
		return "unknown"
	}
}

// Node is one node of a parsed template: a closed union over scalars,
// ordered mappings, sequences, and intrinsic-function invocations.
// A resolved tree contains no KindIntrinsic nodes.
type Node struct {
	Kind Kind

	// Value holds the scalar payload: string, int64, float64, bool, or nil.
	Value any

	// Entries holds mapping entries in document order. Keys are unique.
	Entries []Entry

	// Items holds sequence elements in document order.
	Items []*Node

	// Fn is the canonical intrinsic name ("Ref", "Fn::Sub", ...) and
	// Operand its argument tree.
	Fn      string
	Operand *Node
}

// Entry is a single key/value pair of a mapping node.
type Entry struct {
	Key   string
	Value *Node
}

// Scalar builds a scalar node.
func Scalar(v any) *Node {
	return &Node{Kind: KindScalar, Value: v}
}

// Mapping builds a mapping node from ordered entries.
func Mapping(entries ...Entry) *Node {
	return &Node{Kind: KindMapping, Entries: entries}
}

// Sequence builds a sequence node.
func Sequence(items ...*Node) *Node {
	return &Node{Kind: KindSequence, Items: items}
}

// Intrinsic builds an intrinsic invocation node.
func Intrinsic(fn string, operand *Node) *Node {
	return &Node{Kind: KindIntrinsic, Fn: fn, Operand: operand}
}

// Get returns the value for key in a mapping node.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != KindMapping {
		return nil, false
	}
	for _, e := range n.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// StringValue returns the scalar string payload, converting numeric and
// boolean scalars to their canonical text form.
func (n *Node) StringValue() (string, bool) {
	if n == nil || n.Kind != KindScalar {
		return "", false
	}
	return formatScalar(n.Value), true
}

// BoolValue returns the scalar boolean payload. String scalars "true" and
// "false" are accepted since conditions frequently resolve through string
// parameters.
func (n *Node) BoolValue() (bool, bool) {
	if n == nil || n.Kind != KindScalar {
		return false, false
	}
	switch v := n.Value.(type) {
	case bool:
		return v, true
	case string:
		switch v {
		case "true", "True":
			return true, true
		case "false", "False":
			return false, true
		}
	}
	return false, false
}

// ContainsIntrinsic reports whether any intrinsic node remains reachable
// from n. A resolved tree returns false.
func (n *Node) ContainsIntrinsic() bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case KindIntrinsic:
		return true
	case KindMapping:
		for _, e := range n.Entries {
			if e.Value.ContainsIntrinsic() {
				return true
			}
		}
	case KindSequence:
		for _, it := range n.Items {
			if it.ContainsIntrinsic() {
				return true
			}
		}
	}
	return false
}

// ToGo converts a resolved tree into plain Go values: scalars as themselves,
// mappings as map[string]any, sequences as []any. Intrinsic nodes convert to
// their canonical single-key mapping form so unresolved trees still
// round-trip through encoding.
func (n *Node) ToGo() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindScalar:
		return n.Value
	case KindMapping:
		m := make(map[string]any, len(n.Entries))
		for _, e := range n.Entries {
			m[e.Key] = e.Value.ToGo()
		}
		return m
	case KindSequence:
		s := make([]any, len(n.Items))
		for i, it := range n.Items {
			s[i] = it.ToGo()
		}
		return s
	case KindIntrinsic:
		return map[string]any{n.Fn: n.Operand.ToGo()}
	default:
		return nil
	}
}

// FromGo converts plain Go values (as produced by ToGo or by a JSON/YAML
// decode into any) back into a node tree. Map keys are emitted in sorted
// order since Go maps carry none.
func FromGo(v any) (*Node, error) {
	switch t := v.(type) {
	case nil:
		return Scalar(nil), nil
	case string, bool, int64, float64:
		return Scalar(t), nil
	case int:
		return Scalar(int64(t)), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			child, err := FromGo(t[k])
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: k, Value: child})
		}
		return Mapping(entries...), nil
	case []any:
		items := make([]*Node, 0, len(t))
		for _, it := range t {
			child, err := FromGo(it)
			if err != nil {
				return nil, err
			}
			items = append(items, child)
		}
		return Sequence(items...), nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

// formatScalar renders a scalar payload as its canonical text form.
func formatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
