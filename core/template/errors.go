package template

import (
	"fmt"
	"strings"
)

// UnresolvedReferenceError reports a reference to a parameter, mapping entry,
// or logical ID that the resolution context does not know about.
type UnresolvedReferenceError struct {
	Name string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %q", e.Name)
}

// MalformedIntrinsicError reports an intrinsic whose operand does not match
// the arity or type the function expects.
type MalformedIntrinsicError struct {
	Intrinsic string
	Reason    string
}

func (e *MalformedIntrinsicError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Intrinsic, e.Reason)
}

// CyclicIncludeError reports a fragment that transitively includes its own
// source. Chain holds the include locations in resolution order, ending with
// the location that closed the cycle.
type CyclicIncludeError struct {
	Chain []string
}

func (e *CyclicIncludeError) Error() string {
	return fmt.Sprintf("cyclic fragment inclusion: %s", strings.Join(e.Chain, " -> "))
}

// UndefinedConditionError reports a resource referencing a condition name
// that the Conditions section does not declare.
type UndefinedConditionError struct {
	Name string
}

func (e *UndefinedConditionError) Error() string {
	return fmt.Sprintf("undefined condition %q", e.Name)
}
