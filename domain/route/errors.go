package route

import (
	"fmt"
	"strings"
)

// DuplicateRouteError reports two operations competing for the same method
// and path shape. Parameter names are ignored when comparing shapes, so
// /users/{id} and /users/{name} collide.
type DuplicateRouteError struct {
	Method   string
	Pattern  string
	Existing string
	Sources  [2]string
}

func (e *DuplicateRouteError) Error() string {
	by := ""
	if e.Sources[0] != "" || e.Sources[1] != "" {
		by = fmt.Sprintf(" (declared by %s and %s)", e.Sources[0], e.Sources[1])
	}
	if e.Existing != e.Pattern {
		return fmt.Sprintf("route %s %s collides with %s%s", e.Method, e.Pattern, e.Existing, by)
	}
	return fmt.Sprintf("duplicate route %s %s%s", e.Method, e.Pattern, by)
}

// PathParameterMismatchError reports an operation whose declared path
// parameters differ from the pattern's captures.
type PathParameterMismatchError struct {
	Method   string
	Pattern  string
	Declared []string
	Captured []string
}

func (e *PathParameterMismatchError) Error() string {
	return fmt.Sprintf("route %s %s: declared path parameters [%s] do not match pattern captures [%s]",
		e.Method, e.Pattern, strings.Join(e.Declared, " "), strings.Join(e.Captured, " "))
}
