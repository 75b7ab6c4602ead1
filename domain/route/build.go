package route

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Spec is one operation to compile, as produced by the extraction layer.
// A nil DeclaredParams means the operation carries no parameter list; a
// non-nil one must name exactly the pattern's captures.
type Spec struct {
	Method         string
	Pattern        string
	HandlerRef     string
	SourceAPIID    string
	DeclaredParams []string
}

// Options carry the per-table serving configuration.
type Options struct {
	Stage            string
	BinaryMediaTypes []string
}

// MethodAny expands to every standard method.
const MethodAny = "ANY"

var anyMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodHead,
	http.MethodOptions,
}

// Build compiles operation specs into a frozen table. Construction fails on
// the first duplicate declaration, parameter mismatch, or uncompilable
// pattern; a partially routable table is never produced.
func Build(specs []Spec, opts Options) (*Table, error) {
	type shapeKey struct {
		method string
		shape  string
	}
	type firstSeen struct {
		pattern string
		source  string
	}
	declared := make(map[shapeKey]firstSeen)

	var routes []Route
	for _, spec := range specs {
		if !strings.HasPrefix(spec.Pattern, "/") {
			return nil, fmt.Errorf("route %s %q: pattern must begin with a slash", spec.Method, spec.Pattern)
		}
		methods, err := expandMethods(spec.Method)
		if err != nil {
			return nil, fmt.Errorf("route %q %s: %w", spec.Method, spec.Pattern, err)
		}
		captured := capturedParams(spec.Pattern)
		if spec.DeclaredParams != nil && !sameNames(spec.DeclaredParams, captured) {
			return nil, &PathParameterMismatchError{
				Method:   spec.Method,
				Pattern:  spec.Pattern,
				Declared: spec.DeclaredParams,
				Captured: captured,
			}
		}
		shape := paramPattern.ReplaceAllString(spec.Pattern, "{}")
		for _, m := range methods {
			key := shapeKey{method: m, shape: shape}
			if prev, ok := declared[key]; ok {
				return nil, &DuplicateRouteError{
					Method:   m,
					Pattern:  spec.Pattern,
					Existing: prev.pattern,
					Sources:  [2]string{prev.source, spec.SourceAPIID},
				}
			}
			declared[key] = firstSeen{pattern: spec.Pattern, source: spec.SourceAPIID}
			routes = append(routes, Route{
				Method:      m,
				Pattern:     spec.Pattern,
				HandlerRef:  spec.HandlerRef,
				SourceAPIID: spec.SourceAPIID,
				ParamNames:  captured,
			})
		}
	}

	sortRoutes(routes)

	patterns := make([]compiledPattern, len(routes))
	for i, r := range routes {
		cp, err := compilePattern(r.Pattern, i)
		if err != nil {
			return nil, fmt.Errorf("route %s %s: %w", r.Method, r.Pattern, err)
		}
		patterns[i] = cp
	}

	return &Table{
		routes:      routes,
		patterns:    patterns,
		stage:       opts.Stage,
		binaryTypes: opts.BinaryMediaTypes,
	}, nil
}

func expandMethods(method string) ([]string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == MethodAny {
		return anyMethods, nil
	}
	for _, known := range anyMethods {
		if known == m {
			return []string{m}, nil
		}
	}
	return nil, fmt.Errorf("unsupported method")
}

// sortRoutes orders routes so that, comparing segment positions left to
// right, a literal segment is tried before a parameter capture. Declaration
// order is kept among routes of equal shape.
func sortRoutes(routes []Route) {
	kinds := make([]string, len(routes))
	for i, r := range routes {
		kinds[i] = segmentKinds(r.Pattern)
	}
	order := make([]int, len(routes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return lessKinds(kinds[order[i]], kinds[order[j]])
	})
	sorted := make([]Route, len(routes))
	for i, idx := range order {
		sorted[i] = routes[idx]
	}
	copy(routes, sorted)
}

func lessKinds(a, b string) bool {
	if a == b {
		return false
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	// shared prefix: routes of different lengths never compete for one
	// path, so any fixed order will do
	return len(a) > len(b)
}

func sameNames(declared, captured []string) bool {
	if len(declared) != len(captured) {
		return false
	}
	d := append([]string(nil), declared...)
	c := append([]string(nil), captured...)
	sort.Strings(d)
	sort.Strings(c)
	for i := range d {
		if d[i] != c[i] {
			return false
		}
	}
	return true
}
