// Package route compiles extracted API operations into the immutable table
// consulted on every request. Patterns mix literal segments with {name}
// parameter captures; ambiguous declarations fail construction instead of
// being tie-broken at request time.
package route

// Route is one compiled operation of the table.
type Route struct {
	Method      string
	Pattern     string
	HandlerRef  string
	SourceAPIID string
	ParamNames  []string // capture names in pattern order
}

// Table is the frozen routing state for one resolved template. It is built
// once, shared read-only across concurrent requests, and replaced wholesale
// on reload, never mutated.
type Table struct {
	routes      []Route
	patterns    []compiledPattern
	stage       string
	binaryTypes []string
}

// Stage returns the serving stage name.
func (t *Table) Stage() string { return t.stage }

// BinaryMediaTypes returns the content types treated as binary payloads.
func (t *Table) BinaryMediaTypes() []string { return t.binaryTypes }

// Len returns the number of compiled routes.
func (t *Table) Len() int { return len(t.routes) }

// Routes returns the compiled routes in matching order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}
