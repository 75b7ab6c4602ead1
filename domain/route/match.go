package route

import (
	"regexp"
	"strings"
)

// MatchResult contains information about a successful route match.
type MatchResult struct {
	Route      *Route
	PathParams map[string]string // extracted path parameters ({id} -> "123")
}

type compiledPattern struct {
	routeIdx   int
	regex      *regexp.Regexp // for patterns with parameter captures
	exact      string         // for literal-only patterns
	paramNames []string
}

var paramPattern = regexp.MustCompile(`\{([^}]+)\}`)

// capturedParams returns the parameter names appearing in a pattern, in order.
func capturedParams(pattern string) []string {
	var names []string
	for _, p := range paramPattern.FindAllStringSubmatch(pattern, -1) {
		names = append(names, p[1])
	}
	return names
}

// compilePattern turns a path pattern into its matcher. Literal-only
// patterns compare by string equality; parameterized ones compile to an
// anchored regex with one named capture per {name} slot, literal runs
// quoted so dots and dashes keep their plain meaning.
func compilePattern(pattern string, routeIdx int) (compiledPattern, error) {
	cp := compiledPattern{routeIdx: routeIdx}
	if !strings.Contains(pattern, "{") {
		cp.exact = pattern
		return cp, nil
	}
	cp.paramNames = capturedParams(pattern)

	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range paramPattern.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		b.WriteString("(?P<" + pattern[loc[2]:loc[3]] + ">[^/]+)")
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")

	regex, err := regexp.Compile(b.String())
	if err != nil {
		return cp, err
	}
	cp.regex = regex
	return cp, nil
}

// Match finds the route serving method+path, or nil when none does.
// Construction ordered the patterns literal-first per segment position, so
// the first hit is the preferred one.
func (t *Table) Match(method, path string) *MatchResult {
	method = strings.ToUpper(method)
	for _, cp := range t.patterns {
		r := &t.routes[cp.routeIdx]
		if r.Method != method {
			continue
		}
		params := matchPath(cp, path)
		if params == nil {
			continue
		}
		return &MatchResult{Route: r, PathParams: params}
	}
	return nil
}

// matchPath checks if the path matches the compiled pattern.
// Returns path parameters if matched, nil if no match.
func matchPath(cp compiledPattern, path string) map[string]string {
	params := make(map[string]string)

	if cp.regex == nil {
		if path == cp.exact {
			return params
		}
		return nil
	}

	matches := cp.regex.FindStringSubmatch(path)
	if matches == nil {
		return nil
	}
	for i, name := range cp.regex.SubexpNames() {
		if i > 0 && name != "" && i < len(matches) {
			params[name] = matches[i]
		}
	}
	return params
}

// segmentKinds summarizes a pattern as one byte per segment, 'l' for a
// literal and 'p' for a parameter capture. 'l' sorts before 'p', which is
// exactly the literal-over-parameter preference.
func segmentKinds(pattern string) string {
	segs := strings.Split(strings.Trim(pattern, "/"), "/")
	kinds := make([]byte, len(segs))
	for i, s := range segs {
		if strings.Contains(s, "{") {
			kinds[i] = 'p'
		} else {
			kinds[i] = 'l'
		}
	}
	return string(kinds)
}
