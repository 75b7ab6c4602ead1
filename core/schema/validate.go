// Package schema validates raw templates against the template format's
// structural rules before the pipeline interprets them: recognized top-level
// sections, resource shape, parameter declarations. Semantic failures
// (unresolvable references, route conflicts) are the pipeline's own errors;
// this package catches the malformed document earlier, with a location.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/artpar/samgate/core/template"
)

//go:embed sam.schema.json
var samSchema []byte

var (
	schemaOnce sync.Once
	schemaErr  error
	compiled   *jsonschema.Schema
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("sam.schema.json", bytes.NewReader(samSchema)); err != nil {
			schemaErr = err
			return
		}
		compiled, schemaErr = compiler.Compile("sam.schema.json")
	})
	return compiled, schemaErr
}

// Validate checks a raw template document. Short-form intrinsic tags are
// canonicalized before validation, so !Sub and Fn::Sub are judged the same.
// The returned error carries the schema location of the first violation.
func Validate(content []byte) error {
	sch, err := loadSchema()
	if err != nil {
		return fmt.Errorf("compile template schema: %w", err)
	}

	root, err := template.Parse(content)
	if err != nil {
		return err
	}

	doc, err := jsonValue(root)
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("template schema: %w", err)
	}
	return nil
}

// jsonValue round-trips the parsed tree through JSON so the validator sees
// the exact value types it is specified against.
func jsonValue(root *template.Node) (any, error) {
	data, err := json.Marshal(root.ToGo())
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return doc, nil
}
