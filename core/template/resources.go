package template

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Well-known resource types this engine gives typed shape to. Everything
// else stays in ResolvedTemplate untyped; unknown types may still be
// referenced by Ref and Fn::GetAtt but contribute no routes.
const (
	TypeServerlessFunction = "AWS::Serverless::Function"
	TypeServerlessApi      = "AWS::Serverless::Api"
	TypeRestApi            = "AWS::ApiGateway::RestApi"
)

// FunctionDefinition is the typed view of an AWS::Serverless::Function.
type FunctionDefinition struct {
	LogicalID   string `mapstructure:"-"`
	Handler     string
	CodeURI     string `mapstructure:"CodeUri"`
	Runtime     string
	Timeout     int
	MemorySize  int
	Description string
	Environment EnvironmentDefinition
	Events      map[string]EventDefinition
}

// EnvironmentDefinition holds a function's environment variables.
type EnvironmentDefinition struct {
	Variables map[string]string
}

// EventDefinition is one entry of a function's Events mapping.
type EventDefinition struct {
	Type       string
	Properties ApiEventProperties
}

// ApiEventProperties describes an Api-type event source.
type ApiEventProperties struct {
	Path      string
	Method    string
	RestApiID string `mapstructure:"RestApiId"`
}

// ApiDefinition is the typed view of an AWS::Serverless::Api, minus its
// definition body, which stays a node tree so the document keeps key order.
type ApiDefinition struct {
	LogicalID        string `mapstructure:"-"`
	Name             string
	StageName        string
	DefinitionURI    string `mapstructure:"DefinitionUri"`
	BinaryMediaTypes []string
	DefinitionBody   *Node `mapstructure:"-"`
}

// HandlerReference joins a function's code location and handler name into
// the dotted reference the invocation layer resolves:
// CodeUri "src/handlers" + Handler "hello.handle" -> "src.handlers.hello.handle".
func (f FunctionDefinition) HandlerReference() string {
	code := strings.Trim(f.CodeURI, "/")
	code = strings.TrimPrefix(code, "./")
	code = strings.ReplaceAll(code, "/", ".")
	if code == "" {
		return f.Handler
	}
	return code + "." + f.Handler
}

// DecodeFunction decodes a resource into its typed function definition.
func DecodeFunction(r Resource) (FunctionDefinition, error) {
	var def FunctionDefinition
	if err := decodeProperties(r, &def); err != nil {
		return def, err
	}
	def.LogicalID = r.LogicalID
	if def.Handler == "" {
		return def, fmt.Errorf("function %q has no Handler", r.LogicalID)
	}
	return def, nil
}

// DecodeApi decodes a resource into its typed API definition. The
// DefinitionBody node is carried as-is.
func DecodeApi(r Resource) (ApiDefinition, error) {
	var def ApiDefinition
	if err := decodeProperties(r, &def); err != nil {
		return def, err
	}
	def.LogicalID = r.LogicalID
	if body, ok := r.Properties.Get("DefinitionBody"); ok {
		def.DefinitionBody = body
	} else if body, ok := r.Properties.Get("Body"); ok {
		// AWS::ApiGateway::RestApi spells it Body.
		def.DefinitionBody = body
	}
	return def, nil
}

func decodeProperties(r Resource, out any) error {
	props := map[string]any{}
	if r.Properties != nil {
		if m, ok := r.Properties.ToGo().(map[string]any); ok {
			props = m
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(props); err != nil {
		return fmt.Errorf("decode %s %q: %w", r.Type, r.LogicalID, err)
	}
	return nil
}
