package openapi

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/artpar/samgate/core/template"
)

// IntegrationExtension is the vendor extension key carrying an operation's
// integration metadata.
const IntegrationExtension = "x-amazon-apigateway-integration"

// anyMethodKey stands in for every standard method on a path.
const anyMethodKey = "x-amazon-apigateway-any-method"

// ImplicitGatewayID tags operations derived from function events when the
// template declares no API resource.
const ImplicitGatewayID = "ImplicitGateway"

var methodKeys = map[string]string{
	"get":        "GET",
	"post":       "POST",
	"put":        "PUT",
	"delete":     "DELETE",
	"patch":      "PATCH",
	"head":       "HEAD",
	"options":    "OPTIONS",
	anyMethodKey: MethodAny,
}

// Integration URIs name the target function two ways: via Fn::Sub before
// resolution, and via the spliced attribute placeholder after.
var (
	subARNPattern      = regexp.MustCompile(`^arn:aws:apigateway.*\$\{(\w+)\.Arn\}/invocations$`)
	resolvedARNPattern = regexp.MustCompile(`^arn:aws:apigateway.*/(\w+)\.Arn/invocations$`)
)

// Extract reads one API resource's definition body into its canonical
// document. Every recognized operation must carry a usable integration, and
// integration URIs are translated to handler references against the
// template's declared functions.
func Extract(api template.ApiDefinition, functions map[string]template.FunctionDefinition) (*Document, error) {
	doc := &Document{
		SourceAPIID:      api.LogicalID,
		StageName:        api.StageName,
		BinaryMediaTypes: api.BinaryMediaTypes,
		Body:             api.DefinitionBody,
	}
	if api.DefinitionBody == nil {
		return doc, nil
	}
	if info, ok := api.DefinitionBody.Get("info"); ok {
		if title, ok := info.Get("title"); ok {
			doc.Title, _ = title.StringValue()
		}
		if version, ok := info.Get("version"); ok {
			doc.Version, _ = version.StringValue()
		}
	}
	paths, ok := api.DefinitionBody.Get("paths")
	if !ok || paths.Kind != template.KindMapping {
		return doc, nil
	}
	for _, pe := range paths.Entries {
		item, err := extractPathItem(api.LogicalID, pe.Key, pe.Value, functions)
		if err != nil {
			return nil, err
		}
		if len(item.Operations) > 0 {
			doc.Paths = append(doc.Paths, item)
		}
	}
	return doc, nil
}

func extractPathItem(apiID, pattern string, item *template.Node, functions map[string]template.FunctionDefinition) (Path, error) {
	p := Path{Pattern: pattern}
	if item == nil || item.Kind != template.KindMapping {
		return p, nil
	}
	shared := parameterList(item)
	for _, me := range item.Entries {
		method, ok := methodKeys[strings.ToLower(me.Key)]
		if !ok {
			continue
		}
		op, err := extractOperation(apiID, pattern, method, me.Value, shared, functions)
		if err != nil {
			return p, err
		}
		p.Operations = append(p.Operations, op)
	}
	return p, nil
}

func extractOperation(apiID, pattern, method string, node *template.Node, shared []Parameter, functions map[string]template.FunctionDefinition) (Operation, error) {
	op := Operation{Method: method}
	integration, ok := node.Get(IntegrationExtension)
	if !ok {
		return op, &MissingIntegrationError{API: apiID, Path: pattern, Method: method, Reason: "missing " + IntegrationExtension}
	}
	uri, err := integrationURI(integration)
	if err != nil {
		return op, &MissingIntegrationError{API: apiID, Path: pattern, Method: method, Reason: err.Error()}
	}
	ref, err := handlerRef(uri, functions)
	if err != nil {
		return op, &MissingIntegrationError{API: apiID, Path: pattern, Method: method, Reason: err.Error()}
	}
	op.IntegrationTarget = ref
	op.Parameters = mergeParameters(shared, parameterList(node))
	return op, nil
}

// integrationURI pulls the uri out of an integration mapping. Resolution has
// normally replaced any intrinsic by this point; an Fn::Sub left in place is
// still honored so unresolved documents extract identically.
func integrationURI(integration *template.Node) (string, error) {
	if integration == nil || integration.Kind != template.KindMapping {
		return "", fmt.Errorf("integration is not a mapping")
	}
	uri, ok := integration.Get("uri")
	if !ok {
		return "", fmt.Errorf("integration has no uri")
	}
	if uri.Kind == template.KindIntrinsic && uri.Fn == "Fn::Sub" {
		if s, ok := uri.Operand.StringValue(); ok {
			return s, nil
		}
	}
	s, ok := uri.StringValue()
	if !ok {
		return "", fmt.Errorf("integration uri is not a string")
	}
	if s == "" {
		return "", fmt.Errorf("integration uri is empty")
	}
	return s, nil
}

// handlerRef translates an integration uri into a dotted handler reference.
// Lambda invocation ARNs name a declared function whose code location and
// handler join into the reference; any other non-ARN uri is taken as a
// literal reference.
func handlerRef(uri string, functions map[string]template.FunctionDefinition) (string, error) {
	var logicalID string
	if m := subARNPattern.FindStringSubmatch(uri); m != nil {
		logicalID = m[1]
	} else if m := resolvedARNPattern.FindStringSubmatch(uri); m != nil {
		logicalID = m[1]
	} else if strings.HasPrefix(uri, "arn:") {
		return "", fmt.Errorf("uri %q does not name a template function", uri)
	} else {
		return uri, nil
	}
	fn, ok := functions[logicalID]
	if !ok {
		return "", fmt.Errorf("uri references undeclared function %q", logicalID)
	}
	return fn.HandlerReference(), nil
}

// parameterList reads a node's "parameters" sequence. The nil return
// distinguishes an absent declaration from an empty one.
func parameterList(n *template.Node) []Parameter {
	seq, ok := n.Get("parameters")
	if !ok || seq.Kind != template.KindSequence {
		return nil
	}
	params := []Parameter{}
	for _, item := range seq.Items {
		name, _ := childString(item, "name")
		in, _ := childString(item, "in")
		if name == "" || in == "" {
			continue
		}
		p := Parameter{Name: name, In: in}
		if req, ok := item.Get("required"); ok {
			p.Required, _ = req.BoolValue()
		}
		params = append(params, p)
	}
	return params
}

// mergeParameters layers operation parameters over path-level ones, the
// operation winning on a same name and location collision.
func mergeParameters(shared, own []Parameter) []Parameter {
	if shared == nil && own == nil {
		return nil
	}
	merged := make([]Parameter, 0, len(shared)+len(own))
	merged = append(merged, shared...)
	for _, p := range own {
		replaced := false
		for i, s := range merged {
			if s.Name == p.Name && s.In == p.In {
				merged[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, p)
		}
	}
	return merged
}

func childString(n *template.Node, key string) (string, bool) {
	v, ok := n.Get(key)
	if !ok {
		return "", false
	}
	return v.StringValue()
}

// ImplicitDocument synthesizes a document from the Api events declared on
// functions. Events bound to an unselected gateway are dropped, as are
// events bound to the selected gateway when that gateway carries its own
// definition body, which is authoritative for its routes.
func ImplicitDocument(functions []template.FunctionDefinition, gatewayID string, gatewayHasBody bool) *Document {
	doc := &Document{SourceAPIID: gatewayID}
	if doc.SourceAPIID == "" {
		doc.SourceAPIID = ImplicitGatewayID
	}
	byPattern := map[string]int{}
	for _, fn := range functions {
		names := make([]string, 0, len(fn.Events))
		for name := range fn.Events {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ev := fn.Events[name]
			if ev.Type != "Api" || ev.Properties.Path == "" {
				continue
			}
			if ev.Properties.RestApiID != "" {
				if ev.Properties.RestApiID != gatewayID || gatewayHasBody {
					continue
				}
			}
			method := strings.ToUpper(ev.Properties.Method)
			if method == "" {
				method = MethodAny
			}
			op := Operation{Method: method, IntegrationTarget: fn.HandlerReference()}
			idx, ok := byPattern[ev.Properties.Path]
			if !ok {
				doc.Paths = append(doc.Paths, Path{Pattern: ev.Properties.Path})
				idx = len(doc.Paths) - 1
				byPattern[ev.Properties.Path] = idx
			}
			doc.Paths[idx].Operations = append(doc.Paths[idx].Operations, op)
		}
	}
	return doc
}

// SelectGateway picks the gateway whose definition drives the route table.
// An explicitly configured logical ID wins; otherwise a sole declared
// gateway is selected, and several candidates without an explicit choice
// fail. The ok result is false for a template declaring no gateway at all.
func SelectGateway(apis map[string]template.ApiDefinition, order []string, explicit string) (template.ApiDefinition, bool, error) {
	if explicit != "" {
		api, ok := apis[explicit]
		if !ok {
			return template.ApiDefinition{}, false, &GatewayLookupError{Requested: explicit, Candidates: declaredIDs(apis, order)}
		}
		return api, true, nil
	}
	switch len(apis) {
	case 0:
		return template.ApiDefinition{}, false, nil
	case 1:
		for _, api := range apis {
			return api, true, nil
		}
	}
	return template.ApiDefinition{}, false, &GatewayLookupError{Candidates: declaredIDs(apis, order)}
}

func declaredIDs(apis map[string]template.ApiDefinition, order []string) []string {
	ids := make([]string, 0, len(apis))
	for _, id := range order {
		if _, ok := apis[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
