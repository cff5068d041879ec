package apilint

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// rule adapts a check function to the Rule interface so the registry can be
// declared as plain values.
type rule struct {
	id       string
	desc     string
	severity Severity
	check    func(ctx *LintContext) []Violation
}

func (r rule) ID() string                         { return r.id }
func (r rule) Description() string                { return r.desc }
func (r rule) DefaultSeverity() Severity          { return r.severity }
func (r rule) Check(ctx *LintContext) []Violation { return r.check(ctx) }

func init() {
	Register(rule{"check-operation-tags", "operations carry at least one declared tag", SeverityError, checkOperationTags})
	Register(rule{"check-operation-id", "operationIds are present, unique and lowerCamelCase", SeverityError, checkOperationIDs})
	Register(rule{"check-operation-docs", "operations carry a summary and a description", SeverityWarning, checkOperationDocs})
	Register(rule{"check-schema-ref", "request and response bodies reference named schemas", SeverityWarning, checkSchemaRefs})
	Register(rule{"check-refs-resolve", "every local $ref resolves to a component", SeverityError, checkRefsResolve})
	Register(rule{"check-secured-endpoint-401", "operations requiring auth document a 401", SeverityError, checkSecuredEndpoint401})
	Register(rule{"check-admin-endpoint-403", "audit operations document the admin 403", SeverityError, checkAdminEndpoint403})
	Register(rule{"check-throttled-post-429", "query submissions document 429 with Retry-After", SeverityError, checkThrottledPost429})
	Register(rule{"check-error-envelope", "non-2xx responses use a gateway error schema", SeverityError, checkErrorEnvelope})
	Register(rule{"check-page-params", "paged GET endpoints take max_results and page_token", SeverityError, checkPageParams})
	Register(rule{"check-page-schema", "page schemas carry records, total_count and next_page_token", SeverityError, checkPageSchemas})
	Register(rule{"check-page-params-match", "GETs with page params return a page schema", SeverityWarning, checkPageParamsMatch})
	Register(rule{"check-query-param-case", "query parameters are snake_case", SeverityError, checkQueryParamCase})
	Register(rule{"check-path-param-case", "path parameters are lowerCamelCase", SeverityError, checkPathParamCase})
	Register(rule{"check-audit-read-only", "the audit surface exposes no mutating methods", SeverityError, checkAuditReadOnly})
	Register(rule{"check-post-create-status", "non-action POSTs return 201, not 200", SeverityWarning, checkPostCreateStatus})
	Register(rule{"check-enum-min-values", "enums declare at least two values", SeverityWarning, checkEnumMinValues})
}

// errorEnvelopes are the schemas a non-2xx response may reference. The
// gateway deliberately has more than one: rejections embed capabilities help
// and rate limits carry the retry hint.
var errorEnvelopes = map[string]bool{
	"Error":             true,
	"ExecuteError":      true,
	"RejectionResponse": true,
	"RateLimitResponse": true,
}

// actionOperations are POST endpoints that run a pipeline rather than create
// a resource, so a 200 is the correct success status.
var actionOperations = map[string]bool{
	"submitQuery":  true,
	"executeQuery": true,
}

var mutatingMethods = map[string]bool{
	"post": true, "put": true, "patch": true, "delete": true,
}

// check-operation-tags: every operation carries at least one tag, and every
// tag it names is declared in the document's top-level tags list.
func checkOperationTags(ctx *LintContext) []Violation {
	declared := map[string]bool{}
	if tags := ctx.MapGet(ctx.Root, "tags"); tags != nil {
		for _, t := range tags.Content {
			if name := ctx.MapGet(t, "name"); name != nil {
				declared[name.Value] = true
			}
		}
	}

	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		label := ctx.OperationLabel(path, method, op)
		tags := ctx.MapGet(op, "tags")
		if tags == nil || len(tags.Content) == 0 {
			vs = append(vs, ctx.Violation(op.Line, "check-operation-tags", SeverityError,
				fmt.Sprintf("operation %q has no tags", label)))
			return
		}
		for _, t := range tags.Content {
			if !declared[t.Value] {
				vs = append(vs, ctx.Violation(t.Line, "check-operation-tags", SeverityError,
					fmt.Sprintf("operation %q uses undeclared tag %q", label, t.Value)))
			}
		}
	})
	return vs
}

// check-operation-id: operationIds are present, unique across the document
// and lowerCamelCase. The CLI and the audit trail both key on them.
func checkOperationIDs(ctx *LintContext) []Violation {
	var vs []Violation
	seen := map[string]int{} // operationId -> first line
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		idNode := ctx.MapGet(op, "operationId")
		if idNode == nil {
			vs = append(vs, ctx.Violation(op.Line, "check-operation-id", SeverityError,
				fmt.Sprintf("operation %s %s is missing 'operationId'", method, path)))
			return
		}
		if prev, ok := seen[idNode.Value]; ok {
			vs = append(vs, ctx.Violation(idNode.Line, "check-operation-id", SeverityError,
				fmt.Sprintf("duplicate operationId %q (first seen at line %d)", idNode.Value, prev)))
			return
		}
		seen[idNode.Value] = idNode.Line
		if !camelCaseRe.MatchString(idNode.Value) {
			vs = append(vs, ctx.Violation(idNode.Line, "check-operation-id", SeverityError,
				fmt.Sprintf("operationId %q is not lowerCamelCase", idNode.Value)))
		}
	})
	return vs
}

// check-operation-docs: operations carry both a summary and a description.
// The docs page and the CLI help render straight from the contract.
func checkOperationDocs(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		label := ctx.OperationLabel(path, method, op)
		var missing []string
		if ctx.MapGet(op, "summary") == nil {
			missing = append(missing, "summary")
		}
		if ctx.MapGet(op, "description") == nil {
			missing = append(missing, "description")
		}
		if len(missing) > 0 {
			vs = append(vs, ctx.Violation(op.Line, "check-operation-docs", SeverityWarning,
				fmt.Sprintf("operation %q is missing %s", label, strings.Join(missing, " and "))))
		}
	})
	return vs
}

// check-schema-ref: request and response JSON bodies reference named
// component schemas instead of inlining anonymous objects.
func checkSchemaRefs(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		label := ctx.OperationLabel(path, method, op)
		if responses := ctx.MapGet(op, "responses"); responses != nil {
			for i := 0; i < len(responses.Content)-1; i += 2 {
				status := responses.Content[i].Value
				if n := inlineJSONSchema(ctx, responses.Content[i+1]); n != nil {
					vs = append(vs, ctx.Violation(n.Line, "check-schema-ref", SeverityWarning,
						fmt.Sprintf("operation %q response %s uses inline schema instead of $ref", label, status)))
				}
			}
		}
		if body := ctx.MapGet(op, "requestBody"); body != nil {
			if n := inlineJSONSchema(ctx, body); n != nil {
				vs = append(vs, ctx.Violation(n.Line, "check-schema-ref", SeverityWarning,
					fmt.Sprintf("operation %q requestBody uses inline schema instead of $ref", label)))
			}
		}
	})
	return vs
}

// check-refs-resolve: every local $ref in the document points at an existing
// component.
func checkRefsResolve(ctx *LintContext) []Violation {
	var vs []Violation
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		if n == nil {
			return
		}
		if n.Kind == yaml.MappingNode {
			if ref := ctx.MapGet(n, "$ref"); ref != nil && !ctx.ResolveRef(ref.Value) {
				vs = append(vs, ctx.Violation(ref.Line, "check-refs-resolve", SeverityError,
					fmt.Sprintf("unresolved $ref %q", ref.Value)))
			}
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(ctx.Root)
	return vs
}

// check-secured-endpoint-401: any operation that requires an authenticated
// caller documents the 401 it returns on a missing or invalid token.
// Operations with an anonymous security alternative are exempt.
func checkSecuredEndpoint401(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if !ctx.RequiresAuth(op) {
			return
		}
		responses := ctx.MapGet(op, "responses")
		if responses == nil || ctx.MapGet(responses, "401") != nil {
			return
		}
		vs = append(vs, ctx.Violation(responses.Line, "check-secured-endpoint-401", SeverityError,
			fmt.Sprintf("operation %q requires auth but documents no 401 response", ctx.OperationLabel(path, method, op))))
	})
	return vs
}

// check-admin-endpoint-403: the audit trail is admin-only, so every
// operation tagged Audit documents the 403 a non-admin token receives.
func checkAdminEndpoint403(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if !ctx.HasTag(op, "Audit") {
			return
		}
		responses := ctx.MapGet(op, "responses")
		if responses == nil || ctx.MapGet(responses, "403") != nil {
			return
		}
		vs = append(vs, ctx.Violation(responses.Line, "check-admin-endpoint-403", SeverityError,
			fmt.Sprintf("audit operation %q documents no 403 response", ctx.OperationLabel(path, method, op))))
	})
	return vs
}

// check-throttled-post-429: query endpoints sit behind the rate limiter, so
// every POST tagged Queries documents a 429 response carrying a Retry-After
// header.
func checkThrottledPost429(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if method != "post" || !ctx.HasTag(op, "Queries") {
			return
		}
		label := ctx.OperationLabel(path, method, op)
		responses := ctx.MapGet(op, "responses")
		if responses == nil {
			return
		}
		resp429 := ctx.MapGet(responses, "429")
		if resp429 == nil {
			vs = append(vs, ctx.Violation(responses.Line, "check-throttled-post-429", SeverityError,
				fmt.Sprintf("rate-limited operation %q documents no 429 response", label)))
			return
		}
		headers := ctx.MapGet(resp429, "headers")
		if headers == nil || ctx.MapGet(headers, "Retry-After") == nil {
			vs = append(vs, ctx.Violation(resp429.Line, "check-throttled-post-429", SeverityError,
				fmt.Sprintf("operation %q 429 response is missing the Retry-After header", label)))
		}
	})
	return vs
}

// check-error-envelope: non-2xx JSON responses reference one of the
// gateway's error schemas so clients can rely on the envelope shape.
func checkErrorEnvelope(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		responses := ctx.MapGet(op, "responses")
		if responses == nil {
			return
		}
		label := ctx.OperationLabel(path, method, op)
		for i := 0; i < len(responses.Content)-1; i += 2 {
			status := responses.Content[i].Value
			if strings.HasPrefix(status, "2") {
				continue
			}
			schema := jsonSchemaNode(ctx, responses.Content[i+1])
			if schema == nil {
				continue
			}
			ref := ctx.MapGet(schema, "$ref")
			if ref == nil || !errorEnvelopes[refName(ref.Value)] {
				vs = append(vs, ctx.Violation(schema.Line, "check-error-envelope", SeverityError,
					fmt.Sprintf("operation %q response %s does not reference a gateway error schema", label, status)))
			}
		}
	})
	return vs
}

// check-page-params: a GET whose 200 body is a page schema (one with a
// next_page_token property) takes both max_results and page_token query
// parameters.
func checkPageParams(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if method != "get" || !returnsPageSchema(ctx, op) {
			return
		}
		hasMax, hasPage := pageParams(ctx, path, op)
		if hasMax && hasPage {
			return
		}
		var missing []string
		if !hasMax {
			missing = append(missing, "max_results")
		}
		if !hasPage {
			missing = append(missing, "page_token")
		}
		vs = append(vs, ctx.Violation(op.Line, "check-page-params", SeverityError,
			fmt.Sprintf("paged endpoint %q is missing %s parameters", ctx.OperationLabel(path, method, op), strings.Join(missing, " and "))))
	})
	return vs
}

// check-page-schema: schemas carrying a next_page_token are pages and must
// hold records (array), total_count (integer) and a string token that is
// absent on the last page, so never listed as required.
func checkPageSchemas(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachSchema(func(name string, schema *yaml.Node) {
		props := ctx.MapGet(schema, "properties")
		npt := ctx.MapGet(props, "next_page_token")
		if npt == nil {
			return
		}
		if typeNode := ctx.MapGet(npt, "type"); typeNode == nil || typeNode.Value != "string" {
			vs = append(vs, ctx.Violation(npt.Line, "check-page-schema", SeverityError,
				fmt.Sprintf("page schema %q 'next_page_token' must be type: string", name)))
		}
		records := ctx.MapGet(props, "records")
		if records == nil {
			vs = append(vs, ctx.Violation(schema.Line, "check-page-schema", SeverityError,
				fmt.Sprintf("page schema %q is missing a 'records' field", name)))
		} else if typeNode := ctx.MapGet(records, "type"); typeNode == nil || typeNode.Value != "array" {
			vs = append(vs, ctx.Violation(records.Line, "check-page-schema", SeverityError,
				fmt.Sprintf("page schema %q 'records' must be type: array", name)))
		}
		if ctx.MapGet(props, "total_count") == nil {
			vs = append(vs, ctx.Violation(schema.Line, "check-page-schema", SeverityError,
				fmt.Sprintf("page schema %q is missing a 'total_count' field", name)))
		}
		if required := ctx.MapGet(schema, "required"); required != nil {
			for _, r := range required.Content {
				if r.Value == "next_page_token" {
					vs = append(vs, ctx.Violation(r.Line, "check-page-schema", SeverityError,
						fmt.Sprintf("page schema %q must not require 'next_page_token'", name)))
				}
			}
		}
	})
	return vs
}

// check-page-params-match: a GET declaring both pagination parameters
// returns a page schema, not a plain list.
func checkPageParamsMatch(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if method != "get" {
			return
		}
		hasMax, hasPage := pageParams(ctx, path, op)
		if !hasMax || !hasPage {
			return
		}
		ref := responseSchemaRef(ctx, op, "200")
		if ref == "" || returnsPageSchema(ctx, op) {
			return
		}
		vs = append(vs, ctx.Violation(op.Line, "check-page-params-match", SeverityWarning,
			fmt.Sprintf("operation %q has pagination params but returns %q, which has no next_page_token", ctx.OperationLabel(path, method, op), refName(ref))))
	})
	return vs
}

// check-query-param-case: query parameters are snake_case, in operations,
// path items and shared components alike.
func checkQueryParamCase(ctx *LintContext) []Violation {
	var vs []Violation
	forEachParamList(ctx, func(params *yaml.Node) {
		for _, p := range paramsOfKind(ctx, params, "query") {
			if !snakeCaseRe.MatchString(p.Value) {
				vs = append(vs, ctx.Violation(p.Line, "check-query-param-case", SeverityError,
					fmt.Sprintf("query parameter %q is not snake_case", p.Value)))
			}
		}
	})
	return vs
}

// check-path-param-case: path parameters are lowerCamelCase.
func checkPathParamCase(ctx *LintContext) []Violation {
	var vs []Violation
	forEachParamList(ctx, func(params *yaml.Node) {
		for _, p := range paramsOfKind(ctx, params, "path") {
			if !camelCaseRe.MatchString(p.Value) {
				vs = append(vs, ctx.Violation(p.Line, "check-path-param-case", SeverityError,
					fmt.Sprintf("path parameter %q is not lowerCamelCase", p.Value)))
			}
		}
	})
	return vs
}

// check-audit-read-only: the audit trail is append-only and written solely
// by the gateway itself, so its API surface must never grow a mutating
// method.
func checkAuditReadOnly(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if !strings.HasPrefix(path, "/v1/audit") || !mutatingMethods[method] {
			return
		}
		vs = append(vs, ctx.Violation(op.Line, "check-audit-read-only", SeverityError,
			fmt.Sprintf("audit path %q exposes mutating method %s", path, strings.ToUpper(method))))
	})
	return vs
}

// check-post-create-status: POSTs that create a resource return 201. Action
// endpoints that run the validation pipeline are exempt by operationId.
func checkPostCreateStatus(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if method != "post" || actionOperations[ctx.OperationID(op)] {
			return
		}
		responses := ctx.MapGet(op, "responses")
		if responses == nil {
			return
		}
		if ctx.MapGet(responses, "200") != nil && ctx.MapGet(responses, "201") == nil {
			vs = append(vs, ctx.Violation(responses.Line, "check-post-create-status", SeverityWarning,
				fmt.Sprintf("POST operation %q returns 200 instead of 201", ctx.OperationLabel(path, method, op))))
		}
	})
	return vs
}

// check-enum-min-values: an enum with a single value is a constant and
// usually a modelling mistake. Genuine constants get an inline suppression.
func checkEnumMinValues(ctx *LintContext) []Violation {
	var vs []Violation
	var walk func(n *yaml.Node, where string)
	walk = func(n *yaml.Node, where string) {
		if n == nil {
			return
		}
		if n.Kind == yaml.MappingNode {
			if enum := ctx.MapGet(n, "enum"); enum != nil && enum.Kind == yaml.SequenceNode && len(enum.Content) < 2 {
				vs = append(vs, ctx.Violation(enum.Line, "check-enum-min-values", SeverityWarning,
					fmt.Sprintf("enum%s has only %d value(s)", where, len(enum.Content))))
			}
		}
		for _, c := range n.Content {
			walk(c, where)
		}
	}
	ctx.ForEachSchema(func(name string, schema *yaml.Node) {
		walk(schema, fmt.Sprintf(" in schema %q", name))
	})
	if paths := ctx.MapGet(ctx.Root, "paths"); paths != nil {
		walk(paths, "")
	}
	return vs
}

// === shared rule helpers ===

// jsonSchemaNode returns the schema node of an application/json body, or nil.
func jsonSchemaNode(ctx *LintContext, obj *yaml.Node) *yaml.Node {
	content := ctx.MapGet(obj, "content")
	appJSON := ctx.MapGet(content, "application/json")
	return ctx.MapGet(appJSON, "schema")
}

// inlineJSONSchema returns the schema node when an application/json body
// inlines its schema instead of using $ref.
func inlineJSONSchema(ctx *LintContext, obj *yaml.Node) *yaml.Node {
	schema := jsonSchemaNode(ctx, obj)
	if schema == nil || ctx.MapGet(schema, "$ref") != nil {
		return nil
	}
	return schema
}

// responseSchemaRef returns the $ref of a response's JSON schema, or "".
func responseSchemaRef(ctx *LintContext, op *yaml.Node, status string) string {
	responses := ctx.MapGet(op, "responses")
	schema := jsonSchemaNode(ctx, ctx.MapGet(responses, status))
	if ref := ctx.MapGet(schema, "$ref"); ref != nil {
		return ref.Value
	}
	return ""
}

// refName returns the last path segment of a $ref.
func refName(ref string) string {
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}

// returnsPageSchema reports whether the operation's 200 body resolves to a
// schema that carries a next_page_token property.
func returnsPageSchema(ctx *LintContext, op *yaml.Node) bool {
	ref := responseSchemaRef(ctx, op, "200")
	if ref == "" {
		return false
	}
	target := ctx.RefTarget(ref)
	props := ctx.MapGet(target, "properties")
	return ctx.MapGet(props, "next_page_token") != nil
}

// pageParams reports whether the operation declares the max_results and
// page_token query parameters, inline or via component refs, at the
// operation or path level.
func pageParams(ctx *LintContext, path string, op *yaml.Node) (hasMax, hasPage bool) {
	inspect := func(params *yaml.Node) {
		if params == nil {
			return
		}
		for _, p := range params.Content {
			if p.Kind != yaml.MappingNode {
				continue
			}
			if name := ctx.MapGet(p, "name"); name != nil {
				if name.Value == "max_results" {
					hasMax = true
				}
				if name.Value == "page_token" {
					hasPage = true
				}
			}
			if ref := ctx.MapGet(p, "$ref"); ref != nil {
				if strings.HasSuffix(ref.Value, "/MaxResults") {
					hasMax = true
				}
				if strings.HasSuffix(ref.Value, "/PageToken") {
					hasPage = true
				}
			}
		}
	}
	inspect(ctx.MapGet(op, "parameters"))
	paths := ctx.MapGet(ctx.Root, "paths")
	inspect(ctx.MapGet(ctx.MapGet(paths, path), "parameters"))
	return
}

// paramsOfKind returns the name nodes of parameters with the given "in"
// value from one parameter list.
func paramsOfKind(ctx *LintContext, params *yaml.Node, in string) []*yaml.Node {
	if params == nil {
		return nil
	}
	var names []*yaml.Node
	for _, p := range params.Content {
		if p.Kind != yaml.MappingNode {
			continue
		}
		inNode := ctx.MapGet(p, "in")
		if inNode == nil || inNode.Value != in {
			continue
		}
		if name := ctx.MapGet(p, "name"); name != nil {
			names = append(names, name)
		}
	}
	return names
}

// forEachParamList feeds every parameter list in the document to fn:
// shared component parameters first, then path-level and operation-level
// lists. Component parameters are a name -> parameter mapping, so their
// values are wrapped in a synthetic sequence.
func forEachParamList(ctx *LintContext, fn func(params *yaml.Node)) {
	if components := ctx.MapGet(ctx.Root, "components"); components != nil {
		if compParams := ctx.MapGet(components, "parameters"); compParams != nil {
			wrapper := &yaml.Node{Kind: yaml.SequenceNode}
			for i := 0; i < len(compParams.Content)-1; i += 2 {
				wrapper.Content = append(wrapper.Content, compParams.Content[i+1])
			}
			fn(wrapper)
		}
	}
	paths := ctx.MapGet(ctx.Root, "paths")
	if paths == nil {
		return
	}
	for i := 0; i < len(paths.Content)-1; i += 2 {
		pathItem := paths.Content[i+1]
		if pathItem.Kind != yaml.MappingNode {
			continue
		}
		fn(ctx.MapGet(pathItem, "parameters"))
		for j := 0; j < len(pathItem.Content)-1; j += 2 {
			if httpMethods[pathItem.Content[j].Value] {
				fn(ctx.MapGet(pathItem.Content[j+1], "parameters"))
			}
		}
	}
}
