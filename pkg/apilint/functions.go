package apilint

import (
	"fmt"
	"strings"

	"github.com/daveshanley/vacuum/model"
	"go.yaml.in/yaml/v4"
)

// CustomFunctions exports the gateway conventions as vacuum rule functions,
// keyed by the function name a ruleset's "then" clause uses. Pipelines that
// already run vacuum get the same findings the in-house engine produces.
func CustomFunctions() map[string]model.RuleFunction {
	return map[string]model.RuleFunction{
		"checkSchemaRef":          &fnCheckSchemaRef{},
		"checkSecuredEndpoint401": &fnCheckSecuredEndpoint401{},
		"checkThrottledPost429":   &fnCheckThrottledPost429{},
		"checkErrorEnvelope":      &fnCheckErrorEnvelope{},
		"checkPageParams":         &fnCheckPageParams{},
		"checkPageSchema":         &fnCheckPageSchema{},
		"checkAuditReadOnly":      &fnCheckAuditReadOnly{},
	}
}

// === yaml/v4 node helpers ===
//
// vacuum hands rule functions go.yaml.in/yaml/v4 nodes, a different node
// type from the gopkg.in/yaml.v3 tree the in-house engine walks, so the
// lookups are mirrored here.

func yGet(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func yOpID(op *yaml.Node) string {
	if n := yGet(op, "operationId"); n != nil {
		return n.Value
	}
	return ""
}

func yOpLabel(path, method string, op *yaml.Node) string {
	if id := yOpID(op); id != "" {
		return id
	}
	return method + " " + path
}

var httpMethodSet = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

func forEachOp(root *yaml.Node, fn func(path, method string, op *yaml.Node)) {
	paths := yGet(root, "paths")
	if paths == nil {
		return
	}
	for i := 0; i < len(paths.Content)-1; i += 2 {
		pathKey := paths.Content[i].Value
		pathItem := paths.Content[i+1]
		if pathItem.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j < len(pathItem.Content)-1; j += 2 {
			method := pathItem.Content[j].Value
			if httpMethodSet[method] {
				fn(pathKey, method, pathItem.Content[j+1])
			}
		}
	}
}

func yHasTag(op *yaml.Node, tag string) bool {
	tags := yGet(op, "tags")
	if tags == nil {
		return false
	}
	for _, t := range tags.Content {
		if t.Value == tag {
			return true
		}
	}
	return false
}

func yHasGlobalSecurity(root *yaml.Node) bool {
	sec := yGet(root, "security")
	return sec != nil && len(sec.Content) > 0
}

// yRequiresAuth mirrors LintContext.RequiresAuth: an empty requirement
// object in the security list is an anonymous alternative.
func yRequiresAuth(root, op *yaml.Node) bool {
	sec := yGet(op, "security")
	if sec == nil {
		return yHasGlobalSecurity(root)
	}
	if len(sec.Content) == 0 {
		return false
	}
	for _, req := range sec.Content {
		if req.Kind == yaml.MappingNode && len(req.Content) == 0 {
			return false
		}
	}
	return true
}

// yRefTarget resolves a local $ref to its node within the same document.
func yRefTarget(root *yaml.Node, ref string) *yaml.Node {
	if !strings.HasPrefix(ref, "#/") {
		return nil
	}
	node := root
	for _, p := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		node = yGet(node, p)
		if node == nil {
			return nil
		}
	}
	return node
}

func yJSONSchema(obj *yaml.Node) *yaml.Node {
	content := yGet(obj, "content")
	appJSON := yGet(content, "application/json")
	return yGet(appJSON, "schema")
}

func yResponseSchemaRef(op *yaml.Node, status string) string {
	responses := yGet(op, "responses")
	schema := yJSONSchema(yGet(responses, status))
	if ref := yGet(schema, "$ref"); ref != nil {
		return ref.Value
	}
	return ""
}

func yReturnsPageSchema(root, op *yaml.Node) bool {
	ref := yResponseSchemaRef(op, "200")
	if ref == "" {
		return false
	}
	props := yGet(yRefTarget(root, ref), "properties")
	return yGet(props, "next_page_token") != nil
}

func yPageParams(root *yaml.Node, path string, op *yaml.Node) (hasMax, hasPage bool) {
	inspect := func(params *yaml.Node) {
		if params == nil {
			return
		}
		for _, p := range params.Content {
			if p.Kind != yaml.MappingNode {
				continue
			}
			if name := yGet(p, "name"); name != nil {
				if name.Value == "max_results" {
					hasMax = true
				}
				if name.Value == "page_token" {
					hasPage = true
				}
			}
			if ref := yGet(p, "$ref"); ref != nil {
				if strings.HasSuffix(ref.Value, "/MaxResults") {
					hasMax = true
				}
				if strings.HasSuffix(ref.Value, "/PageToken") {
					hasPage = true
				}
			}
		}
	}
	inspect(yGet(op, "parameters"))
	inspect(yGet(yGet(yGet(root, "paths"), path), "parameters"))
	return
}

func rootNode(nodes []*yaml.Node) *yaml.Node {
	if len(nodes) == 0 {
		return nil
	}
	n := nodes[0]
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}

func makeResult(msg, path, ruleID string, node *yaml.Node, ctx model.RuleFunctionContext) model.RuleFunctionResult {
	return model.RuleFunctionResult{
		Message:   msg,
		Path:      path,
		RuleId:    ruleID,
		StartNode: node,
		EndNode:   node,
		Rule:      ctx.Rule,
	}
}

// ================================================================
// check-schema-ref: bodies reference named schemas
// ================================================================

type fnCheckSchemaRef struct{}

func (f *fnCheckSchemaRef) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "checkSchemaRef"}
}
func (f *fnCheckSchemaRef) GetCategory() string { return model.CategoryOperations }

func (f *fnCheckSchemaRef) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		label := yOpLabel(path, method, op)
		if responses := yGet(op, "responses"); responses != nil {
			for i := 0; i < len(responses.Content)-1; i += 2 {
				status := responses.Content[i].Value
				schema := yJSONSchema(responses.Content[i+1])
				if schema != nil && yGet(schema, "$ref") == nil {
					results = append(results, makeResult(
						fmt.Sprintf("operation %q response %s uses inline schema instead of $ref", label, status),
						fmt.Sprintf("$.paths.%s.%s.responses.%s", path, method, status),
						"check-schema-ref", schema, ctx))
				}
			}
		}
		if body := yGet(op, "requestBody"); body != nil {
			schema := yJSONSchema(body)
			if schema != nil && yGet(schema, "$ref") == nil {
				results = append(results, makeResult(
					fmt.Sprintf("operation %q requestBody uses inline schema instead of $ref", label),
					fmt.Sprintf("$.paths.%s.%s.requestBody", path, method),
					"check-schema-ref", schema, ctx))
			}
		}
	})
	return results
}

// ================================================================
// check-secured-endpoint-401: auth-only operations document 401
// ================================================================

type fnCheckSecuredEndpoint401 struct{}

func (f *fnCheckSecuredEndpoint401) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "checkSecuredEndpoint401"}
}
func (f *fnCheckSecuredEndpoint401) GetCategory() string { return model.CategorySecurity }

func (f *fnCheckSecuredEndpoint401) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		if !yRequiresAuth(root, op) {
			return
		}
		responses := yGet(op, "responses")
		if responses == nil || yGet(responses, "401") != nil {
			return
		}
		results = append(results, makeResult(
			fmt.Sprintf("operation %q requires auth but documents no 401 response", yOpLabel(path, method, op)),
			fmt.Sprintf("$.paths.%s.%s.responses", path, method),
			"check-secured-endpoint-401", responses, ctx))
	})
	return results
}

// ================================================================
// check-throttled-post-429: rate-limited POSTs document 429
// ================================================================

type fnCheckThrottledPost429 struct{}

func (f *fnCheckThrottledPost429) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "checkThrottledPost429"}
}
func (f *fnCheckThrottledPost429) GetCategory() string { return model.CategoryOperations }

func (f *fnCheckThrottledPost429) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		if method != "post" || !yHasTag(op, "Queries") {
			return
		}
		label := yOpLabel(path, method, op)
		responses := yGet(op, "responses")
		if responses == nil {
			return
		}
		resp429 := yGet(responses, "429")
		if resp429 == nil {
			results = append(results, makeResult(
				fmt.Sprintf("rate-limited operation %q documents no 429 response", label),
				fmt.Sprintf("$.paths.%s.post.responses", path),
				"check-throttled-post-429", responses, ctx))
			return
		}
		headers := yGet(resp429, "headers")
		if headers == nil || yGet(headers, "Retry-After") == nil {
			results = append(results, makeResult(
				fmt.Sprintf("operation %q 429 response is missing the Retry-After header", label),
				fmt.Sprintf("$.paths.%s.post.responses.429", path),
				"check-throttled-post-429", resp429, ctx))
		}
	})
	return results
}

// ================================================================
// check-error-envelope: non-2xx responses use a gateway error schema
// ================================================================

type fnCheckErrorEnvelope struct{}

func (f *fnCheckErrorEnvelope) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "checkErrorEnvelope"}
}
func (f *fnCheckErrorEnvelope) GetCategory() string { return model.CategoryOperations }

func (f *fnCheckErrorEnvelope) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		responses := yGet(op, "responses")
		if responses == nil {
			return
		}
		label := yOpLabel(path, method, op)
		for i := 0; i < len(responses.Content)-1; i += 2 {
			status := responses.Content[i].Value
			if strings.HasPrefix(status, "2") {
				continue
			}
			schema := yJSONSchema(responses.Content[i+1])
			if schema == nil {
				continue
			}
			ref := yGet(schema, "$ref")
			if ref == nil || !errorEnvelopes[refName(ref.Value)] {
				results = append(results, makeResult(
					fmt.Sprintf("operation %q response %s does not reference a gateway error schema", label, status),
					fmt.Sprintf("$.paths.%s.%s.responses.%s", path, method, status),
					"check-error-envelope", schema, ctx))
			}
		}
	})
	return results
}

// ================================================================
// check-page-params: paged GETs take max_results and page_token
// ================================================================

type fnCheckPageParams struct{}

func (f *fnCheckPageParams) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "checkPageParams"}
}
func (f *fnCheckPageParams) GetCategory() string { return model.CategoryOperations }

func (f *fnCheckPageParams) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		if method != "get" || !yReturnsPageSchema(root, op) {
			return
		}
		hasMax, hasPage := yPageParams(root, path, op)
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
		results = append(results, makeResult(
			fmt.Sprintf("paged endpoint %q is missing %s parameters", yOpLabel(path, method, op), strings.Join(missing, " and ")),
			fmt.Sprintf("$.paths.%s.get", path),
			"check-page-params", op, ctx))
	})
	return results
}

// ================================================================
// check-page-schema: page schemas carry records and total_count
// ================================================================

type fnCheckPageSchema struct{}

func (f *fnCheckPageSchema) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "checkPageSchema"}
}
func (f *fnCheckPageSchema) GetCategory() string { return model.CategorySchemas }

func (f *fnCheckPageSchema) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	schemas := yGet(yGet(root, "components"), "schemas")
	if schemas == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	for i := 0; i < len(schemas.Content)-1; i += 2 {
		name := schemas.Content[i].Value
		schema := schemas.Content[i+1]
		props := yGet(schema, "properties")
		npt := yGet(props, "next_page_token")
		if npt == nil {
			continue
		}
		at := fmt.Sprintf("$.components.schemas.%s", name)
		if typeNode := yGet(npt, "type"); typeNode == nil || typeNode.Value != "string" {
			results = append(results, makeResult(
				fmt.Sprintf("page schema %q 'next_page_token' must be type: string", name),
				at, "check-page-schema", npt, ctx))
		}
		records := yGet(props, "records")
		if records == nil {
			results = append(results, makeResult(
				fmt.Sprintf("page schema %q is missing a 'records' field", name),
				at, "check-page-schema", schema, ctx))
		} else if typeNode := yGet(records, "type"); typeNode == nil || typeNode.Value != "array" {
			results = append(results, makeResult(
				fmt.Sprintf("page schema %q 'records' must be type: array", name),
				at, "check-page-schema", records, ctx))
		}
		if yGet(props, "total_count") == nil {
			results = append(results, makeResult(
				fmt.Sprintf("page schema %q is missing a 'total_count' field", name),
				at, "check-page-schema", schema, ctx))
		}
		if required := yGet(schema, "required"); required != nil {
			for _, r := range required.Content {
				if r.Value == "next_page_token" {
					results = append(results, makeResult(
						fmt.Sprintf("page schema %q must not require 'next_page_token'", name),
						at, "check-page-schema", r, ctx))
				}
			}
		}
	}
	return results
}

// ================================================================
// check-audit-read-only: no mutating methods on the audit surface
// ================================================================

type fnCheckAuditReadOnly struct{}

func (f *fnCheckAuditReadOnly) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "checkAuditReadOnly"}
}
func (f *fnCheckAuditReadOnly) GetCategory() string { return model.CategorySecurity }

var mutatingMethodSet = map[string]bool{
	"post": true, "put": true, "patch": true, "delete": true,
}

func (f *fnCheckAuditReadOnly) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		if !strings.HasPrefix(path, "/v1/audit") || !mutatingMethodSet[method] {
			return
		}
		results = append(results, makeResult(
			fmt.Sprintf("audit path %q exposes mutating method %s", path, strings.ToUpper(method)),
			fmt.Sprintf("$.paths.%s.%s", path, method),
			"check-audit-read-only", op, ctx))
	})
	return results
}
