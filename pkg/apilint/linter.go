// Package apilint lints the gateway's OpenAPI contract against project
// conventions that generic OpenAPI linters cannot know about: the error
// envelope schemas, the page-token pagination shape, the append-only audit
// surface, and the throttling contract on query endpoints.
//
// Rules run over gopkg.in/yaml.v3 raw nodes so violations carry the line
// numbers of the source document. The same conventions are also exported as
// vacuum rule functions (see functions.go) for pipelines that already run
// vacuum.
package apilint

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity levels for lint violations.
type Severity string

// Severity constants, ordered info < warning < error.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var sevRank = map[Severity]int{SeverityInfo: 0, SeverityWarning: 1, SeverityError: 2}

// ParseSeverity validates a severity name from a flag or config file.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityError, SeverityWarning, SeverityInfo:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q (use: error, warning, info)", s)
	}
}

// Violation is a single lint finding.
type Violation struct {
	File     string
	Line     int
	RuleID   string
	Severity Severity
	Message  string
}

// String formats a violation in golangci-lint style.
func (v Violation) String() string {
	return fmt.Sprintf("%s:%d: %s %s: %s", v.File, v.Line, v.RuleID, v.Severity, v.Message)
}

// === Rule registry ===

// Rule is one convention check. Implementations live in rules.go and
// register themselves at init time.
type Rule interface {
	ID() string
	Description() string
	DefaultSeverity() Severity
	Check(ctx *LintContext) []Violation
}

var registry []Rule

// Register adds a rule to the global registry.
func Register(r Rule) { registry = append(registry, r) }

// RegisteredRules returns the registry in registration order, for -list-rules.
func RegisteredRules() []Rule {
	out := make([]Rule, len(registry))
	copy(out, registry)
	return out
}

// === LintContext ===

// LintContext gives rules read access to the parsed document plus the node
// helpers they all need.
type LintContext struct {
	File string
	Root *yaml.Node
}

// MapGet looks up a key in a YAML mapping node and returns its value node.
func (ctx *LintContext) MapGet(m *yaml.Node, key string) *yaml.Node { return mapGet(m, key) }

// MapGetKey returns the key node itself, which carries the head comment and
// line number of the entry.
func (ctx *LintContext) MapGetKey(m *yaml.Node, key string) *yaml.Node { return mapGetKey(m, key) }

// MapKeys returns all key names of a mapping node in document order.
func (ctx *LintContext) MapKeys(m *yaml.Node) []string { return mapKeys(m) }

// OperationID returns the operationId of an operation node, or "".
func (ctx *LintContext) OperationID(op *yaml.Node) string { return operationID(op) }

// OperationLabel names an operation for a message: the operationId when set,
// otherwise "method path".
func (ctx *LintContext) OperationLabel(path, method string, op *yaml.Node) string {
	if id := operationID(op); id != "" {
		return id
	}
	return method + " " + path
}

// HasGlobalSecurity reports whether the document declares top-level security
// requirements.
func (ctx *LintContext) HasGlobalSecurity() bool {
	sec := mapGet(ctx.Root, "security")
	return sec != nil && len(sec.Content) > 0
}

// RequiresAuth reports whether an operation demands an authenticated caller.
// An empty requirement object ({}) in the security list is an anonymous
// alternative, so the operation does not strictly require auth.
func (ctx *LintContext) RequiresAuth(op *yaml.Node) bool {
	sec := mapGet(op, "security")
	if sec == nil {
		return ctx.HasGlobalSecurity()
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

// HasTag reports whether an operation carries the given tag.
func (ctx *LintContext) HasTag(op *yaml.Node, tag string) bool {
	tags := mapGet(op, "tags")
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

// RefTarget resolves a local $ref string to its component node, or nil.
// External refs are not followed.
func (ctx *LintContext) RefTarget(ref string) *yaml.Node {
	if !strings.HasPrefix(ref, "#/") {
		return nil
	}
	node := ctx.Root
	for _, p := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		node = mapGet(node, p)
		if node == nil {
			return nil
		}
	}
	return node
}

// ResolveRef reports whether a $ref string resolves. External refs are
// assumed valid.
func (ctx *LintContext) ResolveRef(ref string) bool {
	if !strings.HasPrefix(ref, "#/") {
		return true
	}
	return ctx.RefTarget(ref) != nil
}

// ForEachOperation calls fn for every (path, method, operation) triple.
func (ctx *LintContext) ForEachOperation(fn func(path, method string, op *yaml.Node)) {
	paths := mapGet(ctx.Root, "paths")
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
			if httpMethods[method] {
				fn(pathKey, method, pathItem.Content[j+1])
			}
		}
	}
}

// ForEachSchema calls fn for every named schema under components.schemas.
func (ctx *LintContext) ForEachSchema(fn func(name string, schema *yaml.Node)) {
	schemas := mapGet(mapGet(ctx.Root, "components"), "schemas")
	if schemas == nil {
		return
	}
	for i := 0; i < len(schemas.Content)-1; i += 2 {
		fn(schemas.Content[i].Value, schemas.Content[i+1])
	}
}

// Violation builds a Violation carrying the context's file path.
func (ctx *LintContext) Violation(line int, ruleID string, sev Severity, msg string) Violation {
	return Violation{File: ctx.File, Line: line, RuleID: ruleID, Severity: sev, Message: msg}
}

// === Linter ===

// Linter holds a parsed OpenAPI document and runs the registered rules
// against it.
type Linter struct {
	file string
	root *yaml.Node
}

// New parses the YAML document at path.
func New(path string) (*Linter, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a CLI flag or test
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%s: empty or invalid YAML document", path)
	}
	return &Linter{file: path, root: doc.Content[0]}, nil
}

// Run executes every registered rule at its default severity.
func (l *Linter) Run() []Violation {
	return l.RunWithConfig(nil)
}

// RunWithConfig executes the registered rules honouring config overrides
// (nil means defaults). Rules overridden to "off" are skipped, and findings
// silenced by an inline "apilint:ignore <rule-id>" comment are dropped.
// Violations come back sorted by line number.
func (l *Linter) RunWithConfig(cfg *Config) []Violation {
	ctx := &LintContext{File: l.file, Root: l.root}
	var vs []Violation
	for _, rule := range registry {
		sev := effectiveSeverity(cfg, rule)
		if sev == "" {
			continue
		}
		for _, v := range rule.Check(ctx) {
			v.Severity = sev
			if !isSuppressed(l.root, v.Line, rule.ID()) {
				vs = append(vs, v)
			}
		}
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].Line < vs[j].Line })
	return vs
}

// HasErrors reports whether any violation is error severity.
func HasErrors(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Filter keeps violations at or above the given severity.
func Filter(vs []Violation, minSev Severity) []Violation {
	minRank := sevRank[minSev]
	var out []Violation
	for _, v := range vs {
		if sevRank[v.Severity] >= minRank {
			out = append(out, v)
		}
	}
	return out
}

// === Inline suppression ===

// suppressRe matches comments like "apilint:ignore check-enum-min-values
// check-schema-ref". Rule IDs are lowercase kebab-case.
var suppressRe = regexp.MustCompile(`apilint:ignore\s+([a-z0-9-]+(?:\s+[a-z0-9-]+)*)`)

// isSuppressed reports whether ruleID is silenced at the given line. It
// inspects the node on the violation line, the node one line above, and
// every ancestor entry whose value spans the line, so a comment on a parent
// key silences findings anywhere inside that block.
func isSuppressed(root *yaml.Node, line int, ruleID string) bool {
	if node := findNodeAtLine(root, line); node != nil {
		if commentSuppresses(node.LineComment, ruleID) ||
			commentSuppresses(node.HeadComment, ruleID) {
			return true
		}
	}
	if node := findNodeAtLine(root, line-1); node != nil {
		if commentSuppresses(node.LineComment, ruleID) ||
			commentSuppresses(node.HeadComment, ruleID) {
			return true
		}
	}
	return ancestorSuppresses(root, line, ruleID)
}

func ancestorSuppresses(n *yaml.Node, line int, ruleID string) bool {
	if n == nil {
		return false
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i < len(n.Content)-1; i += 2 {
			keyNode := n.Content[i]
			valNode := n.Content[i+1]
			if keyNode.Line <= line && containsLine(valNode, line) {
				if commentSuppresses(keyNode.LineComment, ruleID) ||
					commentSuppresses(keyNode.HeadComment, ruleID) {
					return true
				}
				return ancestorSuppresses(valNode, line, ruleID)
			}
		}
	}
	for _, c := range n.Content {
		if containsLine(c, line) {
			if ancestorSuppresses(c, line, ruleID) {
				return true
			}
		}
	}
	return false
}

func containsLine(n *yaml.Node, line int) bool {
	if n == nil {
		return false
	}
	if n.Line == line {
		return true
	}
	for _, c := range n.Content {
		if containsLine(c, line) {
			return true
		}
	}
	return false
}

func findNodeAtLine(n *yaml.Node, line int) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Line == line {
		return n
	}
	for _, c := range n.Content {
		if found := findNodeAtLine(c, line); found != nil {
			return found
		}
	}
	return nil
}

func commentSuppresses(comment, ruleID string) bool {
	if comment == "" {
		return false
	}
	for _, m := range suppressRe.FindAllStringSubmatch(comment, -1) {
		for _, id := range strings.Fields(m[1]) {
			if id == ruleID {
				return true
			}
		}
	}
	return false
}

// === YAML node helpers ===

func mapGet(m *yaml.Node, key string) *yaml.Node {
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

func mapGetKey(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i]
		}
	}
	return nil
}

func mapKeys(m *yaml.Node) []string {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	var keys []string
	for i := 0; i < len(m.Content)-1; i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

func operationID(op *yaml.Node) string {
	if n := mapGet(op, "operationId"); n != nil {
		return n.Value
	}
	return ""
}

// camelCaseRe matches lowerCamelCase identifiers (operationIds, path params).
var camelCaseRe = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)

// snakeCaseRe matches snake_case identifiers (query params, JSON fields).
var snakeCaseRe = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)
