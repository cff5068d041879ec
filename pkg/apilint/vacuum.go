package apilint

import (
	"errors"
	"fmt"
	"os"

	"github.com/daveshanley/vacuum/model"
	"github.com/daveshanley/vacuum/motor"
	"github.com/daveshanley/vacuum/rulesets"
)

// GatewayRuleSet builds a vacuum ruleset with one rule per custom function.
// Rules run against the unresolved document because several of them check
// $ref usage itself.
func GatewayRuleSet() *rulesets.RuleSet {
	specs := []struct {
		id       string
		function string
		desc     string
		severity string
		category string
	}{
		{"check-schema-ref", "checkSchemaRef", "request and response bodies reference named schemas", model.SeverityWarn, model.CategoryOperations},
		{"check-secured-endpoint-401", "checkSecuredEndpoint401", "operations requiring auth document a 401", model.SeverityError, model.CategorySecurity},
		{"check-throttled-post-429", "checkThrottledPost429", "query submissions document 429 with Retry-After", model.SeverityError, model.CategoryOperations},
		{"check-error-envelope", "checkErrorEnvelope", "non-2xx responses use a gateway error schema", model.SeverityError, model.CategoryOperations},
		{"check-page-params", "checkPageParams", "paged GET endpoints take max_results and page_token", model.SeverityError, model.CategoryOperations},
		{"check-page-schema", "checkPageSchema", "page schemas carry records, total_count and next_page_token", model.SeverityError, model.CategorySchemas},
		{"check-audit-read-only", "checkAuditReadOnly", "the audit surface exposes no mutating methods", model.SeverityError, model.CategorySecurity},
	}

	rules := make(map[string]*model.Rule, len(specs))
	for _, s := range specs {
		rules[s.id] = &model.Rule{
			Id:           s.id,
			Name:         s.id,
			Description:  s.desc,
			Given:        "$",
			Resolved:     false,
			Severity:     s.severity,
			RuleCategory: model.RuleCategories[s.category],
			Then:         model.RuleAction{Function: s.function},
		}
	}
	return &rulesets.RuleSet{
		Description: "Scout query gateway API conventions",
		Rules:       rules,
	}
}

// RunVacuum lints the spec at path through vacuum's engine using
// GatewayRuleSet and converts the results to Violations. The in-house
// engine in linter.go stays the source of truth; this path exists for CI
// that aggregates vacuum reports.
func RunVacuum(path string) ([]Violation, error) {
	spec, err := os.ReadFile(path) //nolint:gosec // path comes from a CLI flag or test
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	execution := &motor.RuleSetExecution{
		RuleSet:         GatewayRuleSet(),
		Spec:            spec,
		CustomFunctions: CustomFunctions(),
	}
	result := motor.ApplyRulesToRuleSet(execution)
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("apply ruleset to %s: %w", path, errors.Join(result.Errors...))
	}

	vs := make([]Violation, 0, len(result.Results))
	for _, r := range result.Results {
		v := Violation{
			File:     path,
			RuleID:   r.RuleId,
			Severity: vacuumSeverity(r.Rule),
			Message:  r.Message,
		}
		if r.StartNode != nil {
			v.Line = r.StartNode.Line
		}
		if v.RuleID == "" && r.Rule != nil {
			v.RuleID = r.Rule.Id
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// vacuumSeverity maps vacuum's severity names ("warn", "hint") onto the
// linter's.
func vacuumSeverity(r *model.Rule) Severity {
	if r == nil {
		return SeverityError
	}
	switch r.Severity {
	case model.SeverityWarn, "warning":
		return SeverityWarning
	case model.SeverityInfo, model.SeverityHint:
		return SeverityInfo
	default:
		return SeverityError
	}
}
