package gate

import (
	"fmt"
	"regexp"
	"strings"

	"scoutgw/internal/catalog"
	"scoutgw/internal/domain"
)

// Validator decides whether sanitized query text references approved
// relations. Implementations are pure: no clock, no I/O, no state beyond
// the catalog they were built from.
type Validator interface {
	// Validate returns a result covering the allow-list check only; the
	// caller folds it into the request's accumulated result.
	Validate(text string) domain.ValidationResult

	// Policy names the active policy for capability discovery.
	Policy() string
}

// NewValidator selects a policy implementation by name.
func NewValidator(policy string, cat *catalog.Catalog) (Validator, error) {
	switch policy {
	case "catalog":
		return newCatalogValidator(cat), nil
	case "schema":
		return newSchemaValidator(cat), nil
	default:
		return nil, fmt.Errorf("unknown validator policy %q", policy)
	}
}

// catalogValidator requires at least one exact catalog table name to appear
// in the text. Matching is case-insensitive substring search.
type catalogValidator struct {
	tables  []string // original casing, for the result
	lowered []string
}

func newCatalogValidator(cat *catalog.Catalog) *catalogValidator {
	v := &catalogValidator{tables: cat.Tables}
	for _, t := range cat.Tables {
		v.lowered = append(v.lowered, strings.ToLower(t))
	}
	return v
}

func (v *catalogValidator) Policy() string { return "catalog" }

func (v *catalogValidator) Validate(text string) domain.ValidationResult {
	var res domain.ValidationResult
	res.Passed = true

	lower := strings.ToLower(text)
	for i, t := range v.lowered {
		if strings.Contains(lower, t) {
			res.TablesReferenced = append(res.TablesReferenced, v.tables[i])
		}
	}
	if len(res.TablesReferenced) == 0 {
		res.Fail(domain.CheckAllowList, domain.ViolationTableNotAllowed,
			"query must reference at least one allowed table")
		return res
	}
	res.Pass(domain.CheckAllowList)
	return res
}

// qualifiedNameRe matches schema-qualified identifiers like gold.v_sales.
var qualifiedNameRe = regexp.MustCompile(`(?i)\b([a-z_][a-z0-9_]*)\.([a-z_][a-z0-9_$]*)`)

// schemaValidator admits any relation under an approved schema prefix and
// rejects references to server metadata schemas outright.
type schemaValidator struct {
	allowed        map[string]struct{}
	deniedSchemas  []string
	deniedPatterns []string
}

func newSchemaValidator(cat *catalog.Catalog) *schemaValidator {
	v := &schemaValidator{allowed: make(map[string]struct{}, len(cat.AllowedSchemas))}
	for _, s := range cat.AllowedSchemas {
		v.allowed[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range cat.DeniedSchemas {
		v.deniedSchemas = append(v.deniedSchemas, strings.ToLower(s))
	}
	for _, p := range cat.DeniedPatterns {
		v.deniedPatterns = append(v.deniedPatterns, strings.ToLower(p))
	}
	return v
}

func (v *schemaValidator) Policy() string { return "schema" }

func (v *schemaValidator) Validate(text string) domain.ValidationResult {
	var res domain.ValidationResult
	res.Passed = true

	// Metadata probes are fatal regardless of any valid reference elsewhere.
	lower := strings.ToLower(text)
	for _, s := range v.deniedSchemas {
		if strings.Contains(lower, s+".") {
			res.Fail(domain.CheckAllowList, domain.ViolationTableNotAllowed,
				"references to schema %q are not allowed", s)
			return res
		}
	}
	for _, p := range v.deniedPatterns {
		if strings.Contains(lower, p) {
			res.Fail(domain.CheckAllowList, domain.ViolationTableNotAllowed,
				"server metadata reference %q is not allowed", p)
			return res
		}
	}

	seen := make(map[string]struct{})
	for _, m := range qualifiedNameRe.FindAllStringSubmatch(text, -1) {
		schema := strings.ToLower(m[1])
		if _, ok := v.allowed[schema]; !ok {
			continue
		}
		ref := m[1] + "." + m[2]
		key := strings.ToLower(ref)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		res.TablesReferenced = append(res.TablesReferenced, ref)
	}
	if len(res.TablesReferenced) == 0 {
		res.Fail(domain.CheckAllowList, domain.ViolationTableNotAllowed,
			"query must reference at least one table under an approved schema")
		return res
	}
	res.Pass(domain.CheckAllowList)
	return res
}
