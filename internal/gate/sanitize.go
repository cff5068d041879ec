package gate

import (
	"regexp"
	"strings"

	"scoutgw/internal/catalog"
	"scoutgw/internal/domain"
)

var (
	readOnlyStartRe = regexp.MustCompile(`(?i)^select\b`)
	procPrefixRe    = regexp.MustCompile(`(?i)\b(?:xp|sp)_[a-z0-9_]+`)
)

// Sanitizer applies the ordered syntactic rejection rules. Rules run in a
// fixed order and short-circuit on the first violation; the rules already
// run are recorded on the result either way.
type Sanitizer struct {
	cat          *catalog.Catalog
	keywordRe    *regexp.Regexp
	filePatterns []string
}

// NewSanitizer compiles the catalog's forbidden keyword set into a sanitizer.
func NewSanitizer(cat *catalog.Catalog) *Sanitizer {
	s := &Sanitizer{cat: cat}
	if len(cat.Keywords) > 0 {
		words := make([]string, 0, len(cat.Keywords))
		for _, k := range cat.Keywords {
			words = append(words, regexp.QuoteMeta(k))
		}
		s.keywordRe = regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
	}
	for _, p := range cat.FilePatterns {
		s.filePatterns = append(s.filePatterns, strings.ToUpper(p))
	}
	return s
}

// Sanitize runs the rejection rules over raw query text. Matching is plain
// text: string literals are not stripped first, so a query mentioning a
// forbidden word inside a literal is rejected too.
func (s *Sanitizer) Sanitize(text string) domain.ValidationResult {
	var res domain.ValidationResult
	res.Passed = true

	// 1. Length ceiling, checked before any content inspection.
	if len(text) > s.cat.MaxLength {
		res.Fail(domain.CheckLength, domain.ViolationTooLong,
			"query length %d exceeds maximum %d characters", len(text), s.cat.MaxLength)
		return res
	}
	res.Pass(domain.CheckLength)

	// 2. Single statement: a semicolon anywhere but the trimmed end means
	// stacked statements.
	trimmed := strings.TrimSpace(text)
	body := strings.TrimSuffix(trimmed, ";")
	if strings.Contains(body, ";") {
		res.Fail(domain.CheckSingleStmt, domain.ViolationForbiddenKeyword,
			"multiple statements are not allowed")
		return res
	}
	res.Pass(domain.CheckSingleStmt)

	// 3. Comment markers hide payloads from downstream inspection.
	if strings.Contains(text, "--") || strings.Contains(text, "/*") || strings.Contains(text, "*/") {
		res.Fail(domain.CheckComments, domain.ViolationForbiddenKeyword,
			"comment markers are not allowed")
		return res
	}
	res.Pass(domain.CheckComments)

	// 4a. Forbidden verbs, whole-word, any case.
	if s.keywordRe != nil {
		if m := s.keywordRe.FindString(text); m != "" {
			res.Fail(domain.CheckKeywords, domain.ViolationForbiddenKeyword,
				"forbidden keyword %q detected", strings.ToUpper(m))
			return res
		}
	}
	if m := procPrefixRe.FindString(text); m != "" {
		res.Fail(domain.CheckKeywords, domain.ViolationForbiddenKeyword,
			"system procedure call %q is not allowed", m)
		return res
	}
	res.Pass(domain.CheckKeywords)

	// 4b. File-I/O fragments.
	upper := strings.ToUpper(text)
	for _, p := range s.filePatterns {
		if strings.Contains(upper, p) {
			res.Fail(domain.CheckFilePatterns, domain.ViolationUnsafeFilePattern,
				"unsafe file pattern %q detected", p)
			return res
		}
	}
	res.Pass(domain.CheckFilePatterns)

	// 5. Read-only verb: the statement must start with SELECT.
	if !readOnlyStartRe.MatchString(trimmed) {
		res.Fail(domain.CheckReadOnlyVerb, domain.ViolationNotReadOnly,
			"only SELECT statements are allowed")
		return res
	}
	res.Pass(domain.CheckReadOnlyVerb)

	return res
}
