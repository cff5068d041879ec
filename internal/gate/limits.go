package gate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"scoutgw/internal/domain"
)

// Dialect selects the bound clause syntax the warehouse understands.
type Dialect string

// Supported bound clause dialects.
const (
	DialectTop   Dialect = "top"   // SELECT TOP (n) prefix (Azure SQL, SQL Server)
	DialectLimit Dialect = "limit" // LIMIT n suffix (Postgres, DuckDB)
)

// Mode controls how an injector treats a caller-supplied bound that exceeds
// the cap.
type Mode string

// Injection modes.
const (
	// ModeStrict rejects an oversized bound instead of rewriting it, so the
	// caller always sees exactly the query they wrote or a refusal.
	ModeStrict Mode = "strict"

	// ModeLenient clamps an oversized bound to the cap silently.
	ModeLenient Mode = "lenient"
)

var (
	selectHeadRe = regexp.MustCompile(`(?i)^\s*select(\s+distinct)?\b`)
	topBoundRe   = regexp.MustCompile(`(?i)\btop\s*\(?\s*(\d+)\s*\)?`)
	limitBoundRe = regexp.MustCompile(`(?i)\blimit\s+(\d+)\b`)
)

// Injector guarantees every dispatched query carries a row bound no greater
// than the cap it is given. It never parses the query; bounds are located by
// pattern match, so only the first bound clause in the text is considered.
type Injector struct {
	dialect Dialect
	mode    Mode
}

// NewInjector creates an injector for the given dialect and mode.
func NewInjector(dialect Dialect, mode Mode) *Injector {
	return &Injector{dialect: dialect, mode: mode}
}

// Mode returns the injector's configured mode.
func (i *Injector) Mode() Mode { return i.mode }

// ApplyCap returns the query text carrying an effective row bound ≤ maxRows,
// along with that bound. In strict mode an existing bound above maxRows is
// rejected with BoundExceeded; in lenient mode it is clamped. A query with
// no bound gets one injected at maxRows in either mode.
func (i *Injector) ApplyCap(text string, maxRows int) (string, int, error) {
	boundRe := limitBoundRe
	if i.dialect == DialectTop {
		boundRe = topBoundRe
	}

	m := boundRe.FindStringSubmatchIndex(text)
	if m == nil {
		injected, err := i.inject(text, maxRows)
		if err != nil {
			return text, 0, err
		}
		return injected, maxRows, nil
	}

	bound, err := strconv.Atoi(text[m[2]:m[3]])
	if err != nil {
		return text, 0, fmt.Errorf("parse row bound %q: %w", text[m[2]:m[3]], err)
	}
	if bound <= maxRows {
		return text, bound, nil
	}
	if i.mode == ModeStrict {
		return text, 0, domain.ErrValidation(domain.ViolationBoundExceeded,
			"requested row bound %d exceeds maximum %d", bound, maxRows)
	}
	// Lenient: splice the cap over the digits, keeping the clause shape.
	clamped := text[:m[2]] + strconv.Itoa(maxRows) + text[m[3]:]
	return clamped, maxRows, nil
}

func (i *Injector) inject(text string, maxRows int) (string, error) {
	switch i.dialect {
	case DialectTop:
		head := selectHeadRe.FindStringIndex(text)
		if head == nil {
			return "", domain.ErrValidation(domain.ViolationNotReadOnly,
				"only SELECT statements can carry a row bound")
		}
		return text[:head[1]] + fmt.Sprintf(" TOP (%d)", maxRows) + text[head[1]:], nil
	default:
		trimmed := strings.TrimSuffix(strings.TrimSpace(text), ";")
		return fmt.Sprintf("%s LIMIT %d", trimmed, maxRows), nil
	}
}
