// Package catalog defines the deployment-versioned allow-list consulted by
// every validation pass: approved tables and schemas, advisory columns and
// functions, the forbidden keyword set, and the global length and row caps.
//
// The catalog is loaded once at startup and never mutated at request time.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the process-wide allow-list.
type Catalog struct {
	// Tables a query must reference at least one of.
	Tables []string `yaml:"tables"`

	// Columns and Functions are advisory: surfaced in capability discovery
	// and rejection help payloads, never enforced.
	Columns   []string `yaml:"columns"`
	Functions []string `yaml:"functions"`

	// Keywords are the forbidden statement verbs, matched as whole words
	// case-insensitively.
	Keywords []string `yaml:"keywords"`

	// FilePatterns are forbidden file-I/O fragments, matched as substrings.
	FilePatterns []string `yaml:"file_patterns"`

	// AllowedSchemas and DeniedSchemas drive the schema validation policy.
	// Schemas are matched as "<schema>." identifier prefixes; DeniedPatterns
	// are plain substrings (server metadata probes).
	AllowedSchemas []string `yaml:"allowed_schemas"`
	DeniedSchemas  []string `yaml:"denied_schemas"`
	DeniedPatterns []string `yaml:"denied_patterns"`

	MaxLength int `yaml:"max_length"`
	MaxRowCap int `yaml:"max_row_cap"`

	// ExampleQuery is shown in rejection help and capability discovery.
	ExampleQuery string `yaml:"example_query"`
}

// Default returns the built-in catalog for the Scout analytics warehouse.
func Default() *Catalog {
	return &Catalog{
		Tables: []string{
			"gold.v_transactions_flat",
			"gold.scout_dashboard_transactions",
			"gold.v_export_projection",
			"silver.transactions_cleaned",
			"silver.transaction_products",
			"silver.master_products",
			"platinum.conversation_ai_enriched",
			"dbo.v_transactions_flat_production",
			"dbo.SalesInteractions",
			"dbo.Stores",
		},
		Columns: []string{
			"transaction_id", "store_id", "store_name", "region", "barangay",
			"transaction_date", "brand", "category", "product_name", "sku",
			"quantity", "peso_value", "basket_size", "customer_gender",
			"customer_age_bracket",
		},
		Functions: []string{
			"COUNT", "SUM", "AVG", "MIN", "MAX", "CAST", "COALESCE", "ROUND",
			"YEAR", "MONTH", "DAY", "DATEPART", "FORMAT",
		},
		Keywords: []string{
			"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
			"TRUNCATE", "MERGE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
		},
		FilePatterns: []string{
			"INTO OUTFILE", "INTO DUMPFILE", "LOAD_FILE", "LOAD DATA",
			"BULK INSERT", "OPENROWSET",
		},
		AllowedSchemas: []string{"gold", "silver", "platinum", "dbo"},
		DeniedSchemas: []string{
			"information_schema", "sys", "pg_catalog", "master", "msdb",
			"tempdb", "mysql",
		},
		DeniedPatterns: []string{
			"@@version", "current_user", "session_user", "version()",
		},
		MaxLength:    8000,
		MaxRowCap:    10000,
		ExampleQuery: "SELECT brand, SUM(peso_value) AS total_sales FROM gold.v_transactions_flat GROUP BY brand",
	}
}

// LoadFile reads a YAML catalog file and merges it over the built-in
// defaults. Empty fields in the file keep their default values.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var loaded Catalog
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	cat := Default()
	mergeOver(cat, &loaded)
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

func mergeOver(base, loaded *Catalog) {
	if len(loaded.Tables) > 0 {
		base.Tables = loaded.Tables
	}
	if len(loaded.Columns) > 0 {
		base.Columns = loaded.Columns
	}
	if len(loaded.Functions) > 0 {
		base.Functions = loaded.Functions
	}
	if len(loaded.Keywords) > 0 {
		base.Keywords = loaded.Keywords
	}
	if len(loaded.FilePatterns) > 0 {
		base.FilePatterns = loaded.FilePatterns
	}
	if len(loaded.AllowedSchemas) > 0 {
		base.AllowedSchemas = loaded.AllowedSchemas
	}
	if len(loaded.DeniedSchemas) > 0 {
		base.DeniedSchemas = loaded.DeniedSchemas
	}
	if len(loaded.DeniedPatterns) > 0 {
		base.DeniedPatterns = loaded.DeniedPatterns
	}
	if loaded.MaxLength > 0 {
		base.MaxLength = loaded.MaxLength
	}
	if loaded.MaxRowCap > 0 {
		base.MaxRowCap = loaded.MaxRowCap
	}
	if loaded.ExampleQuery != "" {
		base.ExampleQuery = loaded.ExampleQuery
	}
}

// Validate checks that the catalog can actually admit a query.
func (c *Catalog) Validate() error {
	if len(c.Tables) == 0 {
		return fmt.Errorf("catalog has no allowed tables")
	}
	if c.MaxLength <= 0 {
		return fmt.Errorf("max_length must be positive, got %d", c.MaxLength)
	}
	if c.MaxRowCap <= 0 {
		return fmt.Errorf("max_row_cap must be positive, got %d", c.MaxRowCap)
	}
	return nil
}
