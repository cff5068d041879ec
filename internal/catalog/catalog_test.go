package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cat := Default()
	require.NoError(t, cat.Validate())

	assert.Contains(t, cat.Tables, "gold.v_transactions_flat")
	assert.Contains(t, cat.Keywords, "DROP")
	assert.Contains(t, cat.FilePatterns, "INTO OUTFILE")
	assert.Contains(t, cat.AllowedSchemas, "gold")
	assert.Contains(t, cat.DeniedSchemas, "information_schema")
	assert.Equal(t, 8000, cat.MaxLength)
	assert.Equal(t, 10000, cat.MaxRowCap)
	assert.NotEmpty(t, cat.ExampleQuery)
}

func TestLoadFile_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `
tables:
  - analytics.orders
  - analytics.customers
max_row_cap: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cat, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"analytics.orders", "analytics.customers"}, cat.Tables)
	assert.Equal(t, 500, cat.MaxRowCap)
	// Unset fields keep defaults.
	assert.Equal(t, 8000, cat.MaxLength)
	assert.Contains(t, cat.Keywords, "TRUNCATE")
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile("/nonexistent/catalog.yaml")
	require.Error(t, err)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables: [unclosed"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse catalog")
}

func TestValidate_RejectsEmptyTables(t *testing.T) {
	cat := Default()
	cat.Tables = nil
	require.Error(t, cat.Validate())
}

func TestValidate_RejectsNonPositiveCaps(t *testing.T) {
	cat := Default()
	cat.MaxLength = 0
	require.Error(t, cat.Validate())

	cat = Default()
	cat.MaxRowCap = -1
	require.Error(t, cat.Validate())
}
