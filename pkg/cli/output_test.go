package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintJSONIndented(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]int{"rows": 3}))
	assert.Equal(t, "{\n  \"rows\": 3\n}\n", buf.String())
}

func TestPrintJSONNil(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, nil))
	assert.Equal(t, "null\n", buf.String())
}

func TestPrintTableAlignsColumns(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	PrintTable(&buf, []string{"name", "status"}, [][]string{
		{"q-1", "success"},
		{"q-22", "rejected"},
	})
	want := "NAME  STATUS\n" +
		"q-1   success\n" +
		"q-22  rejected\n"
	assert.Equal(t, want, buf.String())
}

func TestPrintTableNoColumnsNoOutput(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	PrintTable(&buf, nil, [][]string{{"orphan"}})
	assert.Empty(t, buf.String())
}

func TestPrintTableNoRowsHeaderOnly(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	PrintTable(&buf, []string{"name", "status"}, nil)
	assert.Equal(t, "NAME  STATUS\n", buf.String())
}

func TestPrintTableShortRowLeavesBlankCells(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	PrintTable(&buf, []string{"a", "b"}, [][]string{{"only"}})
	assert.Equal(t, "A     B\nonly\n", buf.String())
}

func TestPrintDetailSortedAndAligned(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	PrintDetail(&buf, map[string]string{
		"profile": "default",
		"host":    "http://localhost:8080",
	})
	want := "host:     http://localhost:8080\n" +
		"profile:  default\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatValue(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   interface{}
		want string
	}{
		{"string", "NCR", "NCR"},
		{"integer", float64(42), "42"},
		{"decimal", float64(3.5), "3.5"},
		{"bool", true, "true"},
		{"nil", nil, ""},
		{"object", map[string]interface{}{"kind": "forbidden_table"}, `{"kind":"forbidden_table"}`},
		{"array", []interface{}{"a", "b"}, `["a","b"]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatValue(tc.in))
		})
	}
}

func TestExtractFieldMissingKeyEmpty(t *testing.T) {
	t.Parallel()
	item := map[string]interface{}{"status": "success"}
	assert.Equal(t, "success", ExtractField(item, "status"))
	assert.Empty(t, ExtractField(item, "violation_kind"))
}

func TestExtractRows(t *testing.T) {
	t.Parallel()
	payload := map[string]interface{}{
		"records": []interface{}{
			map[string]interface{}{"execution_id": "q-1", "status": "success", "row_count": float64(10)},
			"not an object",
			map[string]interface{}{"execution_id": "q-2", "status": "rejected"},
		},
	}

	rows := ExtractRows(payload, "records", []string{"execution_id", "status", "row_count"})
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"q-1", "success", "10"}, rows[0])
	assert.Equal(t, []string{"q-2", "rejected", ""}, rows[1])
}

func TestExtractRowsMissingList(t *testing.T) {
	t.Parallel()
	assert.Nil(t, ExtractRows(map[string]interface{}{}, "records", []string{"execution_id"}))
}
