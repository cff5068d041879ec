package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutgw/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func TestNormalize_StampsRequest(t *testing.T) {
	req, err := Normalize(domain.QueryRequest{
		RawText:  "  SELECT brand FROM gold.v_transactions_flat  ",
		ClientID: "store-104",
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, "SELECT brand FROM gold.v_transactions_flat", req.RawText)
	assert.Equal(t, "store-104", req.ClientID)
	assert.NotEmpty(t, req.ExecutionID)
	assert.Equal(t, testNow, req.ReceivedAt)
	assert.Equal(t, "adhoc_20250601T123000.sql", req.Filename)
}

func TestNormalize_RejectsEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := Normalize(domain.QueryRequest{RawText: text}, testNow)
		require.Error(t, err)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, domain.ViolationMissingQueryText, verr.Kind)
	}
}

func TestNormalize_RejectedRequestStillCarriesAuditIdentity(t *testing.T) {
	req, err := Normalize(domain.QueryRequest{RawText: "   "}, testNow)
	require.Error(t, err)

	assert.NotEmpty(t, req.ExecutionID)
	assert.Equal(t, "anonymous", req.ClientID)
	assert.Equal(t, testNow, req.ReceivedAt)
}

func TestNormalize_FilenameRules(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"valid", "weekly_sales.sql", false},
		{"valid_with_dots", "scout.q1-2025.sql", false},
		{"uppercase_suffix", "REPORT.SQL", false},
		{"path_traversal", "../../etc/passwd.sql", true},
		{"wrong_extension", "report.txt", true},
		{"embedded_space", "my query.sql", true},
		{"shell_metachar", "a;b.sql", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(domain.QueryRequest{
				RawText:  "SELECT 1",
				Filename: tc.filename,
			}, testNow)
			if tc.wantErr {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, domain.ViolationInvalidFilename, verr.Kind)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNormalize_DefaultsClientID(t *testing.T) {
	req, err := Normalize(domain.QueryRequest{RawText: "SELECT 1"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", req.ClientID)
}

func TestNormalize_PreservesExistingExecutionID(t *testing.T) {
	req, err := Normalize(domain.QueryRequest{
		RawText:     "SELECT 1",
		ExecutionID: "fixed-id",
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", req.ExecutionID)
}
