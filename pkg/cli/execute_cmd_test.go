package cli

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const executeOKBody = `{
  "executionId": "q-7f3a",
  "status": "success",
  "columns": ["region", "total_sales"],
  "rowCount": 2,
  "executionTimeMs": 13,
  "data": [["NCR", 125000.5], ["Visayas", 98000]],
  "metadata": {"rlsEnforced": false, "rowLimitApplied": true, "schemaValidationPassed": true, "auditLogged": true}
}`

func TestExecuteRendersResultTable(t *testing.T) {
	isolateUserEnv(t)
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK, executeOKBody))
	defer srv.Close()

	out, err := runCommand(t, srv, "--token", "tok-123", "execute",
		"--sql", "SELECT region, total_sales FROM gold.v_transactions_flat LIMIT 1000")
	require.NoError(t, err)

	req := rec.last()
	require.NotNil(t, req)
	assert.Equal(t, "/v1/queries/execute", req.Path)
	assert.Equal(t, "Bearer tok-123", req.Headers.Get("Authorization"))
	assert.JSONEq(t,
		`{"generatedSQL":"SELECT region, total_sales FROM gold.v_transactions_flat LIMIT 1000"}`,
		string(req.Body))

	assert.Contains(t, out, "REGION")
	assert.Contains(t, out, "TOTAL_SALES")
	assert.Contains(t, out, "NCR")
	assert.Contains(t, out, "125000.5")
	assert.Contains(t, out, "2 rows in 13ms")
	assert.Contains(t, out, "row limit applied")
	assert.Contains(t, out, "q-7f3a")
}

func TestExecuteJSONOutput(t *testing.T) {
	isolateUserEnv(t)
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, http.StatusOK, executeOKBody))
	defer srv.Close()

	out, err := runCommand(t, srv, "-o", "json", "execute", "--sql", "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, out, `"executionId": "q-7f3a"`)
	assert.Contains(t, out, `"rowCount": 2`)
}

func TestExecuteTimeoutSurfaced(t *testing.T) {
	isolateUserEnv(t)
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, http.StatusGatewayTimeout,
		`{"executionId":"q-9c1d","status":"timeout","error":"query exceeded the 30s execution window"}`))
	defer srv.Close()

	_, err := runCommand(t, srv, "execute", "--sql", "SELECT heavy FROM gold.v_transactions_flat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 504")
	assert.Contains(t, err.Error(), "execution window")
}

func TestExecuteAuthenticationFailureSurfaced(t *testing.T) {
	isolateUserEnv(t)
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, http.StatusUnauthorized,
		`{"code":401,"message":"authentication required"}`))
	defer srv.Close()

	_, err := runCommand(t, srv, "execute", "--sql", "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, "API error (HTTP 401): authentication required", err.Error())
}

func TestExecuteSendsFilenameFromFileArgument(t *testing.T) {
	isolateUserEnv(t)
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK, executeOKBody))
	defer srv.Close()

	path := writeTempSQL(t, "bounded.sql", "SELECT region FROM gold.v_transactions_flat LIMIT 1000")
	_, err := runCommand(t, srv, "execute", path)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"generatedSQL":"SELECT region FROM gold.v_transactions_flat LIMIT 1000","filename":"bounded.sql"}`,
		string(rec.last().Body))
}
