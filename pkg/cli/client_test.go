package cli

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	t.Parallel()
	c := NewClient("http://gw.scout.internal:8080/", "", "")
	assert.Equal(t, "http://gw.scout.internal:8080", c.BaseURL)
}

func TestDoBuildsRequest(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK, `{}`))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123", "dash-7")
	query := url.Values{"status": []string{"rejected"}}
	resp, err := c.Do(http.MethodPost, "/queries/submit", query, map[string]string{"sql": "SELECT 1"})
	require.NoError(t, err)
	require.NoError(t, CheckError(resp))
	_, err = ReadBody(resp)
	require.NoError(t, err)

	req := rec.last()
	require.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/queries/submit", req.Path)
	assert.Equal(t, "rejected", req.Query.Get("status"))
	assert.Equal(t, "application/json", req.Headers.Get("Accept"))
	assert.Equal(t, "application/json", req.Headers.Get("Content-Type"))
	assert.Equal(t, "Bearer tok-123", req.Headers.Get("Authorization"))
	assert.Equal(t, "dash-7", req.Headers.Get("X-Client-Id"))
	assert.JSONEq(t, `{"sql":"SELECT 1"}`, string(req.Body))
}

func TestDoWithoutBodyOrCredentials(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK, `{}`))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	resp, err := c.Do(http.MethodGet, "/capabilities", nil, nil)
	require.NoError(t, err)
	_, err = ReadBody(resp)
	require.NoError(t, err)

	req := rec.last()
	require.NotNil(t, req)
	assert.Equal(t, "/v1/capabilities", req.Path)
	assert.Empty(t, req.Headers.Get("Content-Type"))
	assert.Empty(t, req.Headers.Get("Authorization"))
	assert.Empty(t, req.Headers.Get("X-Client-Id"))
}

func TestCheckErrorParsesErrorBody(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, http.StatusForbidden,
		`{"code":403,"message":"admin role required"}`))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "", "").Do(http.MethodGet, "/audit/records", nil, nil)
	require.NoError(t, err)

	err = CheckError(resp)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.HTTPStatus)
	assert.Equal(t, 403, apiErr.Code)
	assert.Equal(t, "API error (HTTP 403): admin role required", err.Error())
}

func TestCheckErrorFallsBackToErrorField(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, http.StatusBadGateway,
		`{"ok":false,"status":"error","error":"warehouse unreachable"}`))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "", "").Do(http.MethodPost, "/queries/execute", nil, nil)
	require.NoError(t, err)

	err = CheckError(resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse unreachable")
}

func TestCheckErrorFallsBackToRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("gateway wedged\n"))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "", "").Do(http.MethodGet, "/capabilities", nil, nil)
	require.NoError(t, err)

	err = CheckError(resp)
	require.Error(t, err)
	assert.Equal(t, "API error (HTTP 500): gateway wedged", err.Error())
}

func TestCheckErrorReadsRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error":"rate limit exceeded","retry_after_seconds":42}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "", "").Do(http.MethodPost, "/queries/submit", nil, nil)
	require.NoError(t, err)

	err = CheckError(resp)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 42, apiErr.RetryAfterSeconds)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestDoJSONReportsParseFailure(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, http.StatusOK, `not json at all`))
	defer srv.Close()

	var out map[string]interface{}
	err := NewClient(srv.URL, "", "").DoJSON(http.MethodGet, "/capabilities", nil, nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestDoJSONConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, http.StatusOK, `{}`))
	srv.Close()

	err := NewClient(srv.URL, "", "").DoJSON(http.MethodGet, "/capabilities", nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute request")
	assert.False(t, errors.As(err, new(*APIError)))
}

func TestFetchAllRecordsFollowsTokens(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec.record(req)
		w.Header().Set("Content-Type", "application/json")
		switch req.URL.Query().Get("page_token") {
		case "":
			fmt.Fprint(w, `{"records":[{"execution_id":"q-1"},{"execution_id":"q-2"}],"total_count":3,"next_page_token":"t2"}`)
		case "t2":
			fmt.Fprint(w, `{"records":[{"execution_id":"q-3"}],"total_count":3}`)
		default:
			http.Error(w, "bad token", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	base := url.Values{"status": []string{"rejected"}}
	records, err := FetchAllRecords(NewClient(srv.URL, "", ""), "/audit/records", base)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// the filter rides along on every page and the base query is untouched
	reqs := rec.all()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, "rejected", r.Query.Get("status"))
	}
	assert.Equal(t, "t2", reqs[1].Query.Get("page_token"))
	assert.Empty(t, base.Get("page_token"))
}

func TestFetchAllRecordsSinglePage(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK,
		`{"records":[{"execution_id":"q-1"}],"total_count":1}`))
	defer srv.Close()

	records, err := FetchAllRecords(NewClient(srv.URL, "", ""), "/audit/records", nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, rec.count())
}

func TestFetchAllRecordsStopsOnError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, http.StatusForbidden,
		`{"code":403,"message":"admin role required"}`))
	defer srv.Close()

	_, err := FetchAllRecords(NewClient(srv.URL, "", ""), "/audit/records", nil)
	require.Error(t, err)
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}
