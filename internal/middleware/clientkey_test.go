package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clientKeyProbe(t *testing.T, mutate func(*http.Request)) string {
	t.Helper()

	var captured string
	handler := ClientKey("X-Client-Id")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = ClientKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/queries/submit", nil)
	if mutate != nil {
		mutate(req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return captured
}

func TestClientKey_UsesHeaderWhenPresent(t *testing.T) {
	key := clientKeyProbe(t, func(r *http.Request) {
		r.Header.Set("X-Client-Id", "dashboard-staging-7")
	})
	assert.Equal(t, "dashboard-staging-7", key)
}

func TestClientKey_FallsBackToPeerAddress(t *testing.T) {
	key := clientKeyProbe(t, func(r *http.Request) {
		r.RemoteAddr = "203.0.113.9:51234"
	})
	assert.Equal(t, "203.0.113.9", key)
}

func TestClientKey_IgnoresForwardedFor(t *testing.T) {
	key := clientKeyProbe(t, func(r *http.Request) {
		r.RemoteAddr = "203.0.113.9:51234"
		r.Header.Set("X-Forwarded-For", "198.51.100.1")
	})
	assert.Equal(t, "203.0.113.9", key)
}

func TestClientKey_TruncatesOversizedHeader(t *testing.T) {
	key := clientKeyProbe(t, func(r *http.Request) {
		r.Header.Set("X-Client-Id", strings.Repeat("k", maxClientKeyLen+40))
	})
	assert.Equal(t, strings.Repeat("k", maxClientKeyLen), key)
}

func TestClientKey_BlankHeaderFallsBack(t *testing.T) {
	key := clientKeyProbe(t, func(r *http.Request) {
		r.Header.Set("X-Client-Id", "   ")
		r.RemoteAddr = "203.0.113.9:51234"
	})
	assert.Equal(t, "203.0.113.9", key)
}

func TestClientKeyFromContext_EmptyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ClientKeyFromContext(req.Context()))
}
