package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

const maxClientKeyLen = 128

type clientKeyKey struct{}

// ClientKey resolves the rate-limit identity for each request: the named
// header when the dashboard supplies one, the peer address otherwise.
// X-Forwarded-For is ignored; a spoofable key would let one caller drain
// every client's budget.
func ClientKey(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientKeyKey{}, resolveClientKey(r, header))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientKeyFromContext extracts the rate-limit key from the context.
// Returns an empty string if the middleware did not run.
func ClientKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(clientKeyKey{}).(string)
	return key
}

func resolveClientKey(r *http.Request, header string) string {
	if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
		if len(id) > maxClientKeyLen {
			id = id[:maxClientKeyLen]
		}
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
