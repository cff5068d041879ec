package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"scoutgw/internal/domain"
)

// Authenticate validates the bearer token and stores the caller principal
// in the request context. The execute and audit surfaces sit behind this;
// the anonymous submit surface does not.
func Authenticate(validator JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := validator.Validate(r.Context(), strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			principal := domain.ContextPrincipal{
				Name:    claims.Subject,
				Role:    RoleFromClaim(claims.Role),
				IsAdmin: claims.Admin,
			}
			ctx := domain.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticateOptional resolves a principal when a bearer token is present
// and passes anonymous requests through untouched. A present but invalid
// token is rejected, never downgraded to anonymous.
func AuthenticateOptional(validator JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}

			claims, err := validator.Validate(r.Context(), strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			ctx := domain.WithPrincipal(r.Context(), domain.ContextPrincipal{
				Name:    claims.Subject,
				Role:    RoleFromClaim(claims.Role),
				IsAdmin: claims.Admin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticatePage behaves like Authenticate but hands failures to the
// caller's handler, so browser surfaces can redirect to a login page
// instead of receiving the JSON 401.
func AuthenticatePage(validator JWTValidator, onFailure http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				onFailure.ServeHTTP(w, r)
				return
			}

			claims, err := validator.Validate(r.Context(), strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				onFailure.ServeHTTP(w, r)
				return
			}

			ctx := domain.WithPrincipal(r.Context(), domain.ContextPrincipal{
				Name:    claims.Subject,
				Role:    RoleFromClaim(claims.Role),
				IsAdmin: claims.Admin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates the compliance surfaces. It assumes Authenticate ran
// earlier in the chain.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := domain.PrincipalFromContext(r.Context())
		if !ok || !p.IsAdmin {
			writeAuthError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RoleFromClaim maps a token's role claim to a known tier. Unknown or
// missing values resolve to the most restrictive tier, never to an error.
func RoleFromClaim(role string) domain.Role {
	switch domain.Role(strings.ToLower(strings.TrimSpace(role))) {
	case domain.RoleAnalyst:
		return domain.RoleAnalyst
	case domain.RoleManager:
		return domain.RoleManager
	case domain.RoleExecutive:
		return domain.RoleExecutive
	default:
		return domain.RoleDefault
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    status,
		"message": message,
	})
}
