package middleware

import "context"

var _ JWTValidator = (*ClaimMapper)(nil)

// ClaimMapper applies deployment claim mapping on top of a validator:
// which claim names the principal, which claim carries the role tier, and
// which role values are granted the compliance surface. Identity providers
// disagree on all three, so the mapping lives in configuration.
type ClaimMapper struct {
	inner      JWTValidator
	nameClaim  string
	roleClaim  string
	adminRoles map[string]bool
}

// NewClaimMapper wraps inner with the given mapping. An empty claim name
// leaves the token's default extraction untouched.
func NewClaimMapper(inner JWTValidator, nameClaim, roleClaim string, adminRoles []string) *ClaimMapper {
	granted := make(map[string]bool, len(adminRoles))
	for _, r := range adminRoles {
		granted[r] = true
	}
	return &ClaimMapper{
		inner:      inner,
		nameClaim:  nameClaim,
		roleClaim:  roleClaim,
		adminRoles: granted,
	}
}

// Validate delegates, then rewrites the claims per the mapping. A mapped
// claim absent from the token keeps the default extraction, and an explicit
// admin=true claim survives whatever the role resolves to.
func (m *ClaimMapper) Validate(ctx context.Context, tokenString string) (*JWTClaims, error) {
	claims, err := m.inner.Validate(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if m.nameClaim != "" {
		if name, ok := claims.Raw[m.nameClaim].(string); ok && name != "" {
			claims.Subject = name
		}
	}
	if m.roleClaim != "" {
		if role, ok := claims.Raw[m.roleClaim].(string); ok && role != "" {
			claims.Role = role
		}
	}
	if m.adminRoles[claims.Role] {
		claims.Admin = true
	}
	return claims, nil
}
