package gate

import "scoutgw/internal/domain"

// Resolver maps caller roles to row ceilings. Unknown roles get the most
// restrictive tier.
type Resolver struct {
	caps       map[domain.Role]int
	defaultCap int
}

// NewResolver builds a resolver from the configured tier caps.
func NewResolver(defaultCap, analystCap, managerCap, executiveCap int) *Resolver {
	return &Resolver{
		caps: map[domain.Role]int{
			domain.RoleDefault:   defaultCap,
			domain.RoleAnalyst:   analystCap,
			domain.RoleManager:   managerCap,
			domain.RoleExecutive: executiveCap,
		},
		defaultCap: defaultCap,
	}
}

// Resolve returns the row ceiling for a role.
func (r *Resolver) Resolve(role domain.Role) int {
	if c, ok := r.caps[role]; ok {
		return c
	}
	return r.defaultCap
}

// EffectiveCap intersects the catalog ceiling with the caller's role ceiling.
func (r *Resolver) EffectiveCap(role domain.Role, catalogCap int) int {
	roleCap := r.Resolve(role)
	if roleCap < catalogCap {
		return roleCap
	}
	return catalogCap
}
