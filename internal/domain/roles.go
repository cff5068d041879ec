package domain

// Role is the caller tier supplied by the identity collaborator.
type Role string

// Known caller roles. Unknown values resolve to RoleDefault.
const (
	RoleDefault   Role = "default"
	RoleAnalyst   Role = "analyst"
	RoleManager   Role = "manager"
	RoleExecutive Role = "executive"
)
