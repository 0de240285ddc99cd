package domain

import "strings"

// Role is the closed set of user roles.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleLawyer     Role = "lawyer"
	RoleClient     Role = "client"
	RoleInvestor   Role = "investor"
	RoleAggregator Role = "aggregator"
)

var roleLabels = map[Role]string{
	RoleSuperAdmin: "Super Admin",
	RoleLawyer:     "Lawyer",
	RoleClient:     "Client",
	RoleInvestor:   "Investor",
	RoleAggregator: "Aggregator",
}

// Roles lists every role.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleLawyer, RoleClient, RoleInvestor, RoleAggregator}
}

// Label returns the display label, e.g. "Super Admin".
func (r Role) Label() string {
	return roleLabels[r]
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// ParseRole accepts either a slug ("super_admin") or a label ("Super Admin").
func ParseRole(raw string) (Role, bool) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	r := Role(norm)
	return r, r.Valid()
}

// UserStatus marks whether a user may sign in.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

// User is an account with a role and an optional list of assigned projects.
type User struct {
	Base
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	Status     UserStatus `json:"status"`
	ProjectIDs []string   `json:"project_ids"`
}

// AssignedTo reports whether the user is assigned to the project.
func (u User) AssignedTo(projectID string) bool {
	for _, id := range u.ProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}
