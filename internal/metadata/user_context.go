package metadata

import "slices"

// AdministratorRole is granted every capability a registered type introduces.
const AdministratorRole = "administrator"

// UserContext is the acting user of a request. The auth middleware stores
// it under c.Locals("user"); platform.Can resolves its roles to
// capabilities.
type UserContext struct {
	ID    string   `json:"id"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles"`
}

func (u *UserContext) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

func (u *UserContext) IsAdmin() bool { return u.HasRole(AdministratorRole) }
