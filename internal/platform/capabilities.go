package platform

import (
	"sort"

	"customfields/internal/engine"
	"customfields/internal/metadata"
)

func (p *Platform) GrantRoleCapabilities(role string, caps []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.roles[role] == nil {
		p.roles[role] = make(map[string]bool, len(caps))
	}
	for _, c := range caps {
		p.roles[role][c] = true
	}
}

// RoleCapabilities returns the role's capabilities, sorted.
func (p *Platform) RoleCapabilities(role string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	caps := make([]string, 0, len(p.roles[role]))
	for c := range p.roles[role] {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps
}

// Can reports whether any of the user's roles holds the capability.
func (p *Platform) Can(user *metadata.UserContext, capability string) bool {
	if user == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, role := range user.Roles {
		if p.roles[role][capability] {
			return true
		}
	}
	return false
}

// Permissions adapts Can for a single user. Capabilities are not scoped
// to individual entities.
func (p *Platform) Permissions(user *metadata.UserContext) engine.Permissions {
	return engine.PermissionFunc(func(capability string, _ int64) bool {
		return p.Can(user, capability)
	})
}
