package rbac

import (
	"fmt"
	"strings"
)

// Role is an organization membership role.
type Role string

const (
	RoleOrgOwner  Role = "org_owner"
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleScheduler Role = "scheduler"
	RoleCorporate Role = "corporate"
	RoleStaff     Role = "staff"
)

var levels = map[Role]int{
	RoleOrgOwner:  100,
	RoleAdmin:     80,
	RoleManager:   60,
	RoleScheduler: 50,
	RoleCorporate: 45,
	RoleStaff:     40,
}

// AllRoles lists every known role from most to least privileged.
func AllRoles() []Role {
	return []Role{RoleOrgOwner, RoleAdmin, RoleManager, RoleScheduler, RoleCorporate, RoleStaff}
}

// Level returns the privilege level of r, or 0 for unknown roles.
func (r Role) Level() int {
	return levels[r]
}

// Valid reports whether r is part of the hierarchy.
func (r Role) Valid() bool {
	_, ok := levels[r]
	return ok
}

// AtLeast reports whether r is at or above other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && other.Valid() && r.Level() >= other.Level()
}

// ParseRole converts a stored role name, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Highest returns the most privileged known role in roles.
func Highest(roles []Role) (Role, bool) {
	var best Role
	found := false
	for _, r := range roles {
		if !r.Valid() {
			continue
		}
		if !found || r.Level() > best.Level() {
			best = r
			found = true
		}
	}
	return best, found
}
