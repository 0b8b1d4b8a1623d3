// Package rbac implements the organization role hierarchy and the role gate
// applied to org-scoped endpoints.
//
// # Hierarchy
//
// Roles are ordered from most to least privileged:
//
//	org_owner  100
//	admin       80
//	manager     60
//	scheduler   50
//	corporate   45
//	staff       40
//
// A higher role satisfies any requirement for a lower one. A caller passes
// the gate when their highest role is at or above the lowest role in the
// required set:
//
//	rbac.Satisfies([]rbac.Role{rbac.RoleManager}, []rbac.Role{rbac.RoleScheduler}) // true
//	rbac.Satisfies([]rbac.Role{rbac.RoleStaff}, []rbac.Role{rbac.RoleAdmin})       // false
//
// Unknown roles have no level: they never satisfy a requirement and are
// ignored when they appear in a required set.
//
// # Gate
//
// Gate wraps a required set built once at route registration and returns
// INSUFFICIENT_ROLE errors from pkg/apierror:
//
//	gate := rbac.NewGate(rbac.RoleAdmin, rbac.RoleOrgOwner)
//	if err := gate.Check(orgCtx.Roles); err != nil {
//	    return err
//	}
//
// # Related Packages
//
//   - pkg/orgs: resolves the caller's roles for an organization
//   - pkg/middleware: RoleStage runs the gate inside the pipeline
package rbac
