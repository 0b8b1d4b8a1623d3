package endpoint

import (
	"time"

	"github.com/fresh-schedules/apiframework/pkg/auth"
	"github.com/fresh-schedules/apiframework/pkg/orgs"
	"github.com/fresh-schedules/apiframework/pkg/ratelimit"
	"github.com/fresh-schedules/apiframework/pkg/rbac"
)

// Public needs no credential, no organization and no CSRF token.
func Public(cfg Config) Config {
	cfg.Auth = auth.ModeNone
	cfg.Org = orgs.ModeNone
	cfg.Roles = nil
	cfg.DisableCSRF = true
	return cfg
}

// Authenticated requires a verified caller.
func Authenticated(cfg Config) Config {
	cfg.Auth = auth.ModeRequired
	return cfg
}

// OrgScoped requires a caller who is a member of the target organization.
// Roles already set on cfg are kept.
func OrgScoped(cfg Config) Config {
	cfg.Auth = auth.ModeRequired
	cfg.Org = orgs.ModeRequired
	return cfg
}

// Admin requires an admin or org_owner membership.
func Admin(cfg Config) Config {
	cfg = OrgScoped(cfg)
	cfg.Roles = []rbac.Role{rbac.RoleAdmin, rbac.RoleOrgOwner}
	return cfg
}

// RateLimited returns a preset that allows anonymous callers and limits
// them to max requests per window, keyed by client IP.
func RateLimited(max int, window time.Duration) func(Config) Config {
	return func(cfg Config) Config {
		if cfg.Auth == "" {
			cfg.Auth = auth.ModeNone
		}
		if cfg.Org == "" {
			cfg.Org = orgs.ModeNone
		}
		cfg.RateLimit = &ratelimit.Limit{Max: max, Window: window}
		return cfg
	}
}
