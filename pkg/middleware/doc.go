// Package middleware runs the ordered cross-cutting checks that precede an
// endpoint's handler.
//
// # Overview
//
// Each check is a Stage. A Chain executes its stages in order against one
// RequestContext; the first stage returning a response or an error
// short-circuits the rest, including the handler. Stages write only their
// own slot of the context:
//
//	AuthStage      -> rc.Auth
//	OrgStage       -> rc.Org
//	RoleStage      (reads rc.Org)
//	RateLimitStage -> rate limit headers
//	CSRFStage      (reads the request)
//
// Custom stages use rc.Set and rc.Value with their own name as the key.
//
// # Usage
//
//	chain := middleware.NewChain("shifts.create", metrics,
//		&middleware.AuthStage{Resolver: authResolver, Mode: auth.ModeRequired},
//		&middleware.OrgStage{Resolver: orgResolver, Mode: orgs.ModeRequired},
//		&middleware.RoleStage{Gate: rbac.NewGate(rbac.RoleManager)},
//		&middleware.RateLimitStage{Limiter: limiter, Limit: ratelimit.Limit{Max: 30, Window: time.Minute}},
//		&middleware.CSRFStage{Guard: csrfGuard},
//	)
//	resp, err := chain.Execute(ctx, rc)
//
// A timeout in any collaborator surfaces as 503 SERVICE_UNAVAILABLE; no stage
// lets a request through because a dependency was slow.
//
// # Related Packages
//
//   - pkg/auth: credential resolution
//   - pkg/orgs: membership lookup
//   - pkg/rbac: role hierarchy
//   - pkg/ratelimit: fixed-window counters
//   - pkg/csrf: double-submit tokens
package middleware
