// Package endpoint turns a business handler into a governed HTTP endpoint.
//
// A Factory holds the shared collaborators (identity resolution, membership
// lookup, rate limiter, CSRF guard, idempotency guard, audit sink, metrics).
// Factory.New compiles a Config into an Endpoint at route registration:
//
//	f := &endpoint.Factory{Auth: authResolver, Orgs: orgResolver, Limiter: limiter}
//	router.Handle("/api/orgs/{orgId}/shifts", f.New(endpoint.OrgScoped(endpoint.Config{
//	    Name:    "shifts.create",
//	    Roles:   []rbac.Role{rbac.RoleScheduler},
//	    Input:   validation.For[CreateShift](),
//	    Handler: createShift,
//	}))).Methods(http.MethodPost)
//
// Each request runs, in order: the stage chain (auth, org, roles, rate
// limit, CSRF, custom stages), body read and input validation, idempotency
// lookup for mutating requests carrying a key, and finally the handler.
//
// Handlers return a Result. Value and Paged results are wrapped in the
// success envelope:
//
//	{"data": ..., "meta": {"requestId": "...", "durationMs": 3}}
//
// Raw results are written as built, with only the X-Request-ID and
// X-Duration-Ms headers added. Every error, including panics, goes through
// apierror and produces the error envelope. Each request yields exactly one
// audit entry, one log line and one set of metrics.
package endpoint
