// Package apitest provides fixtures for testing endpoints built with
// package endpoint: an in-memory Harness wiring every collaborator, a fake
// identity provider and a request builder.
//
//	h := apitest.NewHarness(t)
//	h.AddMember("org-1", "u1", rbac.RoleManager)
//	ep := h.Factory.New(endpoint.OrgScoped(cfg))
//	resp := ep.Serve(apitest.NewRequest(http.MethodGet, "/x").As("u1").Org("org-1").Build(), nil)
package apitest
