// Package orgs resolves the caller's membership in the organization named by
// a request.
//
// # Overview
//
// Every org-scoped endpoint needs to know which organization the request
// targets and which roles the caller holds there. Resolver reads the org ID
// from, in order:
//
//  1. the "orgId" route parameter
//  2. the "orgId" query parameter
//  3. the "x-org-id" header
//
// and loads the membership through a MembershipStore:
//
//	store := orgs.NewPostgresStore(db)
//	resolver := orgs.NewResolver(store)
//	orgCtx, err := resolver.Resolve(ctx, r, params, authCtx, orgs.ModeRequired)
//
// # Stores
//
// PostgresStore reads the org_memberships table (roles stored as text[]).
// MemoryStore is a concurrency-safe map used by tests and single-node setups.
//
// # Errors
//
//	no auth context           401 UNAUTHENTICATED
//	missing org id / member   403 NOT_A_MEMBER (ModeRequired)
//	lookup timeout / failure  503 SERVICE_UNAVAILABLE
package orgs
