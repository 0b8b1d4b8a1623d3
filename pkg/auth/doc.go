// Package auth resolves the caller's identity from a session credential.
//
// # Overview
//
// The pipeline never issues credentials. It verifies them through an
// IdentityProvider and turns the result into an AuthContext:
//
//	type IdentityProvider interface {
//	    Verify(ctx context.Context, credential string) (*AuthContext, error)
//	}
//
// Two providers ship with the module:
//
//   - JWTVerifier: HS256 session tokens signed with a shared secret
//   - OIDCVerifier: ID tokens from an external OpenID Connect issuer
//
// # Credentials
//
// Resolver reads the credential from the "session" cookie and falls back to
// an "Authorization: Bearer <token>" header for non-browser clients.
//
// # Modes
//
//	ModeNone      skip resolution entirely
//	ModeOptional  resolve if possible, proceed anonymously on a bad credential
//	ModeRequired  reject with 401 UNAUTHENTICATED when no valid credential exists
//
// Verification runs under a bounded timeout. A provider that times out or
// is otherwise unreachable yields 503 SERVICE_UNAVAILABLE in every mode, so
// an outage can never silently downgrade a request to anonymous.
//
// # Related Packages
//
//   - pkg/middleware: AuthStage runs the resolver inside the pipeline
//   - pkg/orgs: consumes AuthContext.UserID for membership lookup
package auth
