package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
)

const (
	// SessionCookieName is the cookie carrying the browser session credential.
	SessionCookieName = "session"

	DefaultVerifyTimeout = 2 * time.Second
)

// Resolver extracts and verifies the caller's credential.
type Resolver struct {
	provider   IdentityProvider
	timeout    time.Duration
	cookieName string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithVerifyTimeout bounds each provider call.
func WithVerifyTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithSessionCookie overrides the session cookie name.
func WithSessionCookie(name string) ResolverOption {
	return func(r *Resolver) {
		if name != "" {
			r.cookieName = name
		}
	}
}

// NewResolver creates a resolver backed by provider.
func NewResolver(provider IdentityProvider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		provider:   provider,
		timeout:    DefaultVerifyTimeout,
		cookieName: SessionCookieName,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Credential returns the raw credential on req, preferring the session cookie.
func (r *Resolver) Credential(req *http.Request) (string, bool) {
	if c, err := req.Cookie(r.cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Resolve applies mode to req. It returns (nil, nil) when the request may
// proceed anonymously.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, mode Mode) (*AuthContext, error) {
	if mode == ModeNone {
		return nil, nil
	}

	credential, ok := r.Credential(req)
	if !ok {
		if mode == ModeRequired {
			return nil, apierror.Wrap(apierror.CodeUnauthenticated, "", ErrNoCredential)
		}
		return nil, nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	authCtx, err := r.provider.Verify(verifyCtx, credential)
	switch {
	case err == nil && authCtx != nil && authCtx.UserID != "":
		return authCtx, nil
	case err == nil:
		err = ErrInvalidCredential
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(verifyCtx.Err(), context.DeadlineExceeded) {
		return nil, apierror.Unavailable("Identity verification timed out", err)
	}

	if IsInvalidCredential(err) {
		if mode == ModeRequired {
			return nil, apierror.Wrap(apierror.CodeUnauthenticated, "Invalid or expired session", err)
		}
		return nil, nil
	}
	return nil, apierror.Unavailable("Identity verification unavailable", err)
}
