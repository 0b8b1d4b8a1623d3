package auth

import (
	"context"
	"errors"
	"fmt"
)

// Mode controls how an endpoint treats missing or invalid credentials.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeOptional Mode = "optional"
	ModeRequired Mode = "required"
)

// ParseMode converts a config value, defaulting empty strings to ModeRequired.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeRequired, nil
	case ModeNone, ModeOptional, ModeRequired:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown auth mode %q", s)
}

// AuthContext is the verified identity of the caller. It is read-only once
// produced.
type AuthContext struct {
	UserID        string
	Email         string
	EmailVerified bool
	Claims        map[string]any
}

// Claim returns a single claim value.
func (a *AuthContext) Claim(name string) (any, bool) {
	if a == nil || a.Claims == nil {
		return nil, false
	}
	v, ok := a.Claims[name]
	return v, ok
}

// IdentityProvider verifies a raw credential.
//
// Implementations return an error wrapping ErrInvalidCredential when the
// credential itself is bad. Any other error is treated as the provider being
// unavailable.
type IdentityProvider interface {
	Verify(ctx context.Context, credential string) (*AuthContext, error)
}

// IdentityProviderFunc adapts a function to IdentityProvider.
type IdentityProviderFunc func(ctx context.Context, credential string) (*AuthContext, error)

func (f IdentityProviderFunc) Verify(ctx context.Context, credential string) (*AuthContext, error) {
	return f(ctx, credential)
}

var (
	// ErrInvalidCredential marks a credential that failed verification.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrNoCredential is returned when the request carries no credential.
	ErrNoCredential = errors.New("no credential")
)

// IsInvalidCredential reports whether err is a verification failure rather
// than a provider outage.
func IsInvalidCredential(err error) bool {
	return errors.Is(err, ErrInvalidCredential)
}
