package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier verifies ID tokens issued by an OpenID Connect provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers issuerURL and verifies tokens for clientID.
// Discovery performs a network call bounded by ctx.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// NewOIDCVerifierWithKeySet skips discovery and verifies against keySet.
func NewOIDCVerifierWithKeySet(issuerURL, clientID string, keySet oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: clientID}),
	}
}

// Verify validates the raw ID token.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*AuthContext, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		// Key fetch failures lose their cause inside go-oidc, so the
		// context decides whether the failure was ours or the token's.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("verify id token: %w", ctxErr)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("verify id token: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims := map[string]any{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrInvalidCredential, err)
	}

	return authContextFromClaims(idToken.Subject, claims), nil
}
