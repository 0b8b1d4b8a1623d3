package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
)

const testIssuer = "https://id.example.com"

func newOIDCFixture(t *testing.T) (*OIDCVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return NewOIDCVerifierWithKeySet(testIssuer, "web-client", keySet), key
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestOIDCVerifier(t *testing.T) {
	v, key := newOIDCFixture(t)
	now := time.Now()

	token := signRS256(t, key, jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            "web-client",
		"sub":            "user-42",
		"email":          "staff@example.com",
		"email_verified": true,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	})

	ac, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", ac.UserID)
	assert.Equal(t, "staff@example.com", ac.Email)
	assert.True(t, ac.EmailVerified)
}

func TestOIDCVerifierRejects(t *testing.T) {
	v, key := newOIDCFixture(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	now := time.Now()

	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss": testIssuer,
			"aud": "web-client",
			"sub": "user-42",
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
	}

	wrongAud := base()
	wrongAud["aud"] = "mobile"
	expired := base()
	expired["exp"] = now.Add(-time.Hour).Unix()

	tests := map[string]string{
		"wrong audience": signRS256(t, key, wrongAud),
		"expired":        signRS256(t, key, expired),
		"unknown key":    signRS256(t, other, base()),
		"malformed":      "a.b.c",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			require.Error(t, err)
			assert.True(t, IsInvalidCredential(err))
		})
	}
}

func TestOIDCVerifierKeyFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(jwks.Close)
	t.Cleanup(func() { close(release) })

	keyCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewOIDCVerifierWithKeySet(testIssuer, "web-client", oidc.NewRemoteKeySet(keyCtx, jwks.URL))
	now := time.Now()
	token := signRS256(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"aud": "web-client",
		"sub": "user-42",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})

	ctx, cancelVerify := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelVerify()
	_, err = v.Verify(ctx, token)
	require.Error(t, err)
	assert.False(t, IsInvalidCredential(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r := NewResolver(v, WithVerifyTimeout(100*time.Millisecond))
	for _, mode := range []Mode{ModeOptional, ModeRequired} {
		t.Run(string(mode), func(t *testing.T) {
			ac, err := r.Resolve(context.Background(), requestWith("", token), mode)
			assert.Nil(t, ac)
			require.Error(t, err)
			assert.True(t, apierror.IsCode(err, apierror.CodeServiceUnavailable))
			assert.True(t, apierror.From(err).Retryable)
		})
	}
}
