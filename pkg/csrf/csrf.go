// Package csrf implements double-submit cookie protection for mutating
// requests.
//
// A client first obtains a token (IssueHandler sets the cookie and returns
// the token in the body), then echoes it in the x-csrf-token header on every
// POST, PUT, PATCH or DELETE. Guard.Check compares the header with the
// csrf-token cookie (or the legacy csrf cookie) in constant time.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
)

const (
	CookieName       = "csrf-token"
	LegacyCookieName = "csrf"
	HeaderName       = "X-CSRF-Token"

	tokenBytes = 32
)

// Guard validates CSRF tokens and issues new ones.
type Guard struct {
	CookieName       string
	LegacyCookieName string
	HeaderName       string
	Secure           bool
	MaxAge           time.Duration
}

// NewGuard returns a guard with the standard names. secure controls the
// Secure attribute on issued cookies.
func NewGuard(secure bool) *Guard {
	return &Guard{
		CookieName:       CookieName,
		LegacyCookieName: LegacyCookieName,
		HeaderName:       HeaderName,
		Secure:           secure,
		MaxAge:           24 * time.Hour,
	}
}

// Applies reports whether method is subject to CSRF checks.
func Applies(method string) bool {
	return httputil.IsMutating(method)
}

func (g *Guard) cookieToken(r *http.Request) string {
	for _, name := range []string{g.CookieName, g.LegacyCookieName} {
		if name == "" {
			continue
		}
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// Check validates r. Safe methods always pass.
func (g *Guard) Check(r *http.Request) error {
	if !Applies(r.Method) {
		return nil
	}

	cookie := g.cookieToken(r)
	if cookie == "" {
		return apierror.New(apierror.CodeCSRFCookieMissing, "")
	}

	header := r.Header.Get(g.HeaderName)
	if header == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
		return apierror.New(apierror.CodeCSRFTokenMismatch, "")
	}
	return nil
}

// GenerateToken returns 32 random bytes, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Cookie builds the cookie carrying token. It is readable by scripts so
// browser clients can copy it into the header.
func (g *Guard) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     g.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(g.MaxAge.Seconds()),
		HttpOnly: false,
		Secure:   g.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// IssueHandler sets a fresh token cookie and returns {"token": "..."} so
// the client can echo it in the header.
func (g *Guard) IssueHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := GenerateToken()
		if err != nil {
			apierror.Write(w, apierror.Internal(err), r.Header.Get(httputil.HeaderRequestID))
			return
		}
		http.SetCookie(w, g.Cookie(token))
		w.Header().Set("Cache-Control", "no-store")
		_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
	})
}
