package csrf

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
)

func request(method, cookieName, cookieValue, header string) *http.Request {
	r := httptest.NewRequest(method, "/api/shifts", nil)
	if cookieName != "" {
		r.AddCookie(&http.Cookie{Name: cookieName, Value: cookieValue})
	}
	if header != "" {
		r.Header.Set("x-csrf-token", header)
	}
	return r
}

func TestGuardCheck(t *testing.T) {
	g := NewGuard(false)

	tests := []struct {
		name     string
		req      *http.Request
		wantCode apierror.Code
	}{
		{"matching csrf-token cookie", request(http.MethodPost, "csrf-token", "tok", "tok"), ""},
		{"matching legacy cookie", request(http.MethodPut, "csrf", "tok", "tok"), ""},
		{"missing cookie", request(http.MethodPost, "", "", "tok"), apierror.CodeCSRFCookieMissing},
		{"mismatched", request(http.MethodDelete, "csrf-token", "tok", "other"), apierror.CodeCSRFTokenMismatch},
		{"missing header", request(http.MethodPatch, "csrf-token", "tok", ""), apierror.CodeCSRFTokenMismatch},
		{"prefix is not a match", request(http.MethodPost, "csrf-token", "token", "tok"), apierror.CodeCSRFTokenMismatch},
		{"GET never checked", request(http.MethodGet, "", "", ""), ""},
		{"HEAD never checked", request(http.MethodHead, "csrf-token", "a", "b"), ""},
		{"OPTIONS never checked", request(http.MethodOptions, "", "", ""), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.req)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apierror.IsCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, http.StatusForbidden, apierror.From(err).Status)
		})
	}
}

func TestGuardPrefersCurrentCookie(t *testing.T) {
	g := NewGuard(false)
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.AddCookie(&http.Cookie{Name: "csrf-token", Value: "new"})
	r.AddCookie(&http.Cookie{Name: "csrf", Value: "old"})
	r.Header.Set("x-csrf-token", "new")

	assert.NoError(t, g.Check(r))
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}

func TestIssueHandler(t *testing.T) {
	g := NewGuard(true)
	w := httptest.NewRecorder()

	g.IssueHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "csrf-token", cookies[0].Name)
	assert.Equal(t, body["token"], cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.False(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

	// The issued pair must pass the guard.
	r := httptest.NewRequest(http.MethodPost, "/api/shifts", nil)
	r.AddCookie(cookies[0])
	r.Header.Set("x-csrf-token", body["token"])
	assert.NoError(t, g.Check(r))
}
