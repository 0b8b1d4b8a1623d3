package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/audit"
	"github.com/fresh-schedules/apiframework/pkg/auth"
	"github.com/fresh-schedules/apiframework/pkg/csrf"
	"github.com/fresh-schedules/apiframework/pkg/endpoint"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/idempotency"
	"github.com/fresh-schedules/apiframework/pkg/observability"
	"github.com/fresh-schedules/apiframework/pkg/orgs"
	"github.com/fresh-schedules/apiframework/pkg/ratelimit"
	"github.com/fresh-schedules/apiframework/pkg/rbac"
)

const credentialPrefix = "user:"

// Credential returns a credential Provider accepts for userID.
func Credential(userID string) string {
	return credentialPrefix + userID
}

// Provider accepts credentials built by Credential.
var Provider = auth.IdentityProviderFunc(func(_ context.Context, credential string) (*auth.AuthContext, error) {
	id, ok := strings.CutPrefix(credential, credentialPrefix)
	if !ok || id == "" {
		return nil, fmt.Errorf("unknown test credential: %w", auth.ErrInvalidCredential)
	}
	return &auth.AuthContext{UserID: id, Email: id + "@example.com", EmailVerified: true}, nil
})

// Harness is a Factory wired to in-memory collaborators.
type Harness struct {
	Factory     *endpoint.Factory
	Members     *orgs.MemoryStore
	Limiter     *ratelimit.MemoryLimiter
	Idempotency *idempotency.MemoryStore
	Guard       *idempotency.Guard
	Audit       *audit.MemoryLogger
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
}

// NewHarness builds a harness with a private metrics registry.
func NewHarness(t testing.TB) *Harness {
	t.Helper()

	members := orgs.NewMemoryStore()
	limiter := ratelimit.NewMemoryLimiter()
	store := idempotency.NewMemoryStore(0, 0)
	guard := idempotency.NewGuard(store)
	guard.WaitTimeout = time.Second
	guard.PollInterval = 5 * time.Millisecond
	auditLog := audit.NewMemoryLogger()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	return &Harness{
		Factory: &endpoint.Factory{
			Auth:        auth.NewResolver(Provider),
			Orgs:        orgs.NewResolver(members, time.Second),
			Limiter:     limiter,
			CSRF:        csrf.NewGuard(false),
			Idempotency: guard,
			Audit:       auditLog,
			Metrics:     metrics,
			Logger:      observability.NopLogger(),
		},
		Members:     members,
		Limiter:     limiter,
		Idempotency: store,
		Guard:       guard,
		Audit:       auditLog,
		Metrics:     metrics,
		Registry:    registry,
	}
}

// AddMember grants userID roles in orgID.
func (h *Harness) AddMember(orgID, userID string, roles ...rbac.Role) {
	h.Members.Put(&orgs.Membership{
		ID:     "m-" + orgID + "-" + userID,
		OrgID:  orgID,
		UserID: userID,
		Roles:  roles,
	})
}

// RequestBuilder assembles test requests.
type RequestBuilder struct {
	method  string
	target  string
	body    io.Reader
	header  http.Header
	cookies []*http.Cookie
}

// NewRequest starts a request for method and target.
func NewRequest(method, target string) *RequestBuilder {
	return &RequestBuilder{method: method, target: target, header: http.Header{}}
}

// As authenticates the request as userID with a bearer token.
func (b *RequestBuilder) As(userID string) *RequestBuilder {
	b.header.Set("Authorization", "Bearer "+Credential(userID))
	return b
}

// Org targets orgID through the X-Org-Id header.
func (b *RequestBuilder) Org(orgID string) *RequestBuilder {
	b.header.Set(orgs.OrgIDHeader, orgID)
	return b
}

// CSRF sets matching cookie and header tokens.
func (b *RequestBuilder) CSRF(token string) *RequestBuilder {
	b.cookies = append(b.cookies, &http.Cookie{Name: csrf.CookieName, Value: token})
	b.header.Set(csrf.HeaderName, token)
	return b
}

// Cookie adds a cookie.
func (b *RequestBuilder) Cookie(name, value string) *RequestBuilder {
	b.cookies = append(b.cookies, &http.Cookie{Name: name, Value: value})
	return b
}

// Header sets a header.
func (b *RequestBuilder) Header(key, value string) *RequestBuilder {
	b.header.Set(key, value)
	return b
}

// IdempotencyKey sets the Idempotency-Key header.
func (b *RequestBuilder) IdempotencyKey(key string) *RequestBuilder {
	return b.Header(idempotency.HeaderKey, key)
}

// Body sets a raw JSON body.
func (b *RequestBuilder) Body(s string) *RequestBuilder {
	b.body = strings.NewReader(s)
	b.header.Set("Content-Type", "application/json")
	return b
}

// JSON encodes v as the body. It panics on values that cannot be encoded.
func (b *RequestBuilder) JSON(v any) *RequestBuilder {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("apitest: encode body: %v", err))
	}
	b.body = bytes.NewReader(raw)
	b.header.Set("Content-Type", "application/json")
	return b
}

// Build returns the request.
func (b *RequestBuilder) Build() *http.Request {
	r := httptest.NewRequest(b.method, b.target, b.body)
	for k, v := range b.header {
		r.Header[k] = v
	}
	for _, c := range b.cookies {
		r.AddCookie(c)
	}
	return r
}

// Decode unmarshals a response body into T.
func Decode[T any](t testing.TB, resp *httputil.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body, &v), "body: %s", resp.Body)
	return v
}

// Envelope is the decoded success body.
type Envelope[T any] struct {
	Data       T                        `json:"data"`
	Pagination *httputil.PaginationMeta `json:"pagination"`
	Meta       httputil.Meta            `json:"meta"`
}

// RequireError asserts resp carries the error envelope for code and returns
// its body.
func RequireError(t testing.TB, resp *httputil.Response, code apierror.Code) apierror.BodyError {
	t.Helper()
	body := Decode[apierror.Body](t, resp)
	require.Equal(t, code, body.Error.Code, "body: %s", resp.Body)
	require.Equal(t, code.Status(), resp.Status)
	return body.Error
}
