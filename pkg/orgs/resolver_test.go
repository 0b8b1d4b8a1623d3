package orgs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/auth"
	"github.com/fresh-schedules/apiframework/pkg/rbac"
)

type storeFunc func(ctx context.Context, orgID, userID string) (*Membership, error)

func (f storeFunc) GetMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	return f(ctx, orgID, userID)
}

func TestOrgID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/schedules?orgId=from-query", nil)
	req.Header.Set("x-org-id", "from-header")

	assert.Equal(t, "from-param", OrgID(req, map[string]string{"orgId": "from-param"}))
	assert.Equal(t, "from-query", OrgID(req, nil))

	req = httptest.NewRequest(http.MethodGet, "/api/schedules", nil)
	req.Header.Set("x-org-id", "from-header")
	assert.Equal(t, "from-header", OrgID(req, nil))
}

func TestResolver(t *testing.T) {
	store := NewMemoryStore()
	store.Put(&Membership{ID: "m1", OrgID: "org-1", UserID: "user-1", Roles: []rbac.Role{rbac.RoleScheduler}})
	res := NewResolver(store, 0)

	member := &auth.AuthContext{UserID: "user-1"}
	stranger := &auth.AuthContext{UserID: "user-9"}
	withOrg := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/schedules", nil)
		r.Header.Set(OrgIDHeader, "org-1")
		return r
	}
	noOrg := func() *http.Request { return httptest.NewRequest(http.MethodGet, "/api/schedules", nil) }

	tests := []struct {
		name     string
		req      *http.Request
		auth     *auth.AuthContext
		mode     Mode
		wantOrg  bool
		wantCode apierror.Code
	}{
		{"none", withOrg(), nil, ModeNone, false, ""},
		{"member", withOrg(), member, ModeRequired, true, ""},
		{"stranger required", withOrg(), stranger, ModeRequired, false, apierror.CodeNotAMember},
		{"stranger optional", withOrg(), stranger, ModeOptional, false, ""},
		{"missing org required", noOrg(), member, ModeRequired, false, apierror.CodeNotAMember},
		{"missing org optional", noOrg(), member, ModeOptional, false, ""},
		{"unauthenticated required", withOrg(), nil, ModeRequired, false, apierror.CodeUnauthenticated},
		{"anonymous optional without org", noOrg(), nil, ModeOptional, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oc, err := res.Resolve(context.Background(), tt.req, nil, tt.auth, tt.mode)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apierror.IsCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			if tt.wantOrg {
				require.NotNil(t, oc)
				assert.Equal(t, "org-1", oc.OrgID)
				assert.Equal(t, "m1", oc.MembershipID)
				assert.Equal(t, rbac.RoleScheduler, oc.HighestRole())
			} else {
				assert.Nil(t, oc)
			}
		})
	}
}

func TestResolverTimeout(t *testing.T) {
	slow := storeFunc(func(ctx context.Context, orgID, userID string) (*Membership, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	res := NewResolver(slow, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/?orgId=org-1", nil)
	_, err := res.Resolve(context.Background(), req, nil, &auth.AuthContext{UserID: "u"}, ModeRequired)
	require.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.CodeServiceUnavailable))
}

func TestResolverStoreFailure(t *testing.T) {
	broken := storeFunc(func(ctx context.Context, orgID, userID string) (*Membership, error) {
		return nil, errors.New("connection refused")
	})
	res := NewResolver(broken, 0)

	req := httptest.NewRequest(http.MethodGet, "/?orgId=org-1", nil)
	_, err := res.Resolve(context.Background(), req, nil, &auth.AuthContext{UserID: "u"}, ModeOptional)
	assert.True(t, apierror.IsCode(err, apierror.CodeServiceUnavailable))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	s.Put(&Membership{ID: "m", OrgID: "o", UserID: "u", Roles: []rbac.Role{rbac.RoleStaff}})

	m, err := s.GetMembership(context.Background(), "o", "u")
	require.NoError(t, err)
	assert.Equal(t, "m", m.ID)

	s.Remove("o", "u")
	_, err = s.GetMembership(context.Background(), "o", "u")
	assert.ErrorIs(t, err, ErrNotMember)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.GetMembership(ctx, "o", "u")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeNone, m)
	_, err = ParseMode("maybe")
	assert.Error(t, err)
}
