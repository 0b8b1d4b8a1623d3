package orgs

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/auth"
)

const (
	OrgIDParam  = "orgId"
	OrgIDHeader = "X-Org-Id"

	DefaultLookupTimeout = 2 * time.Second
)

// Resolver loads OrgContext for a request.
type Resolver struct {
	store   MembershipStore
	timeout time.Duration
}

// NewResolver creates a resolver. A zero timeout uses DefaultLookupTimeout.
func NewResolver(store MembershipStore, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{store: store, timeout: timeout}
}

// OrgID finds the target organization of a request.
func OrgID(r *http.Request, params map[string]string) string {
	if id := strings.TrimSpace(params[OrgIDParam]); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get(OrgIDParam)); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(OrgIDHeader))
}

// Resolve applies mode. It returns (nil, nil) when the request may proceed
// without an organization.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request, params map[string]string, authCtx *auth.AuthContext, mode Mode) (*OrgContext, error) {
	if mode == ModeNone {
		return nil, nil
	}

	orgID := OrgID(r, params)

	if authCtx == nil {
		if mode == ModeOptional && orgID == "" {
			return nil, nil
		}
		return nil, apierror.Unauthenticated("Authentication required for organization access")
	}

	if orgID == "" {
		if mode == ModeRequired {
			return nil, apierror.NotAMember("Organization ID is required")
		}
		return nil, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, res.timeout)
	defer cancel()

	m, err := res.store.GetMembership(lookupCtx, orgID, authCtx.UserID)
	switch {
	case errors.Is(err, ErrNotMember):
		if mode == ModeRequired {
			return nil, apierror.NotAMember("")
		}
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded):
		return nil, apierror.Unavailable("Membership lookup timed out", err)
	case err != nil:
		return nil, apierror.Unavailable("Membership lookup unavailable", err)
	}

	return &OrgContext{OrgID: orgID, MembershipID: m.ID, Roles: m.Roles}, nil
}
