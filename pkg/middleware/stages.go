package middleware

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/auth"
	"github.com/fresh-schedules/apiframework/pkg/csrf"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/observability"
	"github.com/fresh-schedules/apiframework/pkg/orgs"
	"github.com/fresh-schedules/apiframework/pkg/ratelimit"
	"github.com/fresh-schedules/apiframework/pkg/rbac"
)

// Stage names, also used as metric labels.
const (
	StageAuth      = "auth"
	StageOrg       = "org"
	StageRoles     = "roles"
	StageRateLimit = "ratelimit"
	StageCSRF      = "csrf"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// AuthStage resolves the caller into rc.Auth.
type AuthStage struct {
	Resolver *auth.Resolver
	Mode     auth.Mode
}

func (s *AuthStage) Name() string { return StageAuth }

func (s *AuthStage) Run(ctx context.Context, rc *RequestContext) (*httputil.Response, error) {
	authCtx, err := s.Resolver.Resolve(ctx, rc.Request, s.Mode)
	if err != nil {
		return nil, err
	}
	rc.Auth = authCtx
	return nil, nil
}

// OrgStage resolves the organization membership into rc.Org.
type OrgStage struct {
	Resolver *orgs.Resolver
	Mode     orgs.Mode
}

func (s *OrgStage) Name() string { return StageOrg }

func (s *OrgStage) Run(ctx context.Context, rc *RequestContext) (*httputil.Response, error) {
	orgCtx, err := s.Resolver.Resolve(ctx, rc.Request, rc.Params, rc.Auth, s.Mode)
	if err != nil {
		return nil, err
	}
	rc.Org = orgCtx
	return nil, nil
}

// RoleStage requires the caller's membership to satisfy Gate.
type RoleStage struct {
	Gate *rbac.Gate
}

func (s *RoleStage) Name() string { return StageRoles }

func (s *RoleStage) Run(_ context.Context, rc *RequestContext) (*httputil.Response, error) {
	if rc.Auth == nil {
		return nil, apierror.Unauthenticated("")
	}
	if rc.Org == nil {
		return nil, apierror.NotAMember("Organization membership is required")
	}
	return nil, s.Gate.Check(rc.Org.Roles)
}

// DefaultRateLimitTimeout bounds one counter update.
const DefaultRateLimitTimeout = time.Second

// RateLimitStage consumes one unit of the route's budget. Authenticated
// callers are keyed by user, anonymous ones by client IP. Backend failures
// reject the request.
type RateLimitStage struct {
	Limiter ratelimit.Limiter
	Limit   ratelimit.Limit
	Timeout time.Duration
	Metrics *observability.Metrics
}

func (s *RateLimitStage) Name() string { return StageRateLimit }

func (s *RateLimitStage) Run(ctx context.Context, rc *RequestContext) (*httputil.Response, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultRateLimitTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	key := ratelimit.Key(rc.Route, rc.UserID(), rc.ClientIP)
	res, err := s.Limiter.Consume(cctx, key, 1, s.Limit)
	if err != nil {
		observability.FromContext(ctx).WithError(err).WithField("route", rc.Route).Warn("Rate limiter unavailable")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierror.Unavailable("Rate limiter timed out", err)
		}
		return nil, apierror.Unavailable("Rate limiter unavailable", err)
	}

	rc.Header.Set(HeaderRateLimitLimit, strconv.Itoa(s.Limit.Max))
	rc.Header.Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
	rc.Header.Set(HeaderRateLimitReset, strconv.FormatInt(res.ResetAt.Unix(), 10))

	if !res.Allowed {
		s.Metrics.IncRateLimited(rc.Route)
		return nil, apierror.RateLimited(res.RetryAfter(time.Now()))
	}
	return nil, nil
}

// CSRFStage checks the double-submit token on mutating requests.
type CSRFStage struct {
	Guard *csrf.Guard
}

func (s *CSRFStage) Name() string { return StageCSRF }

func (s *CSRFStage) Run(_ context.Context, rc *RequestContext) (*httputil.Response, error) {
	return nil, s.Guard.Check(rc.Request)
}
