package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/audit"
	"github.com/fresh-schedules/apiframework/pkg/auth"
	"github.com/fresh-schedules/apiframework/pkg/contextkeys"
	"github.com/fresh-schedules/apiframework/pkg/csrf"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/idempotency"
	"github.com/fresh-schedules/apiframework/pkg/middleware"
	"github.com/fresh-schedules/apiframework/pkg/observability"
	"github.com/fresh-schedules/apiframework/pkg/orgs"
	"github.com/fresh-schedules/apiframework/pkg/ratelimit"
	"github.com/fresh-schedules/apiframework/pkg/rbac"
)

// DefaultMaxBodyBytes bounds the request body when the factory sets no limit.
const DefaultMaxBodyBytes int64 = 1 << 20

// Factory builds endpoints that share one set of collaborators. Fields an
// endpoint's Config does not need may be nil.
type Factory struct {
	Auth        *auth.Resolver
	Orgs        *orgs.Resolver
	Limiter     ratelimit.Limiter
	CSRF        *csrf.Guard
	Idempotency *idempotency.Guard
	Audit       audit.Logger
	Metrics     *observability.Metrics
	Logger      *observability.Logger

	MaxBodyBytes     int64
	RateLimitTimeout time.Duration
	IdempotencyTTL   time.Duration
}

// Endpoint is a compiled Config. It is safe for concurrent use.
type Endpoint struct {
	name    string
	cfg     Config
	chain   *middleware.Chain
	factory *Factory
	logger  *observability.Logger
	audit   audit.Logger
	maxBody int64
	idemTTL time.Duration
}

// New compiles cfg. It panics when cfg cannot be served with the factory's
// collaborators, so misconfigured routes fail at startup.
func (f *Factory) New(cfg Config) *Endpoint {
	if cfg.Handler == nil {
		panic("endpoint: Handler is required")
	}
	if cfg.Name == "" {
		panic("endpoint: Name is required")
	}

	e := &Endpoint{
		name:    cfg.Name,
		cfg:     cfg,
		factory: f,
		logger:  f.Logger,
		audit:   f.Audit,
		maxBody: f.MaxBodyBytes,
		idemTTL: cfg.Idempotency.TTL,
	}
	if e.logger == nil {
		e.logger = observability.NopLogger()
	}
	if e.audit == nil {
		e.audit = audit.NoOp{}
	}
	if e.maxBody <= 0 {
		e.maxBody = DefaultMaxBodyBytes
	}
	if e.idemTTL <= 0 {
		e.idemTTL = f.IdempotencyTTL
	}
	if cfg.Idempotency.Required && f.Idempotency == nil {
		panic(fmt.Sprintf("endpoint %s: idempotency required but factory has no idempotency guard", cfg.Name))
	}

	e.chain = middleware.NewChain(cfg.Name, f.Metrics, f.stages(cfg)...)
	return e
}

func (f *Factory) stages(cfg Config) []middleware.Stage {
	authMode := cfg.authMode()
	orgMode := cfg.orgMode()

	var stages []middleware.Stage

	if authMode != auth.ModeNone {
		if f.Auth == nil {
			panic(fmt.Sprintf("endpoint %s: auth mode %q needs an auth resolver", cfg.Name, authMode))
		}
		stages = append(stages, &middleware.AuthStage{Resolver: f.Auth, Mode: authMode})
	}

	if orgMode != orgs.ModeNone {
		if authMode == auth.ModeNone {
			panic(fmt.Sprintf("endpoint %s: organization scoping needs authentication", cfg.Name))
		}
		if f.Orgs == nil {
			panic(fmt.Sprintf("endpoint %s: org mode %q needs an org resolver", cfg.Name, orgMode))
		}
		stages = append(stages, &middleware.OrgStage{Resolver: f.Orgs, Mode: orgMode})
	}

	if len(cfg.Roles) > 0 {
		stages = append(stages, &middleware.RoleStage{Gate: rbac.NewGate(cfg.Roles...)})
	}

	if cfg.RateLimit != nil {
		if err := cfg.RateLimit.Validate(); err != nil {
			panic(fmt.Sprintf("endpoint %s: %v", cfg.Name, err))
		}
		if f.Limiter == nil {
			panic(fmt.Sprintf("endpoint %s: rate limit configured but factory has no limiter", cfg.Name))
		}
		stages = append(stages, &middleware.RateLimitStage{
			Limiter: f.Limiter,
			Limit:   *cfg.RateLimit,
			Timeout: f.RateLimitTimeout,
			Metrics: f.Metrics,
		})
	}

	if !cfg.DisableCSRF {
		guard := f.CSRF
		if guard == nil {
			guard = csrf.NewGuard(true)
		}
		stages = append(stages, &middleware.CSRFStage{Guard: guard})
	}

	return append(stages, cfg.Stages...)
}

// Name returns the route name.
func (e *Endpoint) Name() string { return e.name }

// Stages returns the stage names in execution order.
func (e *Endpoint) Stages() []string {
	stages := e.chain.Stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}
	return names
}

// ServeHTTP serves r with route parameters from gorilla/mux.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := e.Serve(r, mux.Vars(r))
	if err := resp.WriteTo(w); err != nil {
		e.logger.WithError(err).WithField("route", e.name).Debug("Failed to write response")
	}
}

// call is the per-request state of one Serve.
type call struct {
	rc     *middleware.RequestContext
	logger *observability.Logger
	raw    bool
	err    *apierror.Error
}

// Serve runs the pipeline for r and returns the complete response. It never
// returns nil.
func (e *Endpoint) Serve(r *http.Request, params map[string]string) *httputil.Response {
	start := time.Now()
	requestID := uuid.NewString()

	ctx, span := observability.Tracer().Start(r.Context(), e.name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", e.name),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	logger := e.logger.WithRequestID(requestID).WithFields(map[string]interface{}{
		"route":  e.name,
		"method": r.Method,
		"path":   r.URL.Path,
	})
	ctx = observability.WithLogger(ctx, logger)
	ctx = contextkeys.WithRequestID(ctx, requestID)
	ctx = contextkeys.WithRequestStartTime(ctx, start)
	r = r.WithContext(ctx)

	c := &call{
		rc:     middleware.NewRequestContext(r, requestID, e.name, params, start),
		logger: logger,
	}

	resp, err := e.run(ctx, c)
	if err == nil && resp == nil {
		err = errors.New("pipeline produced no response")
	}
	if err != nil {
		resp = e.errorResponse(ctx, c, err)
	}

	e.finalize(c, resp)
	e.record(ctx, c, resp, span)
	return resp
}

func (e *Endpoint) run(ctx context.Context, c *call) (resp *httputil.Response, err error) {
	defer func() {
		if perr := observability.PanicError(recover()); perr != nil {
			c.logger.WithError(perr).WithField("stack", string(debug.Stack())).Error("Request panicked")
			resp, err = nil, perr
		}
	}()

	rc := c.rc
	if resp, err := e.chain.Execute(ctx, rc); err != nil || resp != nil {
		return resp, err
	}
	if uid := rc.UserID(); uid != "" {
		ctx = contextkeys.WithUserID(ctx, uid)
	}
	if oid := rc.OrgID(); oid != "" {
		ctx = contextkeys.WithOrgID(ctx, oid)
	}

	body, err := httputil.ReadBody(rc.Request, e.maxBody)
	if err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			return nil, apierror.Validation(map[string][]string{
				"body": {fmt.Sprintf("must be at most %d bytes", e.maxBody)},
			})
		}
		return nil, apierror.Wrap(apierror.CodeValidation, "Request body could not be read", err)
	}

	if e.cfg.Input != nil {
		input, err := e.cfg.Input.Validate(rc.Request.Method, rc.Request.URL.Query(), body)
		if err != nil {
			return nil, err
		}
		rc.Input = input
	}

	req := &Request{
		HTTP:    rc.Request,
		Input:   rc.Input,
		Context: rc,
		Params:  rc.Params,
		Body:    body,
	}

	if httputil.IsMutating(rc.Request.Method) && e.factory.Idempotency != nil {
		return e.runIdempotent(ctx, c, req, body)
	}
	return e.invoke(ctx, c, req)
}

func (e *Endpoint) runIdempotent(ctx context.Context, c *call, req *Request, body []byte) (*httputil.Response, error) {
	key := idempotency.KeyFromRequest(req.HTTP)
	if key == "" {
		if e.cfg.Idempotency.Required {
			return nil, apierror.Validation(map[string][]string{idempotency.HeaderKey: {"is required"}})
		}
		return e.invoke(ctx, c, req)
	}
	if err := idempotency.ValidateKey(key); err != nil {
		return nil, err
	}

	scoped := idempotency.ScopeKey(c.rc.UserID(), key)
	fingerprint := idempotency.Fingerprint(req.HTTP.Method, req.HTTP.URL.Path, body)

	resp, outcome, err := e.factory.Idempotency.Do(ctx, scoped, fingerprint, e.idemTTL,
		func(ctx context.Context) (*httputil.Response, error) {
			return e.invoke(ctx, c, req)
		})
	e.factory.Metrics.IncIdempotency(e.name, string(outcome))
	if outcome == idempotency.OutcomeReplayed {
		c.logger.WithField("idempotency_key", key).Info("Replayed stored response")
	}
	return resp, err
}

// invoke runs the handler and renders its result.
func (e *Endpoint) invoke(ctx context.Context, c *call, req *Request) (*httputil.Response, error) {
	result, err := e.cfg.Handler(ctx, req)
	if err != nil {
		return nil, err
	}

	if result.IsRaw() {
		if result.raw == nil {
			return nil, errors.New("handler returned a nil raw response")
		}
		c.raw = true
		return result.raw.Clone(), nil
	}

	return httputil.NewJSON(http.StatusOK, httputil.Envelope{
		Data:       result.value,
		Pagination: result.pagination,
		Meta: httputil.Meta{
			RequestID:  c.rc.RequestID,
			DurationMs: c.rc.Elapsed().Milliseconds(),
		},
	})
}

func (e *Endpoint) errorResponse(ctx context.Context, c *call, err error) *httputil.Response {
	apiErr := apierror.From(err)
	if errors.Is(err, context.Canceled) && apiErr.Code == apierror.CodeInternal {
		apiErr = apierror.Unavailable("Request cancelled", err)
	}
	c.err = apiErr

	if apiErr.Status >= http.StatusInternalServerError {
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"code":    apiErr.Code,
			"user_id": c.rc.UserID(),
			"org_id":  c.rc.OrgID(),
		}).Error("Request failed")
	}

	resp, encErr := httputil.NewJSON(apiErr.Status, apiErr.Body(c.rc.RequestID))
	if encErr != nil {
		observability.FromContext(ctx).WithError(encErr).Error("Failed to encode error body")
		fallback := apierror.Internal(encErr)
		resp, _ = httputil.NewJSON(fallback.Status, fallback.Body(c.rc.RequestID))
	}
	for k, v := range apiErr.Headers() {
		resp.Header[k] = v
	}
	return resp
}

// finalize adds the observability headers. Headers written by stages, such
// as rate limit counters, are merged into everything except raw responses.
func (e *Endpoint) finalize(c *call, resp *httputil.Response) {
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	if !c.raw {
		for k, v := range c.rc.Header {
			if _, ok := resp.Header[k]; !ok {
				resp.Header[k] = v
			}
		}
	}
	resp.Header.Set(httputil.HeaderRequestID, c.rc.RequestID)
	resp.Header.Set(httputil.HeaderDuration, strconv.FormatInt(c.rc.Elapsed().Milliseconds(), 10))
}

// record emits the audit entry, metrics, log line and span status.
func (e *Endpoint) record(ctx context.Context, c *call, resp *httputil.Response, span trace.Span) {
	rc := c.rc
	elapsed := rc.Elapsed()

	code := ""
	if c.err != nil {
		code = string(c.err.Code)
	}

	entry := audit.NewEntry(rc.Request, rc.RequestID, e.name, rc.UserID(), rc.OrgID(), rc.ClientIP, resp.Status, elapsed, code)
	if err := e.audit.Log(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.WithError(err).Warn("Failed to write audit entry")
		e.factory.Metrics.IncAuditFailure()
	}

	e.factory.Metrics.ObserveRequest(e.name, rc.Request.Method, resp.Status, code, elapsed)

	line := c.logger.WithFields(map[string]interface{}{
		"status":      resp.Status,
		"duration_ms": elapsed.Milliseconds(),
		"user_id":     entry.UserID,
	})
	if code != "" {
		line = line.WithField("code", code)
	}
	switch {
	case resp.Status >= http.StatusInternalServerError:
		line.Warn("Request completed")
	default:
		line.Info("Request completed")
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	if code != "" {
		span.SetAttributes(attribute.String("error.code", code))
	}
	if resp.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, code)
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
