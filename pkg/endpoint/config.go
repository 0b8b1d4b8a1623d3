package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/auth"
	"github.com/fresh-schedules/apiframework/pkg/middleware"
	"github.com/fresh-schedules/apiframework/pkg/orgs"
	"github.com/fresh-schedules/apiframework/pkg/ratelimit"
	"github.com/fresh-schedules/apiframework/pkg/rbac"
	"github.com/fresh-schedules/apiframework/pkg/validation"
)

// HandlerFunc is the business logic behind an endpoint.
type HandlerFunc func(ctx context.Context, req *Request) (Result, error)

// IdempotencyPolicy controls replay protection for mutating requests.
type IdempotencyPolicy struct {
	// Required rejects mutating requests that carry no key.
	Required bool
	// TTL overrides the factory's record lifetime.
	TTL time.Duration
}

// Config describes one endpoint. It is read once by Factory.New.
type Config struct {
	// Name labels the route in metrics, logs, traces and rate limit keys.
	Name string

	// Auth defaults to auth.ModeRequired.
	Auth auth.Mode
	// Org defaults to orgs.ModeNone, or orgs.ModeRequired when Roles is set.
	Org   orgs.Mode
	Roles []rbac.Role

	RateLimit *ratelimit.Limit

	// DisableCSRF turns off the double-submit check on mutating methods.
	DisableCSRF bool

	Input       validation.Schema
	Idempotency IdempotencyPolicy

	// Stages run after the built-in ones, in order.
	Stages []middleware.Stage

	Handler HandlerFunc
}

// Request is what a handler sees.
type Request struct {
	HTTP *http.Request
	// Input is the value produced by Config.Input, or nil without a schema.
	Input   any
	Context *middleware.RequestContext
	Params  map[string]string
	// Body is the raw request body, already read.
	Body []byte
}

// Param returns a route parameter.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// InputAs returns the validated input as T.
func InputAs[T any](r *Request) (T, bool) {
	v, ok := r.Input.(T)
	return v, ok
}

func (c Config) authMode() auth.Mode {
	if c.Auth == "" {
		return auth.ModeRequired
	}
	return c.Auth
}

func (c Config) orgMode() orgs.Mode {
	switch {
	case len(c.Roles) > 0 && (c.Org == "" || c.Org == orgs.ModeNone):
		return orgs.ModeRequired
	case c.Org == "":
		return orgs.ModeNone
	}
	return c.Org
}
