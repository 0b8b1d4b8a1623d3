package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/auth"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/orgs"
)

// RequestContext carries one request through the pipeline. It is created
// per request and discarded with the response.
type RequestContext struct {
	Request   *http.Request
	RequestID string
	StartedAt time.Time
	Route     string
	Params    map[string]string
	ClientIP  string

	Auth  *auth.AuthContext
	Org   *orgs.OrgContext
	Input any

	// Header is merged into the final response, success or error.
	Header http.Header

	mu     sync.RWMutex
	values map[string]any
}

// NewRequestContext builds a context for r.
func NewRequestContext(r *http.Request, requestID, route string, params map[string]string, startedAt time.Time) *RequestContext {
	if params == nil {
		params = map[string]string{}
	}
	return &RequestContext{
		Request:   r,
		RequestID: requestID,
		StartedAt: startedAt,
		Route:     route,
		Params:    params,
		ClientIP:  httputil.ClientIP(r),
		Header:    http.Header{},
	}
}

// UserID returns the caller's ID or "" when anonymous.
func (rc *RequestContext) UserID() string {
	if rc.Auth == nil {
		return ""
	}
	return rc.Auth.UserID
}

// OrgID returns the resolved organization or "".
func (rc *RequestContext) OrgID() string {
	if rc.Org == nil {
		return ""
	}
	return rc.Org.OrgID
}

// Elapsed is the time since the request entered the pipeline.
func (rc *RequestContext) Elapsed() time.Duration {
	return time.Since(rc.StartedAt)
}

// Set stores a custom stage's value under its name.
func (rc *RequestContext) Set(name string, v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.values == nil {
		rc.values = make(map[string]any)
	}
	rc.values[name] = v
}

// Value returns what the named stage stored.
func (rc *RequestContext) Value(name string) (any, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	v, ok := rc.values[name]
	return v, ok
}
