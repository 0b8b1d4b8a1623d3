// Package contextkeys provides centralized context key definitions
//
// All context keys used across the pipeline are defined here. This prevents
// typos, documents which stage sets a value, and keeps packages that only
// read a value from importing the package that writes it.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithRequestID(ctx, rc.RequestID)
//	reqID := contextkeys.GetRequestID(ctx)
package contextkeys

import (
	"context"
	"time"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the pipeline request ID (UUID)
	// Set by: endpoint.Endpoint before the first stage runs
	// Used by: Logger, audit entries, error bodies
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID
	// Set by: middleware.AuthStage once the identity provider accepts the credential
	// Used by: Logger, audit trail
	// Type: string
	UserIDKey Key = "user_id"

	// OrgIDKey contains the resolved organization ID
	// Set by: middleware.OrgStage
	// Used by: Logger, audit trail
	// Type: string
	OrgIDKey Key = "org_id"

	// LoggerKey contains *observability.Logger
	// Set by: endpoint.Endpoint
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// RequestStartTimeKey contains request start timestamp
	// Set by: endpoint.Endpoint
	// Used by: Duration calculation for envelopes and audit entries
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithOrgID adds organization ID to the context
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetOrgID retrieves organization ID from context
func GetOrgID(ctx context.Context) string {
	if orgID, ok := ctx.Value(OrgIDKey).(string); ok {
		return orgID
	}
	return ""
}

// GetLogger retrieves the logger value, or nil.
func GetLogger(ctx context.Context) interface{} {
	return ctx.Value(LoggerKey)
}

// GetRequestStartTime retrieves the request start time, or the zero time.
func GetRequestStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(RequestStartTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}
