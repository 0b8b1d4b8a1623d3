package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Code is a stable machine-readable error code.
type Code string

const (
	CodeUnauthenticated       Code = "UNAUTHENTICATED"
	CodeNotAMember            Code = "NOT_A_MEMBER"
	CodeInsufficientRole      Code = "INSUFFICIENT_ROLE"
	CodeCSRFCookieMissing     Code = "CSRF_COOKIE_MISSING"
	CodeCSRFTokenMismatch     Code = "CSRF_TOKEN_MISMATCH"
	CodeValidation            Code = "VALIDATION_ERROR"
	CodeNotFound              Code = "NOT_FOUND"
	CodeIdempotencyKeyReused  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeIdempotencyInProgress Code = "IDEMPOTENCY_IN_PROGRESS"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeWebhookInvalid        Code = "WEBHOOK_INVALID"
	CodeInternal              Code = "INTERNAL"
	CodeServiceUnavailable    Code = "SERVICE_UNAVAILABLE"
)

type codeSpec struct {
	status    int
	retryable bool
	message   string
}

var codes = map[Code]codeSpec{
	CodeUnauthenticated:       {http.StatusUnauthorized, false, "Authentication required"},
	CodeNotAMember:            {http.StatusForbidden, false, "Not a member of this organization"},
	CodeInsufficientRole:      {http.StatusForbidden, false, "Insufficient role for this operation"},
	CodeCSRFCookieMissing:     {http.StatusForbidden, false, "CSRF cookie missing"},
	CodeCSRFTokenMismatch:     {http.StatusForbidden, false, "CSRF token mismatch"},
	CodeValidation:            {http.StatusBadRequest, false, "Request validation failed"},
	CodeNotFound:              {http.StatusNotFound, false, "Resource not found"},
	CodeIdempotencyKeyReused:  {http.StatusConflict, false, "Idempotency key was already used for a different request"},
	CodeIdempotencyInProgress: {http.StatusConflict, true, "A request with this idempotency key is still in progress"},
	CodeRateLimited:           {http.StatusTooManyRequests, true, "Too many requests"},
	CodeWebhookInvalid:        {http.StatusUnauthorized, false, "Webhook verification failed"},
	CodeInternal:              {http.StatusInternalServerError, true, "An internal error occurred"},
	CodeServiceUnavailable:    {http.StatusServiceUnavailable, true, "Service temporarily unavailable"},
}

// Status returns the HTTP status for the code, or 500 for unknown codes.
func (c Code) Status() int {
	if cs, ok := codes[c]; ok {
		return cs.status
	}
	return http.StatusInternalServerError
}

// Retryable reports whether clients may retry requests failing with this code.
func (c Code) Retryable() bool {
	if cs, ok := codes[c]; ok {
		return cs.retryable
	}
	return true
}

// ValidCode reports whether c belongs to the taxonomy.
func ValidCode(c Code) bool {
	_, ok := codes[c]
	return ok
}

// Error is a failure that is safe to return to the client.
type Error struct {
	Code       Code
	Message    string
	Status     int
	Retryable  bool
	Details    map[string]any
	RetryAfter time.Duration

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an Error for code. An empty message uses the code's default.
func New(code Code, message string) *Error {
	cs, ok := codes[code]
	if !ok {
		cs = codes[CodeInternal]
		code = CodeInternal
	}
	if message == "" {
		message = cs.message
	}
	return &Error{
		Code:      code,
		Message:   message,
		Status:    cs.status,
		Retryable: cs.retryable,
	}
}

// Wrap creates an Error for code that keeps err as its cause.
func Wrap(code Code, message string, err error) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string]any) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithRetryAfter returns a copy of e advertising a retry delay.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	c := *e
	c.RetryAfter = d
	return &c
}

func Unauthenticated(message string) *Error  { return New(CodeUnauthenticated, message) }
func NotAMember(message string) *Error       { return New(CodeNotAMember, message) }
func InsufficientRole(message string) *Error { return New(CodeInsufficientRole, message) }
func NotFound(message string) *Error         { return New(CodeNotFound, message) }
func Internal(err error) *Error              { return Wrap(CodeInternal, "", err) }

// Unavailable reports a dependency that did not answer in time.
func Unavailable(message string, err error) *Error {
	return Wrap(CodeServiceUnavailable, message, err)
}

// RateLimited builds a 429 error that tells the client when to come back.
func RateLimited(retryAfter time.Duration) *Error {
	return New(CodeRateLimited, "").WithRetryAfter(retryAfter)
}

// Validation builds a 400 error with per-field messages.
func Validation(fields map[string][]string) *Error {
	details := make(map[string]any, len(fields))
	for field, msgs := range fields {
		details[field] = msgs
	}
	return New(CodeValidation, "").WithDetails(details)
}

// From maps any error onto the taxonomy.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Unavailable("", err)
	}
	return Internal(err)
}

// IsCode reports whether err maps to code.
func IsCode(err error, code Code) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsTimeout reports whether err comes from an exceeded deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Body is the wire representation of an error.
type Body struct {
	Error BodyError `json:"error"`
}

// BodyError is the inner error object.
type BodyError struct {
	Code      Code           `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"requestId"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// Body returns the wire shape for e tagged with requestID.
func (e *Error) Body(requestID string) Body {
	return Body{Error: BodyError{
		Code:      e.Code,
		Message:   e.Message,
		RequestID: requestID,
		Retryable: e.Retryable,
		Details:   e.Details,
	}}
}

// Headers returns the extra response headers e requires.
func (e *Error) Headers() http.Header {
	h := http.Header{}
	if e.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(RetryAfterSeconds(e.RetryAfter)))
	}
	return h
}

// RetryAfterSeconds rounds d up to whole seconds, with a minimum of one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Write maps err and writes it to w.
func Write(w http.ResponseWriter, err error, requestID string) {
	apiErr := From(err)
	for k, v := range apiErr.Headers() {
		w.Header()[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr.Body(requestID))
}
