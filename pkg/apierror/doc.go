// Package apierror defines the closed error taxonomy returned by every endpoint.
//
// Each Code maps to exactly one HTTP status and a fixed retryable flag. The
// only shape a client ever sees on a failure path is:
//
//	{"error": {"code": "...", "message": "...", "requestId": "...", "retryable": false, "details": {...}}}
//
// Internal failures are mapped with From, which keeps *Error values as they
// are, turns context deadlines into SERVICE_UNAVAILABLE and hides everything
// else behind a generic INTERNAL message. The original cause stays reachable
// through errors.Unwrap for logging.
//
// Usage:
//
//	if member == nil {
//	    return apierror.NotAMember("you are not a member of this organization")
//	}
//
//	apiErr := apierror.From(err)
//	apierror.Write(w, apiErr, requestID)
package apierror
