// Package httputil holds the HTTP building blocks shared by the pipeline.
//
// # Responses
//
// Response is a fully materialised HTTP response (status, headers, body).
// The endpoint factory builds one in memory before writing it so the same
// value can be stored for idempotent replay and decorated with observability
// headers:
//
//	resp, err := httputil.NewJSON(http.StatusCreated, shift)
//	resp.Header.Set("Location", "/api/shifts/"+shift.ID)
//	resp.WriteTo(w)
//
// Envelope is the success shape for plain handler values:
//
//	{"data": <value>, "meta": {"requestId": "...", "durationMs": 12}}
//
// Paginated listings additionally carry a top-level "pagination" object.
//
// # Requests
//
//	ip := httputil.ClientIP(r)          // X-Forwarded-For, X-Real-IP, RemoteAddr
//	page := httputil.ParsePagination(r) // page/pageSize with defaults and caps
//	body, err := httputil.ReadBody(r, 1<<20)
//
// # Middleware
//
// Router-level middleware lives here too: Recovery, CORS, MaxBytes and Chain.
// Per-endpoint governance (auth, org, CSRF, rate limiting) is handled by
// pkg/middleware stages instead.
package httputil
