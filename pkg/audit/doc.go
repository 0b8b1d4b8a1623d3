// Package audit records one entry per request handled by the pipeline.
//
// # Entry
//
// Every request, successful or not, produces exactly one Entry:
//
//	{
//	  "timestamp": "2026-03-01T12:00:00Z",
//	  "requestId": "6f1c...",
//	  "action": "POST /api/orgs/org-1/shifts",
//	  "route": "shifts.create",
//	  "userId": "u1",            // "anonymous" when unauthenticated
//	  "orgId": "org-1",
//	  "ip": "203.0.113.7",
//	  "userAgent": "...",
//	  "success": false,
//	  "status": 403,
//	  "durationMs": 12,
//	  "errorCode": "INSUFFICIENT_ROLE"
//	}
//
// # Sinks
//
//   - LogrusLogger: JSON lines through sirupsen/logrus
//   - DBLogger: rows in the api_audit_log table (PostgreSQL)
//   - MemoryLogger: in-process, for tests
//   - MultiLogger: fan out to several sinks
//   - AsyncLogger: moves any sink off the request path
//
// Audit failures never fail a request; AsyncLogger logs them and counts them
// in the audit_failures_total metric.
package audit
