package audit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Anonymous is the user ID recorded for unauthenticated requests.
const Anonymous = "anonymous"

// Entry summarises one request.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"requestId"`
	Action     string    `json:"action"`
	Route      string    `json:"route,omitempty"`
	UserID     string    `json:"userId"`
	OrgID      string    `json:"orgId,omitempty"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"userAgent"`
	Success    bool      `json:"success"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"durationMs"`
	ErrorCode  string    `json:"errorCode,omitempty"`
}

// NewEntry fills the request derived fields of an entry. userID may be
// empty for anonymous callers.
func NewEntry(r *http.Request, requestID, route, userID, orgID, ip string, status int, duration time.Duration, errorCode string) *Entry {
	if userID == "" {
		userID = Anonymous
	}
	return &Entry{
		Timestamp:  time.Now().UTC(),
		RequestID:  requestID,
		Action:     r.Method + " " + r.URL.Path,
		Route:      route,
		UserID:     userID,
		OrgID:      orgID,
		IP:         ip,
		UserAgent:  r.UserAgent(),
		Success:    status >= 200 && status < 400,
		Status:     status,
		DurationMs: duration.Milliseconds(),
		ErrorCode:  errorCode,
	}
}

// Logger is an audit sink.
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
}

// NoOp discards entries.
type NoOp struct{}

func (NoOp) Log(context.Context, *Entry) error { return nil }

// MemoryLogger keeps entries in memory.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLogger creates an empty memory logger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (m *MemoryLogger) Log(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

// Entries returns a copy of everything logged so far.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Reset drops all entries.
func (m *MemoryLogger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

// MultiLogger writes every entry to each sink in turn.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger fanning out to loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes to all sinks and joins their errors. One failing sink does not
// stop the others.
func (m *MultiLogger) Log(ctx context.Context, entry *Entry) error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Log(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
