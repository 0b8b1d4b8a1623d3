package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/httputil"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderKeyAlias = "X-Idempotency-Key"
	ReplayHeader   = "X-Idempotent-Replayed"

	// DefaultTTL is how long a stored response stays replayable.
	DefaultTTL = 24 * time.Hour

	// MaxKeyLength bounds client supplied keys.
	MaxKeyLength = 255
)

// Record is a stored response for one key.
type Record struct {
	Key         string      `json:"key"`
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status"`
	Header      http.Header `json:"header,omitempty"`
	Body        []byte      `json:"body"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

// Expired reports whether the record is past its TTL at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Response rebuilds the stored response. The body is returned unchanged.
func (r *Record) Response() *httputil.Response {
	resp := httputil.NewResponse(r.Status, append([]byte(nil), r.Body...))
	for k, vs := range r.Header {
		resp.Header[k] = append([]string(nil), vs...)
	}
	return resp
}

// NewRecord captures resp under key.
func NewRecord(key, fingerprint string, resp *httputil.Response, now time.Time, ttl time.Duration) *Record {
	header := make(http.Header, len(resp.Header))
	for k, vs := range resp.Header {
		header[k] = append([]string(nil), vs...)
	}
	header.Del(httputil.HeaderRequestID)
	header.Del(httputil.HeaderDuration)
	return &Record{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      resp.Status,
		Header:      header,
		Body:        append([]byte(nil), resp.Body...),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// Store persists records and provides the per-key lock.
//
// Acquire must be atomic: of several concurrent callers with the same key at
// most one gets ok=true until the lock is released or its ttl passes.
type Store interface {
	// Get returns the record for key, or nil when missing or expired.
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, rec *Record, ttl time.Duration) error
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release drops the lock if token still owns it.
	Release(ctx context.Context, key, token string) error
}

// KeyFromRequest returns the client key, preferring Idempotency-Key.
func KeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get(HeaderKey)); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get(HeaderKeyAlias))
}

// ScopeKey namespaces a client key by caller so two users cannot collide.
func ScopeKey(scope, key string) string {
	if scope == "" {
		scope = "anonymous"
	}
	return scope + ":" + key
}

// Fingerprint hashes the parts of a request that must match for a replay.
// JSON bodies are normalized (object keys sorted, whitespace dropped) so
// semantically equal payloads fingerprint the same.
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(normalizeBody(body))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeBody(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil || dec.More() {
		return trimmed
	}
	out, err := json.Marshal(v)
	if err != nil {
		return trimmed
	}
	return out
}
