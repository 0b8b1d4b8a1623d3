package webhooks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/validation"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"

	DefaultMaxAge       = 5 * time.Minute
	DefaultReplayWindow = 10 * time.Minute
	MaxFutureSkew       = time.Minute
	DefaultMaxBodyBytes = 1 << 20

	replayCacheSize = 10000
)

// Event is the envelope every sender posts.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`

	// Input is the payload decoded by PayloadSchema, when one is set.
	Input any `json:"-"`
}

// Verifier checks signature, freshness, uniqueness and type of events.
type Verifier struct {
	Secret        string
	AllowedEvents []string
	MaxAge        time.Duration
	PayloadSchema validation.Schema
	MaxBodyBytes  int64

	mu   sync.Mutex
	seen *expirable.LRU[string, time.Time]
	now  func() time.Time
}

// NewVerifier creates a verifier with default limits.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		Secret:       secret,
		MaxAge:       DefaultMaxAge,
		MaxBodyBytes: DefaultMaxBodyBytes,
		seen:         expirable.NewLRU[string, time.Time](replayCacheSize, nil, DefaultReplayWindow),
		now:          time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (v *Verifier) SetClock(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

func invalid(format string, args ...interface{}) *apierror.Error {
	return apierror.New(apierror.CodeWebhookInvalid, fmt.Sprintf(format, args...))
}

// VerifyRequest reads and verifies r. The body is consumed.
func (v *Verifier) VerifyRequest(r *http.Request) (*Event, error) {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return nil, invalid("Missing signature header")
	}

	body, err := httputil.ReadBody(r, v.MaxBodyBytes)
	if err != nil {
		return nil, invalid("Unreadable body")
	}
	return v.VerifyPayload(body, signature, r.Header.Get(TimestampHeader))
}

// VerifyPayload verifies an already-read body.
func (v *Verifier) VerifyPayload(body []byte, signature, timestampHeader string) (*Event, error) {
	if !Verify(body, signature, v.Secret) {
		return nil, invalid("Invalid signature")
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, invalid("Malformed event")
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, invalid("Event id and type are required")
	}

	ts := ev.Timestamp
	if timestampHeader != "" {
		parsed, err := strconv.ParseInt(timestampHeader, 10, 64)
		if err != nil {
			return nil, invalid("Malformed timestamp header")
		}
		ts = parsed
	}

	v.mu.Lock()
	now := v.now()
	v.mu.Unlock()

	maxAge := v.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	age := now.Sub(time.UnixMilli(ts))
	if age > maxAge {
		return nil, invalid("Webhook too old: %dms > %dms", age.Milliseconds(), maxAge.Milliseconds())
	}
	if age < -MaxFutureSkew {
		return nil, invalid("Webhook timestamp in future")
	}

	if !v.allowed(ev.Type) {
		return nil, invalid("Event type not allowed: %s", ev.Type)
	}

	if v.PayloadSchema != nil {
		in, err := v.PayloadSchema.Validate(http.MethodPost, nil, ev.Payload)
		if err != nil {
			return nil, invalid("Invalid payload").WithDetails(apierror.From(err).Details)
		}
		ev.Input = in
	}

	// Check and mark together so two deliveries of one event cannot both pass.
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen.Contains(ev.ID) {
		return nil, invalid("Duplicate webhook (replay detected)")
	}
	v.seen.Add(ev.ID, now)
	return &ev, nil
}

func (v *Verifier) allowed(eventType string) bool {
	if len(v.AllowedEvents) == 0 {
		return true
	}
	for _, t := range v.AllowedEvents {
		if t == eventType {
			return true
		}
	}
	return false
}
