package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/observability"
)

// Outcome describes what the guard did with a request.
type Outcome string

const (
	OutcomeStored     Outcome = "stored"
	OutcomeNotStored  Outcome = "not_stored"
	OutcomeReplayed   Outcome = "replayed"
	OutcomeMismatch   Outcome = "mismatch"
	OutcomeInProgress Outcome = "in_progress"
	OutcomeError      Outcome = "error"
)

// Guard defaults.
const (
	DefaultWaitTimeout  = 5 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
	DefaultLockTTL      = 30 * time.Second
	DefaultStoreTimeout = 2 * time.Second
)

// Guard runs a handler at most once per key.
type Guard struct {
	Store Store

	// WaitTimeout bounds how long a duplicate waits for the first request.
	WaitTimeout  time.Duration
	PollInterval time.Duration
	// LockTTL must exceed the slowest handler; a crashed holder's lock
	// frees itself after it.
	LockTTL      time.Duration
	StoreTimeout time.Duration

	now func() time.Time
}

// NewGuard creates a guard with default timings.
func NewGuard(store Store) *Guard {
	return &Guard{
		Store:        store,
		WaitTimeout:  DefaultWaitTimeout,
		PollInterval: DefaultPollInterval,
		LockTTL:      DefaultLockTTL,
		StoreTimeout: DefaultStoreTimeout,
		now:          time.Now,
	}
}

// ValidateKey rejects keys that are too long to store.
func ValidateKey(key string) error {
	if len(key) > MaxKeyLength {
		return apierror.Validation(map[string][]string{
			HeaderKey: {fmt.Sprintf("must be at most %d characters", MaxKeyLength)},
		})
	}
	return nil
}

// Do runs fn for the first request with key and replays its stored response
// for later ones with the same fingerprint. Only 2xx responses are stored.
func (g *Guard) Do(ctx context.Context, key, fingerprint string, ttl time.Duration, fn func(context.Context) (*httputil.Response, error)) (*httputil.Response, Outcome, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if resp, outcome, err := g.lookup(ctx, key, fingerprint); outcome != "" {
		return resp, outcome, err
	}

	token, ok, err := g.acquire(ctx, key)
	if err != nil {
		return nil, OutcomeError, err
	}
	if !ok {
		return g.wait(ctx, key, fingerprint, ttl, fn)
	}
	return g.run(ctx, key, token, fingerprint, ttl, fn)
}

func (g *Guard) run(ctx context.Context, key, token, fingerprint string, ttl time.Duration, fn func(context.Context) (*httputil.Response, error)) (*httputil.Response, Outcome, error) {
	// The lock and record must outlive a dropped client connection.
	detached := context.WithoutCancel(ctx)
	defer func() {
		rctx, cancel := context.WithTimeout(detached, g.StoreTimeout)
		defer cancel()
		if err := g.Store.Release(rctx, key, token); err != nil {
			observability.FromContext(ctx).WithError(err).Warn("Failed to release idempotency lock")
		}
	}()

	// Another holder may have stored the record between lookup and acquire.
	if resp, outcome, err := g.lookup(ctx, key, fingerprint); outcome != "" {
		return resp, outcome, err
	}

	resp, err := fn(ctx)
	if err != nil {
		return nil, OutcomeNotStored, err
	}
	if resp == nil || resp.Status < 200 || resp.Status > 299 {
		return resp, OutcomeNotStored, nil
	}

	rec := NewRecord(key, fingerprint, resp, g.clock(), ttl)
	pctx, cancel := context.WithTimeout(detached, g.StoreTimeout)
	defer cancel()
	if err := g.Store.Put(pctx, rec, ttl); err != nil {
		observability.FromContext(ctx).WithError(err).WithField("idempotency_key", key).
			Error("Failed to store idempotent response")
		return resp, OutcomeNotStored, nil
	}
	return resp, OutcomeStored, nil
}

// lookup returns an empty outcome when no record settles the request.
func (g *Guard) lookup(ctx context.Context, key, fingerprint string) (*httputil.Response, Outcome, error) {
	sctx, cancel := context.WithTimeout(ctx, g.StoreTimeout)
	defer cancel()

	rec, err := g.Store.Get(sctx, key)
	if err != nil {
		return nil, OutcomeError, storeError("read", err)
	}
	if rec == nil {
		return nil, "", nil
	}
	if rec.Fingerprint != fingerprint {
		return nil, OutcomeMismatch, apierror.New(apierror.CodeIdempotencyKeyReused, "")
	}
	resp := rec.Response()
	resp.Header.Set(ReplayHeader, "true")
	return resp, OutcomeReplayed, nil
}

func (g *Guard) acquire(ctx context.Context, key string) (string, bool, error) {
	sctx, cancel := context.WithTimeout(ctx, g.StoreTimeout)
	defer cancel()

	token, ok, err := g.Store.Acquire(sctx, key, g.LockTTL)
	if err != nil {
		return "", false, storeError("lock", err)
	}
	return token, ok, nil
}

// wait polls until the holder stores a record or gives up its lock, in which
// case this request takes the lock over and runs fn itself.
func (g *Guard) wait(ctx context.Context, key, fingerprint string, ttl time.Duration, fn func(context.Context) (*httputil.Response, error)) (*httputil.Response, Outcome, error) {
	deadline := time.NewTimer(g.WaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(g.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, OutcomeError, apierror.Unavailable("", ctx.Err())
		case <-deadline.C:
			return nil, OutcomeInProgress, inProgress()
		case <-ticker.C:
		}

		if resp, outcome, err := g.lookup(ctx, key, fingerprint); outcome != "" {
			return resp, outcome, err
		}
		token, ok, err := g.acquire(ctx, key)
		if err != nil {
			return nil, OutcomeError, err
		}
		if ok {
			return g.run(ctx, key, token, fingerprint, ttl, fn)
		}
	}
}

func (g *Guard) clock() time.Time {
	if g.now == nil {
		return time.Now()
	}
	return g.now()
}

func inProgress() *apierror.Error {
	return apierror.New(apierror.CodeIdempotencyInProgress, "").WithRetryAfter(time.Second)
}

func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return apierror.Unavailable("", err)
	}
	return apierror.Unavailable("idempotency store unavailable", fmt.Errorf("%s idempotency store: %w", op, err))
}
