package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limit is a budget of Max units per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Validate rejects budgets that can never admit a request.
func (l Limit) Validate() error {
	if l.Max <= 0 {
		return fmt.Errorf("rate limit max must be positive, got %d", l.Max)
	}
	if l.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", l.Window)
	}
	return nil
}

// Result is the outcome of one Consume call.
type Result struct {
	Allowed   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time until the window resets, measured from now.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Limiter consumes budget for a key.
type Limiter interface {
	Consume(ctx context.Context, key string, cost int, limit Limit) (Result, error)
}

// Key composes a rate limit key from route identity and caller identity.
func Key(route, userID, ip string) string {
	if userID != "" {
		return route + ":user:" + userID
	}
	if ip == "" {
		ip = "unknown"
	}
	return route + ":ip:" + ip
}

func newResult(count int, limit Limit, resetAt time.Time) Result {
	remaining := limit.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit.Max,
		Count:     count,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

func normalizeCost(cost int) int {
	if cost < 1 {
		return 1
	}
	return cost
}
