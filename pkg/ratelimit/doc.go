// Package ratelimit implements fixed-window request budgets behind a single
// Limiter interface with interchangeable backends.
//
// # Semantics
//
// Consume(key, cost, limit) behaves identically on every backend:
//
//   - on the first call for a key, or once now >= resetAt, the window restarts
//     with count=0 and resetAt=now+window
//   - count += cost
//   - allowed = count <= max
//   - remaining = max(0, max-count)
//
// Denied attempts still count, so a client hammering a closed window does
// not get a fresh budget until the window resets.
//
// # Backends
//
// MemoryLimiter keeps buckets in process memory. It is only correct when a
// single instance serves traffic.
//
// RedisLimiter keeps counters in Redis and performs the read-modify-write in
// one Lua script so replicas share one budget without lost updates:
//
//	limiter := ratelimit.NewRedisLimiter(redisClient, "ratelimit")
//	res, err := limiter.Consume(ctx, ratelimit.Key("shifts.create", userID, ip), 1,
//	    ratelimit.Limit{Max: 5, Window: time.Minute})
//
// # Keys
//
// Key combines the route with the caller's user ID, or the client address
// for anonymous requests, so tenants never share a budget.
package ratelimit
