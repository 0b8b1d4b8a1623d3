// Package async provides safe goroutine primitives for background work.
//
// # Key Functions
//
// SafeGo runs fn in a goroutine with a timeout, panic recovery and error
// logging:
//
//	async.SafeGo(ctx, 2*time.Second, "audit write", func(ctx context.Context) error {
//		return sink.Log(ctx, entry)
//	})
//
// SafeLoop runs fn on a ticker until ctx is cancelled. A panic in one tick is
// logged and the loop keeps running:
//
//	async.SafeLoop(ctx, time.Minute, "rate limit cleanup", func(ctx context.Context) {
//		limiter.Cleanup()
//	})
//
// Errors and panics are logged through the logger found in the parent
// context (see observability.WithLogger).
package async
