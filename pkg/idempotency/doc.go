// Package idempotency deduplicates retried mutating requests.
//
// Clients send an Idempotency-Key header (X-Idempotency-Key is accepted as
// an alias) on POST, PUT, PATCH and DELETE. The first request with a key runs
// the handler and, when the response is 2xx, stores it together with a
// fingerprint of the request (method, path and normalized body). Later
// requests with the same key:
//
//   - replay the stored response verbatim when the fingerprint matches,
//     adding X-Idempotent-Replayed: true;
//   - fail with 409 IDEMPOTENCY_KEY_REUSED when it does not.
//
// Concurrent requests with a key nobody has seen are serialized with a lock
// held in the store. Only the lock holder runs the handler; the others poll
// for the stored record until Guard.WaitTimeout and then receive a retryable
// 409 IDEMPOTENCY_IN_PROGRESS.
//
// Two stores are provided: MemoryStore for a single instance and RedisStore
// for deployments with several replicas. Both acquire locks atomically.
package idempotency
