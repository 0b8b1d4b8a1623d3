// Package webhooks verifies signed payloads from external senders.
//
// # Signatures
//
// Senders sign the raw request body with HMAC-SHA256 using a shared secret
// and send the hex digest in the x-webhook-signature header, optionally
// prefixed with "sha256=". Verify is the bare check:
//
//	ok := webhooks.Verify(body, r.Header.Get(webhooks.SignatureHeader), secret)
//
// # Full verification
//
// Verifier adds the checks a receiving endpoint needs on top of the
// signature:
//
//   - the x-webhook-timestamp header (Unix milliseconds, falling back to the
//     event's own timestamp) must be at most MaxAge old and at most one
//     minute in the future;
//   - an event ID is accepted once; replays within the replay window fail;
//   - the event type must be in AllowedEvents when that list is set;
//   - the payload must satisfy PayloadSchema when one is set.
//
// Every failure is a 401 WEBHOOK_INVALID, never retryable.
//
// # Usage
//
//	v := webhooks.NewVerifier(secret)
//	v.AllowedEvents = []string{"shift.created", "shift.updated"}
//	router.Handle("/webhooks/scheduler", webhooks.Handler(v, "scheduler", metrics,
//		func(ctx context.Context, ev *webhooks.Event) error {
//			return sync.Apply(ctx, ev)
//		}))
package webhooks
