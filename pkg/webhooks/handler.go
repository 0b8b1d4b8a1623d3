package webhooks

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/contextkeys"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/observability"
)

// EventHandler processes one verified event.
type EventHandler func(ctx context.Context, ev *Event) error

// Handler serves a webhook endpoint: verify, then hand the event to fn.
// source labels metrics and logs.
func Handler(v *Verifier, source string, metrics *observability.Metrics, fn EventHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		logger := observability.FromContext(ctx).WithField("webhook_source", source)
		w.Header().Set(httputil.HeaderRequestID, requestID)

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			apierror.Write(w, apierror.New(apierror.CodeValidation, "Webhooks must be POSTed"), requestID)
			return
		}

		ev, err := v.VerifyRequest(r)
		if err != nil {
			metrics.IncWebhook(source, "rejected")
			logger.WithError(err).Warn("Webhook rejected")
			apierror.Write(w, err, requestID)
			return
		}
		logger = logger.WithFields(map[string]interface{}{"event_id": ev.ID, "event_type": ev.Type})

		if err := fn(ctx, ev); err != nil {
			metrics.IncWebhook(source, "failed")
			logger.WithError(err).Error("Webhook processing failed")
			apierror.Write(w, err, requestID)
			return
		}

		metrics.IncWebhook(source, "accepted")
		logger.Info("Webhook processed")
		_ = httputil.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "eventId": ev.ID})
	})
}
