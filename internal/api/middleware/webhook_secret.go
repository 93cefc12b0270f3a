package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/quorumworks/logbook/internal/api"
)

// WebhookSecret verifies the shared secret on inbound webhook requests.
// When no secret is configured the webhook surface is disabled entirely.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				api.Error(w, http.StatusNotFound, "webhooks not configured")
				return
			}

			provided := r.Header.Get("X-Webhook-Secret")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				api.Error(w, http.StatusUnauthorized, "invalid webhook secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
