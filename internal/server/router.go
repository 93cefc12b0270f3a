package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quorumworks/logbook/internal/api"
	"github.com/quorumworks/logbook/internal/api/handlers"
	"github.com/quorumworks/logbook/internal/api/middleware"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	ImportHandler   *handlers.ImportHandler
	WebhookHandler  *handlers.WebhookHandler
	SearchHandler   *handlers.SearchHandler
	WebhookSecret   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Uploads and email attachments can be large.
	const maxBodyBytes int64 = 50 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentHandler.Upload)
		r.Get("/", cfg.DocumentHandler.List)
		r.Post("/import-transcript", cfg.ImportHandler.ImportTranscript)
		r.Get("/{id}/status", cfg.DocumentHandler.Status)
		r.Get("/{id}/download", cfg.DocumentHandler.Download)
		r.Post("/{id}/process", cfg.DocumentHandler.Process)
		r.Post("/{id}/reprocess", cfg.DocumentHandler.Reprocess)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
	})

	r.Get("/search", cfg.SearchHandler.Search)

	r.Group(func(r chi.Router) {
		r.Use(middleware.WebhookSecret(cfg.WebhookSecret))
		r.Post("/webhooks/email", cfg.WebhookHandler.ReceiveEmail)
	})

	return r
}
