package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", g.handleHealth())

	// Webhooks carry their own secret-token auth per app.
	r.Post("/telegram/webhook/{appID}", g.handleWebhook())

	// Browser-facing authentication and intent endpoints.
	r.Post("/users/authenticate", g.handleAuthenticate())
	r.Post("/intents", g.handleCreateIntent())
	r.Get("/ws/intents/{token}", g.handleWatchIntent())

	r.Handle("/metrics", promhttp.HandlerFor(g.metrics.Registry, promhttp.HandlerOpts{}))

	// Admin endpoints. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit, g.rateLimiter))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/config", g.handleGetConfig())
				r.Get("/modules", g.handleGetAllModules())
			})
		})
	}

	return r
}
