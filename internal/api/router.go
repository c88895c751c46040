// Package api serves the public subscription surface and the authenticated
// admin endpoints over HTTP.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mbellec/diocese-newsletter/internal/auth"
	"github.com/mbellec/diocese-newsletter/internal/dispatch"
	"github.com/mbellec/diocese-newsletter/internal/queue"
	"github.com/mbellec/diocese-newsletter/internal/storage"
	"github.com/mbellec/diocese-newsletter/internal/workflow"
)

// RouterDeps bundles what the router wires into its handlers.
type RouterDeps struct {
	Workflow *workflow.Workflow
	Engine   *dispatch.Engine
	Producer *queue.Producer
	DLQ      *queue.DLQ
	DB       *storage.DB
	Limiter  SubscribeLimiter
	Verifier *auth.APIKeyVerifier
	SiteName string
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers
// configured. Producer and DLQ are optional; without them the async dispatch
// and reprocess endpoints are not registered.
func NewRouter(deps RouterDeps, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware(log))

	// Health endpoints (no auth required)
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(deps.DB))
	r.Handle("/metrics", promhttp.Handler())

	// Public subscription endpoint, rate limited per IP
	r.Group(func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(RateLimitMiddleware(deps.Limiter, log))
		}
		r.Post("/api/v1/newsletter/subscribe", SubscribeHandler(deps.Workflow))
	})

	// Link landing pages (no auth; reached from emails)
	r.Get("/{locale}/newsletter/confirm", ConfirmHandler(deps.Workflow, deps.SiteName))
	r.Get("/{locale}/newsletter/unsubscribe", UnsubscribeHandler(deps.Workflow, deps.SiteName))

	// Admin routes (API key required)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.BearerAuth(deps.Verifier))

		if deps.Producer != nil {
			r.Post("/dispatch", DispatchHandler(deps.Producer))
		}
		r.Post("/dispatch/sync", DispatchSyncHandler(deps.Engine))

		if deps.DLQ != nil {
			r.Post("/dlq/reprocess", DLQReprocessHandler(deps.DLQ))
		}
	})

	return r
}
