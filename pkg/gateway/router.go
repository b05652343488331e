package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubeterm/kubeterm/pkg/serializers"
	"github.com/kubeterm/kubeterm/pkg/version"
)

// routes wires all endpoints and middleware.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// System endpoints (no rate limiting)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins(),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(s.requestIDMiddleware)
		r.Use(s.panicRecoveryMiddleware) // recover before rate limiting so panics still get a response
		r.Use(s.rateLimitMiddleware)
		r.Use(s.loggingMiddleware)
		r.Use(s.metricsMiddleware)

		r.Get("/version", s.handleVersion)
		r.Get("/sessions", s.handleSessions)
		r.Post("/ws/tickets", s.handleIssueTicket)

		r.Route("/namespaces/{namespace}/pods/{pod}", func(r chi.Router) {
			r.Get("/containers", s.handleListContainers)
			r.Get("/exec", s.handleExec)
			r.Get("/logs", s.handleLogs)
		})
	})

	return r
}

// corsOrigins returns the configured allowlist for the CORS layer. Websocket
// upgrades do their own origin check against the live allowlist; CORS only
// gates the plain HTTP endpoints.
func (s *Server) corsOrigins() []string {
	if len(s.config.AllowedOrigins) == 0 {
		return nil
	}
	return s.config.AllowedOrigins
}

// handleVersion handles GET /v1/version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	serializers.RespondJSON(w, http.StatusOK, version.Get())
}

// handleSessions handles GET /v1/sessions, serving the recent audit trail.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.writeError(w, r, http.StatusNotFound, ErrCodeNotFound,
			"audit trail is not enabled", false, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	sessions, err := s.audit.RecentSessions(ctx, 50)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to read session history", true, nil)
		return
	}

	serializers.RespondJSON(w, http.StatusOK, sessions)
}
