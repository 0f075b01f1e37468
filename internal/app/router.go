package app

import (
	"context"
	"net/http"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/auth"
	"github.com/aliuyar1234/projecthub/internal/config"
	"github.com/aliuyar1234/projecthub/internal/invitations"
	"github.com/aliuyar1234/projecthub/internal/notifications"
	"github.com/aliuyar1234/projecthub/internal/projects"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// ReadyFunc reports whether the backing services are reachable.
type ReadyFunc func(ctx context.Context) error

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(cfg *config.Config, svc *Services, ready ReadyFunc) *chi.Mux {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(svc.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", apperrors.RequestIDHeader},
		ExposedHeaders:   []string{apperrors.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(auth.AuthMiddleware(cfg.JWTSecret))
	r.Use(RequestLogMiddleware)

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(ready))
	r.Handle("/metrics", svc.Metrics.Handler())

	authHandler := auth.NewHandler(svc.Store, svc.Directory, svc.Auditor, svc.Messages, cfg.JWTSecret, cfg.SessionDays)
	projectHandler := projects.NewHandler(svc.Projects, svc.Messages, cfg.IconMaxBytes)
	invitationHandler := invitations.NewHandler(svc.Invitations, svc.Messages)
	notificationHandler := notifications.NewHandler(svc.Notifications, svc.Store, svc.Messages)

	// API routes - Authentication
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(NoStoreMiddleware)

		r.Post("/signup", authHandler.HandleSignup)
		r.With(LoginRateLimitMiddleware(cfg.LoginRateLimitPerMin, svc.Messages)).Post("/login", authHandler.HandleLogin)
		r.With(auth.RequireAuth).Get("/me", authHandler.HandleMe)
	})

	// API routes - require authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Use(NoStoreMiddleware)

		projectHandler.Routes(r)
		invitationHandler.Routes(r)
		notificationHandler.Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteNotFound(w, r, "Not found")
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(ready ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				log.Warn().Err(err).Msg("Readiness check failed")
				apperrors.WriteServiceUnavailable(w, r, "Dependency check failed")
				return
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
		})
	}
}
