package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const tooManyLoginsKey = "errors.auth.tooManyAttempts"

// RequestLogMiddleware logs one line per request once routing is done, so
// the matched route, the acting user and the project in the path are known.
// It must run after auth.AuthMiddleware.
func RequestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		var ev *zerolog.Event
		switch {
		case rec.status >= 500:
			ev = log.Error()
		case rec.status == http.StatusForbidden || rec.status == http.StatusConflict:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		ev = ev.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Str("request_id", apperrors.GetRequestID(r.Context()))

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				ev = ev.Str("route", pattern)
			}
			if projectID := rctx.URLParam("project_id"); projectID != "" {
				ev = ev.Str("project_id", projectID)
			}
		}
		if actor, ok := auth.GetActor(r.Context()); ok {
			ev = ev.Str("user_id", actor.UserID.String()).Str("platform_role", string(actor.PlatformRole))
		}
		ev.Msg("HTTP request")
	})
}

// RecoveryMiddleware turns a panic in a handler into a 500 envelope.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Error().
					Interface("panic", v).
					Str("request_id", apperrors.GetRequestID(r.Context())).
					Str("path", r.URL.Path).
					Msg("Panic recovered")
				apperrors.WriteInternalError(w, r, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// NoStoreMiddleware keeps session and membership responses out of caches.
func NoStoreMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// LoginRateLimitMiddleware caps login attempts per client IP. The refusal is
// localized like every other API error.
func LoginRateLimitMiddleware(perMinute int, messages apperrors.Translator) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = 10
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(60))
			apperrors.WriteError(w, r, http.StatusTooManyRequests, "rate_limited",
				messages.Message(auth.RequestLocale(r), tooManyLoginsKey))
		}),
	)
}
