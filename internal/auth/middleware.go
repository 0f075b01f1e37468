package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const actorContextKey contextKey = "actor"

// AuthMiddleware validates the bearer token and injects the actor into the
// context. Requests without a valid token continue unauthenticated.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ValidateToken(token, secret)
			if err != nil {
				log.Debug().
					Err(err).
					Str("request_id", apperrors.GetRequestID(r.Context())).
					Msg("Invalid session token")
				next.ServeHTTP(w, r)
				return
			}

			actor := access.Actor{
				UserID:       claims.UserID,
				PlatformRole: claims.PlatformRole,
				Locale:       claims.Locale,
			}
			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth is middleware that requires authentication.
// Returns 401 if the request carries no valid token.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == uuid.Nil {
			apperrors.WriteUnauthorized(w, r, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetActor returns the authenticated actor and whether there is one.
func GetActor(ctx context.Context) (access.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(access.Actor)
	return actor, ok
}

// GetUserID retrieves the user ID from the request context.
// Returns uuid.Nil if no user is authenticated.
func GetUserID(ctx context.Context) uuid.UUID {
	actor, ok := GetActor(ctx)
	if !ok {
		return uuid.Nil
	}
	return actor.UserID
}

// WithActor returns a context carrying actor. Used by tests and the admin CLI.
func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// RequestLocale picks the response locale: the lang query parameter, then
// the first Accept-Language tag, then the actor's stored locale. An empty
// result lets the services fall back to the default language.
func RequestLocale(r *http.Request) string {
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		return strings.ToLower(lang)
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		tag := strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0])
		if base, _, _ := strings.Cut(tag, "-"); base != "" && base != "*" {
			return strings.ToLower(base)
		}
	}
	if actor, ok := GetActor(r.Context()); ok {
		return actor.Locale
	}
	return ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
