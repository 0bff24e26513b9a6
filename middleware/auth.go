package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"paylink/services"
	"paylink/utils"

	"github.com/golang-jwt/jwt/v5"
)

type actorKey struct{}

func writeJSON(w http.ResponseWriter, status int, resp map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WithActor stores the resolved caller in ctx.
func WithActor(ctx context.Context, actor services.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the caller resolved by Auth.
func ActorFrom(ctx context.Context) (services.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(services.Actor)
	return actor, ok
}

// Auth resolves the bearer token into a services.Actor once per request.
type Auth struct {
	tokens *utils.Tokens
}

func NewAuth(tokens *utils.Tokens) *Auth {
	return &Auth{tokens: tokens}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"message": "Unauthorized",
			})
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
		claims, err := a.tokens.ValidateAccessToken(r.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"success": false,
					"message": "Session expired, please sign in again",
				})
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"message": "Invalid token",
			})
			return
		}

		role, ok := services.ParseRole(claims.Role)
		if !ok {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"success": false,
				"message": "Access denied",
			})
			return
		}

		actor := services.Actor{ID: claims.UserID, Role: role, Email: claims.Email}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole rejects callers whose role is not listed. It must run after Auth.
func RequireRole(roles ...services.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"success": false,
					"message": "Unauthorized",
				})
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"success": false,
				"message": "Forbidden: insufficient role",
			})
		})
	}
}

// RequireCronKey guards scheduler endpoints with the X-CRON-KEY header.
// An empty key disables the endpoint.
func RequireCronKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-CRON-KEY")
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"success": false,
					"message": "Unauthorized",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
