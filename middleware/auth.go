package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MohammedAK1991/street-performers-map-sub000/utils"
	"github.com/rs/zerolog"
)

type contextKey string

const UserContextKey contextKey = "user"

// TokenValidator resolves a bearer token to its claims.
type TokenValidator func(token string) (*utils.Claims, error)

type Auth struct {
	validate TokenValidator
	log      zerolog.Logger
}

func NewAuth(secret string, log zerolog.Logger) *Auth {
	return NewAuthWithValidator(func(token string) (*utils.Claims, error) {
		return utils.ValidateToken(token, secret)
	}, log)
}

func NewAuthWithValidator(validate TokenValidator, log zerolog.Logger) *Auth {
	return &Auth{validate: validate, log: log}
}

// OptionalAuth attaches claims when a valid bearer token is present and
// otherwise lets the request through anonymously.
func (a *Auth) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.validate(token)
		if err != nil {
			a.log.Debug().Err(err).Str("path", r.URL.Path).Msg("ignoring invalid optional token")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, claims)))
	})
}

func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			a.log.Debug().Str("path", r.URL.Path).Msg("missing or malformed Authorization header")
			writeAuthError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		claims, err := a.validate(token)
		if err != nil {
			a.log.Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
			writeAuthError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, claims)))
	})
}

// RequireRole must run after RequireAuth.
func (a *Auth) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				writeAuthError(w, http.StatusUnauthorized, "Unauthorized - No user context")
				return
			}
			if claims.Role != role {
				a.log.Warn().
					Str("user_id", claims.UserID).
					Str("role", claims.Role).
					Str("path", r.URL.Path).
					Msg("role check failed")
				writeAuthError(w, http.StatusForbidden, role+" access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUserFromContext(r *http.Request) *utils.Claims {
	if claims, ok := r.Context().Value(UserContextKey).(*utils.Claims); ok {
		return claims
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
