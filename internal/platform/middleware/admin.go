package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// AdminValidator validates operator capability tokens. Destructive
// operations carry a capability check at the boundary instead of a shared
// secret buried in business logic.
type AdminValidator interface {
	ValidateToken(tokenString string) (*AdminClaims, error)
}

// AdminClaims are the claims destructive routes care about.
type AdminClaims struct {
	Operator string
	Admin    bool
}

type contextKeyOperator struct{}

// ContextKeyOperator is exported for use in handlers and tests.
var ContextKeyOperator = contextKeyOperator{}

// GetOperator retrieves the authenticated operator name from the context.
func GetOperator(ctx context.Context) string {
	op, ok := ctx.Value(ContextKeyOperator).(string)
	if !ok {
		return ""
	}
	return op
}

// RequireAdmin gates a route on a valid admin capability token.
func RequireAdmin(validator AdminValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "admin route without token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "admin route with invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			if !claims.Admin {
				logger.WarnContext(ctx, "admin route without admin capability",
					"operator", claims.Operator,
					"request_id", requestID,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin capability required"}`))
				return
			}

			ctx = context.WithValue(ctx, ContextKeyOperator, claims.Operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAdmin attaches the operator identity when a valid admin token is
// presented, and passes anonymous callers through untouched. Routes that
// behave differently for admins (rather than refusing non-admins) use this
// instead of RequireAdmin. A present-but-invalid token is still rejected so
// a caller cannot silently fall back to the anonymous path with a bad
// credential.
func OptionalAdmin(validator AdminValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "invalid token on optional-admin route",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			if claims.Admin {
				ctx = context.WithValue(ctx, ContextKeyOperator, claims.Operator)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
