package middleware

import (
	"context"
	"net/http"
	"strings"

	"medical-scheduler-api/internal/auth"
)

type ctxKey string

const (
	SubjectIDKey ctxKey = "uid"
	RoleKey      ctxKey = "role"
)

// SubjectID returns the authenticated party's ID from the request
// context. Only valid behind the Auth middleware.
func SubjectID(ctx context.Context) string {
	v, _ := ctx.Value(SubjectIDKey).(string)
	return v
}

func Role(ctx context.Context) string {
	v, _ := ctx.Value(RoleKey).(string)
	return v
}

// tokenFromRequest reads the access token from the HttpOnly cookie, or
// from Authorization: Bearer <jwt> for non-browser clients.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("access_token"); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Auth validates the access token and requires the given role. Routes
// that allow any authenticated party pass role = "".
func Auth(secret, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				http.Error(w, `{"error":"no token"}`, http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
				return
			}
			if role != "" && claims.Role != role {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), SubjectIDKey, claims.SubjectID)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
