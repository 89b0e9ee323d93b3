package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"course-portal/internal/model"
	"course-portal/pkg/apierror"
)

type authGate interface {
	RequireAuth(ctx context.Context, client model.Client) (model.AuthUser, bool, error)
}

type AuthMiddleware struct {
	gate authGate
}

func NewAuthMiddleware(gate authGate) *AuthMiddleware {
	return &AuthMiddleware{gate: gate}
}

// RequireAuth admits requests from a live session or a remembered identity.
// Passing the gate also counts as session activity.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok, err := m.gate.RequireAuth(r.Context(), ClientFromContext(r.Context()))
		if err != nil {
			slog.Error("auth gate failed", "error", err)
			writeJSONError(w, http.StatusInternalServerError, apierror.CodeInternal, "Unexpected server error")
			return
		}
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, "Please sign in to continue.")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserFromContext(ctx context.Context) (model.AuthUser, bool) {
	user, ok := ctx.Value(userContextKey).(model.AuthUser)
	return user, ok
}
