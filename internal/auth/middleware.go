package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/response"
)

type contextKey struct{}

func WithSession(ctx context.Context, session domain.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, session)
}

// SessionFrom returns the session the middleware stored on ctx.
func SessionFrom(ctx context.Context) (domain.Session, bool) {
	session, ok := ctx.Value(contextKey{}).(domain.Session)
	return session, ok
}

// Middleware rejects requests without a valid token. The token is read from
// the Authorization header, or from the token query parameter for downloads
// started by a plain link.
func (m *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearer(r.Header.Get("Authorization"))
		if tokenStr == "" {
			tokenStr = r.URL.Query().Get("token")
		}
		if tokenStr == "" {
			response.Unauthorized(w, "authentication required")
			return
		}

		session, err := m.Parse(tokenStr)
		if err != nil {
			response.Unauthorized(w, "session expired or invalid, please sign in again")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// RequireAdmin must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFrom(r.Context())
		if !ok {
			response.Unauthorized(w, "authentication required")
			return
		}
		if !session.IsAdmin() {
			response.Error(w, http.StatusForbidden, customError.ErrCodeForbidden, "admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
