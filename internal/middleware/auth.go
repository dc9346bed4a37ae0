// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/internal/httputil"
	"github.com/R3E-Network/fortivo/internal/logging"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// Authenticator resolves a session token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// AuthMiddleware requires a valid session token, read from the session cookie
// or a bearer Authorization header.
type AuthMiddleware struct {
	auth       Authenticator
	cookieName string
	log        *logger.Logger
}

// NewAuthMiddleware creates the middleware.
func NewAuthMiddleware(auth Authenticator, cookieName string, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	return &AuthMiddleware{auth: auth, cookieName: cookieName, log: log}
}

type userCaptureKey struct{}

// WithUserCapture returns a context whose authenticated user id is reported
// to fn. Outer middleware uses it to learn who made a request.
func WithUserCapture(ctx context.Context, fn func(userID string)) context.Context {
	return context.WithValue(ctx, userCaptureKey{}, fn)
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r, m.cookieName)
		if token == "" {
			httputil.Unauthorized(w, "")
			return
		}

		userID, err := m.auth.Authenticate(r.Context(), token)
		if err != nil || userID == "" {
			m.log.LogSecurityEvent(r.Context(), "authentication_failed", map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
				"status": errors.StatusOf(err),
			})
			httputil.Unauthorized(w, "")
			return
		}

		if capture, ok := r.Context().Value(userCaptureKey{}).(func(string)); ok {
			capture(userID)
		}
		ctx := logging.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest returns the session token from the cookie, falling back to
// a bearer Authorization header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GetUserID extracts the authenticated user id from ctx.
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}
