package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gwlsn/docsauth/internal/logger"
	"github.com/gwlsn/docsauth/internal/session"
)

type contextKey struct{}

// Identity is the logged-in user attached to a request.
type Identity struct {
	Email     string
	Token     string
	SessionID string
}

// Middleware requires a logged-in session for incoming requests.
type Middleware struct {
	Sessions    *session.Manager
	BypassPaths []string
	// LoginPage, when set, is where browsers without a login are redirected.
	LoginPage string
}

// DefaultBypassPaths returns endpoints that never require a login.
func DefaultBypassPaths() []string {
	return []string{"/healthz", "/auth/login/", "/auth/logout/"}
}

// NewMiddleware creates an auth middleware.
func NewMiddleware(sessions *session.Manager, bypassPaths []string) *Middleware {
	return &Middleware{Sessions: sessions, BypassPaths: bypassPaths}
}

// Wrap wraps an HTTP handler with auth enforcement.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.Sessions == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.shouldBypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.Sessions.Load(r)
		if err != nil {
			logger.Error("Failed to load session", "error", err)
			writeError(w, http.StatusInternalServerError, "Session unavailable", nil)
			return
		}

		if token, ok := sess.Get(TokenKey); ok && token != "" {
			email, _ := sess.Get(EmailKey)
			ctx := context.WithValue(r.Context(), contextKey{}, &Identity{
				Email:     email,
				Token:     token,
				SessionID: sess.ID(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if m.LoginPage != "" && wantsHTML(r) {
			http.Redirect(w, r, m.LoginPage, http.StatusFound)
			return
		}
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
	})
}

// IdentityFromContext returns the logged-in identity if present.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	return identity, ok
}

func (m *Middleware) shouldBypass(path string) bool {
	for _, bypass := range m.BypassPaths {
		if bypass == path {
			return true
		}
		if strings.HasSuffix(bypass, "*") {
			prefix := strings.TrimSuffix(bypass, "*")
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}
	return false
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
