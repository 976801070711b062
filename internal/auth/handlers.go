package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gwlsn/docsauth/internal/logger"
	"github.com/gwlsn/docsauth/internal/metrics"
	"github.com/gwlsn/docsauth/internal/session"
)

// Handlers serves the login, logout and identity endpoints.
type Handlers struct {
	Broker      *Broker
	Sessions    *session.Manager
	CSRF        bool
	MaxBodySize int64
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token,omitempty"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
	Message     string `json:"message"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail any    `json:"detail,omitempty"`
}

// Login handles POST requests carrying email and password.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(r)
	if err != nil {
		h.loginFailed(w, "load session", err)
		return
	}

	creds, err := DecodeCredentials(w, r, h.MaxBodySize)
	if err != nil {
		metrics.LoginTotal.WithLabelValues("invalid_request").Inc()
		var reqErr *RequestError
		var detail any
		if errors.As(err, &reqErr) {
			detail = reqErr.Detail
		}
		writeError(w, http.StatusBadRequest, "Invalid request data", detail)
		return
	}

	if h.CSRF && !session.VerifyCSRFToken(sess, r.Header.Get(session.CSRFHeader)) {
		metrics.LoginTotal.WithLabelValues("csrf").Inc()
		writeError(w, http.StatusForbidden, "CSRF verification failed", "CSRF token missing or incorrect")
		return
	}

	result, err := h.Broker.Login(r.Context(), r, sess, creds)
	if err != nil {
		var authErr *AuthenticationError
		switch {
		case errors.Is(err, ErrInvalidCredentialsFormat):
			metrics.LoginTotal.WithLabelValues("invalid_credentials").Inc()
			writeError(w, http.StatusBadRequest, "Invalid credentials format", "Please check your email and password format")
		case errors.As(err, &authErr):
			metrics.LoginTotal.WithLabelValues("unauthorized").Inc()
			writeError(w, http.StatusUnauthorized, authErr.Message, authErr.Detail)
		default:
			h.loginFailed(w, "authenticate", err)
		}
		return
	}

	if err := h.Sessions.Rotate(r, sess); err != nil {
		h.loginFailed(w, "rotate session", err)
		return
	}
	if err := h.Sessions.Save(w, r, sess); err != nil {
		h.loginFailed(w, "save session", err)
		return
	}

	metrics.LoginTotal.WithLabelValues("success").Inc()
	logger.Info("Login successful", "provider", h.Broker.Provider().Name(), "email", creds.Email)

	tokenType := result.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		IDToken:     result.IDToken,
		TokenType:   tokenType,
		ExpiresIn:   result.ExpiresIn,
		User:        result.User,
		Message:     "Login successful",
	})
}

func (h *Handlers) loginFailed(w http.ResponseWriter, stage string, err error) {
	metrics.LoginTotal.WithLabelValues("error").Inc()
	logger.Error("Login failed", "stage", stage, "error", err)
	writeError(w, http.StatusInternalServerError, "Authentication service error", "An unexpected error occurred during authentication")
}

// Logout handles POST requests ending the login. A request without a session
// still runs the logout hooks and succeeds without creating one.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(r)
	if err != nil {
		h.logoutFailed(w, err)
		return
	}

	if sess.IsNew() {
		h.Broker.Logout(r.Context(), r, sess)
		metrics.LogoutTotal.WithLabelValues("success").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
		return
	}

	if h.CSRF && !session.VerifyCSRFToken(sess, r.Header.Get(session.CSRFHeader)) {
		metrics.LogoutTotal.WithLabelValues("csrf").Inc()
		writeError(w, http.StatusForbidden, "CSRF verification failed", "CSRF token missing or incorrect")
		return
	}

	h.Broker.Logout(r.Context(), r, sess)

	if err := h.Sessions.Save(w, r, sess); err != nil {
		h.logoutFailed(w, err)
		return
	}

	metrics.LogoutTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (h *Handlers) logoutFailed(w http.ResponseWriter, err error) {
	metrics.LogoutTotal.WithLabelValues("error").Inc()
	logger.Error("Logout failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Logout failed", "An error occurred during logout")
}

// Me reports the identity attached by Middleware.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":         identity.Email,
		"authenticated": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, detail any) {
	writeJSON(w, status, errorResponse{Error: message, Detail: detail})
}
