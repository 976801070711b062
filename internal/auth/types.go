package auth

import (
	"context"
	"log/slog"
)

// Session keys written by a successful login.
const (
	TokenKey = "auth_token"
	EmailKey = "user_email"
)

// Credentials are the email/password pair submitted to the login endpoint.
// They live for one request and are never stored.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

// LogValue keeps the password out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("email", c.Email))
}

// User is the profile returned by an identity provider.
type User struct {
	Sub           string            `json:"sub"`
	Username      string            `json:"username"`
	Email         string            `json:"email"`
	EmailVerified bool              `json:"email_verified"`
	Name          string            `json:"name,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Result is a successful authentication.
type Result struct {
	AccessToken string
	IDToken     string
	TokenType   string
	ExpiresIn   int
	User        User
}

// Provider exchanges credentials for tokens with an identity service.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// ValidateCredentials checks credential shape without any network call.
	ValidateCredentials(creds Credentials) error
	// Authenticate performs the single upstream call for a login attempt.
	// Rejections are reported as *AuthenticationError.
	Authenticate(ctx context.Context, creds Credentials) (*Result, error)
}
