package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// NoopProvider accepts any well-formed credentials. It is meant for demos
// and local development only.
type NoopProvider struct {
	expiresIn int
}

// NewNoopProvider returns a provider that always authenticates.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{expiresIn: 3600}
}

// Name implements Provider.
func (p *NoopProvider) Name() string { return "noop" }

// ValidateCredentials requires an email-looking address and a password.
func (p *NoopProvider) ValidateCredentials(creds Credentials) error {
	return CheckCredentialShape(creds)
}

// Authenticate always succeeds with a random opaque token.
func (p *NoopProvider) Authenticate(_ context.Context, creds Credentials) (*Result, error) {
	username, _, _ := strings.Cut(creds.Email, "@")
	return &Result{
		AccessToken: uuid.NewString(),
		TokenType:   "Bearer",
		ExpiresIn:   p.expiresIn,
		User: User{
			Sub:      uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+creds.Email)).String(),
			Username: username,
			Email:    creds.Email,
		},
	}, nil
}

// CheckCredentialShape is the shared format check used by providers: a
// non-empty email containing '@' and a non-empty password, both bounded.
func CheckCredentialShape(creds Credentials) error {
	switch {
	case creds.Email == "" || creds.Password == "":
		return errors.New("email and password are required")
	case !strings.Contains(creds.Email, "@"):
		return errors.New("email must contain '@'")
	case len(creds.Email) > 254 || len(creds.Password) > 256:
		return errors.New("credentials too long")
	}
	return nil
}
