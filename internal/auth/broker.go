package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gwlsn/docsauth/internal/hooks"
	"github.com/gwlsn/docsauth/internal/logger"
	"github.com/gwlsn/docsauth/internal/metrics"
	"github.com/gwlsn/docsauth/internal/session"
)

// Broker runs the login and logout flows against one provider.
type Broker struct {
	provider Provider
	hooks    *hooks.Dispatcher
}

// NewBroker creates a broker. A nil dispatcher runs no hooks.
func NewBroker(provider Provider, dispatcher *hooks.Dispatcher) (*Broker, error) {
	if provider == nil {
		return nil, errors.New("broker requires a provider")
	}
	return &Broker{provider: provider, hooks: dispatcher}, nil
}

// Provider returns the active provider.
func (b *Broker) Provider() Provider { return b.provider }

// Login authenticates creds and records the result in sess. The caller is
// responsible for persisting sess.
//
// Errors are ErrInvalidCredentialsFormat, *AuthenticationError, or an
// internal error.
func (b *Broker) Login(ctx context.Context, r *http.Request, sess *session.Session, creds Credentials) (*Result, error) {
	if err := b.provider.ValidateCredentials(creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentialsFormat, err)
	}

	b.hooks.Dispatch(ctx, hooks.Call{
		Event:   hooks.PreLogin,
		Request: r,
		Session: sess,
		Payload: map[string]any{"email": creds.Email},
	})

	start := time.Now()
	result, err := b.provider.Authenticate(ctx, creds)
	metrics.ProviderLatency.WithLabelValues(b.provider.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			logger.Info("Login rejected", "provider", b.provider.Name(), "email", creds.Email, "detail", authErr.Detail)
			return nil, authErr
		}
		return nil, fmt.Errorf("%s authenticate: %w", b.provider.Name(), err)
	}
	if result == nil || result.AccessToken == "" {
		return nil, fmt.Errorf("%s authenticate: empty result", b.provider.Name())
	}

	sess.Set(TokenKey, result.AccessToken)
	sess.Set(EmailKey, creds.Email)

	b.hooks.Dispatch(ctx, hooks.Call{
		Event:   hooks.PostLogin,
		Request: r,
		Session: sess,
		Payload: map[string]any{
			"email":        creds.Email,
			"sub":          result.User.Sub,
			"username":     result.User.Username,
			"access_token": result.AccessToken,
		},
	})
	return result, nil
}

// Logout removes the login state from sess. Absent keys are ignored.
func (b *Broker) Logout(ctx context.Context, r *http.Request, sess *session.Session) {
	email, _ := sess.Get(EmailKey)

	b.hooks.Dispatch(ctx, hooks.Call{
		Event:   hooks.PreLogout,
		Request: r,
		Session: sess,
		Payload: map[string]any{"email": email},
	})

	sess.Delete(TokenKey)
	sess.Delete(EmailKey)

	b.hooks.Dispatch(ctx, hooks.Call{
		Event:   hooks.PostLogout,
		Request: r,
		Session: sess,
		Payload: map[string]any{"email": email},
	})
}
