package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultCookieName = "docsauth_session"
	defaultSessionTTL = 24 * time.Hour
)

// Manager ties a Store to the session cookie.
type Manager struct {
	store      Store
	secret     []byte
	cookieName string
	ttl        time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewManager creates a session manager signing cookies with secret.
func NewManager(store Store, secret string, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session manager requires a store")
	}
	if secret == "" {
		return nil, errors.New("session manager requires a non-empty secret")
	}
	m := &Manager{
		store:      store,
		secret:     []byte(secret),
		cookieName: defaultCookieName,
		ttl:        defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.cookieName }

// Load returns the session referenced by the request cookie, or a fresh
// unsaved session when there is no valid cookie or the session expired.
// Only store failures are returned as errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return m.fresh(), nil
	}

	id, err := m.verifySignedValue(cookie.Value)
	if err != nil {
		return m.fresh(), nil
	}

	values, err := m.store.Load(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return m.fresh(), nil
	}
	if err != nil {
		return nil, err
	}
	return newSession(id, values, false), nil
}

// Save persists a modified session and sets the cookie for new ones.
// Unmodified sessions are left alone, so a new empty session never
// produces a cookie.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	if s == nil || !s.dirty {
		return nil
	}
	if err := m.store.Save(r.Context(), s.id, s.values, m.ttl); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if s.isNew {
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    m.signValue(s.id),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(m.ttl.Seconds()),
			Secure:   r.TLS != nil,
		})
	}
	s.isNew = false
	s.dirty = false
	return nil
}

// Rotate moves the session values to a new ID and deletes the old one from
// the store. The next Save persists the values and sets a new cookie.
func (m *Manager) Rotate(r *http.Request, s *Session) error {
	if s == nil {
		return nil
	}
	if !s.isNew {
		if err := m.store.Delete(r.Context(), s.id); err != nil {
			return fmt.Errorf("delete rotated session: %w", err)
		}
	}
	s.id = uuid.NewString()
	s.isNew = true
	s.dirty = true
	return nil
}

// Destroy removes the session from the store and expires the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request, s *Session) error {
	if s == nil {
		return nil
	}
	if !s.isNew {
		if err := m.store.Delete(r.Context(), s.id); err != nil {
			return err
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) fresh() *Session {
	return New(uuid.NewString())
}

func (m *Manager) signValue(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *Manager) verifySignedValue(value string) (string, error) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", errors.New("invalid session format")
	}
	signature, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", errors.New("invalid session signature")
	}
	expected := hmac.New(sha256.New, m.secret)
	expected.Write([]byte(id))
	if subtle.ConstantTimeCompare(signature, expected.Sum(nil)) != 1 {
		return "", errors.New("invalid session signature")
	}
	return id, nil
}
