package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

// CSRFKey is the session key holding the CSRF token.
const CSRFKey = "csrf_token"

// CSRFHeader is the request header the login panel sends the token in.
const CSRFHeader = "X-CSRFToken"

// EnsureCSRFToken returns the session's CSRF token, creating one if needed.
func EnsureCSRFToken(s *Session) (string, error) {
	if token, ok := s.Get(CSRFKey); ok && token != "" {
		return token, nil
	}
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(random)
	s.Set(CSRFKey, token)
	return token, nil
}

// VerifyCSRFToken reports whether token matches the session's CSRF token.
func VerifyCSRFToken(s *Session, token string) bool {
	expected, ok := s.Get(CSRFKey)
	if !ok || expected == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}
