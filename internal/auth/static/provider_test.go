package static

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/gwlsn/docsauth/internal/auth"
)

func bcryptHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func argon2idHash(password string) string {
	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte(password), salt, 1, 8*1024, 1, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, 8*1024, 1, 1,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		Users: map[string]string{
			"Alice@Example.com": bcryptHash(t, "wonderland"),
			"bob@example.com":   argon2idHash("builder"),
		},
		TokenSecret: "token-secret",
		TokenTTL:    10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestNewProviderValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no users", Config{TokenSecret: "s"}},
		{"no secret", Config{Users: map[string]string{"a@b.c": "x"}}},
		{"bad algo", Config{Users: map[string]string{"a@b.c": "x"}, TokenSecret: "s", HashAlgo: "md5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	p := newTestProvider(t)

	tests := []struct {
		name     string
		creds    auth.Credentials
		wantAuth bool
	}{
		{"bcrypt user, case-insensitive email", auth.Credentials{Email: "alice@example.com", Password: "wonderland"}, true},
		{"argon2id user", auth.Credentials{Email: "bob@example.com", Password: "builder"}, true},
		{"wrong password", auth.Credentials{Email: "alice@example.com", Password: "nope"}, false},
		{"unknown user", auth.Credentials{Email: "eve@example.com", Password: "wonderland"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Authenticate(context.Background(), tt.creds)
			if !tt.wantAuth {
				var authErr *auth.AuthenticationError
				if !errors.As(err, &authErr) {
					t.Fatalf("expected AuthenticationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if res.ExpiresIn != 600 || res.TokenType != "Bearer" {
				t.Errorf("result = %+v", res)
			}
			claims, err := p.VerifyToken(res.AccessToken)
			if err != nil {
				t.Fatalf("VerifyToken() error = %v", err)
			}
			if claims.Subject != res.User.Sub || claims.Email != res.User.Email {
				t.Errorf("claims = %+v, user = %+v", claims, res.User)
			}
		})
	}
}

func TestVerifyTokenRejects(t *testing.T) {
	p := newTestProvider(t)
	res, err := p.Authenticate(context.Background(), auth.Credentials{Email: "alice@example.com", Password: "wonderland"})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	other, err := NewProvider(Config{Users: map[string]string{"x@y.z": bcryptHash(t, "x")}, TokenSecret: "different"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if _, err := other.VerifyToken(res.AccessToken); err == nil {
		t.Error("token signed with another secret must not verify")
	}

	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := p.VerifyToken(res.AccessToken); err == nil {
		t.Error("expired token must not verify")
	}
}

func TestDetectHashAlgo(t *testing.T) {
	tests := map[string]string{
		"$2a$10$abc":          "bcrypt",
		"$2y$10$abc":          "bcrypt",
		"$argon2id$v=19$rest": "argon2id",
		"$argon2i$v=19$rest":  "argon2i",
		"plain":               "bcrypt",
	}
	for hash, want := range tests {
		if got := detectHashAlgo(hash); got != want {
			t.Errorf("detectHashAlgo(%q) = %q, want %q", hash, got, want)
		}
	}
}

func TestDecodeArgon2HashErrors(t *testing.T) {
	for _, hash := range []string{
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2d$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$19$m=8,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8,t=1,p=1$c2FsdA",
		"$argon2id$v=19$m=16,t=1,p=1$c2FsdHNhbHQ$",
		"$argon2id$v=19$m=16,t=1,p=1$$aGFzaA",
	} {
		if _, _, _, _, err := decodeArgon2Hash(hash); err == nil {
			t.Errorf("decodeArgon2Hash(%q) expected error", hash)
		}
	}
}

func TestNewProviderRejectsUnusableHashes(t *testing.T) {
	tests := []struct {
		name string
		algo string
		hash string
	}{
		{"argon2 empty digest", "auto", "$argon2id$v=19$m=16,t=1,p=1$c2FsdHNhbHQ$"},
		{"argon2 empty salt", "auto", "$argon2id$v=19$m=16,t=1,p=1$$aGFzaA"},
		{"argon2 truncated", "argon2id", "$argon2id$v=19$m=16,t=1,p=1"},
		{"not a bcrypt hash", "auto", "plaintext-password"},
		{"bcrypt hash with argon2 algo", "argon2id", "$2a$10$abcdefghijklmnopqrstuu5J5R2wYQyV8ZgH6rX8m0nK1P3o9W2y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(Config{
				Users:       map[string]string{"a@b.com": tt.hash},
				HashAlgo:    tt.algo,
				TokenSecret: "s",
			})
			if err == nil {
				t.Fatal("expected NewProvider to reject the hash")
			}
		})
	}
}
