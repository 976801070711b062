// Package static authenticates against a fixed set of users from
// configuration and issues HS256 JWT access tokens. It is intended for local
// development and tests.
package static

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/gwlsn/docsauth/internal/auth"
)

const (
	defaultTokenTTL = time.Hour
	tokenIssuer     = "docsauth"
)

// Config configures the provider.
type Config struct {
	Users       map[string]string // email -> bcrypt or argon2 hash
	HashAlgo    string
	TokenSecret string
	TokenTTL    time.Duration
}

// Provider implements auth.Provider with local password hashes.
type Provider struct {
	users    map[string]string
	hashAlgo string
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// Claims are the claims of an issued access token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewProvider creates a static provider.
func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.Users) == 0 {
		return nil, errors.New("static auth requires at least one user")
	}
	if cfg.TokenSecret == "" {
		return nil, errors.New("static auth requires a non-empty token secret")
	}
	normalized := strings.ToLower(strings.TrimSpace(cfg.HashAlgo))
	if normalized == "" {
		normalized = "auto"
	}
	switch normalized {
	case "auto", "bcrypt", "argon2", "argon2id", "argon2i":
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", cfg.HashAlgo)
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	users := make(map[string]string, len(cfg.Users))
	for email, hash := range cfg.Users {
		if err := checkHash(normalized, hash); err != nil {
			return nil, fmt.Errorf("user %s: invalid password hash: %w", email, err)
		}
		users[strings.ToLower(strings.TrimSpace(email))] = hash
	}
	return &Provider{
		users:    users,
		hashAlgo: normalized,
		secret:   []byte(cfg.TokenSecret),
		tokenTTL: ttl,
		now:      time.Now,
	}, nil
}

// Name implements auth.Provider.
func (p *Provider) Name() string { return "static" }

// ValidateCredentials implements auth.Provider.
func (p *Provider) ValidateCredentials(creds auth.Credentials) error {
	return auth.CheckCredentialShape(creds)
}

// Authenticate checks the password hash and issues a signed access token.
func (p *Provider) Authenticate(_ context.Context, creds auth.Credentials) (*auth.Result, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	ok, err := p.verifyPassword(email, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, auth.NewAuthenticationError("Incorrect username or password.", nil)
	}

	sub := uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
	now := p.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sub,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	username, _, _ := strings.Cut(email, "@")
	return &auth.Result{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(p.tokenTTL.Seconds()),
		User: auth.User{
			Sub:           sub,
			Username:      username,
			Email:         email,
			EmailVerified: true,
		},
	}, nil
}

// VerifyToken parses and validates an access token issued by this provider.
func (p *Provider) VerifyToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *Provider) verifyPassword(email, password string) (bool, error) {
	hash, ok := p.users[email]
	if !ok {
		return false, nil
	}
	algo := p.hashAlgo
	if algo == "auto" {
		algo = detectHashAlgo(hash)
	}
	switch algo {
	case "bcrypt":
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			return false, nil
		}
		return true, nil
	case "argon2", "argon2id", "argon2i":
		return verifyArgon2(password, hash)
	default:
		return false, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// checkHash makes sure hash can be verified with algo.
func checkHash(algo, hash string) error {
	if algo == "auto" {
		algo = detectHashAlgo(hash)
	}
	if algo == "bcrypt" {
		_, err := bcrypt.Cost([]byte(hash))
		return err
	}
	_, _, _, _, err := decodeArgon2Hash(hash)
	return err
}

func detectHashAlgo(hash string) string {
	switch {
	case strings.HasPrefix(hash, "$2a$"),
		strings.HasPrefix(hash, "$2b$"),
		strings.HasPrefix(hash, "$2y$"):
		return "bcrypt"
	case strings.HasPrefix(hash, "$argon2id$"):
		return "argon2id"
	case strings.HasPrefix(hash, "$argon2i$"):
		return "argon2i"
	}
	return "bcrypt"
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	keyLength   uint32
}

func verifyArgon2(password, encodedHash string) (bool, error) {
	variant, params, salt, hash, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}
	var derived []byte
	switch variant {
	case "argon2id":
		derived = argon2.IDKey([]byte(password), salt, params.iterations, params.memory, params.parallelism, params.keyLength)
	case "argon2i":
		derived = argon2.Key([]byte(password), salt, params.iterations, params.memory, params.parallelism, params.keyLength)
	default:
		return false, errors.New("unsupported argon2 variant")
	}
	return subtle.ConstantTimeCompare(hash, derived) == 1, nil
}

// decodeArgon2Hash parses the PHC string format
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>.
func decodeArgon2Hash(encodedHash string) (string, argon2Params, []byte, []byte, error) {
	var params argon2Params
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return "", params, nil, nil, errors.New("invalid argon2 hash format")
	}
	if parts[1] != "argon2id" && parts[1] != "argon2i" {
		return "", params, nil, nil, errors.New("unsupported argon2 variant")
	}
	if !strings.HasPrefix(parts[2], "v=") {
		return "", params, nil, nil, errors.New("invalid argon2 version")
	}
	for _, part := range strings.Split(parts[3], ",") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return "", params, nil, nil, errors.New("invalid argon2 params")
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return "", params, nil, nil, errors.New("invalid argon2 params")
		}
		switch key {
		case "m":
			params.memory = uint32(n)
		case "t":
			params.iterations = uint32(n)
		case "p":
			params.parallelism = uint8(n)
		}
	}
	if params.memory == 0 || params.iterations == 0 || params.parallelism == 0 {
		return "", params, nil, nil, errors.New("invalid argon2 params")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return "", params, nil, nil, errors.New("invalid argon2 salt")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return "", params, nil, nil, errors.New("invalid argon2 hash")
	}
	params.keyLength = uint32(len(hash))
	return parts[1], params, salt, hash, nil
}
