// Package oidc authenticates users against a generic OpenID Connect provider
// with the resource owner password grant.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/gwlsn/docsauth/internal/auth"
)

// Config configures the provider.
type Config struct {
	Issuer        string
	ClientID      string
	ClientSecret  string
	Scopes        []string
	GroupClaim    string
	AllowedGroups []string
}

// Provider implements auth.Provider with the OAuth2 password grant and
// verified ID tokens.
type Provider struct {
	oauth2Config  *oauth2.Config
	verifier      *oidc.IDTokenVerifier
	groupClaim    string
	allowedGroups map[string]struct{}
}

// NewProvider discovers the issuer and builds the provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("oidc auth requires issuer")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("oidc auth requires client_id")
	}
	if len(cfg.AllowedGroups) > 0 && cfg.GroupClaim == "" {
		return nil, errors.New("oidc auth requires group_claim when allowed_groups is set")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       normalizeScopes(cfg.Scopes),
		Endpoint:     provider.Endpoint(),
	}
	return newProvider(oauthConfig, provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}), cfg.GroupClaim, cfg.AllowedGroups), nil
}

func newProvider(oauthConfig *oauth2.Config, verifier *oidc.IDTokenVerifier, groupClaim string, allowedGroups []string) *Provider {
	allowed := make(map[string]struct{}, len(allowedGroups))
	for _, group := range allowedGroups {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		allowed[group] = struct{}{}
	}
	return &Provider{
		oauth2Config:  oauthConfig,
		verifier:      verifier,
		groupClaim:    groupClaim,
		allowedGroups: allowed,
	}
}

// Name implements auth.Provider.
func (p *Provider) Name() string { return "oidc" }

// ValidateCredentials implements auth.Provider.
func (p *Provider) ValidateCredentials(creds auth.Credentials) error {
	return auth.CheckCredentialShape(creds)
}

// Authenticate exchanges the credentials for tokens and verifies the ID token.
func (p *Provider) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Result, error) {
	token, err := p.oauth2Config.PasswordCredentialsToken(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, classify(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response has no id_token")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}
	if err := p.validateGroups(claims); err != nil {
		return nil, auth.NewAuthenticationError(err.Error(), err)
	}

	user := auth.User{Sub: idToken.Subject}
	user.Email, _ = claims["email"].(string)
	user.Name, _ = claims["name"].(string)
	user.EmailVerified, _ = claims["email_verified"].(bool)
	user.Username, _ = claims["preferred_username"].(string)
	if user.Username == "" {
		user.Username = creds.Email
	}
	if user.Email == "" {
		user.Email = creds.Email
	}

	result := &auth.Result{
		AccessToken: token.AccessToken,
		IDToken:     rawIDToken,
		TokenType:   token.Type(),
		User:        user,
	}
	if !token.Expiry.IsZero() {
		result.ExpiresIn = int(time.Until(token.Expiry).Round(time.Second).Seconds())
	}
	return result, nil
}

// classify maps token endpoint rejections to *auth.AuthenticationError.
func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return fmt.Errorf("token request: %w", err)
	}
	status := 0
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}
	if retrieveErr.ErrorCode == "invalid_grant" || status == http.StatusUnauthorized {
		detail := retrieveErr.ErrorDescription
		if detail == "" {
			detail = "Incorrect username or password."
		}
		return auth.NewAuthenticationError(detail, err)
	}
	return fmt.Errorf("token request: %w", err)
}

func (p *Provider) validateGroups(claims map[string]interface{}) error {
	if len(p.allowedGroups) == 0 {
		return nil
	}
	raw, ok := claims[p.groupClaim]
	if !ok {
		return fmt.Errorf("missing group claim: %s", p.groupClaim)
	}
	groups, err := extractGroups(raw)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if _, ok := p.allowedGroups[group]; ok {
			return nil
		}
	}
	return errors.New("user is not in an allowed group")
}

func extractGroups(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		groups := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, errors.New("group claim contains non-string value")
			}
			if str == "" {
				continue
			}
			groups = append(groups, str)
		}
		return groups, nil
	default:
		return nil, errors.New("group claim has unsupported type")
	}
}

func normalizeScopes(scopes []string) []string {
	hasOpenID := false
	normalized := make([]string, 0, len(scopes)+1)
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if scope == oidc.ScopeOpenID {
			hasOpenID = true
		}
		normalized = append(normalized, scope)
	}
	if len(normalized) == 0 {
		return []string{oidc.ScopeOpenID, "profile", "email"}
	}
	if !hasOpenID {
		normalized = append([]string{oidc.ScopeOpenID}, normalized...)
	}
	return normalized
}
