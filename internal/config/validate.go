package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ValidPanelPositions lists the corners the login panel can be pinned to.
var ValidPanelPositions = []string{"top-left", "top-right", "bottom-left", "bottom-right"}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	switch c.Provider.Type {
	case "cognito":
		if c.Provider.Cognito.ClientID == "" {
			errs = append(errs, errors.New("provider.cognito.client_id is required"))
		}
		if c.Provider.Cognito.Region == "" {
			errs = append(errs, errors.New("provider.cognito.region is required"))
		}
	case "oidc":
		if c.Provider.OIDC.Issuer == "" {
			errs = append(errs, errors.New("provider.oidc.issuer is required"))
		}
		if c.Provider.OIDC.ClientID == "" {
			errs = append(errs, errors.New("provider.oidc.client_id is required"))
		}
		if len(c.Provider.OIDC.AllowedGroups) > 0 && c.Provider.OIDC.GroupClaim == "" {
			errs = append(errs, errors.New("provider.oidc.group_claim is required when allowed_groups is set"))
		}
	case "static":
		if len(c.Provider.Static.Users) == 0 {
			errs = append(errs, errors.New("provider.static.users must contain at least one user"))
		}
		if c.Provider.Static.TokenSecret == "" {
			errs = append(errs, errors.New("provider.static.token_secret is required"))
		}
	case "noop":
	default:
		errs = append(errs, fmt.Errorf("provider.type must be \"cognito\", \"oidc\", \"static\" or \"noop\", got %q", c.Provider.Type))
	}

	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.Redis.URL == "" && c.Session.Redis.URLFile == "" {
			errs = append(errs, errors.New("session.redis.url is required when session.backend is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend must be \"memory\" or \"redis\", got %q", c.Session.Backend))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be > 0, got %v", c.Session.TTL))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}

	if !slices.Contains(ValidPanelPositions, c.Panel.Position) {
		errs = append(errs, fmt.Errorf("panel.position must be one of %s, got %q", strings.Join(ValidPanelPositions, ", "), c.Panel.Position))
	}
	switch c.Panel.TokenStorage {
	case "localStorage", "sessionStorage":
	default:
		errs = append(errs, fmt.Errorf("panel.token_storage must be \"localStorage\" or \"sessionStorage\", got %q", c.Panel.TokenStorage))
	}

	if len(c.SupportedLanguages) == 0 {
		errs = append(errs, errors.New("supported_languages must not be empty"))
	} else if !slices.Contains(c.SupportedLanguages, c.DefaultLanguage) {
		errs = append(errs, fmt.Errorf("default_language %q must be listed in supported_languages", c.DefaultLanguage))
	}

	for name, path := range map[string]string{
		"endpoints.login":  c.Endpoints.Login,
		"endpoints.logout": c.Endpoints.Logout,
		"endpoints.me":     c.Endpoints.Me,
		"endpoints.docs":   c.Endpoints.Docs,
		"endpoints.schema": c.Endpoints.Schema,
	} {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, fmt.Errorf("%s must start with \"/\", got %q", name, path))
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must start with \"/\", got %q", c.Metrics.Path))
	}

	return errors.Join(errs...)
}
