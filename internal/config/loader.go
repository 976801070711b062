package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, an optional YAML file,
// DOCSAUTH_* environment variables and _file secret references, then
// validates the result.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the explicit path, DOCSAUTH_CONFIG, or the
// first existing well-known location. Empty when nothing is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("DOCSAUTH_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"docsauth.yaml",
		"/etc/docsauth/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile parses a YAML file into cfg. Fields absent from the file keep
// their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("DOCSAUTH_ADDR", &cfg.Server.Addr)
	setString("DOCSAUTH_LOG_LEVEL", &cfg.Log.Level)
	setString("DOCSAUTH_LOG_FORMAT", &cfg.Log.Format)

	setString("DOCSAUTH_PROVIDER", &cfg.Provider.Type)
	setString("DOCSAUTH_COGNITO_REGION", &cfg.Provider.Cognito.Region)
	setString("DOCSAUTH_COGNITO_CLIENT_ID", &cfg.Provider.Cognito.ClientID)
	setString("DOCSAUTH_COGNITO_CLIENT_SECRET", &cfg.Provider.Cognito.ClientSecret)
	setString("DOCSAUTH_COGNITO_USER_POOL_ID", &cfg.Provider.Cognito.UserPoolID)
	setString("DOCSAUTH_COGNITO_ENDPOINT", &cfg.Provider.Cognito.Endpoint)
	setString("DOCSAUTH_OIDC_ISSUER", &cfg.Provider.OIDC.Issuer)
	setString("DOCSAUTH_OIDC_CLIENT_ID", &cfg.Provider.OIDC.ClientID)
	setString("DOCSAUTH_OIDC_CLIENT_SECRET", &cfg.Provider.OIDC.ClientSecret)

	setString("DOCSAUTH_SESSION_BACKEND", &cfg.Session.Backend)
	setString("DOCSAUTH_SESSION_SECRET", &cfg.Session.Secret)
	setString("DOCSAUTH_REDIS_URL", &cfg.Session.Redis.URL)

	setString("DOCSAUTH_DEFAULT_LANGUAGE", &cfg.DefaultLanguage)
	if v := os.Getenv("DOCSAUTH_SUPPORTED_LANGUAGES"); v != "" {
		cfg.SupportedLanguages = splitList(v)
	}
	setBool("DOCSAUTH_CSRF_PROTECTION", &cfg.CSRFProtection)
	setString("DOCSAUTH_TOKEN_STORAGE", &cfg.Panel.TokenStorage)

	setString("DOCSAUTH_HOOK_PRE_LOGIN", &cfg.Hooks.PreLogin)
	setString("DOCSAUTH_HOOK_POST_LOGIN", &cfg.Hooks.PostLogin)
	setString("DOCSAUTH_HOOK_PRE_LOGOUT", &cfg.Hooks.PreLogout)
	setString("DOCSAUTH_HOOK_POST_LOGOUT", &cfg.Hooks.PostLogout)
	setString("DOCSAUTH_WEBHOOK_URL", &cfg.Hooks.Webhook.URL)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveFileReferences fills empty secret fields from their _file
// counterparts. Whitespace around the file content is trimmed.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"provider.cognito.client_secret_file", cfg.Provider.Cognito.ClientSecretFile, &cfg.Provider.Cognito.ClientSecret},
		{"provider.oidc.client_secret_file", cfg.Provider.OIDC.ClientSecretFile, &cfg.Provider.OIDC.ClientSecret},
		{"provider.static.token_secret_file", cfg.Provider.Static.TokenSecretFile, &cfg.Provider.Static.TokenSecret},
		{"session.secret_file", cfg.Session.SecretFile, &cfg.Session.Secret},
		{"session.redis.url_file", cfg.Session.Redis.URLFile, &cfg.Session.Redis.URL},
	}
	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
