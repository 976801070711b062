// Package config provides configuration for the docsauth server.
//
// Configuration is loaded in layers:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DOCSAUTH_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for docsauth.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Provider  ProviderConfig  `yaml:"provider"`
	Session   SessionConfig   `yaml:"session"`
	Panel     PanelConfig     `yaml:"panel"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Docs      DocsConfig      `yaml:"docs"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	DefaultLanguage    string   `yaml:"default_language"`    // default: "en"
	SupportedLanguages []string `yaml:"supported_languages"` // default: ko, en, ja
	CSRFProtection     bool     `yaml:"csrf_protection"`     // default: true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`             // default: ":8000"
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 64KiB
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ProviderConfig selects and configures the identity provider.
type ProviderConfig struct {
	Type    string        `yaml:"type"` // cognito, oidc, static, noop
	Cognito CognitoConfig `yaml:"cognito"`
	OIDC    OIDCConfig    `yaml:"oidc"`
	Static  StaticConfig  `yaml:"static"`
}

// CognitoConfig holds AWS Cognito user pool client settings.
type CognitoConfig struct {
	Region           string `yaml:"region"`
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`      // only for confidential app clients
	ClientSecretFile string `yaml:"client_secret_file"` // _file variant for client_secret
	UserPoolID       string `yaml:"user_pool_id"`       // enables ID token verification
	Endpoint         string `yaml:"endpoint"`           // override, e.g. cognito-local
}

// OIDCConfig holds settings for a generic OIDC provider using the password grant.
type OIDCConfig struct {
	Issuer           string   `yaml:"issuer"`
	ClientID         string   `yaml:"client_id"`
	ClientSecret     string   `yaml:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file"`
	Scopes           []string `yaml:"scopes"`
	GroupClaim       string   `yaml:"group_claim"`
	AllowedGroups    []string `yaml:"allowed_groups"`
}

// StaticConfig holds local development users.
type StaticConfig struct {
	Users           map[string]string `yaml:"users"`     // email -> bcrypt/argon2 hash
	HashAlgo        string            `yaml:"hash_algo"` // auto, bcrypt, argon2id, argon2i
	TokenSecret     string            `yaml:"token_secret"`
	TokenSecretFile string            `yaml:"token_secret_file"`
	TokenTTL        time.Duration     `yaml:"token_ttl"` // default: 1h
}

// SessionConfig holds server-side session settings.
type SessionConfig struct {
	Backend    string        `yaml:"backend"` // memory or redis
	Secret     string        `yaml:"secret"`  // cookie signing key
	SecretFile string        `yaml:"secret_file"`
	CookieName string        `yaml:"cookie_name"` // default: docsauth_session
	TTL        time.Duration `yaml:"ttl"`         // default: 24h
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the redis session backend settings.
type RedisConfig struct {
	URL       string `yaml:"url"`
	URLFile   string `yaml:"url_file"`
	KeyPrefix string `yaml:"key_prefix"` // default: docsauth:session:
}

// PanelConfig holds the login panel display options.
type PanelConfig struct {
	Position       string      `yaml:"position"` // top-left, top-right, bottom-left, bottom-right
	Style          string      `yaml:"style"`    // floating or embedded
	AutoAuthorize  bool        `yaml:"auto_authorize"`
	ShowCopyButton bool        `yaml:"show_copy_button"`
	ShowUserInfo   bool        `yaml:"show_user_info"`
	TokenStorage   string      `yaml:"token_storage"` // localStorage or sessionStorage
	Theme          ThemeConfig `yaml:"theme"`
}

// ThemeConfig holds the panel colors and typography.
type ThemeConfig struct {
	PrimaryColor    string `yaml:"primary_color" json:"PRIMARY_COLOR"`
	SuccessColor    string `yaml:"success_color" json:"SUCCESS_COLOR"`
	ErrorColor      string `yaml:"error_color" json:"ERROR_COLOR"`
	BackgroundColor string `yaml:"background_color" json:"BACKGROUND_COLOR"`
	BorderRadius    string `yaml:"border_radius" json:"BORDER_RADIUS"`
	Shadow          string `yaml:"shadow" json:"SHADOW"`
	FontFamily      string `yaml:"font_family" json:"FONT_FAMILY"`
}

// EndpointsConfig holds the mount paths.
type EndpointsConfig struct {
	Login  string `yaml:"login"`  // default: /auth/login/
	Logout string `yaml:"logout"` // default: /auth/logout/
	Me     string `yaml:"me"`     // default: /auth/me
	Docs   string `yaml:"docs"`   // default: /docs/
	Schema string `yaml:"schema"` // default: /schema
}

// DocsConfig holds documentation page settings.
type DocsConfig struct {
	Title      string         `yaml:"title"`
	SchemaFile string         `yaml:"schema_file"` // OpenAPI document served at endpoints.schema
	SchemaURL  string         `yaml:"schema_url"`  // external schema, overrides schema_file
	SwaggerUI  map[string]any `yaml:"swagger_ui"`  // passed through to SwaggerUIBundle
}

// HooksConfig binds login/logout events to named hook functions.
type HooksConfig struct {
	PreLogin   string        `yaml:"pre_login"`
	PostLogin  string        `yaml:"post_login"`
	PreLogout  string        `yaml:"pre_logout"`
	PostLogout string        `yaml:"post_logout"`
	Webhook    WebhookConfig `yaml:"webhook"`
}

// WebhookConfig configures the built-in webhook hook.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"` // default: 5s
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: /metrics
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     64 << 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Provider: ProviderConfig{
			Type: "cognito",
			Cognito: CognitoConfig{
				Region: "us-east-1",
			},
			OIDC: OIDCConfig{
				Scopes: []string{"openid", "profile", "email"},
			},
			Static: StaticConfig{
				HashAlgo: "auto",
				TokenTTL: time.Hour,
			},
		},
		Session: SessionConfig{
			Backend:    "memory",
			CookieName: "docsauth_session",
			TTL:        24 * time.Hour,
			Redis: RedisConfig{
				KeyPrefix: "docsauth:session:",
			},
		},
		Panel: PanelConfig{
			Position:       "top-right",
			Style:          "floating",
			AutoAuthorize:  true,
			ShowCopyButton: true,
			ShowUserInfo:   true,
			TokenStorage:   "sessionStorage",
			Theme: ThemeConfig{
				PrimaryColor:    "#61affe",
				SuccessColor:    "#28a745",
				ErrorColor:      "#dc3545",
				BackgroundColor: "#ffffff",
				BorderRadius:    "8px",
				Shadow:          "0 2px 10px rgba(0,0,0,0.1)",
				FontFamily:      "-apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif",
			},
		},
		Endpoints: EndpointsConfig{
			Login:  "/auth/login/",
			Logout: "/auth/logout/",
			Me:     "/auth/me",
			Docs:   "/docs/",
			Schema: "/schema",
		},
		Docs: DocsConfig{
			Title: "API Documentation",
			SwaggerUI: map[string]any{
				"deepLinking":          true,
				"persistAuthorization": true,
			},
		},
		Hooks: HooksConfig{
			Webhook: WebhookConfig{
				Timeout: 5 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		DefaultLanguage:    "en",
		SupportedLanguages: []string{"ko", "en", "ja"},
		CSRFProtection:     true,
	}
}
