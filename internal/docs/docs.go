// Package docs serves the Swagger UI page with the login panel injected,
// the panel script, and the OpenAPI schema.
package docs

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gwlsn/docsauth/internal/config"
	"github.com/gwlsn/docsauth/internal/logger"
	"github.com/gwlsn/docsauth/internal/session"
)

//go:embed assets/*
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "assets/swagger.html.tmpl"))

// PanelSettings is the panel section of the page configuration.
type PanelSettings struct {
	Position       string             `json:"PANEL_POSITION"`
	Style          string             `json:"PANEL_STYLE"`
	AutoAuthorize  bool               `json:"AUTO_AUTHORIZE"`
	ShowCopyButton bool               `json:"SHOW_COPY_BUTTON"`
	ShowUserInfo   bool               `json:"SHOW_USER_INFO"`
	TokenStorage   string             `json:"TOKEN_STORAGE"`
	Theme          config.ThemeConfig `json:"THEME"`
}

// PageConfig is handed to the panel script as JSON.
type PageConfig struct {
	LoginURL  string        `json:"loginUrl"`
	LogoutURL string        `json:"logoutUrl"`
	CSRFToken string        `json:"csrfToken"`
	Language  string        `json:"language"`
	Settings  PanelSettings `json:"settings"`
}

type pageData struct {
	Title     string
	SchemaURL string
	ScriptURL string
	SwaggerUI map[string]any
	Config    PageConfig
}

// Handler renders the documentation page.
type Handler struct {
	cfg       *config.Config
	sessions  *session.Manager
	languages *Negotiator
}

// NewHandler creates the page handler.
func NewHandler(cfg *config.Config, sessions *session.Manager) *Handler {
	return &Handler{
		cfg:       cfg,
		sessions:  sessions,
		languages: NewNegotiator(cfg.SupportedLanguages, cfg.DefaultLanguage),
	}
}

// ServeHTTP renders the Swagger UI page for GET requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var csrfToken string
	if h.cfg.CSRFProtection && h.sessions != nil {
		sess, err := h.sessions.Load(r)
		if err != nil {
			h.fail(w, "load session", err)
			return
		}
		if csrfToken, err = session.EnsureCSRFToken(sess); err != nil {
			h.fail(w, "create csrf token", err)
			return
		}
		if err := h.sessions.Save(w, r, sess); err != nil {
			h.fail(w, "save session", err)
			return
		}
	}

	panel := h.cfg.Panel
	data := pageData{
		Title:     h.cfg.Docs.Title,
		SchemaURL: h.schemaURL(),
		ScriptURL: ScriptPath(h.cfg.Endpoints.Docs),
		SwaggerUI: h.cfg.Docs.SwaggerUI,
		Config: PageConfig{
			LoginURL:  h.cfg.Endpoints.Login,
			LogoutURL: h.cfg.Endpoints.Logout,
			CSRFToken: csrfToken,
			Language:  h.languages.Resolve(r),
			Settings: PanelSettings{
				Position:       panel.Position,
				Style:          panel.Style,
				AutoAuthorize:  panel.AutoAuthorize,
				ShowCopyButton: panel.ShowCopyButton,
				ShowUserInfo:   panel.ShowUserInfo,
				TokenStorage:   panel.TokenStorage,
				Theme:          panel.Theme,
			},
		},
	}
	if data.SwaggerUI == nil {
		data.SwaggerUI = map[string]any{}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.fail(w, "render page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *Handler) schemaURL() string {
	if h.cfg.Docs.SchemaURL != "" {
		return h.cfg.Docs.SchemaURL
	}
	return h.cfg.Endpoints.Schema
}

func (h *Handler) fail(w http.ResponseWriter, stage string, err error) {
	logger.Error("Failed to render docs page", "stage", stage, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// ScriptPath returns where the panel script is served under docsPath.
func ScriptPath(docsPath string) string {
	return strings.TrimSuffix(docsPath, "/") + "/static/auth_panel.js"
}

// ScriptHandler serves the embedded panel script.
func ScriptHandler() http.Handler {
	body, err := fs.ReadFile(assets, "assets/auth_panel.js")
	if err != nil {
		panic(fmt.Sprintf("embedded auth_panel.js missing: %v", err))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(body)
	})
}

// SchemaHandler serves an OpenAPI document loaded once from disk.
type SchemaHandler struct {
	body        []byte
	contentType string
}

// NewSchemaHandler reads and checks the document at path. Both YAML and
// JSON documents are accepted and served as-is.
func NewSchemaHandler(path string) (*SchemaHandler, error) {
	if path == "" {
		return nil, errors.New("no schema file configured")
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if _, ok := doc["openapi"]; !ok {
		if _, ok := doc["swagger"]; !ok {
			return nil, fmt.Errorf("schema %s has no openapi or swagger version field", path)
		}
	}

	contentType := "application/yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		contentType = "application/json"
	}
	return &SchemaHandler{body: body, contentType: contentType}, nil
}

func (s *SchemaHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", s.contentType)
	w.Write(s.body)
}
