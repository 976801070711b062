// Package server assembles the HTTP routes and the http.Server.
package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gwlsn/docsauth/internal/auth"
	"github.com/gwlsn/docsauth/internal/config"
	"github.com/gwlsn/docsauth/internal/docs"
	"github.com/gwlsn/docsauth/internal/metrics"
	"github.com/gwlsn/docsauth/internal/session"
)

// Deps are the components the router mounts.
type Deps struct {
	Config   *config.Config
	Auth     *auth.Handlers
	Sessions *session.Manager
	// Schema serves the OpenAPI document; nil leaves the schema route unmounted.
	Schema http.Handler
}

// NewRouter builds the application router.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	ep := cfg.Endpoints

	r := chi.NewRouter()
	r.Use(middlewareStack()...)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})

	for _, path := range withAndWithoutSlash(ep.Login) {
		r.Post(path, d.Auth.Login)
	}
	for _, path := range withAndWithoutSlash(ep.Logout) {
		r.Post(path, d.Auth.Logout)
	}

	mw := auth.NewMiddleware(d.Sessions, nil)
	mw.LoginPage = ep.Docs
	r.Group(func(r chi.Router) {
		r.Use(mw.Wrap)
		r.Get(ep.Me, d.Auth.Me)
	})

	page := docs.NewHandler(cfg, d.Sessions)
	r.Get(ep.Docs, page.ServeHTTP)
	if trimmed := strings.TrimSuffix(ep.Docs, "/"); trimmed != "" && trimmed != ep.Docs {
		r.Get(trimmed, func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, ep.Docs, http.StatusMovedPermanently)
		})
	}
	r.Get(docs.ScriptPath(ep.Docs), docs.ScriptHandler().ServeHTTP)

	if d.Schema != nil {
		r.Get(ep.Schema, d.Schema.ServeHTTP)
	}
	if cfg.Metrics.Enabled {
		r.Get(cfg.Metrics.Path, metrics.Handler().ServeHTTP)
	}

	if ep.Docs != "/" {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, ep.Docs, http.StatusFound)
		})
	}
	return r
}

// middlewareStack is applied to every route, outermost first. Recover sits
// innermost so recovered panics are still logged and counted as 500s.
func middlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{RequestID, Logging, metrics.Middleware, Recover}
}

// New creates the http.Server for handler.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * cfg.WriteTimeout,
	}
}

func withAndWithoutSlash(path string) []string {
	trimmed := strings.TrimSuffix(path, "/")
	if trimmed == "" || trimmed == path {
		return []string{path}
	}
	return []string{path, trimmed}
}
