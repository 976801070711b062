// Command docsauth serves API documentation with a login panel backed by
// a pluggable identity provider.
//
// Configuration is read from a YAML file (-config, DOCSAUTH_CONFIG or
// ./docsauth.yaml) and DOCSAUTH_* environment variables.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gwlsn/docsauth/internal/auth"
	"github.com/gwlsn/docsauth/internal/auth/cognito"
	"github.com/gwlsn/docsauth/internal/auth/oidc"
	"github.com/gwlsn/docsauth/internal/auth/static"
	"github.com/gwlsn/docsauth/internal/config"
	"github.com/gwlsn/docsauth/internal/docs"
	"github.com/gwlsn/docsauth/internal/hooks"
	"github.com/gwlsn/docsauth/internal/logger"
	"github.com/gwlsn/docsauth/internal/server"
	"github.com/gwlsn/docsauth/internal/session"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()
	logger.Init("info", "text")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, closeStore, err := newSessionManager(ctx, cfg.Session)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer closeStore()

	provider, err := newRegistry(cfg.Provider).Build(ctx, cfg.Provider.Type)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	broker, err := auth.NewBroker(provider, newDispatcher(cfg.Hooks))
	if err != nil {
		return fmt.Errorf("creating broker: %w", err)
	}

	var schema http.Handler
	if cfg.Docs.SchemaFile != "" {
		h, err := docs.NewSchemaHandler(cfg.Docs.SchemaFile)
		if err != nil {
			return fmt.Errorf("loading schema: %w", err)
		}
		schema = h
	}

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Sessions: sessions,
		Schema:   schema,
		Auth: &auth.Handlers{
			Broker:      broker,
			Sessions:    sessions,
			CSRF:        cfg.CSRFProtection,
			MaxBodySize: cfg.Server.MaxBodySize,
		},
	})
	srv := server.New(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", cfg.Server.Addr,
			"provider", provider.Name(),
			"session_backend", cfg.Session.Backend,
			"docs", cfg.Endpoints.Docs,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newSessionManager(ctx context.Context, cfg config.SessionConfig) (*session.Manager, func(), error) {
	secret := cfg.Secret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("session.secret not set, using a random key; sessions will not survive a restart")
	}

	var (
		store   session.Store
		closeFn = func() {}
	)
	switch cfg.Backend {
	case "redis":
		client, err := session.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		store = session.NewRedisStore(client, session.WithKeyPrefix(cfg.Redis.KeyPrefix))
		closeFn = func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing redis client", "error", err)
			}
		}
		logger.Info("session store ready", "backend", "redis", "prefix", cfg.Redis.KeyPrefix)
	default:
		mem := session.NewMemoryStore()
		go mem.RunSweeper(ctx, sweepInterval)
		store = mem
		logger.Info("session store ready", "backend", "memory")
	}

	m, err := session.NewManager(store, secret,
		session.WithCookieName(cfg.CookieName),
		session.WithTTL(cfg.TTL),
	)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return m, closeFn, nil
}

func newRegistry(cfg config.ProviderConfig) *auth.Registry {
	reg := auth.NewRegistry()
	reg.Register("cognito", func(ctx context.Context) (auth.Provider, error) {
		return cognito.NewProvider(ctx, cognito.Config{
			Region:       cfg.Cognito.Region,
			ClientID:     cfg.Cognito.ClientID,
			ClientSecret: cfg.Cognito.ClientSecret,
			UserPoolID:   cfg.Cognito.UserPoolID,
			Endpoint:     cfg.Cognito.Endpoint,
		})
	})
	reg.Register("oidc", func(ctx context.Context) (auth.Provider, error) {
		return oidc.NewProvider(ctx, oidc.Config{
			Issuer:        cfg.OIDC.Issuer,
			ClientID:      cfg.OIDC.ClientID,
			ClientSecret:  cfg.OIDC.ClientSecret,
			Scopes:        cfg.OIDC.Scopes,
			GroupClaim:    cfg.OIDC.GroupClaim,
			AllowedGroups: cfg.OIDC.AllowedGroups,
		})
	})
	reg.Register("static", func(context.Context) (auth.Provider, error) {
		return static.NewProvider(static.Config{
			Users:       cfg.Static.Users,
			HashAlgo:    cfg.Static.HashAlgo,
			TokenSecret: cfg.Static.TokenSecret,
			TokenTTL:    cfg.Static.TokenTTL,
		})
	})
	reg.Register("noop", func(context.Context) (auth.Provider, error) {
		logger.Warn("noop provider accepts any well-formed credentials; do not use in production")
		return auth.NewNoopProvider(), nil
	})
	return reg
}

func newDispatcher(cfg config.HooksConfig) *hooks.Dispatcher {
	catalog := hooks.NewCatalog()
	hooks.RegisterBuiltins(catalog)

	webhook := hooks.NewWebhookClient(cfg.Webhook.URL, cfg.Webhook.Timeout)
	if webhook.IsConfigured() {
		catalog.Register(hooks.Webhook, webhook.Hook())
	}

	d := hooks.NewDispatcher(catalog, hooks.Bindings{
		hooks.PreLogin:   cfg.PreLogin,
		hooks.PostLogin:  cfg.PostLogin,
		hooks.PreLogout:  cfg.PreLogout,
		hooks.PostLogout: cfg.PostLogout,
	})
	if err := d.Validate(); err != nil {
		logger.Warn("hook bindings reference unknown hooks", "error", err, "available", catalog.Names())
	}
	return d
}
