// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/internal/auth/postgres"
	"github.com/talentdesk/backoffice/internal/config"
	"github.com/talentdesk/backoffice/internal/httpapi"
	"github.com/talentdesk/backoffice/internal/logging"
	"github.com/talentdesk/backoffice/internal/mail"
	"github.com/talentdesk/backoffice/internal/observability"
	"github.com/talentdesk/backoffice/internal/store"
	"github.com/talentdesk/backoffice/internal/tokenstore"
	"github.com/talentdesk/backoffice/pkg/errutil"
)

const serviceName = "backoffice"

// readHeaderTimeout bounds slow clients before a handler runs.
const readHeaderTimeout = 10 * time.Second

// serveConfig holds flags local to the serve command.
type serveConfig struct {
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API together with the metrics and health server.
The process drains in-flight requests and queued mail on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, opts, nil)
		},
	}

	cmd.Flags().BoolVar(&opts.autoMigrate, "auto-migrate", false, "apply pending database migrations before serving")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, opts *serveConfig, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := readConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	logger.InfoContext(ctx, "starting backoffice",
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"log_format", cfg.Log.Format,
	)

	if opts != nil && opts.autoMigrate {
		if err := deps.Migrator(cfg.Database.URL); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
		}
		logger.InfoContext(ctx, "migrations applied")
	}

	poolCfg := store.PoolConfig{MaxConns: int32(min(cfg.Database.MaxConns, math.MaxInt32))} //nolint:gosec // clamped
	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, poolCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.InfoContext(ctx, "connected to database")

	tokens, err := deps.TokenStoreFactory(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := tokens.Close(); closeErr != nil {
			logger.Warn("failed to close token store", "error", closeErr)
		}
	}()

	obsServer := observability.NewServer(cfg.Server.MetricsAddr,
		observability.Check{Name: "postgres", Ping: pool.Ping},
		observability.Check{Name: "redis", Ping: tokens.Ping},
	)
	obsServer.SetLogger(logger)
	metrics := obsServer.Metrics()

	sender, err := deps.SenderFactory(cfg.Mail, logger)
	if err != nil {
		return err
	}
	dispatcher, err := mail.NewDispatcher(sender,
		mail.WithLogger(logger),
		mail.WithRetry(uint64(max(cfg.Mail.MaxRetries, 0)), cfg.Mail.Backoff), //nolint:gosec // non-negative
		mail.WithFailureHook(func(msg mail.Message, _ error) {
			metrics.RecordMailFailure(string(msg.Kind))
		}),
	)
	if err != nil {
		return err
	}

	handler, err := buildHandler(cfg, pool, tokens, dispatcher, metrics, logger)
	if err != nil {
		return err
	}

	listener, err := deps.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return oops.Code("SERVER_LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Server.MetricsAddr != "" {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			_ = listener.Close()
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	cmd.Println("Backoffice API started")
	logger.InfoContext(ctx, "backoffice ready", "addr", listener.Addr().String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr := <-errChan:
		runErr = oops.Code("SERVER_FAILED").Wrap(serveErr)
		errutil.LogError(logger, "api server failed", runErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if cfg.Server.MetricsAddr != "" {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("mail still queued at shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

// buildHandler wires the repositories and services behind the API router.
func buildHandler(
	cfg *config.Config,
	db postgres.DB,
	tokens tokenstore.Store,
	mailer auth.Mailer,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (http.Handler, error) {
	params, err := cfg.HashParams()
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewArgon2idHasher(params)
	if err != nil {
		return nil, err
	}
	codec, err := auth.NewCodec(cfg.Auth.SigningSecret, cfg.Auth.PreviousSigningSecrets)
	if err != nil {
		return nil, err
	}

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}

	links := cfg.PortalLinks()
	accounts := postgres.NewAccountRepository(db)

	catalog, err := auth.NewCatalog(postgres.NewCatalogRepository(db), links)
	if err != nil {
		return nil, err
	}
	captcha, err := auth.NewCaptchaService(tokens, cfg.Auth.CaptchaTTL)
	if err != nil {
		return nil, err
	}
	guard, err := auth.NewLoginGuard(tokens, cfg.LockoutPolicy())
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionManager(accounts, tokens, codec, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, err
	}
	resets, err := auth.NewPasswordResetService(auth.ResetDeps{
		Accounts: accounts,
		Tokens:   tokens,
		Codec:    codec,
		Hasher:   hasher,
		Mailer:   mailer,
		Catalog:  catalog,
		Links:    links,
		TTL:      cfg.Auth.ResetTTL,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	registration, err := auth.NewRegistrationService(auth.RegistrationDeps{
		Accounts: accounts,
		Tokens:   tokens,
		Codec:    codec,
		Hasher:   hasher,
		Captcha:  captcha,
		Mailer:   mailer,
		Links:    links,
		TTL:      cfg.Auth.ActivationTTL,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	login, err := auth.NewAuthService(auth.LoginDeps{
		Accounts: accounts,
		Hasher:   hasher,
		Sessions: sessions,
		Resets:   resets,
		Guard:    guard,
		Captcha:  captcha,
		Catalog:  catalog,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return httpapi.NewRouter(httpapi.Deps{
		Login:        login,
		Sessions:     sessions,
		Resets:       resets,
		Registration: registration,
		Captcha:      captcha,
		Catalog:      catalog,
		Accounts:     accounts,
		Metrics:      metrics,
		Logger:       logger,
		Cookie: httpapi.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
			TTL:    cfg.Auth.SessionTTL,
		},
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimit:      rate.Limit(cfg.Server.RateLimit),
		RateBurst:      cfg.Server.RateBurst,
		TrustedProxies: proxies,
	})
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
