package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jurnal-press/jurnal/internal/admin"
	"github.com/jurnal-press/jurnal/internal/app"
	"github.com/jurnal-press/jurnal/internal/audit"
	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/authz"
	"github.com/jurnal-press/jurnal/internal/observability"
	"github.com/jurnal-press/jurnal/internal/platform/cache"
	"github.com/jurnal-press/jurnal/internal/platform/db"
	"github.com/jurnal-press/jurnal/internal/rbac"
	"github.com/jurnal-press/jurnal/internal/roles"
	"github.com/jurnal-press/jurnal/internal/shared"
	"github.com/jurnal-press/jurnal/internal/tenants"
	"github.com/jurnal-press/jurnal/internal/users"
	"github.com/jurnal-press/jurnal/internal/view"
	"github.com/jurnal-press/jurnal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pools, err := db.Open(ctx, cfg.PGDSN, cfg.PGServiceDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pools.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	secure := cfg.IsProduction()
	sessionManager := shared.NewSessionManager(redisClient, "jurnal_session", cfg.SessionSecret, cfg.SessionTTL, secure)
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	refreshCookie := auth.RefreshCookie{Name: "jurnal_refresh", TTL: cfg.RefreshTokenTTL, Secure: secure}
	trustedCookie := auth.NewTrustedCookie("jurnal_trusted", cfg.TrustedCookieSecret, cfg.TrustedCookieTTL, secure)
	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	authService := auth.NewService(
		auth.NewRepository(pools.App),
		auth.NewRepository(pools.Service),
		tokenIssuer,
		auth.ServiceConfig{RefreshTTL: cfg.RefreshTokenTTL, RotationGrace: cfg.RefreshGrace},
	)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, auth.HandlerConfig{
		Refresh:     refreshCookie,
		Trusted:     trustedCookie,
		LandingPath: cfg.LandingPath,
	})

	verifier := auth.NewVerifier(authService, authService, trustedCookie, logger)
	lookup := rbac.NewSchemaLookup(pools.Service, logger)
	guard := authz.NewGuard(verifier, lookup, trustedCookie, metrics, logger, authz.GuardConfig{
		LoginPath:   cfg.LoginPath,
		LandingPath: cfg.LandingPath,
	})
	evidence := authz.NewEvidenceBuilder(authService, sessionManager, refreshCookie, trustedCookie)
	authzHandler := authz.NewHandler(guard, evidence, templates, csrfManager, authz.RecheckConfig{
		Attempts: cfg.AuthzRecheckAttempts,
		Step:     cfg.AuthzRecheckStep,
	}, logger)

	pageCache := cache.NewPageCache(redisClient, cfg.PageCacheTTL)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	var queue jobs.Enqueuer
	if cfg.RevalidateAsync {
		client := jobs.NewClient(redisOpts)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		queue = client
	}

	deps := admin.Deps{
		Logger:      logger,
		Audit:       shared.NewAuditLogger(pools.App),
		Idempotency: shared.NewIdempotencyStore(pools.App),
		Revalidator: jobs.NewRevalidator(queue, pageCache, metrics, logger),
		Validator:   admin.NewValidator(),
	}
	pages := admin.Pages{Templates: templates, CSRF: csrfManager, Logger: logger}

	tenantsHandler := tenants.NewHandler(logger, tenants.NewService(tenants.NewRepository(pools.App), pageCache),
		pages, deps, authzHandler.RequirePage, authzHandler.RequireAction)
	rolesHandler := roles.NewHandler(logger, roles.NewService(roles.NewRepository(pools.Service)),
		pages, deps, authzHandler.RequirePage, authzHandler.RequireAction)
	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(pools.Service)),
		pages, deps, authzHandler.RequirePage, authzHandler.RequireAction)
	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewRepository(pools.Service)),
		pages, authzHandler.RequirePage, authzHandler.RequireAction)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		AuthzHandler:   authzHandler,
		TenantsHandler: tenantsHandler,
		RolesHandler:   rolesHandler,
		UsersHandler:   usersHandler,
		AuditHandler:   auditHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
