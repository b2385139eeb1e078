package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/ghuser/secondchance/docs/swagger"
	itemmigrations "github.com/ghuser/secondchance/migrations/item"
	"github.com/ghuser/secondchance/pkg/app"
	"github.com/ghuser/secondchance/pkg/config"
	"github.com/ghuser/secondchance/pkg/httpx"
	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/migrator"
	"github.com/ghuser/secondchance/pkg/storage"
	"github.com/ghuser/secondchance/pkg/telemetry"
	itemApi "github.com/ghuser/secondchance/services/item/application/api"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/mongo"
)

// @title					Second Chance API
// @version				1.0
// @description			Catalogue of second-hand items offered for reuse.
// @license.name			MIT
// @license.url			https://opensource.org/licenses/MIT
// @host					localhost:3060
// @BasePath				/api
// @schemes				http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	// Telemetry: OTel tracing + metrics
	ctx := context.Background()
	otelShutdown, metricsHandler, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	// Crash reporting: Sentry (optional, log and continue on failure)
	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	appConfig, err := app.Build(ctx, cfg, log, app.BusForwarder)
	if err != nil {
		log.Error("failed to initialize dependencies", "error", err)
		os.Exit(1) //nolint:gocritic // intentional: startup failure, deferred flushes are best-effort
	}
	defer appConfig.Close(context.Background()) //nolint:errcheck

	if appConfig.EventBus != nil {
		if err := appConfig.EventBus.StartForwarder(ctx); err != nil {
			log.Error("failed to start event forwarder", "error", err)
			os.Exit(1) //nolint:gocritic
		}
	} else {
		log.Info("event bus disabled")
	}

	if appConfig.Postgres != nil {
		if err := migrator.RunMigrations(ctx, cfg.DatabaseURL, itemmigrations.FS); err != nil {
			log.Error("failed to run migrations", "error", err)
			os.Exit(1) //nolint:gocritic
		}
	}
	if appConfig.Mongo != nil {
		if err := mongo.NewItemRepository(appConfig.Mongo, log).EnsureIndexes(ctx); err != nil {
			log.Warn("failed to ensure mongo indexes", "error", err)
		}
	}

	serverCfg := httpx.ServerConfig{
		ServiceName:        cfg.ServiceName,
		IsDevelopment:      cfg.Environment == config.EnvDevelopment,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.MaxUploadBytes,
		RateLimit:          cfg.RateLimit,
		RequestTimeout:     cfg.RequestTimeout,
	}
	r := httpx.NewRouter(
		serverCfg,
		logger.Middleware(log),
		logger.Recovery(log),
		telemetry.SentryMiddleware(),
		otelhttp.NewMiddleware(cfg.ServiceName),
	)

	r.Get("/health", httpx.HealthHandler(appConfig.HealthChecks()))
	r.Get("/metrics", metricsHandler.ServeHTTP)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	r.Handle(storage.PublicPrefix+"*", http.StripPrefix(storage.PublicPrefix, storage.Handler(appConfig.Images)))
	r.Route("/api", func(r chi.Router) {
		if err := registerRoutes(r, appConfig); err != nil {
			log.Error("failed to register routes", "error", err)
			os.Exit(1)
		}
	})

	srv := httpx.NewServer(cfg.HTTPAddr, r, serverCfg)

	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Environment, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// registerRoutes mounts all service routes under /api.
// Add each new service's route function here.
func registerRoutes(r chi.Router, a *app.Application) error {
	return itemApi.ItemRoutes(r, a)
}
