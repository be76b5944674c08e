package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbrg/raptor/common/id"
	"github.com/mbrg/raptor/common/logger"
	"github.com/mbrg/raptor/common/otel"
	"github.com/mbrg/raptor/core/config"
	"github.com/mbrg/raptor/internal/http/middleware"
	httprouter "github.com/mbrg/raptor/internal/http/router"
	"github.com/mbrg/raptor/internal/source/gharchive"
	"github.com/mbrg/raptor/internal/source/github"
	"github.com/mbrg/raptor/internal/store"
	"github.com/mbrg/raptor/internal/verify"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "evidence server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	st := store.New()
	if path := os.Getenv("RAPTOR_EVIDENCE_FILE"); path != "" {
		st, err = store.Load(path)
		if err != nil {
			slog.ErrorContext(ctx, "failed to load evidence file", "path", path, "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "evidence loaded", "path", path, "records", st.Len())
	}

	githubClient := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Timeout)
	archiveClient := gharchive.NewClient(cfg.GHArchive.ProjectID)
	verifier := verify.New(
		githubClient,
		archiveClient,
		verify.NewHTTPFetcher(cfg.Verify.FetchTimeout),
		verify.Config{Concurrency: cfg.Verify.Concurrency},
		slog.Default(),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, st, verifier)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Verification runs can hit BigQuery and the Wayback CDX; give
		// them room before the server cuts the response off.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if err := archiveClient.Close(); err != nil {
		slog.WarnContext(shutdownCtx, "bigquery client close error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, st *store.Store, verifier verify.BatchVerifier) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, st, verifier)

	return router
}
