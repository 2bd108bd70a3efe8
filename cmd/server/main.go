package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/stijnvankasteren/insider-trading-app/internal/api"
	"github.com/stijnvankasteren/insider-trading-app/internal/config"
	"github.com/stijnvankasteren/insider-trading-app/internal/feed"
	"github.com/stijnvankasteren/insider-trading-app/internal/httpx"
	"github.com/stijnvankasteren/insider-trading-app/internal/ingest"
	"github.com/stijnvankasteren/insider-trading-app/internal/ratelimit"
	"github.com/stijnvankasteren/insider-trading-app/internal/store"
	"github.com/stijnvankasteren/insider-trading-app/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/server.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Best-effort: a missing .env is fine, config can come from the
	// environment or the YAML file directly.
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	logger.Info("starting trade server",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"addr", cfg.Server.Addr,
		"database_enabled", cfg.Database.Enabled,
		"rate_limit_disabled", cfg.RateLimit.Disabled,
		"feed_disabled", cfg.Feed.Disabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Pick the trade store
	var st store.TradeStore
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pg, err := store.NewPostgres(ctx, cfg.Database, store.WithLogger(logger))
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")
		st = pg
	} else {
		logger.Warn("database disabled, using in-memory store; trades will not survive restarts")
		st = store.NewMemory()
	}
	defer st.Close()

	// Optional websocket feed
	var hub *feed.Hub
	pipelineOpts := []ingest.PipelineOption{ingest.WithLogger(logger)}
	if !cfg.Feed.Disabled {
		hub = feed.NewHub(cfg.Feed.BufferSize, feed.WithLogger(logger))
		defer hub.Close()
		pipelineOpts = append(pipelineOpts, ingest.WithPublisher(hub.Publish))
	}

	pipeline := ingest.NewPipeline(st, cfg.Ingest, pipelineOpts...)
	ingestHandler := ingest.NewHandler(pipeline, st, cfg.Ingest, ingest.WithHandlerLogger(logger))
	apiHandler := api.NewHandler(st, api.WithLogger(logger))
	guard := ratelimit.NewGuard(cfg.RateLimit, cfg.Ingest, cfg.Server.TrustProxyHeaders, ratelimit.WithLogger(logger))

	r := chi.NewRouter()
	r.Use(httpx.RequestID)
	r.Use(httpx.Logger(logger))
	r.Use(guard.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.Health)
		r.Get("/trades", apiHandler.ListTrades)
		r.Get("/trades.csv", apiHandler.ExportCSV)
		r.Mount("/ingest", ingestHandler.Routes())
		if hub != nil {
			r.Method(http.MethodGet, "/feed", hub)
		}
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("trade server stopped")
}
