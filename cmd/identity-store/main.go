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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tendant/simple-idm-mongo/idm"
	"github.com/tendant/simple-idm-mongo/internal/config"
	"github.com/tendant/simple-idm-mongo/internal/metrics"
	"github.com/tendant/simple-idm-mongo/internal/telemetry"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
)

const serviceName = "identity-store"

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	if cfg.HasTracing() {
		logger.Info("tracing enabled", "endpoint", cfg.OTelEndpoint)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	switch cfg.KeyKind {
	case keys.UUID.Name():
		err = run(ctx, keys.UUID, cfg, logger, collector, reg)
	case keys.ObjectID.Name():
		err = run(ctx, keys.ObjectID, cfg, logger, collector, reg)
	default:
		err = run(ctx, keys.String, cfg, logger, collector, reg)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	if err != nil {
		logger.Error("identity store failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

// run opens the store for key kind K, serves the ops router if enabled and
// blocks until ctx is cancelled.
func run[K comparable](ctx context.Context, kind keys.Kind[K], cfg *config.Config, logger *slog.Logger, collector *metrics.Collector, reg *prometheus.Registry) error {
	ids, err := idm.Open(ctx, kind, idm.Config{
		Mongo:              cfg.Repository(),
		Locale:             cfg.Locale,
		RequireUniqueEmail: cfg.RequireUniqueEmail,
		Logger:             logger,
		Observer:           collector,
	})
	if err != nil {
		return err
	}
	logger.Info("identity store ready", "key_kind", kind.Name(), "locale", cfg.Locale, "unique_email", cfg.RequireUniqueEmail)

	var server *http.Server
	serveErr := make(chan error, 1)
	if cfg.HasOps() {
		server = &http.Server{
			Addr:         cfg.OpsAddr,
			Handler:      ids.OpsRouter(reg, cfg.OpsRateLimit),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("starting ops server", "addr", cfg.OpsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		logger.Error("ops server error", "error", err)
	}

	logger.Info("shutting down")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown error", "error", err)
		}
	}
	if cerr := ids.Close(shutdownCtx); cerr != nil {
		logger.Error("close error", "error", cerr)
	}
	return err
}
