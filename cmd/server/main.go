package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"precipitation-platform/internal/config"
	"precipitation-platform/internal/handlers"
	"precipitation-platform/internal/repository"
	"precipitation-platform/internal/repository/memory"
	"precipitation-platform/internal/services"
	"precipitation-platform/pkg/database"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("precipitation-api", version, logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting precipitation platform API server", logging.Fields{
		"version":        version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"storage_driver": cfg.Storage.Driver,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCollector := metrics.NewCollectorWithRegisterer(cfg.Metrics.Namespace, registry)

	// Initialize storage
	var store repository.Store
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn(ctx, "[STARTUP] Using in-memory storage; data is lost on exit", logging.Fields{})
		store = memory.NewSeeded()
	default:
		db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{
				"db_host": cfg.Database.Host,
				"db_name": cfg.Database.Database,
			}, err)
		}
		defer db.Close()
		store = repository.NewPostgresStore(db, logger, metricsCollector)
	}

	// Initialize services
	clock := clockwork.NewRealClock()
	svc := handlers.Services{
		Reports:     services.NewReportService(store, logger, metricsCollector, clock),
		Reference:   services.NewReferenceService(store, logger, metricsCollector, clock),
		Aggregation: services.NewAggregationService(store, logger, metricsCollector),
	}

	router := handlers.NewRouter(svc, store, logger, metricsCollector, handlers.RouterOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigin:  cfg.Server.CORSAllowedOrigin,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
