package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"

	"precipitation-platform/internal/config"
	"precipitation-platform/internal/repository"
	"precipitation-platform/internal/services"
	"precipitation-platform/pkg/database"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	file := flag.String("file", "", "CSV file with header "+strings.Join(services.ImportColumns, ","))
	maxErrors := flag.Int("max-errors", 10, "Number of row errors to print")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Missing -file")
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		fmt.Fprintf(os.Stderr, "The importer writes to PostgreSQL only (STORAGE_DRIVER=%s)\n", cfg.Storage.Driver)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("precipitation-importer", "1.0.0", logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[IMPORTER_START] Starting report import", logging.Fields{
		"version": "1.0.0",
		"file":    *file,
	})

	metricsCollector := metrics.NewCollector(cfg.Metrics.Namespace + "_importer")

	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[IMPORTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	store := repository.NewPostgresStore(db, logger, metricsCollector)
	reports := services.NewReportService(store, logger, metricsCollector, clockwork.NewRealClock())
	importer := services.NewImportService(reports, logger, metricsCollector)

	result, err := importer.ImportFile(ctx, *file)
	if err != nil && result == nil {
		logger.Fatal(ctx, "[IMPORT_ERROR] Import failed", logging.Fields{"file": *file}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("IMPORT COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Rows:  %d\n", result.TotalRows)
	fmt.Printf("Imported:    %d\n", result.Imported)
	fmt.Printf("Failed:      %d\n", result.Failed)
	fmt.Printf("Duration:    %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < *maxErrors {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > *maxErrors {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-*maxErrors)
		}
	}

	if err != nil {
		logger.Error(ctx, "[IMPORT_INTERRUPTED] Import stopped early", logging.Fields{"file": *file}, err)
		os.Exit(1)
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}
