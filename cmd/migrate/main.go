package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"precipitation-platform/internal/config"
	"precipitation-platform/pkg/database"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	dir := flag.String("dir", "migrations", "Directory containing *.up.sql and *.down.sql files")
	flag.Parse()

	if *direction != "up" && *direction != "down" {
		fmt.Fprintf(os.Stderr, "Invalid direction %q: expected up or down\n", *direction)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logLevel = logging.InfoLevel
	}
	logger := logging.NewStructuredLogger("precipitation-migrate", "1.0.0", logLevel)
	ctx := context.Background()

	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metrics.NewCollectorWithRegisterer("precipitation_migrate", prometheus.NewRegistry()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	applied, err := db.RunMigrations(ctx, *dir, *direction)
	for _, file := range applied {
		fmt.Printf("Applied migration: %s\n", filepath.Base(file))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}
