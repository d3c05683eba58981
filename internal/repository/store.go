package repository

import (
	"context"
	"database/sql"

	"precipitation-platform/pkg/database"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// postgresStore implements Store on PostgreSQL
type postgresStore struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPostgresStore creates a store backed by db
func NewPostgresStore(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) Store {
	return &postgresStore{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// readOnlySnapshot gives the multi-statement reads one consistent view
var readOnlySnapshot = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// HealthCheck performs a repository health check
func (s *postgresStore) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// exists reports whether a row with id is present in table
func exists(ctx context.Context, tx *database.Tx, queryType, table string, id int64) (bool, error) {
	var found bool
	err := tx.GetContext(ctx, queryType, &found, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id)
	return found, err
}
