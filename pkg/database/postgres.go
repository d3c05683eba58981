package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// Config holds database connection configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders the lib/pq keyword/value connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// PostgresDB wraps sqlx.DB with query instrumentation and pool monitoring
type PostgresDB struct {
	db      *sqlx.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	config  *Config

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPostgresDB opens, configures, and pings a PostgreSQL connection pool
func NewPostgresDB(cfg *Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*PostgresDB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(ctx, "[DB_INIT] PostgreSQL connection established", logging.Fields{
		"host":              cfg.Host,
		"port":              cfg.Port,
		"database":          cfg.Database,
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	pgDB := NewFromSQLX(db, cfg, logger, metricsCollector)
	go pgDB.monitorConnectionPool(10 * time.Second)

	return pgDB, nil
}

// NewFromSQLX wraps an already opened handle. The pool monitor is not started.
func NewFromSQLX(db *sqlx.DB, cfg *Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PostgresDB {
	if cfg == nil {
		cfg = &Config{}
	}
	return &PostgresDB{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		config:  cfg,
		stop:    make(chan struct{}),
	}
}

// Close stops the pool monitor and closes the database connection
func (p *PostgresDB) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	p.logger.Info(context.Background(), "[DB_CLOSE] Closing database connection", logging.Fields{
		"database": p.config.Database,
	})
	return p.db.Close()
}

// DB returns the underlying sqlx.DB instance
func (p *PostgresDB) DB() *sqlx.DB {
	return p.db
}

func (p *PostgresDB) observe(ctx context.Context, queryType string, start time.Time) {
	duration := time.Since(start)
	p.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
	p.logger.Debug(ctx, "[DB_QUERY] Query executed", logging.Fields{
		"query_type":  queryType,
		"duration_ms": duration.Milliseconds(),
	})
}

func (p *PostgresDB) fail(ctx context.Context, errorType, queryType string, err error) {
	p.metrics.RecordDBError(errorType)
	p.logger.Error(ctx, "[DB_ERROR] Statement failed", logging.Fields{
		"query_type": queryType,
		"error_type": errorType,
	}, err)
}

// ExecContext executes a command with context and metrics
func (p *PostgresDB) ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	defer p.observe(ctx, queryType, time.Now())

	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		p.fail(ctx, "exec_error", queryType, err)
		return nil, err
	}
	return result, nil
}

// GetContext scans a single row into dest. sql.ErrNoRows is returned unlogged.
func (p *PostgresDB) GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	defer p.observe(ctx, queryType, time.Now())

	err := p.db.GetContext(ctx, dest, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		p.fail(ctx, "get_error", queryType, err)
	}
	return err
}

// SelectContext scans all rows into dest
func (p *PostgresDB) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	defer p.observe(ctx, queryType, time.Now())

	if err := p.db.SelectContext(ctx, dest, query, args...); err != nil {
		p.fail(ctx, "select_error", queryType, err)
		return err
	}
	return nil
}

// Tx is an instrumented transaction
type Tx struct {
	tx *sqlx.Tx
	p  *PostgresDB
}

// BeginTx begins a transaction. A nil opts uses the server default (read committed).
func (p *PostgresDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := p.db.BeginTxx(ctx, opts)
	if err != nil {
		p.fail(ctx, "transaction_begin_error", "begin", err)
		return nil, err
	}
	return &Tx{tx: tx, p: p}, nil
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise. Cancellation of ctx before commit rolls back.
func (p *PostgresDB) WithTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *Tx) error) error {
	tx, err := p.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.fail(ctx, "transaction_rollback_error", "rollback", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.tx.Commit(); err != nil {
		p.fail(ctx, "transaction_commit_error", "commit", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (t *Tx) ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	defer t.p.observe(ctx, queryType, time.Now())

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		t.p.fail(ctx, "exec_error", queryType, err)
		return nil, err
	}
	return result, nil
}

func (t *Tx) GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	defer t.p.observe(ctx, queryType, time.Now())

	err := t.tx.GetContext(ctx, dest, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		t.p.fail(ctx, "get_error", queryType, err)
	}
	return err
}

func (t *Tx) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	defer t.p.observe(ctx, queryType, time.Now())

	if err := t.tx.SelectContext(ctx, dest, query, args...); err != nil {
		t.p.fail(ctx, "select_error", queryType, err)
		return err
	}
	return nil
}

// monitorConnectionPool publishes pool statistics until Close is called
func (p *PostgresDB) monitorConnectionPool(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		stats := p.db.Stats()
		p.metrics.UpdateDBConnectionPool(stats.InUse, stats.Idle, stats.OpenConnections)

		if p.config.MaxOpenConns <= 0 {
			continue
		}
		utilization := float64(stats.InUse) / float64(p.config.MaxOpenConns)
		if utilization > 0.8 {
			p.logger.Warn(context.Background(), "[DB_POOL_WARNING] Connection pool utilization high", logging.Fields{
				"in_use":      stats.InUse,
				"idle":        stats.Idle,
				"total":       stats.OpenConnections,
				"max_open":    p.config.MaxOpenConns,
				"utilization": fmt.Sprintf("%.2f%%", utilization*100),
			})
		}
	}
}

// HealthCheck pings the database with a short deadline
func (p *PostgresDB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := p.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
