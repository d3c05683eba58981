package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"precipitation-platform/pkg/database"
	"precipitation-platform/pkg/logging"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Storage  StorageConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestTimeout    time.Duration
	CORSAllowedOrigin string
}

type DatabaseConfig struct {
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

// Postgres converts the section into connection settings for pkg/database
func (d DatabaseConfig) Postgres() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

type LoggingConfig struct {
	Level string
}

type StorageConfig struct {
	Driver string
}

type MetricsConfig struct {
	Namespace string
}

// LoadConfig reads configuration from the environment, honouring a .env
// file in the working directory when present
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	l := &loader{}
	cfg := &Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              l.int("SERVER_PORT", 8080),
			ReadTimeout:       l.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      l.duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       l.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:   l.duration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    l.duration("SERVER_REQUEST_TIMEOUT", 10*time.Second),
			CORSAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "*"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            l.int("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "precipitation"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    l.int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    l.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: l.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: l.duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", DriverPostgres),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "precipitation_platform"),
		},
	}

	if len(l.errs) > 0 {
		return nil, errors.Join(l.errs...)
	}
	return cfg, nil
}

// Validate checks values that parse but cannot work
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be positive")
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max idle connections must be between 0 and %d", c.Database.MaxOpenConns)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// loader collects parse failures so that every malformed variable is reported at once
type loader struct {
	errs []error
}

func (l *loader) int(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return n
}

func (l *loader) duration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return d
}
