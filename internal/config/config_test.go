package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_REQUEST_TIMEOUT", "2s")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DB_CONN_MAX_LIFETIME", "1h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("SERVER_IDLE_TIMEOUT", "forever")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "SERVER_IDLE_TIMEOUT")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080, RequestTimeout: time.Second},
			Database: DatabaseConfig{Host: "localhost", Port: 5432, Database: "precipitation", MaxOpenConns: 10, MaxIdleConns: 2},
			Logging:  LoggingConfig{Level: "info"},
			Storage:  StorageConfig{Driver: DriverPostgres},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, true},
		{"no pool", func(c *Config) { c.Database.MaxOpenConns = 0 }, true},
		{"idle above open", func(c *Config) { c.Database.MaxIdleConns = 20 }, true},
		{"memory ignores database", func(c *Config) {
			c.Storage.Driver = DriverMemory
			c.Database = DatabaseConfig{}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
