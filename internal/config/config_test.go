package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://app:app@db:5432/change_requests?sslmode=disable", cfg.DatabaseURL())
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/cr.db")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("CORS_ORIGINS", "https://pmo.example.com,https://admin.example.com")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "/tmp/cr.db", cfg.SQLitePath)
	assert.Equal(t, CacheRedis, cfg.CacheBackend)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"https://pmo.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestValidate(t *testing.T) {
	base := Config{
		HTTPPort:     8080,
		DBDriver:     DriverPostgres,
		CacheBackend: CacheMemory,
		LogLevel:     "info",
	}
	require.NoError(t, base.Validate())

	cases := map[string]func(*Config){
		"driver":      func(c *Config) { c.DBDriver = "mysql" },
		"backend":     func(c *Config) { c.CacheBackend = "memcached" },
		"redis url":   func(c *Config) { c.CacheBackend = CacheRedis; c.RedisURL = "" },
		"port":        func(c *Config) { c.HTTPPort = 70000 },
		"rps":         func(c *Config) { c.RateLimit.RPS = -1 },
		"log level":   func(c *Config) { c.LogLevel = "loud" },
		"ttl":         func(c *Config) { c.CacheTTL = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLogger(t *testing.T) {
	log := Config{LogLevel: "debug", LogFormat: "text"}.Logger()
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	log = Config{LogLevel: "warn", LogFormat: "json"}.Logger()
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}
