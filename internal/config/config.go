package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST" envDefault:"db"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"app"`
	DBPass     string `env:"DB_PASSWORD" envDefault:"app"`
	DBName     string `env:"DB_NAME" envDefault:"change_requests"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/change-requests.db"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	CacheBackend string        `env:"CACHE_BACKEND" envDefault:"memory"`
	RedisURL     string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	RateLimit   RateLimitOptions
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	Tracing     TracingOptions
}

type RateLimitOptions struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RPS     int  `env:"RATE_LIMIT_RPS" envDefault:"50"`
}

type TracingOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"change-request-service"`
}

// Load reads .env files that exist, then the process environment.
func Load() (Config, error) {
	if err := loadEnvFiles(".env", ".env.local"); err != nil {
		return Config{}, err
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, "load env files")
	}
	return nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return errors.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when CACHE_BACKEND is redis")
		}
	default:
		return errors.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, c.CacheBackend)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return errors.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.RateLimit.RPS < 0 {
		return errors.Errorf("RATE_LIMIT_RPS must be non-negative, got %d", c.RateLimit.RPS)
	}
	if c.CacheTTL < 0 {
		return errors.Errorf("CACHE_TTL must be non-negative, got %s", c.CacheTTL)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// Logger builds the process logger. LOG_FORMAT=text switches to the human readable formatter.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if strings.EqualFold(c.LogFormat, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	return log
}
