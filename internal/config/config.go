package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Port           string `validate:"required,numeric"`
	AllowOrigins   string
	JWTSecret      string `validate:"required"`
	LogLevel       string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat      string `validate:"oneof=json text"`
	ReqTimeoutSec  int    `validate:"gt=0"`
	RateLimitRPS   float64
	RateLimitBurst int   `validate:"gte=0"`
	MaxUploadMB    int64 `validate:"gt=0"`

	DB DBConfig
}

// DBConfig mirrors the pooled Postgres client settings. DatabaseURL wins over the
// discrete DB_* variables when both are set.
type DBConfig struct {
	DatabaseURL     string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int `validate:"gt=0"`
	MaxIdleConns    int `validate:"gte=0"`
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func atof(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func Load() *Config {
	return &Config{
		Port:           getenv("PORT", "8080"),
		AllowOrigins:   getenv("ALLOW_ORIGINS", "*"),
		JWTSecret:      getenv("JWT_SECRET", ""),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "json"),
		ReqTimeoutSec:  atoi("REQUEST_TIMEOUT_SECONDS", 10),
		RateLimitRPS:   atof("RATE_LIMIT_RPS", 20),
		RateLimitBurst: atoi("RATE_LIMIT_BURST", 40),
		MaxUploadMB:    int64(atoi("MAX_UPLOAD_MB", 1)),
		DB: DBConfig{
			DatabaseURL:     getenv("DATABASE_URL", ""),
			Host:            getenv("DB_HOST", "localhost"),
			Port:            getenv("DB_PORT", "5432"),
			User:            getenv("DB_USER", "postgres"),
			Password:        getenv("DB_PASSWORD", ""),
			Name:            getenv("DB_NAME", "household"),
			SSLMode:         getenv("DB_SSLMODE", "disable"),
			MaxOpenConns:    atoi("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    atoi("DB_MAX_IDLE_CONNS", 5),
			ConnMaxIdleTime: time.Duration(atoi("DB_CONN_MAX_IDLE_TIME_SECONDS", 30)) * time.Second,
			ConnMaxLifetime: time.Duration(atoi("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		},
	}
}

// Validate checks the loaded values before anything is wired.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequestTimeout bounds a request's database work, including pool checkout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.ReqTimeoutSec) * time.Second
}

// MaxBodyBytes caps how much of a request body handlers will read.
func (c *Config) MaxBodyBytes() int64 {
	return c.MaxUploadMB << 20
}

// DSN builds the Postgres connection string.
func (d DBConfig) DSN() string {
	if d.DatabaseURL != "" {
		return d.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}
