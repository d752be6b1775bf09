// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Source kinds accepted by CRM_SOURCE.
const (
	SourceREST     = "rest"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceMemory   = "memory"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Source   SourceConfig
	Backend  BackendConfig
	Database DatabaseConfig
	SQLite   SQLiteConfig
	Grid     GridConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Export   ExportConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: localhost)
	Host string `env:"SERVER_HOST" default:"localhost"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// SourceConfig selects where company records come from.
type SourceConfig struct {
	// Kind is one of rest, postgres, sqlite, memory (default: rest)
	Kind string `env:"CRM_SOURCE" default:"rest"`
}

// BackendConfig holds settings for the REST backend.
type BackendConfig struct {
	// BaseURL is the API root, without the /api prefix
	BaseURL string `env:"CRM_API_URL" envAlt:"API_URL" default:"http://localhost:5001"`

	// Timeout bounds a single backend call (default: 10s)
	Timeout time.Duration `env:"CRM_API_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required when CRM_SOURCE=postgres.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SQLiteConfig holds the local database file location.
type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" default:"crm.db"`
}

// GridConfig holds list view behaviour.
type GridConfig struct {
	// PageSize is the number of rows per page (default: 10)
	PageSize int `env:"GRID_PAGE_SIZE" default:"10"`

	// SearchDebounce is the quiet period before a search is sent (default: 300ms)
	SearchDebounce time.Duration `env:"GRID_SEARCH_DEBOUNCE" default:"300ms"`

	// SearchMinLength is the shortest query that reaches the source (default: 2)
	SearchMinLength int `env:"GRID_SEARCH_MIN_LENGTH" default:"2"`

	// NotifyTTL is how long a status message stays visible (default: 3s)
	NotifyTTL time.Duration `env:"GRID_NOTIFY_TTL" default:"3s"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"ENABLE_CSP" envAlt:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards the JSON API and metrics with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// RateLimit is the number of requests per minute per client IP (default: 300)
	RateLimit int `env:"RATE_LIMIT" default:"300"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File receives logs while the terminal UI owns stdout (default: crm.log)
	File string `env:"LOG_FILE" default:"crm.log"`
}

// MetricsConfig holds prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// ExportConfig holds the S3 target for record exports.
type ExportConfig struct {
	Bucket    string `env:"EXPORT_S3_BUCKET"`
	Region    string `env:"EXPORT_S3_REGION" default:"us-east-1"`
	Endpoint  string `env:"EXPORT_S3_ENDPOINT"`
	PathStyle bool   `env:"EXPORT_S3_PATH_STYLE" default:"false"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
