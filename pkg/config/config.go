package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Store         StoreConfig
	Import        ImportConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
	LogLevel      string
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
	MaxUploadBytes     int64
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxConns         int
	MinConns         int
	MaxConnLifetime  time.Duration
	StatementTimeout time.Duration
}

type StoreConfig struct {
	Backend    string
	SQLitePath string
}

type ImportConfig struct {
	DefaultAccount  string
	DefaultCurrency string
	TemplatesFile   string // optional YAML template document
}

type ArchiveConfig struct {
	Type          string // "local", "gcs" or "" to disable
	LocalPath     string
	GCSBucket     string
	GCSPrefix     string
	RetentionDays int
	SweepSchedule string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
			CORSOrigins:        getEnvAsList("SERVER_CORS_ORIGINS"),
			MaxUploadBytes:     int64(getEnvAsInt("SERVER_MAX_UPLOAD_BYTES", 20<<20)),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:             getEnv("POSTGRES_HOST", "localhost"),
			Port:             getEnvAsInt("POSTGRES_PORT", 5432),
			User:             getEnv("POSTGRES_USER", "postgres"),
			Password:         getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:         getEnv("POSTGRES_DB", "statements"),
			SSLMode:          getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:         getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(getEnv("STORE_BACKEND", StorePostgres)),
			SQLitePath: getEnv("SQLITE_PATH", "statements.db"),
		},
		Import: ImportConfig{
			DefaultAccount:  getEnv("IMPORT_DEFAULT_ACCOUNT", "Default"),
			DefaultCurrency: strings.ToUpper(getEnv("IMPORT_DEFAULT_CURRENCY", "USD")),
			TemplatesFile:   getEnv("IMPORT_TEMPLATES_FILE", ""),
		},
		Archive: ArchiveConfig{
			Type:          strings.ToLower(getEnv("ARCHIVE_TYPE", "local")),
			LocalPath:     getEnv("ARCHIVE_LOCAL_PATH", "./uploads"),
			GCSBucket:     getEnv("ARCHIVE_GCS_BUCKET", ""),
			GCSPrefix:     getEnv("ARCHIVE_GCS_PREFIX", "uploads"),
			RetentionDays: getEnvAsInt("ARCHIVE_RETENTION_DAYS", 90),
			SweepSchedule: getEnv("ARCHIVE_SWEEP_SCHEDULE", "0 3 * * *"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StorePostgres, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be postgres, sqlite or memory, got %q", c.Store.Backend)
	}
	switch c.Archive.Type {
	case "", "none", "local":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return errors.New("ARCHIVE_GCS_BUCKET is required when ARCHIVE_TYPE=gcs")
		}
	default:
		return fmt.Errorf("ARCHIVE_TYPE must be local, gcs or none, got %q", c.Archive.Type)
	}
	if c.Import.DefaultCurrency == "" {
		return errors.New("IMPORT_DEFAULT_CURRENCY is required")
	}
	return nil
}

// ArchiveEnabled reports whether uploads are archived
func (c *ArchiveConfig) ArchiveEnabled() bool {
	return c.Type != "" && c.Type != "none"
}

// Addr returns the HTTP listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
