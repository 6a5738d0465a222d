package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Configuration errors are fatal and surface before any network call.
var (
	ErrMissingClientID    = errors.New("PLAYGEN_CATALOG_CLIENT_ID is required for catalog ingestion")
	ErrMissingPostgresDSN = errors.New("PLAYGEN_POSTGRES_DSN is required when DB_DRIVER=postgres")
)

// Config holds the configuration for both pipelines.
// Environment variables are parsed with the PLAYGEN_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// Store
	DBDriver    string `envconfig:"DB_DRIVER" default:"postgres"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	DataDir     string `envconfig:"DATA_DIR" default:"./data"`

	// Remote catalog
	CatalogBaseURL  string        `envconfig:"CATALOG_BASE_URL" default:"https://api.jamendo.com/v3.0"`
	CatalogClientID string        `envconfig:"CATALOG_CLIENT_ID" default:""`
	CatalogRPS      float64       `envconfig:"CATALOG_RPS" default:"5"`
	CatalogTimeout  time.Duration `envconfig:"CATALOG_TIMEOUT" default:"30s"`

	// Ingestion defaults (CLI flags override)
	IngestTarget    int      `envconfig:"INGEST_TARGET" default:"500"`
	IngestPageSize  int      `envconfig:"INGEST_PAGE_SIZE" default:"50"`
	IngestBatchSize int      `envconfig:"INGEST_BATCH_SIZE" default:"25"`
	IngestTags      []string `envconfig:"INGEST_TAGS" default:""`

	FetchMaxRetries int           `envconfig:"FETCH_MAX_RETRIES" default:"4"`
	BackoffBase     time.Duration `envconfig:"BACKOFF_BASE" default:"500ms"`
	BackoffMax      time.Duration `envconfig:"BACKOFF_MAX" default:"10s"`

	// Aggregation
	EventPageSize     int `envconfig:"EVENT_PAGE_SIZE" default:"1000"`
	FeatureBatchSize  int `envconfig:"FEATURE_BATCH_SIZE" default:"500"`
	DurationChunkSize int `envconfig:"DURATION_CHUNK_SIZE" default:"200"`

	// Ops endpoint (/healthz, /metrics); empty disables it.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
}

// ResolveDefaults validates DBDriver and derives the SQLite path when unset.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "", "postgres":
		c.DBDriver = "postgres"
	case "sqlite":
		if c.SQLitePath == "" {
			c.SQLitePath = filepath.Join(c.DataDir, "playgen.db")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.EventPageSize <= 0 {
		return fmt.Errorf("EVENT_PAGE_SIZE must be > 0, got %d", c.EventPageSize)
	}
	if c.FeatureBatchSize <= 0 {
		return fmt.Errorf("FEATURE_BATCH_SIZE must be > 0, got %d", c.FeatureBatchSize)
	}
	if c.DurationChunkSize <= 0 {
		return fmt.Errorf("DURATION_CHUNK_SIZE must be > 0, got %d", c.DurationChunkSize)
	}
	return nil
}

// RequireStore reports a configuration error when the selected driver lacks
// what it needs to connect.
func (c *Config) RequireStore() error {
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return ErrMissingPostgresDSN
	}
	return nil
}

// RequireCatalog reports a configuration error when catalog credentials are missing.
func (c *Config) RequireCatalog() error {
	if c.CatalogClientID == "" {
		return ErrMissingClientID
	}
	if c.CatalogBaseURL == "" {
		return errors.New("PLAYGEN_CATALOG_BASE_URL is empty")
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Example: PLAYGEN_DB_DRIVER=sqlite, PLAYGEN_CATALOG_CLIENT_ID=abc123
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("PLAYGEN", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:       EnvTesting,
		LogLevel:          "debug",
		DBDriver:          "sqlite",
		SQLitePath:        ":memory:",
		CatalogBaseURL:    "http://localhost:0",
		CatalogClientID:   "test-client",
		CatalogTimeout:    5 * time.Second,
		IngestTarget:      50,
		IngestPageSize:    20,
		IngestBatchSize:   10,
		FetchMaxRetries:   2,
		BackoffBase:       time.Millisecond,
		BackoffMax:        5 * time.Millisecond,
		EventPageSize:     100,
		FeatureBatchSize:  50,
		DurationChunkSize: 50,
	}
}
