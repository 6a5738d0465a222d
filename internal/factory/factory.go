// Package factory builds the store and catalog client from configuration.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/TJYumul/playgen/internal/catalog"
	"github.com/TJYumul/playgen/internal/config"
	"github.com/TJYumul/playgen/internal/store"
	storepg "github.com/TJYumul/playgen/internal/store/postgres"
	storelite "github.com/TJYumul/playgen/internal/store/sqlite"
)

// NewStore opens the store selected by cfg.DBDriver.
// SQLite applies the schema on open; Postgres expects `playgen migrate` to have run.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if err := cfg.RequireStore(); err != nil {
		return nil, err
	}
	switch cfg.DBDriver {
	case "postgres":
		st, err := storepg.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Debug().Str("driver", cfg.DBDriver).Msg("store opened")
		return st, nil
	case "sqlite":
		st, err := storelite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.SQLitePath, err)
		}
		log.Debug().Str("driver", cfg.DBDriver).Str("path", cfg.SQLitePath).Msg("store opened")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

// NewCatalogClient returns a throttled catalog client.
func NewCatalogClient(cfg *config.Config) (*catalog.Client, error) {
	if err := cfg.RequireCatalog(); err != nil {
		return nil, err
	}
	return catalog.New(cfg.CatalogBaseURL, cfg.CatalogClientID,
		catalog.WithHTTPTimeout(cfg.CatalogTimeout),
		catalog.WithRateLimit(cfg.CatalogRPS),
	)
}
