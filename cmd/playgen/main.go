package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TJYumul/playgen/internal/config"
	"github.com/TJYumul/playgen/internal/logger"
	"github.com/TJYumul/playgen/internal/ops"
	"github.com/TJYumul/playgen/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootFlags override the store selection from the environment.
type rootFlags struct {
	driver     string
	sqlitePath string
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:           "playgen",
		Short:         "Catalog ingestion and user/item feature aggregation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rf.driver, "db-driver", "", "store driver: postgres or sqlite (default $PLAYGEN_DB_DRIVER)")
	root.PersistentFlags().StringVar(&rf.sqlitePath, "sqlite-path", "", "SQLite database file (default $PLAYGEN_SQLITE_PATH)")

	root.AddCommand(newIngestCmd(&rf), newAggregateCmd(&rf), newMigrateCmd(&rf))
	return root
}

// load parses the environment and applies the persistent flag overrides.
func (rf *rootFlags) load() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if rf.driver != "" {
		cfg.DBDriver = rf.driver
	}
	if rf.sqlitePath != "" {
		cfg.SQLitePath = rf.sqlitePath
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, service string, cfg *config.Config) zerolog.Logger {
	return logger.NewWithWriter(w, service, cfg.LogLevel).With().Str("env", string(cfg.Environment)).Logger()
}

// startOps serves /healthz and /metrics when PLAYGEN_METRICS_ADDR is set.
// The returned func stops the server.
func startOps(ctx context.Context, cfg *config.Config, st store.Store, log zerolog.Logger) (func(), error) {
	if cfg.MetricsAddr == "" {
		return func() {}, nil
	}
	srv := ops.NewServer(ctx, cfg.MetricsAddr, ops.NewRouter(st, nil, log), log)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("ops server shutdown")
		}
	}, nil
}
