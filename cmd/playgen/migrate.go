package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TJYumul/playgen/internal/config"
	"github.com/TJYumul/playgen/internal/factory"
)

func newMigrateCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tracks, events and user_item_features tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rf.load()
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg, newLogger(cmd.OutOrStdout(), "playgen-migrate", cfg))
		},
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.EnsureSchema(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("schema migration failed")
		return err
	}
	if err := st.VerifySchema(ctx); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("schema ready")
	return nil
}
