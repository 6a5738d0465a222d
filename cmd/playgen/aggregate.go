package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TJYumul/playgen/internal/config"
	"github.com/TJYumul/playgen/internal/factory"
	"github.com/TJYumul/playgen/internal/features"
)

func newAggregateCmd(rf *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Recompute user/item features from the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rf.load()
			if err != nil {
				return err
			}
			log := newLogger(cmd.OutOrStdout(), "playgen-aggregate", cfg)
			if _, err := runAggregate(cmd.Context(), cfg, features.Request{MaxEvents: limit}, log); err != nil {
				return fmt.Errorf("aggregate: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "read at most this many events; 0 reads the whole log")
	return cmd
}

func runAggregate(ctx context.Context, cfg *config.Config, req features.Request, log zerolog.Logger) (features.Result, error) {
	if req.MaxEvents < 0 {
		return features.Result{}, fmt.Errorf("%w: --limit must be >= 0", features.ErrInvalidRequest)
	}
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("store unavailable")
		return features.Result{}, err
	}
	defer func() { _ = st.Close() }()

	if err := st.VerifySchema(ctx); err != nil {
		return features.Result{}, fmt.Errorf("%w (run `playgen migrate`)", err)
	}

	stopOps, err := startOps(ctx, cfg, st, log)
	if err != nil {
		return features.Result{}, err
	}
	defer stopOps()

	agg := features.NewAggregator(st.Events(), st.Tracks(), st.Features(), features.Config{
		PageSize:          cfg.EventPageSize,
		BatchSize:         cfg.FeatureBatchSize,
		DurationChunkSize: cfg.DurationChunkSize,
	}, log)
	return agg.Run(ctx, req)
}
