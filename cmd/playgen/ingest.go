package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TJYumul/playgen/internal/config"
	"github.com/TJYumul/playgen/internal/factory"
	"github.com/TJYumul/playgen/internal/ingest"
)

func newIngestCmd(rf *rootFlags) *cobra.Command {
	var (
		target, limit, offset, batchSize int
		genres                           []string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch catalog tracks and upsert them into the store",
		Long: `Pages through the catalog, one partition per genre tag, until --target
tracks have been upserted or every partition is exhausted. Exits non-zero
when the target is not reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rf.load()
			if err != nil {
				return err
			}
			req := ingest.Request{
				Target:    cfg.IngestTarget,
				PageSize:  cfg.IngestPageSize,
				BatchSize: cfg.IngestBatchSize,
				Tags:      cfg.IngestTags,
			}
			flags := cmd.Flags()
			if flags.Changed("target") {
				req.Target = target
			}
			if flags.Changed("limit") {
				req.PageSize = limit
			}
			if flags.Changed("offset") {
				req.StartOffset = offset
			}
			if flags.Changed("batch-size") {
				req.BatchSize = batchSize
			}
			if flags.Changed("genres") {
				req.Tags = genres
			}

			log := newLogger(cmd.OutOrStdout(), "playgen-ingest", cfg)
			res, err := runIngest(cmd.Context(), cfg, req, log)
			if err != nil {
				return fmt.Errorf("ingest: upserted %d of %d: %w", res.Upserted, req.Target, err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&target, "target", 0, "stop after this many tracks are upserted (default $PLAYGEN_INGEST_TARGET)")
	f.IntVar(&limit, "limit", 0, "catalog page size, 1-200 (default $PLAYGEN_INGEST_PAGE_SIZE)")
	f.IntVar(&offset, "offset", 0, "starting offset within each partition")
	f.IntVar(&batchSize, "batch-size", 0, "tracks per store transaction (default $PLAYGEN_INGEST_BATCH_SIZE)")
	f.StringSliceVar(&genres, "genres", nil, "comma separated genre tags; empty for one unfiltered partition")
	return cmd
}

// runIngest validates everything that can be checked locally before opening
// the store or calling the catalog.
func runIngest(ctx context.Context, cfg *config.Config, req ingest.Request, log zerolog.Logger) (ingest.Result, error) {
	if err := req.Validate(); err != nil {
		return ingest.Result{}, err
	}
	client, err := factory.NewCatalogClient(cfg)
	if err != nil {
		return ingest.Result{}, err
	}
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("store unavailable")
		return ingest.Result{}, err
	}
	defer func() { _ = st.Close() }()

	if err := st.VerifySchema(ctx); err != nil {
		return ingest.Result{}, fmt.Errorf("%w (run `playgen migrate`)", err)
	}

	stopOps, err := startOps(ctx, cfg, st, log)
	if err != nil {
		return ingest.Result{}, err
	}
	defer stopOps()

	w := ingest.NewWorker(client, st.Tracks(), ingest.Config{
		MaxRetries:  cfg.FetchMaxRetries,
		BaseBackoff: cfg.BackoffBase,
		MaxBackoff:  cfg.BackoffMax,
	}, log)
	return w.Run(ctx, req)
}
