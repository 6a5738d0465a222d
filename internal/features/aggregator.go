// Package features derives per-(user, item) engagement features from the
// playback event log in one streaming pass.
package features

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TJYumul/playgen/internal/model"
)

// DefaultBatchSize is the number of feature rows per upsert.
const DefaultBatchSize = 500

// ErrInvalidRequest wraps Request validation failures.
var ErrInvalidRequest = errors.New("features: invalid request")

// FeatureWriter persists feature rows. store.Features implements it.
type FeatureWriter interface {
	UpsertBatch(ctx context.Context, rows []model.UserItemFeature) (int64, error)
}

// Config tunes paging and batching. Zero values select the defaults.
type Config struct {
	PageSize          int
	BatchSize         int
	DurationChunkSize int
	// Now stamps UpdatedAt on every row of a run. Defaults to time.Now.
	Now func() time.Time
}

// Request bounds one aggregation run.
type Request struct {
	MaxEvents int // 0 reads the whole log
}

// Result summarises a run.
type Result struct {
	RunID         string
	Events        int
	Skipped       int
	Pages         int
	Features      int
	Upserted      int64
	FailedBatches int
}

// Aggregator recomputes the feature table from the event log.
type Aggregator struct {
	events   EventSource
	tracks   DurationSource
	features FeatureWriter
	cfg      Config
	log      zerolog.Logger
}

// NewAggregator wires the aggregator to its store dependencies.
func NewAggregator(events EventSource, tracks DurationSource, features FeatureWriter, cfg Config, log zerolog.Logger) *Aggregator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.DurationChunkSize <= 0 {
		cfg.DurationChunkSize = DefaultChunkSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Aggregator{events: events, tracks: tracks, features: features, cfg: cfg, log: log}
}

// Run reads the event log in trimmed (user_id, item_id), occurred_at order and upserts
// one row per (user, item). Rows already upserted stay written when a read
// fails part way.
func (a *Aggregator) Run(ctx context.Context, req Request) (Result, error) {
	r := &run{
		agg:       a,
		res:       Result{RunID: uuid.NewString()},
		startedAt: a.cfg.Now().UTC(),
		cache:     NewDurationCache(a.tracks, a.cfg.DurationChunkSize),
	}
	if req.MaxEvents < 0 {
		return r.res, fmt.Errorf("%w: max events must be >= 0, got %d", ErrInvalidRequest, req.MaxEvents)
	}
	r.log = a.log.With().Str("run_id", r.res.RunID).Logger()
	r.log.Info().
		Int("max_events", req.MaxEvents).
		Int("page_size", a.cfg.PageSize).
		Int("batch_size", a.cfg.BatchSize).
		Msg("aggregation starting")

	reader := NewEventReader(a.events, a.cfg.PageSize, req.MaxEvents)
	for {
		if err := ctx.Err(); err != nil {
			return r.res, err
		}
		page, ok, err := reader.Next(ctx)
		if err != nil {
			r.log.Error().Err(err).Int("offset", reader.Offset()).Msg("event read failed; aborting")
			return r.res, err
		}
		if !ok {
			break
		}
		r.res.Pages++
		r.res.Events += len(page)
		eventsReadTotal.Add(float64(len(page)))

		if err := r.cache.Hydrate(ctx, itemIDs(page)); err != nil {
			r.log.Error().Err(err).Int("offset", reader.Offset()).Msg("duration lookup failed; aborting")
			return r.res, err
		}
		if err := r.consume(ctx, page); err != nil {
			return r.res, err
		}
	}

	if err := r.flush(ctx); err != nil {
		return r.res, err
	}
	if err := r.writeBuffered(ctx); err != nil {
		return r.res, err
	}

	r.log.Info().
		Int("events", r.res.Events).
		Int("skipped", r.res.Skipped).
		Int("pages", r.res.Pages).
		Int("features", r.res.Features).
		Int64("upserted", r.res.Upserted).
		Int("failed_batches", r.res.FailedBatches).
		Int("durations_cached", r.cache.Len()).
		Msg("aggregation finished")
	return r.res, nil
}

// run holds the state of one Aggregator.Run.
type run struct {
	agg       *Aggregator
	res       Result
	startedAt time.Time
	cache     *DurationCache
	log       zerolog.Logger

	open *accumulator
	buf  []model.UserItemFeature
}

func (r *run) consume(ctx context.Context, page []model.Event) error {
	for _, ev := range page {
		key := model.FeatureKey{
			UserID: trimID(ev.UserID),
			ItemID: trimID(ev.ItemID),
		}
		if key.UserID == "" || key.ItemID == "" {
			r.res.Skipped++
			eventsSkippedTotal.Inc()
			r.log.Debug().Int64("event_id", ev.ID).
				Str("user_id", key.UserID).
				Str("item_id", key.ItemID).
				Msg("skipping event without user or item")
			continue
		}
		if r.open == nil || r.open.key != key {
			if err := r.flush(ctx); err != nil {
				return err
			}
			r.open = newAccumulator(key)
		}
		r.open.add(ev)
	}
	return nil
}

// flush closes the open accumulator into the buffer and writes the buffer
// once it is full.
func (r *run) flush(ctx context.Context) error {
	if r.open == nil {
		return nil
	}
	row := r.open.finish(r.cache.Get(r.open.key.ItemID), r.startedAt)
	r.open = nil
	r.buf = append(r.buf, row)
	r.res.Features++
	if len(r.buf) >= r.agg.cfg.BatchSize {
		return r.writeBuffered(ctx)
	}
	return nil
}

// writeBuffered upserts the buffer. A rejected batch is logged and dropped.
func (r *run) writeBuffered(ctx context.Context) error {
	if len(r.buf) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := r.buf
	r.buf = make([]model.UserItemFeature, 0, r.agg.cfg.BatchSize)

	n, err := r.agg.features.UpsertBatch(ctx, batch)
	if err != nil {
		r.res.FailedBatches++
		batchFailuresTotal.Inc()
		r.log.Error().Err(err).
			Int("batch_size", len(batch)).
			Str("user_id", batch[0].UserID).
			Str("item_id", batch[0].ItemID).
			Msg("feature batch upsert failed; skipping")
		return nil
	}
	r.res.Upserted += n
	featuresUpsertedTotal.Add(float64(n))
	return nil
}

func itemIDs(page []model.Event) []string {
	out := make([]string, 0, len(page))
	for _, ev := range page {
		if id := trimID(ev.ItemID); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// trimID strips the same characters as SQL TRIM, which the event order is keyed on.
func trimID(s string) string { return strings.Trim(s, " ") }
