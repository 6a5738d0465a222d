// Package ingest pulls tracks from the remote catalog into the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TJYumul/playgen/internal/catalog"
	"github.com/TJYumul/playgen/internal/model"
)

// emptyPagesToStop ends a tag partition after this many consecutive empty pages.
const emptyPagesToStop = 2

var (
	// ErrTargetNotReached is returned with the Result when every partition was
	// exhausted before Target tracks were upserted. It is not fatal.
	ErrTargetNotReached = errors.New("ingest: target not reached")
	// ErrInvalidRequest wraps Request validation failures.
	ErrInvalidRequest = errors.New("ingest: invalid request")
)

// Fetcher reads one catalog page. *catalog.Client implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, req catalog.PageRequest) ([]catalog.RawTrack, error)
}

// TrackWriter persists a batch of tracks. store.Tracks implements it.
type TrackWriter interface {
	UpsertBatch(ctx context.Context, tracks []model.Track) (int64, error)
}

// Config controls fetch retries.
type Config struct {
	MaxRetries  int           // retries after the first attempt of each page
	BaseBackoff time.Duration // first retry delay before jitter
	MaxBackoff  time.Duration // cap on a single retry delay
}

// Request describes one ingestion run.
type Request struct {
	Target      int
	PageSize    int
	StartOffset int
	BatchSize   int
	Tags        []string // empty means a single unfiltered partition
}

// Validate reports a configuration error before any network call.
func (r Request) Validate() error {
	switch {
	case r.Target < 1:
		return fmt.Errorf("%w: target must be >= 1, got %d", ErrInvalidRequest, r.Target)
	case r.PageSize < 1 || r.PageSize > catalog.MaxPageSize:
		return fmt.Errorf("%w: page size must be in [1,%d], got %d", ErrInvalidRequest, catalog.MaxPageSize, r.PageSize)
	case r.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidRequest, r.BatchSize)
	case r.StartOffset < 0:
		return fmt.Errorf("%w: offset must be >= 0, got %d", ErrInvalidRequest, r.StartOffset)
	}
	return nil
}

// Result summarises a run.
type Result struct {
	RunID         string
	Upserted      int64
	Fetched       int
	Pages         int
	FailedPages   int
	Invalid       int
	Duplicates    int
	FailedBatches int
	TargetReached bool
}

// Worker orchestrates fetch, normalize, dedupe and upsert across tag partitions.
type Worker struct {
	fetcher Fetcher
	tracks  TrackWriter
	cfg     Config
	log     zerolog.Logger
}

// NewWorker constructs a Worker from dependencies.
func NewWorker(fetcher Fetcher, tracks TrackWriter, cfg Config, log zerolog.Logger) *Worker {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	return &Worker{fetcher: fetcher, tracks: tracks, cfg: cfg, log: log}
}

// Run ingests until Target tracks are upserted or every partition is exhausted.
// Cancellation is honoured between pages and between batches.
func (w *Worker) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	if err := req.Validate(); err != nil {
		return res, err
	}
	log := w.log.With().Str("run_id", res.RunID).Logger()
	target := int64(req.Target)
	partitions := partitionsOf(req.Tags)
	seen := make(map[string]struct{}, req.Target)

	log.Info().
		Int("target", req.Target).
		Int("page_size", req.PageSize).
		Int("batch_size", req.BatchSize).
		Int("start_offset", req.StartOffset).
		Strs("tags", req.Tags).
		Msg("ingestion starting")

	for _, tag := range partitions {
		plog := log.With().Str("tag", tag).Logger()
		offset := req.StartOffset
		empties := 0

		for empties < emptyPagesToStop {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			pageOffset := offset
			offset += req.PageSize
			res.Pages++

			recs, err := w.fetchWithRetry(ctx, plog, catalog.PageRequest{Limit: req.PageSize, Offset: pageOffset, Tag: tag})
			if err != nil {
				res.FailedPages++
				pagesFetchedTotal.WithLabelValues("failed").Inc()
				plog.Error().Err(err).Int("offset", pageOffset).Msg("page fetch failed after retries; treating as empty")
			}
			if len(recs) == 0 {
				if err == nil {
					pagesFetchedTotal.WithLabelValues("empty").Inc()
				}
				empties++
				continue
			}
			empties = 0
			pagesFetchedTotal.WithLabelValues("ok").Inc()
			res.Fetched += len(recs)

			fresh := w.selectFresh(plog, recs, seen, &res)
			for start := 0; start < len(fresh); start += req.BatchSize {
				if err := ctx.Err(); err != nil {
					return res, err
				}
				end := min(start+req.BatchSize, len(fresh))
				batch := fresh[start:end]

				n, err := w.tracks.UpsertBatch(ctx, batch)
				if err != nil {
					res.FailedBatches++
					batchFailuresTotal.Inc()
					plog.Error().Err(err).
						Int("offset", pageOffset).
						Int("batch_size", len(batch)).
						Str("first_external_id", batch[0].ExternalID).
						Msg("track batch upsert failed; skipping")
					continue
				}
				res.Upserted += n
				tracksUpsertedTotal.Add(float64(n))

				if res.Upserted >= target {
					res.TargetReached = true
					w.logSummary(log, res, req)
					return res, nil
				}
			}
			plog.Debug().Int("offset", pageOffset).Int("records", len(recs)).Int64("upserted", res.Upserted).Msg("page processed")
		}
		plog.Info().Int("next_offset", offset).Msg("partition exhausted")
	}

	w.logSummary(log, res, req)
	return res, ErrTargetNotReached
}

// fetchWithRetry retries a failing page with exponential backoff and jitter.
// The returned error is the last failure once retries are exhausted.
func (w *Worker) fetchWithRetry(ctx context.Context, log zerolog.Logger, req catalog.PageRequest) ([]catalog.RawTrack, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = w.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.5
	exp.MaxInterval = w.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(w.cfg.MaxRetries)), ctx)

	var recs []catalog.RawTrack
	attempt := 0
	op := func() error {
		attempt++
		r, err := w.fetcher.FetchPage(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		recs = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		fetchRetriesTotal.Inc()
		log.Warn().Err(err).
			Bool("temporary", isTemporary(err)).
			Int("offset", req.Offset).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("catalog fetch failed; retrying")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("fetch offset=%d after %d attempts: %w", req.Offset, attempt, err)
	}
	return recs, nil
}

// isTemporary reports whether err is a catalog status the server expects to
// clear on its own (408, 429, 5xx). Transport errors count as temporary.
func isTemporary(err error) bool {
	var se *catalog.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ae *catalog.APIError
	return !errors.As(err, &ae)
}

// selectFresh normalizes recs and drops invalid records and IDs already seen in this run.
func (w *Worker) selectFresh(log zerolog.Logger, recs []catalog.RawTrack, seen map[string]struct{}, res *Result) []model.Track {
	out := make([]model.Track, 0, len(recs))
	for _, r := range recs {
		t, err := catalog.Normalize(r)
		if err != nil {
			res.Invalid++
			recordsDroppedTotal.WithLabelValues("invalid").Inc()
			log.Debug().Err(err).Str("external_id", string(r.ID)).Msg("dropping catalog record")
			continue
		}
		if _, dup := seen[t.ExternalID]; dup {
			res.Duplicates++
			recordsDroppedTotal.WithLabelValues("duplicate").Inc()
			continue
		}
		seen[t.ExternalID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (w *Worker) logSummary(log zerolog.Logger, res Result, req Request) {
	ev := log.Info()
	if !res.TargetReached {
		ev = log.Warn()
	}
	ev.Int64("upserted", res.Upserted).
		Int("target", req.Target).
		Int("fetched", res.Fetched).
		Int("pages", res.Pages).
		Int("failed_pages", res.FailedPages).
		Int("invalid", res.Invalid).
		Int("duplicates", res.Duplicates).
		Int("failed_batches", res.FailedBatches).
		Bool("target_reached", res.TargetReached).
		Msg("ingestion finished")
}

// partitionsOf returns the trimmed, non-empty tags, or one unfiltered partition.
func partitionsOf(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}
