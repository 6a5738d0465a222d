package store

import (
	"context"
	"errors"

	"github.com/TJYumul/playgen/internal/model"
)

// ErrSchemaMismatch is returned by VerifySchema when a table does not carry
// the columns the pipelines rely on.
var ErrSchemaMismatch = errors.New("store schema mismatch")

// Store exposes persistence operations required by the pipelines.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Tracks() Tracks
	Features() Features
	Events() Events

	// EnsureSchema creates missing tables and indexes.
	EnsureSchema(ctx context.Context) error
	// VerifySchema fails with ErrSchemaMismatch when a required column is absent.
	VerifySchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tracks is the catalog table, keyed by external ID.
type Tracks interface {
	// UpsertBatch writes all tracks in one transaction and returns the
	// number of affected rows. On error nothing from the batch is kept.
	UpsertBatch(ctx context.Context, tracks []model.Track) (int64, error)
	List(ctx context.Context, offset, limit int) ([]model.Track, error)
	Count(ctx context.Context) (int64, error)
	// Durations returns duration_seconds for the given external IDs.
	// IDs not in the catalog are absent from the result.
	Durations(ctx context.Context, ids []string) (map[string]float64, error)
}

// Features is the user/item feature table, keyed by (user_id, item_id).
type Features interface {
	// UpsertBatch overwrites every column of each row; it never increments.
	UpsertBatch(ctx context.Context, rows []model.UserItemFeature) (int64, error)
	List(ctx context.Context, offset, limit int) ([]model.UserItemFeature, error)
	Count(ctx context.Context) (int64, error)
}

// Events is the append-only playback log.
type Events interface {
	// Page returns up to limit events starting at offset, ordered by
	// (TRIM(user_id), TRIM(item_id), occurred_at, id) so that IDs differing
	// only in surrounding spaces are adjacent.
	Page(ctx context.Context, offset, limit int) ([]model.Event, error)
	Append(ctx context.Context, events []model.Event) (int64, error)
}
