// Package sqlstore implements store.Store on database/sql. Driver packages
// supply a Dialect with their placeholder style, DDL and catalog queries.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TJYumul/playgen/internal/store"
)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of '?'.
	NumberedParams bool
	// Schema is executed statement by statement by EnsureSchema.
	Schema []string
	// ColumnsQuery lists the column names of the table bound to its single '?'.
	ColumnsQuery string
}

// requiredColumns is the explicit schema contract the pipelines rely on.
var requiredColumns = map[string][]string{
	"tracks":             {"external_id", "title", "artist", "audio_url", "image_url", "duration_seconds", "popularity", "updated_at"},
	"events":             {"id", "user_id", "item_id", "event_kind", "occurred_at", "play_duration"},
	"user_item_features": {"user_id", "item_id", "play_count", "skip_count", "complete_count", "event_count", "total_play_duration", "avg_play_duration", "completion_rate", "last_played_at", "updated_at"},
}

// New wraps db with the given dialect.
func New(db *sql.DB, d Dialect) store.Store {
	return &sqlStore{db: db, d: d, now: func() time.Time { return time.Now().UTC() }}
}

type sqlStore struct {
	db  *sql.DB
	d   Dialect
	now func() time.Time
}

func (s *sqlStore) Tracks() store.Tracks     { return &tracks{s} }
func (s *sqlStore) Features() store.Features { return &features{s} }
func (s *sqlStore) Events() store.Events     { return &events{s} }

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.d.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s ensure schema: %w", s.d.Name, err)
		}
	}
	return nil
}

func (s *sqlStore) VerifySchema(ctx context.Context) error {
	for _, table := range []string{"events", "tracks", "user_item_features"} {
		have, err := s.columns(ctx, table)
		if err != nil {
			return err
		}
		if len(have) == 0 {
			return fmt.Errorf("%w: table %s does not exist", store.ErrSchemaMismatch, table)
		}
		var missing []string
		for _, col := range requiredColumns[table] {
			if !have[col] {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: table %s missing columns %s", store.ErrSchemaMismatch, table, strings.Join(missing, ","))
		}
	}
	return nil
}

func (s *sqlStore) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(s.d.ColumnsQuery), table)
	if err != nil {
		return nil, fmt.Errorf("%s list columns of %s: %w", s.d.Name, table, err)
	}
	defer func() { _ = rows.Close() }()
	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[strings.ToLower(name)] = true
	}
	return out, rows.Err()
}

// rebind rewrites '?' placeholders for dialects with numbered parameters.
func (s *sqlStore) rebind(q string) string {
	if !s.d.NumberedParams {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// execBatch runs stmt once per argument row inside one transaction and
// returns the summed affected rows. Any failure rolls the whole batch back.
func (s *sqlStore) execBatch(ctx context.Context, stmt string, args [][]any) (int64, error) {
	if len(args) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	prepared, err := tx.PrepareContext(ctx, s.rebind(stmt))
	if err != nil {
		return 0, err
	}
	defer func() { _ = prepared.Close() }()

	var affected int64
	for i, row := range args {
		res, err := prepared.ExecContext(ctx, row...)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		affected += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}

func (s *sqlStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}
