package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/TJYumul/playgen/internal/store"
	"github.com/TJYumul/playgen/internal/store/sqlstore"
)

// Dialect is the Postgres flavour of the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:           "postgres",
	NumberedParams: true,
	ColumnsQuery: `
SELECT column_name FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = ?`,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS tracks (
            external_id      TEXT PRIMARY KEY,
            title            TEXT NOT NULL,
            artist           TEXT NOT NULL,
            audio_url        TEXT NOT NULL,
            image_url        TEXT,
            duration_seconds INTEGER NOT NULL DEFAULT 0 CHECK (duration_seconds >= 0),
            popularity       DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (popularity >= 0),
            updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS events (
            id            BIGSERIAL PRIMARY KEY,
            user_id       TEXT,
            item_id       TEXT,
            event_kind    TEXT NOT NULL DEFAULT '',
            occurred_at   TIMESTAMPTZ,
            play_duration DOUBLE PRECISION
        )`,
		`CREATE INDEX IF NOT EXISTS events_key_time_idx ON events ((TRIM(user_id)), (TRIM(item_id)), occurred_at, id)`,
		`CREATE TABLE IF NOT EXISTS user_item_features (
            user_id             TEXT NOT NULL,
            item_id             TEXT NOT NULL,
            play_count          BIGINT NOT NULL DEFAULT 0,
            skip_count          BIGINT NOT NULL DEFAULT 0,
            complete_count      BIGINT NOT NULL DEFAULT 0,
            event_count         BIGINT NOT NULL DEFAULT 0,
            total_play_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
            avg_play_duration   DOUBLE PRECISION NOT NULL DEFAULT 0,
            completion_rate     DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (completion_rate >= 0 AND completion_rate <= 1),
            last_played_at      TIMESTAMPTZ,
            updated_at          TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (user_id, item_id)
        )`,
	},
}

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return sqlstore.New(db, Dialect) }

// New opens dsn and returns the store.
func New(ctx context.Context, dsn string) (store.Store, error) {
	db, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db), nil
}
