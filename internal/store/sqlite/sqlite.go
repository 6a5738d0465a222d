package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/TJYumul/playgen/internal/store"
	"github.com/TJYumul/playgen/internal/store/sqlstore"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Dialect is the SQLite flavour of the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:         "sqlite",
	ColumnsQuery: `SELECT name FROM pragma_table_info(?)`,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS tracks (
            external_id      TEXT PRIMARY KEY,
            title            TEXT NOT NULL,
            artist           TEXT NOT NULL,
            audio_url        TEXT NOT NULL,
            image_url        TEXT,
            duration_seconds INTEGER NOT NULL DEFAULT 0 CHECK (duration_seconds >= 0),
            popularity       REAL NOT NULL DEFAULT 0 CHECK (popularity >= 0),
            updated_at       TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS events (
            id            INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id       TEXT,
            item_id       TEXT,
            event_kind    TEXT NOT NULL DEFAULT '',
            occurred_at   TIMESTAMP,
            play_duration REAL
        );`,
		`CREATE INDEX IF NOT EXISTS events_key_time_idx ON events (TRIM(user_id), TRIM(item_id), occurred_at, id);`,
		`CREATE TABLE IF NOT EXISTS user_item_features (
            user_id             TEXT NOT NULL,
            item_id             TEXT NOT NULL,
            play_count          INTEGER NOT NULL DEFAULT 0,
            skip_count          INTEGER NOT NULL DEFAULT 0,
            complete_count      INTEGER NOT NULL DEFAULT 0,
            event_count         INTEGER NOT NULL DEFAULT 0,
            total_play_duration REAL NOT NULL DEFAULT 0,
            avg_play_duration   REAL NOT NULL DEFAULT 0,
            completion_rate     REAL NOT NULL DEFAULT 0 CHECK (completion_rate >= 0 AND completion_rate <= 1),
            last_played_at      TIMESTAMP,
            updated_at          TIMESTAMP NOT NULL,
            PRIMARY KEY (user_id, item_id)
        );`,
	},
}

// Open opens (or creates) a SQLite database at path. MemoryPath yields a
// private in-memory database pinned to a single connection.
func Open(path string) (*sql.DB, error) {
	const params = "_pragma=foreign_keys(ON)&_time_format=sqlite"
	var dsn string
	if path == MemoryPath {
		dsn = "file::memory:?" + params
	} else {
		// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&%s", path, params)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; for :memory: this also keeps every query on the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB wraps an existing connection.
func NewWithDB(db *sql.DB) store.Store { return sqlstore.New(db, Dialect) }

// New opens path, applies the schema and returns the store.
func New(ctx context.Context, path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	s := NewWithDB(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
