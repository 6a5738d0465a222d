package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/TJYumul/playgen/internal/model"
)

const (
	upsertTrackSQL = `
INSERT INTO tracks (external_id, title, artist, audio_url, image_url, duration_seconds, popularity, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (external_id) DO UPDATE SET
    title = excluded.title,
    artist = excluded.artist,
    audio_url = excluded.audio_url,
    image_url = excluded.image_url,
    duration_seconds = excluded.duration_seconds,
    popularity = excluded.popularity,
    updated_at = excluded.updated_at`

	listTracksSQL = `
SELECT external_id, title, artist, audio_url, image_url, duration_seconds, popularity, updated_at
FROM tracks
ORDER BY popularity DESC, external_id ASC
LIMIT ? OFFSET ?`

	upsertFeatureSQL = `
INSERT INTO user_item_features (user_id, item_id, play_count, skip_count, complete_count, event_count,
    total_play_duration, avg_play_duration, completion_rate, last_played_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, item_id) DO UPDATE SET
    play_count = excluded.play_count,
    skip_count = excluded.skip_count,
    complete_count = excluded.complete_count,
    event_count = excluded.event_count,
    total_play_duration = excluded.total_play_duration,
    avg_play_duration = excluded.avg_play_duration,
    completion_rate = excluded.completion_rate,
    last_played_at = excluded.last_played_at,
    updated_at = excluded.updated_at`

	listFeaturesSQL = `
SELECT user_id, item_id, play_count, skip_count, complete_count, event_count,
    total_play_duration, avg_play_duration, completion_rate, last_played_at, updated_at
FROM user_item_features
ORDER BY user_id ASC, item_id ASC
LIMIT ? OFFSET ?`

	pageEventsSQL = `
SELECT id, user_id, item_id, event_kind, occurred_at, play_duration
FROM events
ORDER BY TRIM(user_id) ASC, TRIM(item_id) ASC, occurred_at ASC, id ASC
LIMIT ? OFFSET ?`

	appendEventSQL = `
INSERT INTO events (user_id, item_id, event_kind, occurred_at, play_duration)
VALUES (?, ?, ?, ?, ?)`
)

// --- Tracks ---
type tracks struct{ s *sqlStore }

func (t *tracks) UpsertBatch(ctx context.Context, batch []model.Track) (int64, error) {
	now := t.s.now()
	args := make([][]any, 0, len(batch))
	for _, tr := range batch {
		args = append(args, []any{
			tr.ExternalID, tr.Title, tr.Artist, tr.AudioURL, nullString(tr.ImageURL),
			tr.DurationSeconds, tr.Popularity, now,
		})
	}
	n, err := t.s.execBatch(ctx, upsertTrackSQL, args)
	if err != nil {
		return 0, fmt.Errorf("upsert tracks: %w", err)
	}
	return n, nil
}

func (t *tracks) List(ctx context.Context, offset, limit int) ([]model.Track, error) {
	rows, err := t.s.db.QueryContext(ctx, t.s.rebind(listTracksSQL), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Track
	for rows.Next() {
		var tr model.Track
		var image sql.NullString
		var updated flexTime
		if err := rows.Scan(&tr.ExternalID, &tr.Title, &tr.Artist, &tr.AudioURL, &image,
			&tr.DurationSeconds, &tr.Popularity, &updated); err != nil {
			return nil, err
		}
		tr.ImageURL = image.String
		tr.UpdatedAt = updated.Time
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (t *tracks) Count(ctx context.Context) (int64, error) { return t.s.count(ctx, "tracks") }

func (t *tracks) Durations(ctx context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := "SELECT external_id, duration_seconds FROM tracks WHERE external_id IN (" +
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := t.s.db.QueryContext(ctx, t.s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("lookup durations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id string
		var d flexFloat
		if err := rows.Scan(&id, &d); err != nil {
			return nil, err
		}
		out[id] = d.Float
	}
	return out, rows.Err()
}

// --- Features ---
type features struct{ s *sqlStore }

func (f *features) UpsertBatch(ctx context.Context, batch []model.UserItemFeature) (int64, error) {
	args := make([][]any, 0, len(batch))
	for _, r := range batch {
		args = append(args, []any{
			r.UserID, r.ItemID, r.PlayCount, r.SkipCount, r.CompleteCount, r.EventCount,
			r.TotalPlayDuration, r.AvgPlayDuration, r.CompletionRate,
			nullTime(r.LastPlayedAt), r.UpdatedAt.UTC(),
		})
	}
	n, err := f.s.execBatch(ctx, upsertFeatureSQL, args)
	if err != nil {
		return 0, fmt.Errorf("upsert features: %w", err)
	}
	return n, nil
}

func (f *features) List(ctx context.Context, offset, limit int) ([]model.UserItemFeature, error) {
	rows, err := f.s.db.QueryContext(ctx, f.s.rebind(listFeaturesSQL), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.UserItemFeature
	for rows.Next() {
		var r model.UserItemFeature
		var last, updated flexTime
		if err := rows.Scan(&r.UserID, &r.ItemID, &r.PlayCount, &r.SkipCount, &r.CompleteCount, &r.EventCount,
			&r.TotalPlayDuration, &r.AvgPlayDuration, &r.CompletionRate, &last, &updated); err != nil {
			return nil, err
		}
		r.LastPlayedAt = last.ptr()
		r.UpdatedAt = updated.Time
		out = append(out, r)
	}
	return out, rows.Err()
}

func (f *features) Count(ctx context.Context) (int64, error) {
	return f.s.count(ctx, "user_item_features")
}

// --- Events ---
type events struct{ s *sqlStore }

func (e *events) Page(ctx context.Context, offset, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := e.s.db.QueryContext(ctx, e.s.rebind(pageEventsSQL), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("page events offset=%d: %w", offset, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Event, 0, limit)
	for rows.Next() {
		var ev model.Event
		var user, item, kind sql.NullString
		var at flexTime
		var dur flexFloat
		if err := rows.Scan(&ev.ID, &user, &item, &kind, &at, &dur); err != nil {
			return nil, err
		}
		ev.UserID, ev.ItemID, ev.Kind = user.String, item.String, kind.String
		ev.OccurredAt = at.Time
		ev.PlayDurationSeconds = dur.ptr()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (e *events) Append(ctx context.Context, batch []model.Event) (int64, error) {
	args := make([][]any, 0, len(batch))
	for _, ev := range batch {
		var dur any
		if ev.PlayDurationSeconds != nil {
			dur = *ev.PlayDurationSeconds
		}
		var at any
		if !ev.OccurredAt.IsZero() {
			at = ev.OccurredAt.UTC()
		}
		args = append(args, []any{ev.UserID, ev.ItemID, ev.Kind, at, dur})
	}
	n, err := e.s.execBatch(ctx, appendEventSQL, args)
	if err != nil {
		return 0, fmt.Errorf("append events: %w", err)
	}
	return n, nil
}
