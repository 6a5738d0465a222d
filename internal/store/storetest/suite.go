package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TJYumul/playgen/internal/model"
	"github.com/TJYumul/playgen/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// makeStore must return a clean store with the schema applied.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("TracksUpsertIsIdempotent", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		batch := []model.Track{
			{ExternalID: "t1", Title: "One", Artist: "A", AudioURL: "https://a/1", DurationSeconds: 100, Popularity: 3},
			{ExternalID: "t2", Title: "Two", Artist: "B", AudioURL: "https://a/2", ImageURL: "https://a/2.jpg", DurationSeconds: 200, Popularity: 9},
		}
		n, err := s.Tracks().UpsertBatch(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		batch[0].Title = "One (remaster)"
		_, err = s.Tracks().UpsertBatch(ctx, batch)
		require.NoError(t, err)

		count, err := s.Tracks().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		list, err := s.Tracks().List(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "t2", list[0].ExternalID, "ordered by popularity desc")
		assert.Equal(t, "https://a/2.jpg", list[0].ImageURL)
		assert.Equal(t, "One (remaster)", list[1].Title)
		assert.Equal(t, "", list[1].ImageURL)
		assert.False(t, list[1].UpdatedAt.IsZero())

		page, err := s.Tracks().List(ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "t1", page[0].ExternalID)
	})

	t.Run("TracksBatchFailureRollsBack", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		bad := []model.Track{
			{ExternalID: "ok", Title: "x", Artist: "y", AudioURL: "z"},
			{ExternalID: "neg", Title: "x", Artist: "y", AudioURL: "z", DurationSeconds: -1},
		}
		_, err := s.Tracks().UpsertBatch(ctx, bad)
		require.Error(t, err)

		count, err := s.Tracks().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("Durations", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		_, err := s.Tracks().UpsertBatch(ctx, []model.Track{
			{ExternalID: "s1", Title: "x", Artist: "y", AudioURL: "z", DurationSeconds: 100},
			{ExternalID: "s2", Title: "x", Artist: "y", AudioURL: "z", DurationSeconds: 240},
		})
		require.NoError(t, err)

		got, err := s.Tracks().Durations(ctx, []string{"s1", "s2", "missing"})
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"s1": 100, "s2": 240}, got)

		empty, err := s.Tracks().Durations(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("EventsPageOrdering", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		d := func(v float64) *float64 { return &v }
		n, err := s.Events().Append(ctx, []model.Event{
			{UserID: "u2", ItemID: "s1", Kind: "play", OccurredAt: base},
			{UserID: "u1", ItemID: "s2", Kind: "play", OccurredAt: base.Add(time.Minute)},
			{UserID: "u1", ItemID: "s1", Kind: "skip", OccurredAt: base.Add(2 * time.Minute)},
			{UserID: "u1", ItemID: "s1", Kind: "play", OccurredAt: base, PlayDurationSeconds: d(30)},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		first, err := s.Events().Page(ctx, 0, 3)
		require.NoError(t, err)
		require.Len(t, first, 3)
		assert.Equal(t, "u1", first[0].UserID)
		assert.Equal(t, "s1", first[0].ItemID)
		assert.Equal(t, "play", first[0].Kind)
		require.NotNil(t, first[0].PlayDurationSeconds)
		assert.Equal(t, 30.0, *first[0].PlayDurationSeconds)
		assert.True(t, first[0].OccurredAt.Equal(base))
		assert.Equal(t, "skip", first[1].Kind)
		assert.Nil(t, first[1].PlayDurationSeconds)
		assert.Equal(t, "s2", first[2].ItemID)

		rest, err := s.Events().Page(ctx, 3, 3)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "u2", rest[0].UserID)

		tail, err := s.Events().Page(ctx, 4, 3)
		require.NoError(t, err)
		assert.Empty(t, tail)
	})

	t.Run("EventsPageOrderingIgnoresPadding", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		_, err := s.Events().Append(ctx, []model.Event{
			{UserID: "u1", ItemID: "s1", Kind: "play", OccurredAt: base},
			{UserID: " u1", ItemID: "s1 ", Kind: "skip", OccurredAt: base.Add(time.Minute)},
			{UserID: "u0", ItemID: "s1", Kind: "play", OccurredAt: base},
		})
		require.NoError(t, err)

		evs, err := s.Events().Page(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, evs, 3)
		assert.Equal(t, "u0", evs[0].UserID)
		assert.Equal(t, "play", evs[1].Kind)
		assert.Equal(t, "skip", evs[2].Kind)
	})

	t.Run("FeaturesOverwrite", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		row := model.UserItemFeature{
			UserID: "u1", ItemID: "s1", PlayCount: 2, SkipCount: 1, EventCount: 3,
			TotalPlayDuration: 70, AvgPlayDuration: 35, CompletionRate: 0.7,
			LastPlayedAt: &at, UpdatedAt: at,
		}
		_, err := s.Features().UpsertBatch(ctx, []model.UserItemFeature{row})
		require.NoError(t, err)

		row.PlayCount = 1
		row.LastPlayedAt = nil
		_, err = s.Features().UpsertBatch(ctx, []model.UserItemFeature{row})
		require.NoError(t, err)

		list, err := s.Features().List(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, int64(1), list[0].PlayCount, "upsert overwrites, never increments")
		assert.Nil(t, list[0].LastPlayedAt)
		assert.InDelta(t, 0.7, list[0].CompletionRate, 1e-9)
		assert.True(t, list[0].UpdatedAt.Equal(at))

		count, err := s.Features().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("SchemaVerifies", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		require.NoError(t, s.Ping(ctx))
		require.NoError(t, s.VerifySchema(ctx))
		err := s.EnsureSchema(ctx)
		require.NoError(t, err, "EnsureSchema is repeatable")
		assert.False(t, errors.Is(s.VerifySchema(ctx), store.ErrSchemaMismatch))
	})
}
