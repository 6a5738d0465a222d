package catalog

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PrimaryFields(t *testing.T) {
	r := RawTrack{
		ID:         "1204",
		Name:       "Night Drive",
		ArtistName: "Moon Ensemble",
		Audio:      "https://cdn.example/1204.mp3",
		Image:      "https://cdn.example/1204.jpg",
		Duration:   Num(212.6),
		Popularity: Num(17),
	}
	tr, err := Normalize(r)
	require.NoError(t, err)
	assert.Equal(t, "1204", tr.ExternalID)
	assert.Equal(t, "Night Drive", tr.Title)
	assert.Equal(t, "Moon Ensemble", tr.Artist)
	assert.Equal(t, "https://cdn.example/1204.mp3", tr.AudioURL)
	assert.Equal(t, "https://cdn.example/1204.jpg", tr.ImageURL)
	assert.Equal(t, 213, tr.DurationSeconds)
	assert.Equal(t, 17.0, tr.Popularity)
}

func TestNormalize_FallbackFields(t *testing.T) {
	r := RawTrack{
		TrackID:       "77",
		Title:         "  Fallback Title ",
		Artist:        "Fallback Artist",
		AudioDownload: "https://cdn.example/77.zip",
		AlbumImage:    "https://cdn.example/album.jpg",
		Stats:         &RawStats{Favorited: Num(9), Likes: Num(3)},
	}
	tr, err := Normalize(r)
	require.NoError(t, err)
	assert.Equal(t, "77", tr.ExternalID)
	assert.Equal(t, "Fallback Title", tr.Title)
	assert.Equal(t, "Fallback Artist", tr.Artist)
	assert.Equal(t, "https://cdn.example/77.zip", tr.AudioURL)
	assert.Equal(t, "https://cdn.example/album.jpg", tr.ImageURL)
	assert.Equal(t, 0, tr.DurationSeconds)
	assert.Equal(t, 9.0, tr.Popularity)
}

func TestNormalize_AudioPriority(t *testing.T) {
	r := RawTrack{ID: "1", Name: "t", ArtistName: "a", AudioURL: "second", AudioDownload: "third"}
	tr, err := Normalize(r)
	require.NoError(t, err)
	assert.Equal(t, "second", tr.AudioURL)
}

func TestNormalize_NegativeValuesClamped(t *testing.T) {
	r := RawTrack{ID: "1", Name: "t", ArtistName: "a", Audio: "u", Duration: Num(-5), Popularity: Num(-1)}
	tr, err := Normalize(r)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.DurationSeconds)
	assert.Equal(t, 0.0, tr.Popularity)

	r.Duration = Num(1e20)
	tr, err = Normalize(r)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, tr.DurationSeconds)

	var decoded RawTrack
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","name":"t","artist_name":"a","audio":"u","duration":"1e20"}`), &decoded))
	tr, err = Normalize(decoded)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, tr.DurationSeconds, 0)
}

func TestNormalize_RejectsIncomplete(t *testing.T) {
	base := RawTrack{ID: "1", Name: "t", ArtistName: "a", Audio: "u"}
	cases := map[string]func(r *RawTrack){
		"missing id":     func(r *RawTrack) { r.ID = "" },
		"missing title":  func(r *RawTrack) { r.Name = "   " },
		"missing artist": func(r *RawTrack) { r.ArtistName = "" },
		"missing audio":  func(r *RawTrack) { r.Audio = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := base
			mutate(&r)
			_, err := Normalize(r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIncompleteRecord))
		})
	}
}

func TestRawTrack_DecodesLooseTypes(t *testing.T) {
	payload := `{"id": 1204, "name": "x", "artist_name": "y", "audio": "z",
		"duration": "181", "popularity": {"weird": true}, "stats": {"rate_listened_total": "42"}}`
	var r RawTrack
	require.NoError(t, json.Unmarshal([]byte(payload), &r))
	assert.Equal(t, FlexString("1204"), r.ID)
	assert.Equal(t, Num(181), r.Duration)
	assert.False(t, r.Popularity.Valid)

	tr, err := Normalize(r)
	require.NoError(t, err)
	assert.Equal(t, 181, tr.DurationSeconds)
	assert.Equal(t, 42.0, tr.Popularity)
}
