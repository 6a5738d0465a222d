package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/TJYumul/playgen/internal/model"
)

// maxDurationSeconds caps absurd durations so the int conversion cannot overflow.
const maxDurationSeconds = math.MaxInt32

// ErrIncompleteRecord is returned by Normalize when a required field is missing.
var ErrIncompleteRecord = errors.New("incomplete catalog record")

// Normalize maps a raw catalog record to a Track.
//
// Field priority:
//
//	externalId: id, track_id
//	title:      name, title
//	artist:     artist_name, artist
//	audioUrl:   audio, audio_url, audiodownload
//	imageUrl:   image, album_image
//	popularity: popularity, stats.rate_listened_total, stats.favorited, stats.likes
//
// Duration and popularity are rounded/clamped to be non-negative.
func Normalize(r RawTrack) (model.Track, error) {
	t := model.Track{
		ExternalID: firstNonEmpty(string(r.ID), string(r.TrackID)),
		Title:      firstNonEmpty(r.Name, r.Title),
		Artist:     firstNonEmpty(r.ArtistName, r.Artist),
		AudioURL:   firstNonEmpty(r.Audio, r.AudioURL, r.AudioDownload),
		ImageURL:   firstNonEmpty(r.Image, r.AlbumImage),
	}

	var missing []string
	if t.ExternalID == "" {
		missing = append(missing, "externalId")
	}
	if t.Title == "" {
		missing = append(missing, "title")
	}
	if t.Artist == "" {
		missing = append(missing, "artist")
	}
	if t.AudioURL == "" {
		missing = append(missing, "audioUrl")
	}
	if len(missing) > 0 {
		return model.Track{}, fmt.Errorf("%w: missing %s", ErrIncompleteRecord, strings.Join(missing, ","))
	}

	if r.Duration.Valid {
		t.DurationSeconds = int(math.Min(nonNegative(math.Round(r.Duration.Value)), maxDurationSeconds))
	}
	t.Popularity = nonNegative(popularity(r))
	return t, nil
}

func popularity(r RawTrack) float64 {
	if r.Popularity.Valid {
		return r.Popularity.Value
	}
	if r.Stats == nil {
		return 0
	}
	for _, n := range []FlexNumber{r.Stats.RateListenedTotal, r.Stats.Favorited, r.Stats.Likes} {
		if n.Valid {
			return n.Value
		}
	}
	return 0
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
