package features

import (
	"math"
	"strings"
	"time"

	"github.com/TJYumul/playgen/internal/model"
)

// accumulator folds the events of one (user, item) group.
type accumulator struct {
	key       model.FeatureKey
	plays     int64
	skips     int64
	completes int64
	events    int64
	total     float64
	last      time.Time
}

func newAccumulator(key model.FeatureKey) *accumulator {
	return &accumulator{key: key}
}

func (a *accumulator) add(ev model.Event) {
	a.events++
	switch strings.ToLower(strings.TrimSpace(ev.Kind)) {
	case model.EventPlay:
		a.plays++
	case model.EventSkip:
		a.skips++
	case model.EventComplete:
		a.completes++
	}
	a.total += playDuration(ev.PlayDurationSeconds)
	if !ev.OccurredAt.IsZero() && ev.OccurredAt.After(a.last) {
		a.last = ev.OccurredAt
	}
}

// finish derives the feature row. ref is the item's catalog duration in seconds.
func (a *accumulator) finish(ref float64, updatedAt time.Time) model.UserItemFeature {
	f := model.UserItemFeature{
		UserID:            a.key.UserID,
		ItemID:            a.key.ItemID,
		PlayCount:         a.plays,
		SkipCount:         a.skips,
		CompleteCount:     a.completes,
		EventCount:        a.events,
		TotalPlayDuration: a.total,
		UpdatedAt:         updatedAt,
	}
	if a.plays > 0 {
		f.AvgPlayDuration = math.Round(a.total / float64(a.plays))
	}
	if ref > 0 && !math.IsInf(ref, 0) {
		f.CompletionRate = clamp(a.total/ref, 0, 1)
	}
	if !a.last.IsZero() {
		last := a.last.UTC()
		f.LastPlayedAt = &last
	}
	return f
}

// playDuration maps absent or invalid durations to 0.
func playDuration(d *float64) float64 {
	if d == nil || math.IsNaN(*d) || math.IsInf(*d, 0) || *d < 0 {
		return 0
	}
	return *d
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
