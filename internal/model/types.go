package model

import "time"

// Track is a normalized catalog record keyed by its external ID.
type Track struct {
	ExternalID      string    `json:"externalId"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	AudioURL        string    `json:"audioUrl"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	DurationSeconds int       `json:"durationSeconds"`
	Popularity      float64   `json:"popularity"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Event kinds the aggregator counts individually. Other kinds are valid
// but only contribute to EventCount.
const (
	EventPlay     = "play"
	EventPause    = "pause"
	EventSkip     = "skip"
	EventComplete = "complete"
	EventLike     = "like"
	EventDislike  = "dislike"
)

// Event is one logged playback interaction.
// OccurredAt is the zero time when the stored value could not be parsed.
// PlayDurationSeconds is nil when the stored value is absent or not numeric.
type Event struct {
	ID                  int64     `json:"id"`
	UserID              string    `json:"userId"`
	ItemID              string    `json:"itemId"`
	Kind                string    `json:"eventKind"`
	OccurredAt          time.Time `json:"occurredAt"`
	PlayDurationSeconds *float64  `json:"playDurationSeconds,omitempty"`
}

// UserItemFeature is the aggregated behaviour of one user on one item.
type UserItemFeature struct {
	UserID            string     `json:"userId"`
	ItemID            string     `json:"itemId"`
	PlayCount         int64      `json:"playCount"`
	SkipCount         int64      `json:"skipCount"`
	CompleteCount     int64      `json:"completeCount"`
	EventCount        int64      `json:"eventCount"`
	TotalPlayDuration float64    `json:"totalPlayDuration"`
	AvgPlayDuration   float64    `json:"avgPlayDuration"`
	CompletionRate    float64    `json:"completionRate"`
	LastPlayedAt      *time.Time `json:"lastPlayedAt,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// FeatureKey identifies a UserItemFeature.
type FeatureKey struct {
	UserID string
	ItemID string
}

// Key returns the composite key of f.
func (f UserItemFeature) Key() FeatureKey {
	return FeatureKey{UserID: f.UserID, ItemID: f.ItemID}
}
