package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawTrack is one result as returned by the catalog API. Several fields are
// published under more than one name; Normalize resolves them in a fixed order.
type RawTrack struct {
	ID      FlexString `json:"id"`
	TrackID FlexString `json:"track_id"`

	Name  string `json:"name"`
	Title string `json:"title"`

	ArtistName string `json:"artist_name"`
	Artist     string `json:"artist"`

	Audio         string `json:"audio"`
	AudioURL      string `json:"audio_url"`
	AudioDownload string `json:"audiodownload"`

	Image      string `json:"image"`
	AlbumImage string `json:"album_image"`

	Duration   FlexNumber `json:"duration"`
	Popularity FlexNumber `json:"popularity"`
	Stats      *RawStats  `json:"stats,omitempty"`
}

// RawStats carries the popularity signals exposed with include=stats.
type RawStats struct {
	RateListenedTotal FlexNumber `json:"rate_listened_total"`
	Favorited         FlexNumber `json:"favorited"`
	Likes             FlexNumber `json:"likes"`
}

// FlexString accepts a JSON string or number. Other shapes decode to "".
type FlexString string

// UnmarshalJSON implements json.Unmarshaler and never fails.
func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			*s = ""
			return nil
		}
		*s = FlexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*s = ""
		return nil
	}
	*s = FlexString(n.String())
	return nil
}

// FlexNumber accepts a JSON number or a numeric string. Valid is false when
// the field is missing, null, or not numeric.
type FlexNumber struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler and never fails.
func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	*n = FlexNumber{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		raw = strings.TrimSpace(v)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	*n = FlexNumber{Value: f, Valid: true}
	return nil
}

// MarshalJSON emits the number, or null when invalid.
func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Num is a convenience constructor for a valid FlexNumber.
func Num(v float64) FlexNumber { return FlexNumber{Value: v, Valid: true} }
