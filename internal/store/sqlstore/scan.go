package sqlstore

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order when a timestamp column comes back as text.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// flexTime scans a timestamp stored as a native time, text, or unix epoch.
// Unparseable values leave Valid false instead of failing the row.
type flexTime struct {
	Time  time.Time
	Valid bool
}

func (t *flexTime) Scan(src any) error {
	*t = flexTime{}
	switch v := src.(type) {
	case nil:
	case time.Time:
		t.Time, t.Valid = v.UTC(), !v.IsZero()
	case int64:
		t.Time, t.Valid = fromEpoch(float64(v))
	case float64:
		t.Time, t.Valid = fromEpoch(v)
	case []byte:
		t.Time, t.Valid = parseTimestamp(string(v))
	case string:
		t.Time, t.Valid = parseTimestamp(v)
	}
	return nil
}

func (t flexTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	return time.Time{}, false
}

// fromEpoch accepts seconds or milliseconds since the epoch.
func fromEpoch(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, false
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

// flexFloat scans a numeric column that may hold text or NULL.
type flexFloat struct {
	Float float64
	Valid bool
}

func (f *flexFloat) Scan(src any) error {
	*f = flexFloat{}
	switch v := src.(type) {
	case nil:
	case float64:
		f.Float, f.Valid = v, true
	case float32:
		f.Float, f.Valid = float64(v), true
	case int64:
		f.Float, f.Valid = float64(v), true
	case []byte:
		f.Float, f.Valid = parseFloat(string(v))
	case string:
		f.Float, f.Valid = parseFloat(v)
	}
	if f.Valid && (math.IsNaN(f.Float) || math.IsInf(f.Float, 0)) {
		*f = flexFloat{}
	}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float
	return &v
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
