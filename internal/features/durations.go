package features

import (
	"context"
	"fmt"
	"math"
)

// DefaultChunkSize bounds the number of IDs per duration lookup.
const DefaultChunkSize = 200

// DurationSource looks up catalog durations. store.Tracks implements it.
type DurationSource interface {
	Durations(ctx context.Context, ids []string) (map[string]float64, error)
}

// DurationCache memoizes reference durations for the lifetime of one run.
// Items unknown to the catalog are cached as 0 and never re-queried.
type DurationCache struct {
	src       DurationSource
	chunkSize int
	values    map[string]float64
	lookups   int
}

// NewDurationCache returns an empty cache. chunkSize <= 0 selects DefaultChunkSize.
func NewDurationCache(src DurationSource, chunkSize int) *DurationCache {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &DurationCache{src: src, chunkSize: chunkSize, values: make(map[string]float64)}
}

// Get returns the cached duration in seconds, or 0.
func (c *DurationCache) Get(itemID string) float64 { return c.values[itemID] }

// Hydrate fetches durations for the IDs not cached yet.
func (c *DurationCache) Hydrate(ctx context.Context, ids []string) error {
	var missing []string
	queued := make(map[string]struct{})
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := c.values[id]; ok {
			continue
		}
		if _, ok := queued[id]; ok {
			continue
		}
		queued[id] = struct{}{}
		missing = append(missing, id)
	}

	for start := 0; start < len(missing); start += c.chunkSize {
		chunk := missing[start:min(start+c.chunkSize, len(missing))]
		got, err := c.src.Durations(ctx, chunk)
		c.lookups++
		durationLookupsTotal.Inc()
		if err != nil {
			return fmt.Errorf("hydrate durations (%d ids): %w", len(chunk), err)
		}
		for _, id := range chunk {
			d := got[id]
			if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
				d = 0
			}
			c.values[id] = d
		}
	}
	return nil
}

// Len reports how many item IDs are cached.
func (c *DurationCache) Len() int { return len(c.values) }

// Lookups reports how many store queries Hydrate has issued.
func (c *DurationCache) Lookups() int { return c.lookups }
