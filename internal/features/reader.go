package features

import (
	"context"
	"fmt"

	"github.com/TJYumul/playgen/internal/model"
)

// DefaultPageSize is used when a reader is built with a non-positive page size.
const DefaultPageSize = 1000

// EventSource returns events ordered by (user_id, item_id, occurred_at, id).
// store.Events implements it.
type EventSource interface {
	Page(ctx context.Context, offset, limit int) ([]model.Event, error)
}

// EventReader pages through the event log one bounded query at a time.
// It is finite: it stops after an empty or short page, or once maxEvents
// events have been returned.
type EventReader struct {
	src       EventSource
	pageSize  int
	maxEvents int

	offset int
	done   bool
}

// NewEventReader returns a reader positioned at offset 0. maxEvents <= 0 reads
// the whole log.
func NewEventReader(src EventSource, pageSize, maxEvents int) *EventReader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxEvents < 0 {
		maxEvents = 0
	}
	return &EventReader{src: src, pageSize: pageSize, maxEvents: maxEvents}
}

// Next returns the next page. ok is false once the log is exhausted; a failed
// query leaves the position unchanged so the call can be repeated.
func (r *EventReader) Next(ctx context.Context) (page []model.Event, ok bool, err error) {
	if r.done {
		return nil, false, nil
	}
	limit := r.pageSize
	if r.maxEvents > 0 {
		remaining := r.maxEvents - r.offset
		if remaining <= 0 {
			r.done = true
			return nil, false, nil
		}
		limit = min(limit, remaining)
	}

	page, err = r.src.Page(ctx, r.offset, limit)
	if err != nil {
		return nil, false, fmt.Errorf("read events offset=%d limit=%d: %w", r.offset, limit, err)
	}
	if len(page) == 0 {
		r.done = true
		return nil, false, nil
	}
	r.offset += len(page)
	if len(page) < limit {
		r.done = true
	}
	return page, true, nil
}

// Offset is the number of events returned so far.
func (r *EventReader) Offset() int { return r.offset }

// Reset rewinds the reader to the start of the log.
func (r *EventReader) Reset() {
	r.offset = 0
	r.done = false
}
