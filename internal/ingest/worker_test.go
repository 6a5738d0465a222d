package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TJYumul/playgen/internal/catalog"
	"github.com/TJYumul/playgen/internal/model"
	"github.com/TJYumul/playgen/internal/store/sqlite"
)

type fetchFunc func(ctx context.Context, req catalog.PageRequest) ([]catalog.RawTrack, error)

type fakeFetcher struct {
	mu    sync.Mutex
	fn    fetchFunc
	calls []catalog.PageRequest
}

func (f *fakeFetcher) FetchPage(ctx context.Context, req catalog.PageRequest) ([]catalog.RawTrack, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(ctx, req)
}

type recordingWriter struct {
	batches [][]model.Track
	failOn  string
}

func (w *recordingWriter) UpsertBatch(_ context.Context, tracks []model.Track) (int64, error) {
	for _, t := range tracks {
		if t.ExternalID == w.failOn {
			return 0, errors.New("constraint violation")
		}
	}
	w.batches = append(w.batches, tracks)
	return int64(len(tracks)), nil
}

func (w *recordingWriter) total() int {
	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func raw(id string) catalog.RawTrack {
	return catalog.RawTrack{
		ID:         catalog.FlexString(id),
		Name:       "Song " + id,
		ArtistName: "Artist",
		Audio:      "https://cdn.example/" + id + ".mp3",
		Duration:   catalog.Num(180),
	}
}

// sliceCatalog serves records like an offset-paginated API.
func sliceCatalog(recs []catalog.RawTrack) fetchFunc {
	return func(_ context.Context, req catalog.PageRequest) ([]catalog.RawTrack, error) {
		if req.Offset >= len(recs) {
			return nil, nil
		}
		end := min(req.Offset+req.Limit, len(recs))
		return recs[req.Offset:end], nil
	}
}

func numbered(prefix string, n int) []catalog.RawTrack {
	out := make([]catalog.RawTrack, n)
	for i := range out {
		out[i] = raw(fmt.Sprintf("%s-%d", prefix, i))
	}
	return out
}

func fastConfig() Config {
	return Config{MaxRetries: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestWorker_PartitionExhaustedBeforeTarget(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.New(ctx, sqlite.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	f := &fakeFetcher{fn: sliceCatalog(numbered("t", 30))}
	w := NewWorker(f, s.Tracks(), fastConfig(), zerolog.Nop())

	res, err := w.Run(ctx, Request{Target: 50, PageSize: 20, BatchSize: 25})
	require.ErrorIs(t, err, ErrTargetNotReached)
	assert.False(t, res.TargetReached)
	assert.EqualValues(t, 30, res.Upserted)
	assert.Equal(t, 30, res.Fetched)
	assert.Equal(t, 4, res.Pages, "two data pages then two empty pages")
	assert.NotEmpty(t, res.RunID)

	n, err := s.Tracks().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 30, n)

	offsets := make([]int, 0, len(f.calls))
	for _, c := range f.calls {
		offsets = append(offsets, c.Offset)
		assert.Equal(t, 20, c.Limit)
	}
	assert.Equal(t, []int{0, 20, 40, 60}, offsets)
}

func TestWorker_FailedBatchDoesNotStopRun(t *testing.T) {
	f := &fakeFetcher{fn: sliceCatalog(numbered("t", 10))}
	wr := &recordingWriter{failOn: "t-4"}
	w := NewWorker(f, wr, fastConfig(), zerolog.Nop())

	res, err := w.Run(context.Background(), Request{Target: 100, PageSize: 10, BatchSize: 3})
	require.ErrorIs(t, err, ErrTargetNotReached)
	assert.Equal(t, 1, res.FailedBatches)
	assert.EqualValues(t, 7, res.Upserted)
	assert.Len(t, wr.batches, 3)
	assert.Equal(t, 7, wr.total())
	assert.Equal(t, "t-9", wr.batches[2][0].ExternalID)
}

func TestWorker_StopsOnceTargetReached(t *testing.T) {
	f := &fakeFetcher{fn: sliceCatalog(numbered("t", 100))}
	wr := &recordingWriter{}
	w := NewWorker(f, wr, fastConfig(), zerolog.Nop())

	res, err := w.Run(context.Background(), Request{Target: 25, PageSize: 20, BatchSize: 10})
	require.NoError(t, err)
	assert.True(t, res.TargetReached)
	assert.EqualValues(t, 30, res.Upserted)
	assert.Len(t, f.calls, 2)
}

func TestWorker_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	f := &fakeFetcher{fn: func(_ context.Context, req catalog.PageRequest) ([]catalog.RawTrack, error) {
		if req.Offset == 0 {
			attempts++
			if attempts < 3 {
				return nil, &catalog.StatusError{StatusCode: 503}
			}
			return numbered("t", 5), nil
		}
		return nil, nil
	}}
	wr := &recordingWriter{}
	w := NewWorker(f, wr, fastConfig(), zerolog.Nop())

	res, err := w.Run(context.Background(), Request{Target: 5, PageSize: 10, BatchSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, res.FailedPages)
	assert.EqualValues(t, 5, res.Upserted)
}

func TestWorker_ExhaustedRetriesTreatPageAsEmpty(t *testing.T) {
	f := &fakeFetcher{fn: func(context.Context, catalog.PageRequest) ([]catalog.RawTrack, error) {
		return nil, errors.New("connection reset")
	}}
	w := NewWorker(f, &recordingWriter{}, fastConfig(), zerolog.Nop())

	res, err := w.Run(context.Background(), Request{Target: 5, PageSize: 10, BatchSize: 5})
	require.ErrorIs(t, err, ErrTargetNotReached)
	assert.Equal(t, 2, res.FailedPages)
	assert.Equal(t, 2, res.Pages)
	// first attempt plus MaxRetries, for each of the two pages
	assert.Len(t, f.calls, 2*4)
}

func TestWorker_FailedPageBetweenDataPagesContinues(t *testing.T) {
	data := numbered("t", 30)
	f := &fakeFetcher{fn: func(ctx context.Context, req catalog.PageRequest) ([]catalog.RawTrack, error) {
		if req.Offset == 10 {
			return nil, errors.New("boom")
		}
		return sliceCatalog(data)(ctx, req)
	}}
	wr := &recordingWriter{}
	w := NewWorker(f, wr, Config{MaxRetries: 0, BaseBackoff: time.Millisecond}, zerolog.Nop())

	res, err := w.Run(context.Background(), Request{Target: 100, PageSize: 10, BatchSize: 10})
	require.ErrorIs(t, err, ErrTargetNotReached)
	assert.Equal(t, 1, res.FailedPages)
	assert.EqualValues(t, 20, res.Upserted)
}

func TestWorker_DedupesAcrossPartitions(t *testing.T) {
	shared := numbered("t", 5)
	f := &fakeFetcher{fn: func(ctx context.Context, req catalog.PageRequest) ([]catalog.RawTrack, error) {
		switch req.Tag {
		case "rock":
			return sliceCatalog(shared)(ctx, req)
		case "jazz":
			return sliceCatalog(append(append([]catalog.RawTrack{}, shared...), raw("j-1")))(ctx, req)
		}
		return nil, fmt.Errorf("unexpected tag %q", req.Tag)
	}}
	wr := &recordingWriter{}
	w := NewWorker(f, wr, fastConfig(), zerolog.Nop())

	res, err := w.Run(context.Background(), Request{Target: 100, PageSize: 10, BatchSize: 50, Tags: []string{"rock", " ", "jazz"}})
	require.ErrorIs(t, err, ErrTargetNotReached)
	assert.Equal(t, 5, res.Duplicates)
	assert.EqualValues(t, 6, res.Upserted)

	tags := map[string]bool{}
	for _, c := range f.calls {
		tags[c.Tag] = true
	}
	assert.Equal(t, map[string]bool{"rock": true, "jazz": true}, tags)
}

func TestWorker_DuplicatesWithinPage(t *testing.T) {
	page := []catalog.RawTrack{raw("a"), raw("b"), raw("a")}
	f := &fakeFetcher{fn: sliceCatalog(page)}
	wr := &recordingWriter{}
	w := NewWorker(f, wr, fastConfig(), zerolog.Nop())

	res, err := w.Run(context.Background(), Request{Target: 10, PageSize: 10, BatchSize: 10})
	require.ErrorIs(t, err, ErrTargetNotReached)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 2, wr.total())
}

func TestWorker_DropsInvalidRecords(t *testing.T) {
	bad := raw("x")
	bad.Audio = ""
	f := &fakeFetcher{fn: sliceCatalog([]catalog.RawTrack{raw("a"), bad, raw("b")})}
	wr := &recordingWriter{}
	w := NewWorker(f, wr, fastConfig(), zerolog.Nop())

	res, err := w.Run(context.Background(), Request{Target: 10, PageSize: 10, BatchSize: 10})
	require.ErrorIs(t, err, ErrTargetNotReached)
	assert.Equal(t, 1, res.Invalid)
	assert.EqualValues(t, 2, res.Upserted)
}

func TestWorker_NoTagsMeansOneUnfilteredPartition(t *testing.T) {
	f := &fakeFetcher{fn: sliceCatalog(numbered("t", 3))}
	w := NewWorker(f, &recordingWriter{}, fastConfig(), zerolog.Nop())

	_, err := w.Run(context.Background(), Request{Target: 10, PageSize: 5, BatchSize: 5, Tags: []string{""}})
	require.ErrorIs(t, err, ErrTargetNotReached)
	for _, c := range f.calls {
		assert.Empty(t, c.Tag)
	}
	assert.Len(t, f.calls, 3)
}

func TestWorker_StartOffset(t *testing.T) {
	f := &fakeFetcher{fn: sliceCatalog(numbered("t", 30))}
	wr := &recordingWriter{}
	w := NewWorker(f, wr, fastConfig(), zerolog.Nop())

	res, err := w.Run(context.Background(), Request{Target: 100, PageSize: 10, BatchSize: 10, StartOffset: 20})
	require.ErrorIs(t, err, ErrTargetNotReached)
	assert.EqualValues(t, 10, res.Upserted)
	assert.Equal(t, 20, f.calls[0].Offset)
}

func TestWorker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{fn: sliceCatalog(numbered("t", 10))}
	w := NewWorker(f, &recordingWriter{}, fastConfig(), zerolog.Nop())

	_, err := w.Run(ctx, Request{Target: 10, PageSize: 10, BatchSize: 10})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.calls)
}

func TestRequest_Validate(t *testing.T) {
	valid := Request{Target: 1, PageSize: 1, BatchSize: 1}
	require.NoError(t, valid.Validate())

	cases := map[string]Request{
		"zero target":     {Target: 0, PageSize: 10, BatchSize: 1},
		"zero page":       {Target: 1, PageSize: 0, BatchSize: 1},
		"oversized page":  {Target: 1, PageSize: catalog.MaxPageSize + 1, BatchSize: 1},
		"zero batch":      {Target: 1, PageSize: 10, BatchSize: 0},
		"negative offset": {Target: 1, PageSize: 10, BatchSize: 1, StartOffset: -1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			f := &fakeFetcher{fn: sliceCatalog(nil)}
			w := NewWorker(f, &recordingWriter{}, fastConfig(), zerolog.Nop())
			_, err := w.Run(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Empty(t, f.calls, "no network call on invalid request")
		})
	}
}

func TestIsTemporary(t *testing.T) {
	assert.True(t, isTemporary(&catalog.StatusError{StatusCode: 503}))
	assert.True(t, isTemporary(fmt.Errorf("wrapped: %w", &catalog.StatusError{StatusCode: 429})))
	assert.False(t, isTemporary(&catalog.StatusError{StatusCode: 404}))
	assert.False(t, isTemporary(&catalog.APIError{Code: 5, Message: "invalid client id"}))
	assert.True(t, isTemporary(errors.New("connection reset")))
}
