package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPage_SendsQueryAndDecodes(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/v3.0/tracks/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		assert.Equal(t, "cid", q.Get("client_id"))
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "40", q.Get("offset"))
		assert.Equal(t, "rock", q.Get("tags"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"headers":{"status":"success","code":0,"results_count":2},
			"results":[{"id":"1","name":"a","artist_name":"b","audio":"c"},{"id":"2","name":"d","artist_name":"e","audio":"f"}]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/v3.0", "cid", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	recs, err := c.FetchPage(context.Background(), PageRequest{Limit: 20, Offset: 40, Tag: "rock"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, FlexString("2"), recs[1].ID)
}

func TestFetchPage_NoTagOmitsParam(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["tags"]; ok {
			t.Errorf("tags param should be omitted")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"headers":{"status":"success"},"results":[]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "cid")
	require.NoError(t, err)
	recs, err := c.FetchPage(context.Background(), PageRequest{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFetchPage_Non2xxIsStatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "cid")
	require.NoError(t, err)
	_, err = c.FetchPage(context.Background(), PageRequest{Limit: 5})
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.True(t, se.Temporary())
}

func TestFetchPage_APIFailureHeader(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"headers":{"status":"failed","code":5,"error_message":"invalid client_id"},"results":[]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "cid")
	require.NoError(t, err)
	_, err = c.FetchPage(context.Background(), PageRequest{Limit: 5})
	var ae *APIError
	require.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, 5, ae.Code)
}

func TestFetchPage_RejectsOutOfRangeLimit(t *testing.T) {
	t.Parallel()
	c, err := New("http://127.0.0.1:1", "cid")
	require.NoError(t, err)
	_, err = c.FetchPage(context.Background(), PageRequest{Limit: MaxPageSize + 1})
	require.Error(t, err)
	_, err = c.FetchPage(context.Background(), PageRequest{Limit: 0})
	require.Error(t, err)
}

func TestFetchPage_CanceledContext(t *testing.T) {
	t.Parallel()
	c, err := New("http://127.0.0.1:1", "cid", WithRateLimit(1), WithHTTPTimeout(time.Second))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.FetchPage(ctx, PageRequest{Limit: 5})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	_, err := New("", "cid")
	require.Error(t, err)
	_, err = New("http://x", "")
	require.Error(t, err)
	_, err = New("http://x", "cid", WithHTTPTimeout(-time.Second))
	require.Error(t, err)
	_, err = New("http://x", "cid", WithHTTPClient(nil))
	require.Error(t, err)
}
