// Package catalog reads tracks from the remote music catalog and maps them
// to the internal Track shape.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// MaxPageSize is the largest page the catalog API serves.
const MaxPageSize = 200

// PageRequest selects one page of the catalog. An empty Tag means no filter.
type PageRequest struct {
	Limit  int
	Offset int
	Tag    string
}

type response struct {
	Headers struct {
		Status       string     `json:"status"`
		Code         int        `json:"code"`
		ErrorMessage string     `json:"error_message"`
		ResultsCount FlexNumber `json:"results_count"`
	} `json:"headers"`
	Results []RawTrack `json:"results"`
}

// Client is a paginated reader for the catalog /tracks endpoint.
type Client struct {
	http     *resty.Client
	clientID string
	limiter  *rate.Limiter
}

// New constructs a Client for baseURL authenticated with clientID.
func New(baseURL, clientID string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("catalog base URL is empty")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("catalog client id is empty")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Accept", "application/json"),
		clientID: clientID,
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FetchPage returns the raw records of one page. Network failures, non-2xx
// responses and API-level failures are all returned as errors; the caller
// decides whether to retry.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) ([]RawTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Limit < 1 || req.Limit > MaxPageSize {
		return nil, fmt.Errorf("page size %d out of range [1,%d]", req.Limit, MaxPageSize)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"client_id": c.clientID,
		"format":    "json",
		"include":   "stats",
		"limit":     strconv.Itoa(req.Limit),
		"offset":    strconv.Itoa(req.Offset),
	}
	if tag := strings.TrimSpace(req.Tag); tag != "" {
		params["tags"] = tag
	}

	var body response
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&body).
		Get("/tracks/")
	if err != nil {
		return nil, fmt.Errorf("catalog fetch offset=%d: %w", req.Offset, err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if strings.EqualFold(body.Headers.Status, "failed") {
		return nil, &APIError{Code: body.Headers.Code, Message: body.Headers.ErrorMessage}
	}
	return body.Results, nil
}
