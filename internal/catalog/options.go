package catalog

// Functional options for New. Each option validates its input and leaves
// the client untouched on error.

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithHTTPTimeout bounds a single catalog request. Zero leaves requests unbounded.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("http timeout must be >= 0")
		}
		c.http.SetTimeout(d)
		return nil
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return nil
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithHTTPClient swaps the transport used underneath resty (tests, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client is nil")
		}
		if hc.Transport != nil {
			c.http.SetTransport(hc.Transport)
		}
		if hc.Timeout > 0 {
			c.http.SetTimeout(hc.Timeout)
		}
		return nil
	}
}
