package catalog

import "fmt"

// StatusError is returned for non-2xx catalog responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("catalog: HTTP %d: %s", e.StatusCode, body)
}

// Temporary reports whether the status is worth retrying soon. Every non-2xx
// is retried by the ingestion worker; this only feeds logging.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}

// APIError is returned when the catalog answers 2xx but flags the request as failed
// in its response headers (bad client id, bad parameter).
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog: api error %d: %s", e.Code, e.Message)
}
