// Package httpclient centralizes construction of the HTTP clients used by
// backend and auth code so timeouts and transport logging stay consistent.
package httpclient

import (
	"net/http"
	"time"

	"pageassist/internal/logging"
)

// New returns an HTTP client with the given total request timeout and a
// transport that logs request latency at debug level.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &loggingRoundTripper{
			base:   http.DefaultTransport,
			logger: logging.OrNop(logger),
		},
	}
}

// NewStreaming returns a client without a total timeout, for long-lived
// streaming responses. Callers bound the request through its context.
func NewStreaming(logger logging.Logger) *http.Client {
	return &http.Client{
		Transport: &loggingRoundTripper{
			base:   http.DefaultTransport,
			logger: logging.OrNop(logger),
		},
	}
}

type loggingRoundTripper struct {
	base   http.RoundTripper
	logger logging.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)
	if err != nil {
		t.logger.Debug("%s %s failed after %s: %v", req.Method, req.URL.Path, elapsed, err)
		return nil, err
	}
	t.logger.Debug("%s %s -> %d (%s)", req.Method, req.URL.Path, resp.StatusCode, elapsed)
	return resp, nil
}
