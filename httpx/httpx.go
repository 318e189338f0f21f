// Package httpx builds the outbound HTTP clients shared by the lookup
// providers and the storage client.
package httpx

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethgrid/pester"
	"go.uber.org/zap"
)

const userAgent = "sleuth-ingest/1.0 (+https://github.com/neurostuff)"

// Doer abstracts http.Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// userAgentTransport adds a User-Agent header to every request.
type userAgentTransport struct {
	Transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return t.Transport.RoundTrip(req)
}

// New returns a retrying client. maxRetries counts attempts, so 1 disables
// retries; use that for non-idempotent writes.
func New(timeout time.Duration, maxRetries int, logger *zap.Logger) *pester.Client {
	hc := &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{Transport: http.DefaultTransport},
	}
	client := pester.NewExtendedClient(hc)
	client.Concurrency = 1
	client.MaxRetries = max(maxRetries, 1)
	client.Backoff = pester.ExponentialBackoff
	client.RetryOnHTTP429 = true
	client.KeepLog = false
	client.LogHook = func(e pester.ErrEntry) {
		logger.Warn("HTTP attempt failed",
			zap.String("method", e.Method),
			zap.String("url", e.URL),
			zap.Int("attempt", e.Attempt),
			zap.Error(e.Err))
	}
	return client
}

// StatusError describes a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// CheckStatus turns a non-2xx response into a *StatusError carrying the
// start of the body. The body is consumed in that case.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	se := &StatusError{StatusCode: resp.StatusCode}
	if resp.Body != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se.Body = string(body)
	}
	// responses built by hand carry no request
	if req := resp.Request; req != nil {
		se.Method = req.Method
		if req.URL != nil {
			se.URL = req.URL.Redacted()
		}
	}
	return se
}
