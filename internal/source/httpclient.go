package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP request timeout for source fetches.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default request rate against a single upstream.
	DefaultRateLimit = 1.0

	// maxRetries is the number of attempts after a 429 before giving up.
	maxRetries = 3
)

// retryBaseDelay is the backoff unit when the server sends no Retry-After.
// Overridable in tests.
var retryBaseDelay = 2 * time.Second

// httpFetcher is a rate-limited HTTP GET helper shared by the source
// clients. It retries 429 responses with backoff, honoring Retry-After.
type httpFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPFetcher(requestsPerSecond float64) *httpFetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRateLimit
	}
	return &httpFetcher{
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// get fetches url and returns the response body. Non-2xx statuses other
// than 429 are returned as errors immediately.
func (f *httpFetcher) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", url, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := retryDelay(resp, attempt)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status 429", ErrRateLimited)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d from %s", ErrInvalidResponse, resp.StatusCode, url)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		return body, nil
	}

	return nil, lastErr
}

// retryDelay picks the wait before the next 429 retry. Retry-After wins
// when present; otherwise the delay doubles per attempt.
func retryDelay(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return retryBaseDelay << attempt
}
