package gamma

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://gamma-api.polymarket.com"

type Client struct {
	host       string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxWait    time.Duration
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gamma API error (%d): %s", e.Status, e.Body)
}

// IsRetryable reports whether the error is worth retrying: server-side
// failures and rate limiting, not client mistakes.
func (e *APIError) IsRetryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

func NewClient(httpClient *http.Client, host string, requestsPerSec int, maxRetryWait time.Duration) *Client {
	if host == "" {
		host = DefaultBaseURL
	}
	host = strings.TrimRight(host, "/")
	if requestsPerSec <= 0 {
		requestsPerSec = 5
	}
	if maxRetryWait <= 0 {
		maxRetryWait = 30 * time.Second
	}
	return &Client{
		host:       host,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Second), requestsPerSec),
		maxWait:    maxRetryWait,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{Status: resp.StatusCode, Body: string(raw)}
			if apiErr.IsRetryable() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		body = raw
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = c.maxWait
	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return body, nil
}
