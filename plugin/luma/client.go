// Package luma fetches event listings from the Luma discovery and
// calendar APIs. It owns all network I/O of the refresh pipeline:
// fetching, parsing, and deduplication.
package luma

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	defaultAPIBase  = "https://api2.luma.com"
	defaultWebBase  = "https://luma.com"
	paginationLimit = "50"

	requestTimeout = 30 * time.Second
	// requestDelay paces successive API calls.
	requestDelay = 300 * time.Millisecond

	backoffBase = 500 * time.Millisecond
	jitterMax   = 300 * time.Millisecond
)

// Client is a rate-limited Luma API client with retry on transient
// failures.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	apiBase string
	webBase string
	retries int
}

// NewClient creates a Client that retries transient failures up to
// retries times.
func NewClient(retries int) *Client {
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Every(requestDelay), 1),
		apiBase: defaultAPIBase,
		webBase: defaultWebBase,
		retries: retries,
	}
}

// getJSON fetches url with the Luma web headers and decodes the response
// into out.
func (c *Client) getJSON(ctx context.Context, url, webURL string, out any) error {
	headers := map[string]string{
		"accept":             "*/*",
		"origin":             c.webBase,
		"referer":            c.webBase + "/",
		"user-agent":         "Mozilla/5.0",
		"x-luma-client-type": "luma-web",
		"x-luma-web-url":     webURL,
	}
	body, err := c.requestWithRetry(ctx, url, headers)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal(body, out), "decode response from %s", url)
}

// getHTML fetches a public Luma page.
func (c *Client) getHTML(ctx context.Context, url string) (string, error) {
	headers := map[string]string{
		"accept":     "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"user-agent": "Mozilla/5.0",
	}
	body, err := c.requestWithRetry(ctx, url, headers)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// requestWithRetry performs a GET with exponential backoff on 429/5xx and
// network errors, honoring a numeric Retry-After header when present.
func (c *Client) requestWithRetry(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryAfter, err := c.doRequest(ctx, url, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if retryAfter < 0 || attempt == c.retries {
			break
		}

		delay := retryAfter
		if delay == 0 {
			delay = backoffBase*(1<<attempt) + time.Duration(rand.Int63n(int64(jitterMax)))
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, errors.Wrapf(lastErr, "request %s", url)
}

// doRequest returns the response body, or an error together with the
// retry delay: 0 means retry with backoff, negative means do not retry.
func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, -1, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network errors are retryable.
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, 0, err
		}
		return body, 0, nil
	}

	err = errors.Errorf("unexpected status %d", resp.StatusCode)
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		if seconds, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && seconds > 0 {
			return nil, time.Duration(seconds) * time.Second, err
		}
		return nil, 0, err
	default:
		return nil, -1, err
	}
}
