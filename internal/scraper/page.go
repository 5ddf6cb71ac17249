// Package scraper fetches web pages and reads news listings and article
// bodies out of them.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/deusflow/animenews/internal/retry"
)

const maxPageBytes = 10 << 20

// PageFetcher downloads pages with a shared client, user agent and retry
// policy. A Retry-After longer than the request timeout is not waited for.
type PageFetcher struct {
	client    *http.Client
	userAgent string
	retry     retry.RetryConfig
}

func NewPageFetcher(timeout time.Duration, userAgent string, attempts int, delay time.Duration) *PageFetcher {
	return &PageFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		retry: retry.RetryConfig{
			MaxAttempts: attempts,
			Delay:       delay,
			Backoff:     true,
			MaxWait:     timeout,
		},
	}
}

// FetchPage returns the body of url. Client errors other than 429 are not
// retried.
func (f *PageFetcher) FetchPage(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := retry.WithRetry(ctx, f.retry, func() error {
		b, err := f.get(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

func (f *PageFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Stop(fmt.Errorf("build request: %w", err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("HTTP error: %d", resp.StatusCode)
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				return nil, retry.After(statusErr, time.Duration(secs)*time.Second)
			}
			return nil, statusErr
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, retry.Stop(statusErr)
		default:
			return nil, statusErr
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
