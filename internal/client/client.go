package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/metrics"
)

// ErrUnexpectedStatus is returned for any response other than 200 OK
var ErrUnexpectedStatus = errors.New("unexpected status code")

// StatusError carries the status of a failed fetch
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.StatusCode)
}

// Is lets callers match with errors.Is(err, ErrUnexpectedStatus)
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// PageCache stores fetched page bodies by URL
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
}

// Client fetches HTML pages with a fixed browser-like User-Agent
type Client struct {
	http  *resty.Client
	cache PageCache
}

// NewClient creates a page client
func NewClient(userAgent string, timeout time.Duration) *Client {
	http := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml")

	return &Client{http: http}
}

// WithCache serves repeated fetches from the page cache
func (c *Client) WithCache(cache PageCache) *Client {
	c.cache = cache
	return c
}

// Get fetches a page body. Any non-200 status is an error and is not retried.
func (c *Client) Get(ctx context.Context, pageURL string) ([]byte, error) {
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, pageURL)
		if err != nil {
			log.Warn().Err(err).Str("url", pageURL).Msg("Page cache read failed, fetching live")
		} else if ok {
			metrics.RecordCacheHit()
			log.Debug().Str("url", pageURL).Msg("Page served from cache")
			return body, nil
		} else {
			metrics.RecordCacheMiss()
		}
	}

	source := sourceLabel(pageURL)
	start := time.Now()

	log.Debug().
		Str("url", pageURL).
		Msg("Fetching page")

	resp, err := c.http.R().SetContext(ctx).Get(pageURL)
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordHTTPRequest(source, "error", duration)
		metrics.RecordError("client", "request_failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	metrics.RecordHTTPRequest(source, strconv.Itoa(resp.StatusCode()), duration)

	if resp.StatusCode() != 200 {
		log.Warn().
			Str("url", pageURL).
			Int("status", resp.StatusCode()).
			Msg("Failed to access page")
		metrics.RecordError("client", "unexpected_status")
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode()}
	}

	body := resp.Body()
	if c.cache != nil {
		if err := c.cache.Set(ctx, pageURL, body); err != nil {
			log.Warn().Err(err).Str("url", pageURL).Msg("Page cache write failed")
		}
	}

	return body, nil
}

// GetWithRetry retries any failed fetch up to attempts times, waiting delay
// between tries.
func (c *Client) GetWithRetry(ctx context.Context, pageURL string, attempts int, delay time.Duration) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.Get(ctx, pageURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Info().
			Str("url", pageURL).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("Page fetch failed, retrying after delay")

		if err := Pause(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// GetDocument fetches and parses a page
func (c *Client) GetDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := c.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// Pause waits for the courtesy delay between requests, returning early
// when the context is cancelled.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func sourceLabel(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Hostname()
}
