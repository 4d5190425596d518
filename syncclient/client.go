// Package syncclient implements the consumer side of the sync feed: an HTTP
// client with retry, persisted sync state, and an incremental synchronizer
// with periodic full reconciliation.
package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// FeedPost is one post as served by the feed API.
type FeedPost struct {
	ID             string   `json:"id"`
	SiteID         string   `json:"site_id"`
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Excerpt        string   `json:"excerpt"`
	BodyMarkdown   string   `json:"body_markdown"`
	BodyHTML       string   `json:"body_html"`
	Tags           []string `json:"tags"`
	SEOTitle       string   `json:"seo_title"`
	SEODescription string   `json:"seo_description"`
	Status         string   `json:"status"`
	PublishedAt    *int64   `json:"published_at,omitempty"`
	ContentHash    string   `json:"content_hash"`
	UpdatedAt      int64    `json:"updated_at"`
	PreviousSlugs  []string `json:"previous_slugs,omitempty"`
}

// FeedPage is one page of the feed API response.
type FeedPage struct {
	Items      []*FeedPost `json:"items"`
	NextCursor *string     `json:"next_cursor,omitempty"`
	LastSync   int64       `json:"last_sync"`
}

// PageQuery selects one feed page.
type PageQuery struct {
	Cursor       string
	UpdatedSince int64 // UnixMilli; 0 means all
	Limit        int
	ETag         string // conditional fetch; empty disables
}

// PageResult wraps a fetched page with its cache validator.
type PageResult struct {
	Page        *FeedPage
	ETag        string
	NotModified bool // 304; Page is nil
}

// Client talks to one site's feed with retry on transient failures.
type Client struct {
	BaseURL string
	SiteID  string
	APIKey  string

	// HTTPClient defaults to a 30s-timeout client.
	HTTPClient *http.Client
	// MaxRetries bounds retry attempts per request. Default: 4.
	MaxRetries int
	// RetryCeiling caps the per-retry sleep. Default: 30s.
	RetryCeiling time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 4
}

func (c *Client) retryCeiling() time.Duration {
	if c.RetryCeiling > 0 {
		return c.RetryCeiling
	}
	return 30 * time.Second
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// statusError is a non-2xx response. Retryable reports whether another
// attempt could help: 429 and 5xx are transient, other 4xx are not.
type statusError struct {
	code       int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// FetchPage fetches one feed page, retrying transient failures with
// exponential backoff. A 429 honors the server's Retry-After delay.
func (c *Client) FetchPage(ctx context.Context, q PageQuery) (*PageResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries(); attempt++ {
		if attempt > 0 {
			delay := time.Second << uint(attempt-1)
			if delay > c.retryCeiling() {
				delay = c.retryCeiling()
			}
			if se, ok := lastErr.(*statusError); ok && se.retryAfter > 0 {
				delay = se.retryAfter
			}
			if err := c.wait(ctx, delay); err != nil {
				return nil, err
			}
		}

		res, err := c.fetchOnce(ctx, q)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if se, ok := err.(*statusError); ok && !se.retryable() {
			return nil, fmt.Errorf("fetch feed page: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("fetch feed page after %d attempts: %w", c.maxRetries()+1, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, q PageQuery) (*PageResult, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	u = u.JoinPath("v1", "sites", c.SiteID, "posts")
	params := url.Values{}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.UpdatedSince > 0 {
		params.Set("updated_since", strconv.FormatInt(q.UpdatedSince, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if q.ETag != "" {
		req.Header.Set("If-None-Match", q.ETag)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &PageResult{ETag: q.ETag, NotModified: true}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var page FeedPage
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, fmt.Errorf("decode feed page: %w", err)
		}
		return &PageResult{Page: &page, ETag: resp.Header.Get("ETag")}, nil
	default:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		se := &statusError{code: resp.StatusCode}
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				se.retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, se
	}
}
