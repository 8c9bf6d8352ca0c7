package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const userAgent = "episodegrid/1.0"

// maxFeedBytes bounds how much of a response body is read.
const maxFeedBytes = 8 << 20

var (
	// ErrFetch marks transport failures and non-2xx responses.
	ErrFetch = errors.New("fetch feed")
	// ErrParse marks feed markup that could not be parsed.
	ErrParse = errors.New("parse feed")
)

// StatusError is returned when the feed endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch feed: unexpected status %s", e.Status)
}

func (e *StatusError) Unwrap() error { return ErrFetch }

// Source yields raw feed bytes.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Fetcher pulls a single feed over HTTP.
type Fetcher struct {
	feedURL string
	client  *http.Client
	logger  *log.Logger
}

// NewFetcher creates a fetcher for feedURL whose requests give up after timeout.
func NewFetcher(feedURL string, timeout time.Duration, logger *log.Logger) *Fetcher {
	return &Fetcher{
		feedURL: feedURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Fetch downloads the feed body.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	f.logger.Printf("fetched %d bytes from %s", len(body), f.feedURL)
	return body, nil
}
