package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// ErrPublisher marks a fetch failure that is the publisher's fault: a 4xx
// response or an unparseable feed body. Polling harder cannot fix these,
// so they put the feed on a long hold instead of counting against its
// failure streak.
var ErrPublisher = errors.New("publisher error")

const (
	maxBodyBytes = 10 << 20
	userAgent    = "newswire/1.0 (+https://github.com/arenhaus/newswire)"
)

// FetchResult carries one successful poll.
type FetchResult struct {
	// NotModified is set on a 304; Items is empty and the validators are
	// carried over unchanged.
	NotModified  bool
	ETag         string
	LastModified string
	Items        []*gofeed.Item
}

// Fetcher polls RSS/Atom feeds with conditional GET.
type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

// NewFetcher creates a feed fetcher. timeout bounds the whole request on
// top of whatever deadline the caller's context carries.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
	}
}

// Fetch polls one feed. etag and lastModified are the validators from the
// previous successful poll; pass "" when unknown.
func (f *Fetcher) Fetch(ctx context.Context, url, etag, lastModified string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: bad url (%v): %w", url, err, ErrPublisher)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &FetchResult{NotModified: true, ETag: etag, LastModified: lastModified}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("fetch %s: status %d: %w", url, resp.StatusCode, ErrPublisher)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: parse (%v): %w", url, err, ErrPublisher)
	}

	res := &FetchResult{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Items:        feed.Items,
	}
	// Servers that validated once may omit the headers later; keep the old
	// validators rather than dropping back to unconditional GETs.
	if res.ETag == "" {
		res.ETag = etag
	}
	if res.LastModified == "" {
		res.LastModified = lastModified
	}
	return res, nil
}
