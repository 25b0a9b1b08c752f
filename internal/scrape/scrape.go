// Package scrape fetches readable article text for feed entries whose feed
// carries no body. Best effort: the pipeline works fine on title and
// description alone.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"
)

const (
	scrapeTimeout = 8 * time.Second
	minParagraph  = 40
	maxPageText   = 8000
)

// Scraper wraps a Colly collector configured with respectful rate limiting.
type Scraper struct {
	userAgent string
}

// New creates a Scraper with rate limiting of 1 request/sec per domain and
// at most 2 parallel requests.
func New() *Scraper {
	return &Scraper{
		userAgent: "newswire/1.0",
	}
}

// newCollector creates a fresh Colly collector with standard settings and
// rate limiting. Each fetch gets its own collector to avoid state leakage.
func (s *Scraper) newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
	)

	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       1 * time.Second,
		RandomDelay: 500 * time.Millisecond,
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	return c
}

// PageText fetches an article page and returns its readable body text:
// paragraphs inside <article>, falling back to <main>, falling back to the
// whole page. Short fragments (navigation, captions) are dropped.
func (s *Scraper) PageText(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	c := s.newCollector()

	var (
		mu         sync.Mutex
		articlePar []string
		mainPar    []string
		anyPar     []string
		scrErr     error
	)

	collect := func(bucket *[]string) func(*colly.HTMLElement) {
		return func(e *colly.HTMLElement) {
			text := strings.TrimSpace(e.Text)
			if len(text) < minParagraph {
				return
			}
			mu.Lock()
			*bucket = append(*bucket, text)
			mu.Unlock()
		}
	}
	c.OnHTML("article p", collect(&articlePar))
	c.OnHTML("main p", collect(&mainPar))
	c.OnHTML("p", collect(&anyPar))

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		scrErr = fmt.Errorf("scrape: fetch %s: %w", pageURL, err)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Visit(pageURL); err != nil {
			mu.Lock()
			if scrErr == nil {
				scrErr = fmt.Errorf("scrape: visit %s: %w", pageURL, err)
			}
			mu.Unlock()
		}
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-done:
	}

	if scrErr != nil {
		return "", scrErr
	}

	paragraphs := articlePar
	if len(paragraphs) == 0 {
		paragraphs = mainPar
	}
	if len(paragraphs) == 0 {
		paragraphs = anyPar
	}
	if len(paragraphs) == 0 {
		return "", fmt.Errorf("scrape: no readable text at %s", pageURL)
	}

	text := strings.Join(paragraphs, "\n\n")
	if len(text) > maxPageText {
		cut := maxPageText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	slog.Debug("scrape: page fetched", "url", pageURL, "chars", len(text))
	return text, nil
}
