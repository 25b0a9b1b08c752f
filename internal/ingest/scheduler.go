// Package ingest polls the feed roster on a staggered schedule and turns
// feed entries into normalized, stored articles.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/arenhaus/newswire/internal/config"
	"github.com/arenhaus/newswire/internal/metrics"
	"github.com/arenhaus/newswire/internal/models"
	"github.com/arenhaus/newswire/internal/normalize"
)

const (
	minTitleRunes = 10
	// publisherHold is how long a feed rests after a publisher-side error;
	// re-polling a 404 every backoff step only burns requests.
	publisherHold = time.Hour
	// stateWriteGrace bounds the poll-state write that must land even when
	// the tick deadline already cancelled the poll itself.
	stateWriteGrace = 5 * time.Second
)

// States is the poll-state persistence surface the scheduler needs.
type States interface {
	Ensure(ctx context.Context, feedIDs []string) error
	Eligible(ctx context.Context, now time.Time, limit int) ([]models.FeedPollState, error)
	RecordSuccess(ctx context.Context, feedID, etag, lastModified string, now, next time.Time) error
	RecordFailure(ctx context.Context, feedID string, failures int, now, next time.Time) error
	RecordSkip(ctx context.Context, feedID string, now, next time.Time) error
}

// Articles is the article persistence surface the scheduler needs.
type Articles interface {
	Upsert(ctx context.Context, a *models.Article) error
}

// FeedFetcher polls one feed URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, url, etag, lastModified string) (*FetchResult, error)
}

// Pages fetches readable page text for entries whose feed carries no body.
type Pages interface {
	PageText(ctx context.Context, url string) (string, error)
}

// Snapshots archives raw feed entries.
type Snapshots interface {
	Configured() bool
	StoreEntry(ctx context.Context, key string, data []byte) error
}

// Scheduler runs the polling ticks: pick eligible feeds, poll them under a
// semaphore, normalize and upsert what comes back, and move each feed's
// next-eligible time forward.
type Scheduler struct {
	states    States
	articles  Articles
	fetcher   FeedFetcher
	pages     Pages
	snapshots Snapshots
	roster    []Feed
	cfg       config.PollConfig
	deadline  time.Duration
}

// NewScheduler creates a scheduler over the given roster. pages and
// snapshots may be nil, which disables page scraping and entry archiving.
func NewScheduler(states States, articles Articles, fetcher FeedFetcher, pages Pages, snapshots Snapshots, roster []Feed, cfg config.PollConfig) *Scheduler {
	// Each poll must finish inside the tick that started it.
	deadline := time.Duration(cfg.TickSeconds)*time.Second - time.Second
	if deadline <= 0 {
		deadline = time.Second
	}
	return &Scheduler{
		states:    states,
		articles:  articles,
		fetcher:   fetcher,
		pages:     pages,
		snapshots: snapshots,
		roster:    roster,
		cfg:       cfg,
		deadline:  deadline,
	}
}

// EnsureRoster creates poll-state rows for every roster feed. New feeds
// become eligible on the next tick.
func (s *Scheduler) EnsureRoster(ctx context.Context) error {
	ids := make([]string, len(s.roster))
	for i, f := range s.roster {
		ids[i] = f.Slug
	}
	return s.states.Ensure(ctx, ids)
}

func (s *Scheduler) feedBySlug(slug string) (Feed, bool) {
	for _, f := range s.roster {
		if f.Slug == slug {
			return f, true
		}
	}
	return Feed{}, false
}

// RunTick performs one scheduler tick: up to PollsPerTick eligible feeds,
// most overdue first, polled concurrently.
func (s *Scheduler) RunTick(ctx context.Context) error {
	now := time.Now().UTC()
	eligible, err := s.states.Eligible(ctx, now, s.cfg.PollsPerTick)
	if err != nil {
		return fmt.Errorf("ingest eligible: %w", err)
	}
	if len(eligible) == 0 {
		return nil
	}

	sem := make(chan struct{}, s.cfg.PollsPerTick)
	var wg sync.WaitGroup
	for _, fs := range eligible {
		feed, ok := s.feedBySlug(fs.FeedID)
		if !ok {
			// State row for a feed that left the roster; park it.
			slog.Warn("ingest: feed not in roster, parking", "feed", fs.FeedID)
			s.recordSkip(fs.FeedID, now, now.Add(24*time.Hour))
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(fs models.FeedPollState, feed Feed) {
			defer wg.Done()
			defer func() { <-sem }()
			s.pollFeed(ctx, fs, feed)
		}(fs, feed)
	}
	wg.Wait()
	return nil
}

// pollFeed runs one feed's poll end to end. The poll itself is bounded by
// the tick deadline; the poll-state write is not, so a timed-out poll is
// still recorded as a failure instead of staying eligible forever.
func (s *Scheduler) pollFeed(ctx context.Context, fs models.FeedPollState, feed Feed) {
	pctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	now := time.Now().UTC()
	res, err := s.fetcher.Fetch(pctx, feed.URL, fs.LastETag, fs.LastModified)

	switch {
	case err == nil && res.NotModified:
		metrics.FeedPolls.WithLabelValues("not_modified").Inc()
		slog.Info("ingest: feed unchanged", "feed", feed.Slug)
		s.recordSuccess(feed.Slug, res, now)

	case err == nil:
		stored, skipped := s.processItems(pctx, feed, res.Items)
		metrics.FeedPolls.WithLabelValues("ok").Inc()
		slog.Info("ingest: feed polled",
			"feed", feed.Slug, "items", len(res.Items),
			"stored", stored, "skipped", skipped)
		s.recordSuccess(feed.Slug, res, now)

	case errors.Is(err, ErrPublisher):
		metrics.FeedPolls.WithLabelValues("skipped").Inc()
		slog.Warn("ingest: publisher error, holding feed",
			"feed", feed.Slug, "hold", publisherHold, "error", err)
		s.recordSkip(feed.Slug, now, now.Add(publisherHold))

	default:
		failures := fs.ConsecutiveFailures + 1
		delay := Backoff(failures, s.cfg.BackoffBase, s.cfg.BackoffCap)
		metrics.FeedPolls.WithLabelValues("error").Inc()
		slog.Warn("ingest: feed poll failed",
			"feed", feed.Slug, "failures", failures, "retry_in", delay, "error", err)
		s.recordFailure(feed.Slug, failures, now, now.Add(delay))
	}
}

func (s *Scheduler) processItems(ctx context.Context, feed Feed, items []*gofeed.Item) (stored, skipped int) {
	for _, item := range items {
		if ctx.Err() != nil {
			return stored, skipped
		}
		a, reason := s.buildArticle(ctx, feed, item)
		if a == nil {
			skipped++
			metrics.EntriesSkipped.WithLabelValues(reason).Inc()
			continue
		}
		if err := s.articles.Upsert(ctx, a); err != nil {
			skipped++
			metrics.EntriesSkipped.WithLabelValues("store_error").Inc()
			slog.Error("ingest: article upsert failed", "article", a.ID, "error", err)
			continue
		}
		stored++
		metrics.ArticlesUpserted.Inc()
		s.archiveEntry(ctx, a, item)
	}
	return stored, skipped
}

// buildArticle normalizes one feed entry, or returns a skip reason.
func (s *Scheduler) buildArticle(ctx context.Context, feed Feed, item *gofeed.Item) (*models.Article, string) {
	title := normalize.CleanText(item.Title)
	link := strings.TrimSpace(item.Link)

	if link == "" {
		return nil, "no_url"
	}
	if utf8.RuneCountInString(title) < minTitleRunes {
		return nil, "short_title"
	}
	if normalize.IsSpam(title, link) {
		return nil, "spam"
	}

	description := normalize.CleanText(item.Description)
	content := normalize.CleanText(item.Content)
	if description == "" && content == "" && s.pages != nil {
		if text, err := s.pages.PageText(ctx, link); err == nil {
			content = text
		} else {
			slog.Debug("ingest: page fetch failed", "url", link, "error", err)
		}
	}

	entities := normalize.ExtractEntities(title + ". " + description)
	category := normalize.Categorize(title, description, link)

	return &models.Article{
		ID:          models.ArticleID(feed.Slug, link),
		Source:      feed.Slug,
		URL:         link,
		Title:       title,
		Description: description,
		Content:     content,
		PublishedAt: item.PublishedParsed,
		Entities:    entities,
		Category:    category,
		Fingerprint: normalize.Fingerprint(title, entities),
	}, ""
}

// archiveEntry stores the raw entry alongside the normalized article,
// best effort.
func (s *Scheduler) archiveEntry(ctx context.Context, a *models.Article, item *gofeed.Item) {
	if s.snapshots == nil || !s.snapshots.Configured() {
		return
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return
	}
	key := fmt.Sprintf("entries/%s/%s.json.gz", time.Now().UTC().Format("2006-01-02"), a.ID)
	if err := s.snapshots.StoreEntry(ctx, key, raw); err != nil {
		slog.Warn("ingest: entry snapshot failed", "article", a.ID, "error", err)
	}
}

// Poll-state writes run on a fresh context: a cancelled tick must still
// push next_eligible_at forward or the same broken feed heads every
// following tick.
func (s *Scheduler) recordSuccess(feedID string, res *FetchResult, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), stateWriteGrace)
	defer cancel()
	if err := s.states.RecordSuccess(ctx, feedID, res.ETag, res.LastModified, now, now.Add(s.cfg.BaseInterval)); err != nil {
		slog.Error("ingest: poll state write failed", "feed", feedID, "error", err)
	}
}

func (s *Scheduler) recordFailure(feedID string, failures int, now, next time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), stateWriteGrace)
	defer cancel()
	if err := s.states.RecordFailure(ctx, feedID, failures, now, next); err != nil {
		slog.Error("ingest: poll state write failed", "feed", feedID, "error", err)
	}
}

func (s *Scheduler) recordSkip(feedID string, now, next time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), stateWriteGrace)
	defer cancel()
	if err := s.states.RecordSkip(ctx, feedID, now, next); err != nil {
		slog.Error("ingest: poll state write failed", "feed", feedID, "error", err)
	}
}

// Backoff returns the retry delay after n consecutive failures: base,
// doubling per failure, capped at limit. Feeds keep retrying forever on
// the capped delay.
func Backoff(n int, base, limit time.Duration) time.Duration {
	if n < 1 {
		n = 1
	}
	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}
