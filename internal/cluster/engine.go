package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arenhaus/newswire/internal/config"
	"github.com/arenhaus/newswire/internal/metrics"
	"github.com/arenhaus/newswire/internal/models"
	"github.com/arenhaus/newswire/internal/normalize"
)

const (
	batchSize   = 100
	occAttempts = 3
)

// StoryStore is the story persistence surface the engine needs.
type StoryStore interface {
	Get(ctx context.Context, id string) (*models.StoryCluster, error)
	FindByFingerprint(ctx context.Context, category, fingerprint string, activeSince time.Time) (*models.StoryCluster, error)
	RecentByCategory(ctx context.Context, category string, activeSince time.Time, limit int) ([]models.StoryCluster, error)
	Create(ctx context.Context, st *models.StoryCluster) error
	Update(ctx context.Context, st *models.StoryCluster) error
	ListNonArchived(ctx context.Context) ([]models.StoryCluster, error)
}

// ArticleStore is the article persistence surface the engine needs.
type ArticleStore interface {
	Changes(ctx context.Context, partition int16, afterSeq int64, limit int) ([]models.Article, error)
	SourcesFor(ctx context.Context, ids []string) (map[string]string, error)
	Titles(ctx context.Context, ids []string) (map[string]string, error)
	SetStoryCluster(ctx context.Context, articleID, storyID string) error
}

// Engine consumes the article change feed and maintains story clusters:
// match or create, recount sources, evolve status, rewrite headlines.
type Engine struct {
	stories   StoryStore
	articles  ArticleStore
	headliner Headliner
	rules     StatusRules
	cfg       config.ClusterConfig

	mu          sync.Mutex
	sourceCache map[string]string
}

// NewEngine creates a clustering engine. headliner may be nil, which
// disables headline synthesis.
func NewEngine(stories StoryStore, articles ArticleStore, headliner Headliner, cfg config.ClusterConfig) *Engine {
	return &Engine{
		stories:     stories,
		articles:    articles,
		headliner:   headliner,
		rules:       StatusRules{ArchiveAge: cfg.ArchiveAge, BreakingWindow: cfg.BreakingWindow},
		cfg:         cfg,
		sourceCache: map[string]string{},
	}
}

// HandleChanges processes one change-feed batch for a partition. It returns
// the last sequence number fully processed so the dispatcher can checkpoint
// the completed prefix even when an article in the middle fails; the failed
// article is redelivered on the next read. An article that exhausts its
// processing budget is logged and skipped, not retried, so one pathological
// article cannot stall the partition.
func (e *Engine) HandleChanges(ctx context.Context, partition int16, afterSeq int64) (int64, int, error) {
	batch, err := e.articles.Changes(ctx, partition, afterSeq, batchSize)
	if err != nil {
		return afterSeq, 0, fmt.Errorf("cluster read batch: %w", err)
	}

	last, n := afterSeq, 0
	for i := range batch {
		a := &batch[i]

		actx, cancel := context.WithTimeout(ctx, e.cfg.ArticleDeadline)
		err := e.Process(actx, a)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				slog.Error("cluster: article budget exceeded, skipping",
					"article", a.ID, "seq", a.Seq)
				last, n = a.Seq, n+1
				continue
			}
			return last, n, err
		}
		last, n = a.Seq, n+1
	}
	return last, n, nil
}

// Process routes one article: an already-assigned article goes back to its
// story, otherwise fingerprint match, then fuzzy match, then a new story.
func (e *Engine) Process(ctx context.Context, a *models.Article) error {
	now := time.Now().UTC()
	activeSince := now.Add(-e.cfg.ArchiveAge)

	var st *models.StoryCluster
	var err error

	// A re-ingested revision already carries its story; matching again
	// could attach it to a second story.
	if a.StoryClusterID != "" {
		st, err = e.stories.Get(ctx, a.StoryClusterID)
		if err != nil {
			return err
		}
		// An archived story keeps its articles but absorbs no more writes,
		// not even revisions of what it already holds.
		if st != nil && (st.Status == models.StatusArchived || !st.LastUpdated.After(activeSince)) {
			return nil
		}
	}

	if st == nil && a.Fingerprint != "" {
		st, err = e.stories.FindByFingerprint(ctx, a.Category, a.Fingerprint, activeSince)
		if err != nil {
			return err
		}
	}

	if st == nil {
		st, err = e.fuzzyMatch(ctx, a, activeSince)
		if err != nil {
			return err
		}
	}

	if st == nil {
		return e.createStory(ctx, a, now)
	}
	return e.attach(ctx, st, a, now)
}

func (e *Engine) fuzzyMatch(ctx context.Context, a *models.Article, activeSince time.Time) (*models.StoryCluster, error) {
	candidates, err := e.stories.RecentByCategory(ctx, a.Category, activeSince, 500)
	if err != nil {
		return nil, err
	}

	articleTokens := normalize.Tokenize(a.Title)

	var best *models.StoryCluster
	bestScore := 0.0
	for i := range candidates {
		st := &candidates[i]
		storyEntities := normalize.ExtractEntities(st.Title)

		score, shared := Similarity(articleTokens, a.Entities, normalize.Tokenize(st.Title), storyEntities)
		if score < e.cfg.FuzzyThreshold {
			continue
		}
		if TopicConflict(a.Title, a.Entities, st.Title, storyEntities) {
			continue
		}
		if score < e.cfg.StrongThreshold && shared < e.cfg.MinSharedEntities {
			continue
		}
		if score > bestScore {
			best, bestScore = st, score
		}
	}

	if best != nil {
		slog.Info("cluster: fuzzy match",
			"article", a.ID, "story", best.ID, "score", fmt.Sprintf("%.2f", bestScore))
	}
	return best, nil
}

func (e *Engine) createStory(ctx context.Context, a *models.Article, now time.Time) error {
	st := &models.StoryCluster{
		ID:                models.NewStoryID(now),
		Title:             a.Title,
		Fingerprint:       a.Fingerprint,
		Category:          a.Category,
		SourceArticles:    []string{a.ID},
		UniqueSourceCount: 1,
		VerificationLevel: 1,
		Status:            models.StatusMonitoring,
		FirstSeen:         now,
		LastUpdated:       now,
	}
	st.AppendEvent(now, "story_created")

	if err := e.stories.Create(ctx, st); err != nil {
		return err
	}
	metrics.StoriesCreated.Inc()
	slog.Info("cluster: story created",
		"story", st.ID, "category", st.Category, "article", a.ID)

	return e.articles.SetStoryCluster(ctx, a.ID, st.ID)
}

// attach adds the article to the story and runs the evolvers. The source
// count before mutation decides is_gaining; computing it after the append
// would compare the set against itself and never report a gain.
func (e *Engine) attach(ctx context.Context, st *models.StoryCluster, a *models.Article, now time.Time) error {
	var prevCount, newCount int
	var appended, gained, statusChanged, becameBreaking bool
	var fromStatus, toStatus string

	final, err := e.updateWithRetry(ctx, st, func(cur *models.StoryCluster) (bool, error) {
		before := append([]string(nil), cur.SourceArticles...)

		var perr error
		prevCount, perr = e.uniqueSources(ctx, before, a)
		if perr != nil {
			return false, perr
		}

		appended = !cur.HasArticle(a.ID)
		if appended {
			cur.SourceArticles = append(cur.SourceArticles, a.ID)
		}
		newCount, perr = e.uniqueSources(ctx, cur.SourceArticles, a)
		if perr != nil {
			return false, perr
		}
		gained = newCount > prevCount

		fromStatus = cur.Status
		toStatus = e.rules.Next(cur, newCount, gained, now)
		statusChanged = toStatus != fromStatus
		becameBreaking = statusChanged && toStatus == models.StatusBreaking

		changed := appended || newCount != cur.UniqueSourceCount || statusChanged
		if !changed {
			return false, nil
		}

		cur.UniqueSourceCount = newCount
		cur.VerificationLevel = newCount
		cur.Status = toStatus
		if becameBreaking && cur.BreakingDetectedAt == nil {
			t := now
			cur.BreakingDetectedAt = &t
		}
		if gained || (statusChanged && toStatus != models.StatusArchived) {
			cur.LastUpdated = now
		}
		if statusChanged {
			cur.AppendEvent(now, "status_changed:"+fromStatus+"->"+toStatus)
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	slog.Info("cluster: article evaluated",
		"article", a.ID, "story", final.ID,
		"prev_count", prevCount, "new_count", newCount,
		"is_gaining", gained, "status", final.Status)

	if appended {
		metrics.ArticlesAttached.Inc()
	}
	if statusChanged {
		metrics.StatusTransitions.WithLabelValues(fromStatus, toStatus).Inc()
	}

	if a.StoryClusterID != final.ID {
		if err := e.articles.SetStoryCluster(ctx, a.ID, final.ID); err != nil {
			return err
		}
	}

	if (gained && e.atThreshold(newCount)) || becameBreaking {
		e.rewriteHeadline(ctx, final, now)
	}
	return nil
}

func (e *Engine) atThreshold(count int) bool {
	for _, t := range e.cfg.HeadlineThresholds {
		if count == t {
			return true
		}
	}
	return false
}

// rewriteHeadline asks the headliner for a fresh title and persists it when
// it validates. Every failure keeps the current title; a missed rewrite is
// retried at the next threshold, never redelivered.
func (e *Engine) rewriteHeadline(ctx context.Context, st *models.StoryCluster, now time.Time) {
	if e.headliner == nil {
		return
	}

	ids := st.SourceArticles
	if len(ids) > 10 {
		ids = ids[len(ids)-10:]
	}
	titleByID, err := e.articles.Titles(ctx, ids)
	if err != nil {
		slog.Warn("cluster: headline source titles unavailable", "story", st.ID, "error", err)
		metrics.HeadlineRewrites.WithLabelValues("error").Inc()
		return
	}
	titles := make([]string, 0, len(ids))
	for _, id := range ids {
		if t, ok := titleByID[id]; ok {
			titles = append(titles, t)
		}
	}

	hctx, cancel := context.WithTimeout(ctx, e.cfg.SummarizerTimeout)
	defer cancel()
	candidate, err := e.headliner.Headline(hctx, st.Title, titles)
	if err != nil {
		slog.Warn("cluster: headline synthesis failed, keeping title",
			"story", st.ID, "error", err)
		metrics.HeadlineRewrites.WithLabelValues("error").Inc()
		return
	}
	if err := ValidateHeadline(candidate, st.Title); err != nil {
		slog.Warn("cluster: headline rejected, keeping title",
			"story", st.ID, "error", err)
		metrics.HeadlineRewrites.WithLabelValues("invalid").Inc()
		return
	}

	_, err = e.updateWithRetry(ctx, st, func(cur *models.StoryCluster) (bool, error) {
		if strings.EqualFold(cur.Title, candidate) {
			return false, nil
		}
		cur.Title = candidate
		cur.AppendEvent(now, "headline_changed")
		return true, nil
	})
	if err != nil {
		slog.Warn("cluster: headline write failed", "story", st.ID, "error", err)
		metrics.HeadlineRewrites.WithLabelValues("error").Inc()
		return
	}
	metrics.HeadlineRewrites.WithLabelValues("ok").Inc()
	slog.Info("cluster: headline rewritten", "story", st.ID, "title", candidate)
}

// RunSweep re-evaluates every non-archived story against the time-based
// transition rules. It runs on a timer, single instance; article-driven
// evaluation stays with the change-feed workers.
func (e *Engine) RunSweep(ctx context.Context) error {
	stories, err := e.stories.ListNonArchived(ctx)
	if err != nil {
		return fmt.Errorf("sweep list: %w", err)
	}

	transitions := 0
	for i := range stories {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		st := &stories[i]
		now := time.Now().UTC()

		var from, to string
		_, err := e.updateWithRetry(ctx, st, func(cur *models.StoryCluster) (bool, error) {
			from = cur.Status
			to = e.rules.Next(cur, cur.UniqueSourceCount, false, now)
			if to == from {
				return false, nil
			}
			cur.Status = to
			if to == models.StatusBreaking && cur.BreakingDetectedAt == nil {
				t := now
				cur.BreakingDetectedAt = &t
			}
			if to != models.StatusArchived {
				cur.LastUpdated = now
			}
			cur.AppendEvent(now, "status_changed:"+from+"->"+to)
			return true, nil
		})
		if err != nil {
			slog.Error("sweep: story update failed", "story", st.ID, "error", err)
			continue
		}
		if to != from {
			transitions++
			metrics.StatusTransitions.WithLabelValues(from, to).Inc()
			slog.Info("sweep: status changed", "story", st.ID, "from", from, "to", to)
		}
	}

	slog.Info("sweep: completed", "stories", len(stories), "transitions", transitions)
	return nil
}

// updateWithRetry applies mutate to the story and writes it back under
// optimistic concurrency. On a version conflict the story is re-read and
// mutate re-applied, up to occAttempts times. mutate returns false to skip
// the write (nothing changed). The story actually written is returned;
// callers must not reuse their original pointer afterwards.
func (e *Engine) updateWithRetry(ctx context.Context, st *models.StoryCluster, mutate func(*models.StoryCluster) (bool, error)) (*models.StoryCluster, error) {
	cur := st
	for attempt := 0; attempt < occAttempts; attempt++ {
		write, err := mutate(cur)
		if err != nil {
			return cur, err
		}
		if !write {
			return cur, nil
		}

		err = e.stories.Update(ctx, cur)
		if err == nil {
			return cur, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return cur, err
		}

		fresh, gerr := e.stories.Get(ctx, cur.ID)
		if gerr != nil {
			return cur, gerr
		}
		if fresh == nil {
			return cur, fmt.Errorf("story %s vanished mid-update: %w", cur.ID, models.ErrNotFound)
		}
		cur = fresh
	}
	return cur, fmt.Errorf("story %s: %w after %d attempts", st.ID, models.ErrConflict, occAttempts)
}

// uniqueSources counts distinct source slugs across the given article ids.
// Resolutions are cached; the article in hand never needs a read.
func (e *Engine) uniqueSources(ctx context.Context, ids []string, a *models.Article) (int, error) {
	var missing []string
	e.mu.Lock()
	for _, id := range ids {
		if id == a.ID {
			continue
		}
		if _, ok := e.sourceCache[id]; !ok {
			missing = append(missing, id)
		}
	}
	e.mu.Unlock()

	if len(missing) > 0 {
		resolved, err := e.articles.SourcesFor(ctx, missing)
		if err != nil {
			return 0, err
		}
		e.mu.Lock()
		if len(e.sourceCache) > 8192 {
			e.sourceCache = map[string]string{}
		}
		for id, src := range resolved {
			e.sourceCache[id] = src
		}
		e.mu.Unlock()
	}

	distinct := map[string]bool{}
	e.mu.Lock()
	for _, id := range ids {
		if id == a.ID {
			distinct[a.Source] = true
			continue
		}
		if src, ok := e.sourceCache[id]; ok {
			distinct[src] = true
		}
	}
	e.mu.Unlock()
	return len(distinct), nil
}
