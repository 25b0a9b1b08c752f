// Package summarize keeps story summaries in step with their source sets.
// It consumes the story change feed and never touches the fields the
// clustering engine owns; in particular a summary write must not move
// last_updated, or summarization would masquerade as story development.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arenhaus/newswire/internal/ingest"
	"github.com/arenhaus/newswire/internal/metrics"
	"github.com/arenhaus/newswire/internal/models"
)

const (
	batchSize      = 100
	digestArticles = 10
	digestDescMax  = 300
)

// Stories is the story persistence surface the worker needs.
type Stories interface {
	Changes(ctx context.Context, partition int16, afterSeq int64, limit int) ([]models.StoryCluster, error)
	PatchSummary(ctx context.Context, id, summary string, sourceCount int, now time.Time) error
}

// Articles resolves source article ids for the digest.
type Articles interface {
	ByID(ctx context.Context, ids []string) ([]models.Article, error)
}

// LLM generates summaries.
type LLM interface {
	Summarize(ctx context.Context, digest string) (string, error)
}

// Worker summarizes stories as their coverage grows.
type Worker struct {
	stories  Stories
	articles Articles
	llm      LLM
	timeout  time.Duration
}

// NewWorker creates a summarization worker. timeout bounds each LLM call.
func NewWorker(stories Stories, articles Articles, llm LLM, timeout time.Duration) *Worker {
	return &Worker{stories: stories, articles: articles, llm: llm, timeout: timeout}
}

// HandleChanges is the change-feed handler. A story needs a summary when it
// is reader-visible and its source set has outgrown the last summary; an
// LLM failure keeps the old summary and still checkpoints, because the next
// source gain redelivers the story anyway.
func (w *Worker) HandleChanges(ctx context.Context, partition int16, afterSeq int64) (int64, int, error) {
	batch, err := w.stories.Changes(ctx, partition, afterSeq, batchSize)
	if err != nil {
		return afterSeq, 0, fmt.Errorf("summarize read batch: %w", err)
	}

	last, n := afterSeq, 0
	for i := range batch {
		st := &batch[i]
		if needsSummary(st) {
			if err := w.summarize(ctx, st); err != nil {
				return last, n, err
			}
		}
		last, n = st.Seq, n+1
	}
	return last, n, nil
}

func needsSummary(st *models.StoryCluster) bool {
	if st.Status == models.StatusMonitoring || st.Status == models.StatusArchived {
		return false
	}
	return st.Summary == "" || st.SummarySourceCount < st.UniqueSourceCount
}

// summarize refreshes one story's summary. Only store failures propagate;
// generation failures are absorbed here.
func (w *Worker) summarize(ctx context.Context, st *models.StoryCluster) error {
	digest, err := w.buildDigest(ctx, st)
	if err != nil {
		return err
	}
	if digest == "" {
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, w.timeout)
	summary, err := w.llm.Summarize(sctx, digest)
	cancel()
	if err != nil {
		metrics.Summaries.WithLabelValues("error").Inc()
		slog.Warn("summarize: generation failed, keeping summary",
			"story", st.ID, "error", err)
		return nil
	}

	if err := w.stories.PatchSummary(ctx, st.ID, summary, st.UniqueSourceCount, time.Now().UTC()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	metrics.Summaries.WithLabelValues("ok").Inc()
	slog.Info("summarize: story summarized",
		"story", st.ID, "sources", st.UniqueSourceCount)
	return nil
}

// buildDigest renders the story's most recent coverage for the LLM: source,
// title and a clipped description per article.
func (w *Worker) buildDigest(ctx context.Context, st *models.StoryCluster) (string, error) {
	ids := st.SourceArticles
	if len(ids) > digestArticles {
		ids = ids[len(ids)-digestArticles:]
	}
	articles, err := w.articles.ByID(ctx, ids)
	if err != nil {
		return "", err
	}
	if len(articles) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("Story: ")
	sb.WriteString(st.Title)
	sb.WriteString("\n\nCoverage:\n")
	for _, a := range articles {
		sb.WriteString("- [")
		sb.WriteString(ingest.SourceName(a.Source))
		sb.WriteString("] ")
		sb.WriteString(a.Title)
		if a.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(clip(a.Description, digestDescMax))
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
