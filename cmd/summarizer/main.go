// Command summarizer runs the summarization worker: it consumes the story
// change feed and writes a summary whenever a story's source set outgrows
// the last one. It patches only the summary fields, never last_updated.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/arenhaus/newswire/internal/ai"
	"github.com/arenhaus/newswire/internal/changefeed"
	"github.com/arenhaus/newswire/internal/config"
	"github.com/arenhaus/newswire/internal/db"
	"github.com/arenhaus/newswire/internal/models"
	"github.com/arenhaus/newswire/internal/summarize"
)

func main() {
	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("summarizer: starting")

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		slog.Error("summarizer: database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	storyStore := models.NewStoryStore(pool, cfg.Changefeed.Partitions)
	articleStore := models.NewArticleStore(pool, cfg.Changefeed.Partitions)
	leaseStore := changefeed.NewLeaseStore(pool)

	llm := ai.NewClient(cfg.Ollama.Host, cfg.Ollama.Model)
	worker := summarize.NewWorker(storyStore, articleStore, llm, cfg.Cluster.SummarizerTimeout)

	// The summarizer competes for story change-feed partitions under its
	// own lease rows, apart from the clustering workers'.
	dispatcher := changefeed.NewDispatcher(leaseStore, "story_clusters",
		cfg.Changefeed.Partitions, cfg.Changefeed.Workers, cfg.Changefeed.LeaseTTL,
		worker.HandleChanges)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("summarizer: dispatcher stopped", "err", err)
		}
	}()

	// ── Graceful Shutdown ──────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	slog.Info("summarizer: received shutdown signal", "signal", sig.String())

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("summarizer: leases released")
	case <-time.After(30 * time.Second):
		slog.Warn("summarizer: timed out waiting for lease release")
	}

	pool.Close()
	slog.Info("summarizer: shutdown complete")
}
