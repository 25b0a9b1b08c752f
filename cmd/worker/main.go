// Command worker runs the newswire pipeline: it polls the feed roster on a
// staggered schedule, consumes the article change feed to cluster articles
// into stories, and sweeps story statuses against the time-based rules.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/arenhaus/newswire/internal/ai"
	"github.com/arenhaus/newswire/internal/changefeed"
	"github.com/arenhaus/newswire/internal/cluster"
	"github.com/arenhaus/newswire/internal/config"
	"github.com/arenhaus/newswire/internal/db"
	"github.com/arenhaus/newswire/internal/ingest"
	"github.com/arenhaus/newswire/internal/models"
	"github.com/arenhaus/newswire/internal/scrape"
	"github.com/arenhaus/newswire/internal/storage"
)

func main() {
	// Structured JSON logging.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("worker: starting newswire pipeline")

	// Load configuration.
	cfg := config.Load()

	// Create a root context that is cancelled on shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the database.
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		slog.Error("worker: database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Create stores.
	articleStore := models.NewArticleStore(pool, cfg.Changefeed.Partitions)
	storyStore := models.NewStoryStore(pool, cfg.Changefeed.Partitions)
	feedStateStore := models.NewFeedStateStore(pool)
	leaseStore := changefeed.NewLeaseStore(pool)

	// Create the feed fetcher and the page scraper fallback.
	fetcher := ingest.NewFetcher(time.Duration(cfg.Poll.TickSeconds) * time.Second)
	pages := scrape.New()

	// Create the S3 snapshot client (a no-op when unconfigured).
	snapshots, err := storage.NewClient(ctx, cfg.S3)
	if err != nil {
		slog.Error("worker: storage client creation failed", "err", err)
		os.Exit(1)
	}

	// Create the ingestion scheduler over the static roster.
	scheduler := ingest.NewScheduler(feedStateStore, articleStore, fetcher, pages, snapshots, ingest.Roster, cfg.Poll)
	if err := scheduler.EnsureRoster(ctx); err != nil {
		slog.Error("worker: roster setup failed", "err", err)
		os.Exit(1)
	}

	// Create the clustering engine with the LLM headline synthesizer.
	headliner := ai.NewClient(cfg.Ollama.Host, cfg.Ollama.Model)
	engine := cluster.NewEngine(storyStore, articleStore, headliner, cfg.Cluster)

	// Track in-flight jobs for graceful shutdown.
	var wg sync.WaitGroup

	// The clustering workers compete for article change-feed partitions.
	dispatcher := changefeed.NewDispatcher(leaseStore, "raw_articles",
		cfg.Changefeed.Partitions, cfg.Changefeed.Workers, cfg.Changefeed.LeaseTTL,
		engine.HandleChanges)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("worker: dispatcher stopped", "err", err)
		}
	}()

	// Set up the cron scheduler (seconds-resolution expressions).
	c := cron.New(cron.WithSeconds())

	// Ingestion tick: every POLL_TICK_SECONDS. Each tick polls a small batch
	// of eligible feeds so ingestion stays an approximately continuous
	// stream rather than minute-scale bursts.
	tickSpec := fmt.Sprintf("*/%d * * * * *", cfg.Poll.TickSeconds)
	_, err = c.AddFunc(tickSpec, func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, time.Duration(cfg.Poll.TickSeconds)*time.Second)
		defer jobCancel()

		if err := scheduler.RunTick(jobCtx); err != nil && jobCtx.Err() == nil {
			slog.Error("cron: ingestion tick failed", "err", err)
		}
	})
	if err != nil {
		slog.Error("worker: add ingestion cron", "err", err)
		os.Exit(1)
	}

	// Status sweep: every 2 minutes, single instance. Archives stale
	// stories and settles BREAKING stories that went quiet.
	_, err = c.AddFunc("0 */2 * * * *", func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer jobCancel()

		if err := engine.RunSweep(jobCtx); err != nil && jobCtx.Err() == nil {
			slog.Error("cron: status sweep failed", "err", err)
		}
	})
	if err != nil {
		slog.Error("worker: add sweep cron", "err", err)
		os.Exit(1)
	}

	// Start the cron scheduler.
	c.Start()
	slog.Info("worker: cron scheduler started",
		"jobs", len(c.Entries()),
		"tick", tickSpec,
	)

	// Prometheus listener; the read API serves no metrics.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		slog.Info("worker: metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker: metrics listener failed", "err", err)
		}
	}()

	// ── Graceful Shutdown ──────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	slog.Info("worker: received shutdown signal", "signal", sig.String())

	// Stop accepting new cron jobs.
	slog.Info("worker: stopping cron scheduler")
	cronCtx := c.Stop()

	// Cancel the root context so ticks abort and the dispatcher releases
	// its leases.
	cancel()

	// Wait for the cron scheduler to finish its currently running jobs.
	select {
	case <-cronCtx.Done():
		slog.Info("worker: cron scheduler stopped")
	case <-time.After(30 * time.Second):
		slog.Warn("worker: cron scheduler stop timed out")
	}

	// Wait for all in-flight goroutines, the dispatcher included.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker: all in-flight jobs complete")
	case <-time.After(60 * time.Second):
		slog.Warn("worker: timed out waiting for in-flight jobs")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker: metrics shutdown", "err", err)
	}

	// Close the database pool.
	pool.Close()
	slog.Info("worker: shutdown complete")
}
