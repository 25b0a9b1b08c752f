// Command api serves the newswire read API: ranked story feeds for mobile
// clients. It is read-only; every write belongs to the pipeline workers.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arenhaus/newswire/internal/config"
	"github.com/arenhaus/newswire/internal/db"
	"github.com/arenhaus/newswire/internal/handlers"
	"github.com/arenhaus/newswire/internal/models"
)

func main() {
	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Database connection.
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		slog.Error("api: failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Data stores.
	storyStore := models.NewStoryStore(pool, cfg.Changefeed.Partitions)
	articleStore := models.NewArticleStore(pool, cfg.Changefeed.Partitions)

	// Handlers.
	healthHandler := &handlers.HealthHandler{DB: pool}
	storiesHandler := &handlers.StoriesHandler{
		Stories:  storyStore,
		Articles: articleStore,
	}

	// Router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", healthHandler.Health)
	r.Get("/api/stories", storiesHandler.ListStories)
	r.Get("/api/stories/{id}", storiesHandler.GetStory)

	// Start server.
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("api: server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api: server error", "err", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("api: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("api: shutdown error", "err", err)
	}

	slog.Info("api: server stopped")
}
