package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arenhaus/newswire/internal/ingest"
	"github.com/arenhaus/newswire/internal/models"
)

// StoryReader is the story query surface the read API needs.
type StoryReader interface {
	ListForFeed(ctx context.Context, category, status string, limit int) ([]models.StoryCluster, error)
	Get(ctx context.Context, id string) (*models.StoryCluster, error)
}

// ArticleResolver resolves the article ids a story references.
type ArticleResolver interface {
	SourcesFor(ctx context.Context, ids []string) (map[string]string, error)
	ByID(ctx context.Context, ids []string) ([]models.Article, error)
}

// StoriesHandler groups the story feed HTTP handlers.
type StoriesHandler struct {
	Stories  StoryReader
	Articles ArticleResolver
}

// storyView is the compact story shape served to clients. Sources are
// display names, deduplicated by source slug.
type storyView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Category    string    `json:"category"`
	SourceCount int       `json:"source_count"`
	Sources     []string  `json:"sources"`
	Summary     string    `json:"summary,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`
}

// storyArticleView is one source article in the story detail response.
type storyArticleView struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ListStories handles GET /api/stories?category=&status=&limit=.
// MONITORING stories are never served; they are unverified single-source
// observations.
func (h *StoriesHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	status := r.URL.Query().Get("status")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	stories, err := h.Stories.ListForFeed(r.Context(), category, status, limit)
	if err != nil {
		slog.Error("api: list stories", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	// One lookup covers every story's source list.
	var allIDs []string
	for _, st := range stories {
		allIDs = append(allIDs, st.SourceArticles...)
	}
	sourceByID, err := h.Articles.SourcesFor(r.Context(), allIDs)
	if err != nil {
		slog.Error("api: resolve sources", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	views := make([]storyView, 0, len(stories))
	for i := range stories {
		views = append(views, storyToView(&stories[i], sourceByID))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stories": views,
		"count":   len(views),
	})
}

// GetStory handles GET /api/stories/{id}: the compact shape plus the
// resolved source article listing.
func (h *StoriesHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	story, err := h.Stories.Get(r.Context(), id)
	if err != nil {
		slog.Error("api: get story", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if story == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "story not found"})
		return
	}

	articles, err := h.Articles.ByID(r.Context(), story.SourceArticles)
	if err != nil {
		slog.Error("api: resolve articles", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	sourceByID := make(map[string]string, len(articles))
	articleViews := make([]storyArticleView, 0, len(articles))
	for _, a := range articles {
		sourceByID[a.ID] = a.Source
		articleViews = append(articleViews, storyArticleView{
			ID:          a.ID,
			Source:      ingest.SourceName(a.Source),
			Title:       a.Title,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"story":    storyToView(story, sourceByID),
		"articles": articleViews,
	})
}

// storyToView projects a story onto the client shape. Source display names
// keep the order sources joined the story in, one entry per source.
func storyToView(st *models.StoryCluster, sourceByID map[string]string) storyView {
	seen := map[string]bool{}
	sources := []string{}
	for _, id := range st.SourceArticles {
		slug, ok := sourceByID[id]
		if !ok || seen[slug] {
			continue
		}
		seen[slug] = true
		sources = append(sources, ingest.SourceName(slug))
	}

	return storyView{
		ID:          st.ID,
		Title:       st.Title,
		Status:      st.Status,
		Category:    st.Category,
		SourceCount: st.UniqueSourceCount,
		Sources:     sources,
		Summary:     st.Summary,
		FirstSeen:   st.FirstSeen,
		LastUpdated: st.LastUpdated,
	}
}
