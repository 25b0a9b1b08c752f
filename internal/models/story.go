package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Story lifecycle states, in escalation order.
const (
	StatusMonitoring = "MONITORING"
	StatusDeveloping = "DEVELOPING"
	StatusBreaking   = "BREAKING"
	StatusVerified   = "VERIFIED"
	StatusArchived   = "ARCHIVED"
)

// VersionEvent is one entry of a story's append-only audit trail.
type VersionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
}

// StoryCluster groups articles that report the same underlying story.
type StoryCluster struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Fingerprint        string         `json:"fingerprint"`
	Category           string         `json:"category"`
	SourceArticles     []string       `json:"source_articles"`
	UniqueSourceCount  int            `json:"unique_source_count"`
	VerificationLevel  int            `json:"verification_level"`
	Status             string         `json:"status"`
	FirstSeen          time.Time      `json:"first_seen"`
	LastUpdated        time.Time      `json:"last_updated"`
	BreakingDetectedAt *time.Time     `json:"breaking_detected_at,omitempty"`
	Summary            string         `json:"summary,omitempty"`
	SummarySourceCount int            `json:"-"`
	VersionHistory     []VersionEvent `json:"version_history,omitempty"`
	Partition          int16          `json:"-"`
	Seq                int64          `json:"-"`
	Version            int            `json:"-"`
}

// NewStoryID builds a fresh story id: a timestamp for operators plus a
// random suffix so two stories created in the same second cannot collide.
func NewStoryID(now time.Time) string {
	return fmt.Sprintf("story_%s_%s_%s",
		now.UTC().Format("20060102"),
		now.UTC().Format("150405"),
		uuid.NewString()[:6])
}

// HasArticle reports whether the article id is already attached.
func (st *StoryCluster) HasArticle(id string) bool {
	for _, a := range st.SourceArticles {
		if a == id {
			return true
		}
	}
	return false
}

// AppendEvent records an audit event at the given time.
func (st *StoryCluster) AppendEvent(now time.Time, event string) {
	st.VersionHistory = append(st.VersionHistory, VersionEvent{Timestamp: now.UTC(), Event: event})
}

// StoryStore provides data access methods for story_clusters.
type StoryStore struct {
	pool       *pgxpool.Pool
	partitions int
}

// NewStoryStore creates a new StoryStore.
func NewStoryStore(pool *pgxpool.Pool, partitions int) *StoryStore {
	return &StoryStore{pool: pool, partitions: partitions}
}

// Create inserts a new story cluster. Partition, seq and version are
// assigned here and written back onto st.
func (s *StoryStore) Create(ctx context.Context, st *StoryCluster) error {
	sourcesJSON, historyJSON, err := marshalStoryJSON(st)
	if err != nil {
		return err
	}

	st.Partition = PartitionFor(st.Category, s.partitions)

	err = s.pool.QueryRow(ctx, `
		INSERT INTO story_clusters (id, title, fingerprint, category,
			source_articles, unique_source_count, verification_level, status,
			first_seen, last_updated, breaking_detected_at, summary,
			summary_source_count, version_history, partition_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING seq, version
	`,
		st.ID, st.Title, st.Fingerprint, st.Category, sourcesJSON,
		st.UniqueSourceCount, st.VerificationLevel, st.Status, st.FirstSeen,
		st.LastUpdated, st.BreakingDetectedAt, st.Summary,
		st.SummarySourceCount, historyJSON, st.Partition,
	).Scan(&st.Seq, &st.Version)
	if err != nil {
		return fmt.Errorf("story create: %w", err)
	}
	return nil
}

// Get returns one story by id, or nil when it does not exist.
func (s *StoryStore) Get(ctx context.Context, id string) (*StoryCluster, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+storyColumns+`
		FROM story_clusters
		WHERE id = $1
	`, id)

	st, err := scanStory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("story get: %w", err)
	}
	return st, nil
}

// FindByFingerprint returns the most recently updated live story matching
// the fingerprint within a category. Archived stories and stories whose
// last update predates activeSince are never returned; a dormant story is
// left behind and a new one forked instead.
func (s *StoryStore) FindByFingerprint(ctx context.Context, category, fingerprint string, activeSince time.Time) (*StoryCluster, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+storyColumns+`
		FROM story_clusters
		WHERE category = $1 AND fingerprint = $2
		  AND status != 'ARCHIVED' AND last_updated > $3
		ORDER BY last_updated DESC
		LIMIT 1
	`, category, fingerprint, activeSince)

	st, err := scanStory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("story find fingerprint: %w", err)
	}
	return st, nil
}

// RecentByCategory returns live stories in a category ordered by recency,
// newest first, for fuzzy match candidate selection.
func (s *StoryStore) RecentByCategory(ctx context.Context, category string, activeSince time.Time, limit int) ([]StoryCluster, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+storyColumns+`
		FROM story_clusters
		WHERE category = $1 AND status != 'ARCHIVED' AND last_updated > $2
		ORDER BY last_updated DESC
		LIMIT $3
	`, category, activeSince, limit)
	if err != nil {
		return nil, fmt.Errorf("story recent: %w", err)
	}
	defer rows.Close()

	return scanStories(rows)
}

// Update writes the story back under optimistic concurrency: the write
// applies only if the stored version still equals the version st was read
// at, otherwise ErrConflict. Summarizer-owned columns (summary,
// summary_source_count) are left untouched so a concurrent summary patch is
// never clobbered. The row is re-sequenced into the change feed.
func (s *StoryStore) Update(ctx context.Context, st *StoryCluster) error {
	sourcesJSON, historyJSON, err := marshalStoryJSON(st)
	if err != nil {
		return err
	}

	readVersion := st.Version
	err = s.pool.QueryRow(ctx, `
		UPDATE story_clusters SET
			title               = $3,
			source_articles     = $4,
			unique_source_count = $5,
			verification_level  = $6,
			status              = $7,
			last_updated        = $8,
			breaking_detected_at = $9,
			version_history     = $10,
			seq                 = nextval('story_clusters_seq'),
			version             = version + 1
		WHERE id = $1 AND version = $2
		RETURNING seq, version
	`,
		st.ID, readVersion, st.Title, sourcesJSON, st.UniqueSourceCount,
		st.VerificationLevel, st.Status, st.LastUpdated,
		st.BreakingDetectedAt, historyJSON,
	).Scan(&st.Seq, &st.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("story update %s: %w", st.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("story update: %w", err)
	}
	return nil
}

// ListNonArchived returns every story not yet archived, oldest update
// first, for the status sweep.
func (s *StoryStore) ListNonArchived(ctx context.Context) ([]StoryCluster, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+storyColumns+`
		FROM story_clusters
		WHERE status != 'ARCHIVED'
		ORDER BY last_updated ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("story list nonarchived: %w", err)
	}
	defer rows.Close()

	return scanStories(rows)
}

// PatchSummary writes the summarizer-owned columns and appends an audit
// event. It deliberately leaves last_updated alone (summarization is not a
// story development) and does not re-sequence the row, so a summary write
// cannot re-trigger the feed consumers that produced it. The version bump
// makes any in-flight engine update retry against the patched row.
func (s *StoryStore) PatchSummary(ctx context.Context, id, summary string, sourceCount int, now time.Time) error {
	eventJSON, err := json.Marshal([]VersionEvent{{Timestamp: now.UTC(), Event: "summary_updated"}})
	if err != nil {
		return fmt.Errorf("story marshal event: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE story_clusters SET
			summary              = $2,
			summary_source_count = $3,
			version_history      = version_history || $4::jsonb,
			version              = version + 1
		WHERE id = $1
	`, id, summary, sourceCount, eventJSON)
	if err != nil {
		return fmt.Errorf("story patch summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("story patch summary %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListForFeed returns the reader-facing story listing: MONITORING stories
// are always hidden, category and status narrow further when set.
func (s *StoryStore) ListForFeed(ctx context.Context, category, status string, limit int) ([]StoryCluster, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `
		SELECT ` + storyColumns + `
		FROM story_clusters
		WHERE status != 'MONITORING'`
	args := []any{}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY last_updated DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("story list feed: %w", err)
	}
	defer rows.Close()

	return scanStories(rows)
}

// Changes reads the story change feed for one partition.
func (s *StoryStore) Changes(ctx context.Context, partition int16, afterSeq int64, limit int) ([]StoryCluster, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+storyColumns+`
		FROM story_clusters
		WHERE partition_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`, partition, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("story changes: %w", err)
	}
	defer rows.Close()

	return scanStories(rows)
}

const storyColumns = `id, title, fingerprint, category, source_articles,
	       unique_source_count, verification_level, status, first_seen,
	       last_updated, breaking_detected_at, summary, summary_source_count,
	       version_history, partition_id, seq, version`

func marshalStoryJSON(st *StoryCluster) (sources, history []byte, err error) {
	if st.SourceArticles == nil {
		st.SourceArticles = []string{}
	}
	sources, err = json.Marshal(st.SourceArticles)
	if err != nil {
		return nil, nil, fmt.Errorf("story marshal sources: %w", err)
	}
	if st.VersionHistory == nil {
		st.VersionHistory = []VersionEvent{}
	}
	history, err = json.Marshal(st.VersionHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("story marshal history: %w", err)
	}
	return sources, history, nil
}

func scanStory(row scannable) (*StoryCluster, error) {
	var st StoryCluster
	var sourcesRaw, historyRaw []byte
	if err := row.Scan(
		&st.ID, &st.Title, &st.Fingerprint, &st.Category, &sourcesRaw,
		&st.UniqueSourceCount, &st.VerificationLevel, &st.Status,
		&st.FirstSeen, &st.LastUpdated, &st.BreakingDetectedAt, &st.Summary,
		&st.SummarySourceCount, &historyRaw, &st.Partition, &st.Seq,
		&st.Version,
	); err != nil {
		return nil, err
	}
	if len(sourcesRaw) > 0 {
		if err := json.Unmarshal(sourcesRaw, &st.SourceArticles); err != nil {
			return nil, fmt.Errorf("story unmarshal sources: %w", err)
		}
	}
	if len(historyRaw) > 0 {
		if err := json.Unmarshal(historyRaw, &st.VersionHistory); err != nil {
			return nil, fmt.Errorf("story unmarshal history: %w", err)
		}
	}
	return &st, nil
}

func scanStories(rows pgx.Rows) ([]StoryCluster, error) {
	var out []StoryCluster
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("story scan: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}
