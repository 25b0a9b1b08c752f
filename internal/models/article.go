// Package models defines the persistent entities of the pipeline and their
// PostgreSQL stores.
package models

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors shared by the stores.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("version conflict")
)

// Entity types assigned by the normalizer.
const (
	EntityPerson   = "PERSON"
	EntityOrg      = "ORG"
	EntityLocation = "LOCATION"
	EntityEvent    = "EVENT"
	EntityOther    = "OTHER"
)

// Entity is a named entity extracted from article text.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Article is one ingested feed item. Storage is update-in-place: the id
// carries no timestamp, so re-ingesting the same URL overwrites the content
// fields of the existing row while fetched_at stays at the first write.
type Article struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Content        string     `json:"content,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	FetchedAt      time.Time  `json:"fetched_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Entities       []Entity   `json:"entities,omitempty"`
	Category       string     `json:"category"`
	Fingerprint    string     `json:"fingerprint,omitempty"`
	StoryClusterID string     `json:"story_cluster_id,omitempty"`
	Partition      int16      `json:"-"`
	Seq            int64      `json:"-"`
	Version        int        `json:"-"`
}

// ArticleID builds the deterministic article id for a source slug and URL.
func ArticleID(source, url string) string {
	sum := md5.Sum([]byte(url))
	return source + "_" + hex.EncodeToString(sum[:])[:12]
}

// PartitionFor maps a partition key to one of n change-feed buckets.
func PartitionFor(key string, n int) int16 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int16(h.Sum32() % uint32(n))
}

// scanEntities unmarshals a JSONB entities column (scanned as []byte).
func scanEntities(raw []byte) []Entity {
	if len(raw) == 0 {
		return nil
	}
	var ents []Entity
	if err := json.Unmarshal(raw, &ents); err != nil {
		return nil
	}
	return ents
}

// ArticleStore provides data access methods for raw_articles.
type ArticleStore struct {
	pool       *pgxpool.Pool
	partitions int
}

// NewArticleStore creates a new ArticleStore. partitions is the change-feed
// bucket count baked into rows at write time.
func NewArticleStore(pool *pgxpool.Pool, partitions int) *ArticleStore {
	return &ArticleStore{pool: pool, partitions: partitions}
}

// Upsert inserts the article or, when the id already exists, overwrites its
// content fields in place. fetched_at, fetched_date, the partition bucket and
// the story back-reference are preserved; updated_at advances and the row is
// re-sequenced so it reappears in the change feed. The stored row's
// timestamps, seq and version are written back onto a.
func (s *ArticleStore) Upsert(ctx context.Context, a *Article) error {
	entitiesJSON, err := json.Marshal(a.Entities)
	if err != nil {
		return fmt.Errorf("article marshal entities: %w", err)
	}

	now := time.Now().UTC()
	fetchedDate := now.Format("2006-01-02")
	a.Partition = PartitionFor(fetchedDate, s.partitions)

	err = s.pool.QueryRow(ctx, `
		INSERT INTO raw_articles (id, source, url, title, description, content,
		                          published_at, fetched_at, updated_at, entities,
		                          category, fingerprint, fetched_date, partition_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title        = EXCLUDED.title,
			description  = EXCLUDED.description,
			content      = EXCLUDED.content,
			published_at = EXCLUDED.published_at,
			entities     = EXCLUDED.entities,
			category     = EXCLUDED.category,
			fingerprint  = EXCLUDED.fingerprint,
			updated_at   = EXCLUDED.updated_at,
			seq          = nextval('raw_articles_seq'),
			version      = raw_articles.version + 1
		RETURNING fetched_at, updated_at, seq, version, partition_id
	`,
		a.ID, a.Source, a.URL, a.Title, a.Description, a.Content,
		a.PublishedAt, now, entitiesJSON, a.Category, a.Fingerprint,
		fetchedDate, a.Partition,
	).Scan(&a.FetchedAt, &a.UpdatedAt, &a.Seq, &a.Version, &a.Partition)
	if err != nil {
		return fmt.Errorf("article upsert: %w", err)
	}
	return nil
}

// Get returns one article by id, or nil when it does not exist.
func (s *ArticleStore) Get(ctx context.Context, id string) (*Article, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+articleColumns+`
		FROM raw_articles
		WHERE id = $1
	`, id)

	a, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("article get: %w", err)
	}
	return a, nil
}

// ByID returns the articles for the given ids, ordered as the ids slice.
// Missing ids are silently absent from the result.
func (s *ArticleStore) ByID(ctx context.Context, ids []string) ([]Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM raw_articles
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("article by id: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Article, len(ids))
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("article scan: %w", err)
		}
		byID[a.ID] = *a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("article by id: %w", err)
	}

	out := make([]Article, 0, len(byID))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// SourcesFor resolves article ids to their source slugs.
func (s *ArticleStore) SourcesFor(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT id, source FROM raw_articles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("article sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, source string
		if err := rows.Scan(&id, &source); err != nil {
			return nil, fmt.Errorf("article sources scan: %w", err)
		}
		out[id] = source
	}
	return out, rows.Err()
}

// Titles resolves article ids to their current titles.
func (s *ArticleStore) Titles(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT id, title FROM raw_articles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("article titles: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("article titles scan: %w", err)
		}
		out[id] = title
	}
	return out, rows.Err()
}

// SetStoryCluster writes the story back-reference on an article. The write
// deliberately does not re-sequence the row: a back-pointer update must not
// re-enter the change feed and re-trigger clustering.
func (s *ArticleStore) SetStoryCluster(ctx context.Context, articleID, storyID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE raw_articles SET story_cluster_id = $2 WHERE id = $1
	`, articleID, storyID)
	if err != nil {
		return fmt.Errorf("article set story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article set story %s: %w", articleID, ErrNotFound)
	}
	return nil
}

// Changes reads the change feed for one partition: the latest version of
// every row written after the continuation point, in write order.
func (s *ArticleStore) Changes(ctx context.Context, partition int16, afterSeq int64, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM raw_articles
		WHERE partition_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`, partition, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("article changes: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("article scan: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

const articleColumns = `id, source, url, title, description, content,
	       published_at, fetched_at, updated_at, entities, category,
	       fingerprint, story_cluster_id, partition_id, seq, version`

// scannable is an interface for pgx Row and Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanArticle scans a single article row, handling nullable columns.
func scanArticle(row scannable) (*Article, error) {
	var a Article
	var entitiesRaw []byte
	var storyID *string
	if err := row.Scan(
		&a.ID, &a.Source, &a.URL, &a.Title, &a.Description, &a.Content,
		&a.PublishedAt, &a.FetchedAt, &a.UpdatedAt, &entitiesRaw, &a.Category,
		&a.Fingerprint, &storyID, &a.Partition, &a.Seq, &a.Version,
	); err != nil {
		return nil, err
	}
	a.Entities = scanEntities(entitiesRaw)
	if storyID != nil {
		a.StoryClusterID = *storyID
	}
	return &a, nil
}
