package models

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FeedPollState is the per-feed polling cursor: conditional-GET validators,
// failure streak and the next time the feed may be polled. It lives in its
// own table, deliberately apart from the story data.
type FeedPollState struct {
	FeedID              string     `json:"feed_id"`
	LastPolledAt        *time.Time `json:"last_polled_at,omitempty"`
	LastSuccessfulAt    *time.Time `json:"last_successful_at,omitempty"`
	LastETag            string     `json:"last_etag,omitempty"`
	LastModified        string     `json:"last_modified,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	NextEligibleAt      time.Time  `json:"next_eligible_at"`
}

// FeedStateStore provides data access methods for feed_poll_states.
type FeedStateStore struct {
	pool *pgxpool.Pool
}

// NewFeedStateStore creates a new FeedStateStore.
func NewFeedStateStore(pool *pgxpool.Pool) *FeedStateStore {
	return &FeedStateStore{pool: pool}
}

// Ensure creates missing state rows for the roster. New feeds become
// eligible immediately; existing rows are left untouched.
func (s *FeedStateStore) Ensure(ctx context.Context, feedIDs []string) error {
	for _, id := range feedIDs {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO feed_poll_states (feed_id) VALUES ($1)
			ON CONFLICT (feed_id) DO NOTHING
		`, id)
		if err != nil {
			return fmt.Errorf("feed state ensure %s: %w", id, err)
		}
	}
	return nil
}

// Eligible returns up to limit feeds due for polling at now, most overdue
// first. A feed in backoff simply has next_eligible_at in the future and
// falls out of the result until the backoff elapses.
func (s *FeedStateStore) Eligible(ctx context.Context, now time.Time, limit int) ([]FeedPollState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT feed_id, last_polled_at, last_successful_at, last_etag,
		       last_modified, consecutive_failures, next_eligible_at
		FROM feed_poll_states
		WHERE next_eligible_at <= $1
		ORDER BY next_eligible_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("feed state eligible: %w", err)
	}
	defer rows.Close()

	var out []FeedPollState
	for rows.Next() {
		var fs FeedPollState
		if err := rows.Scan(&fs.FeedID, &fs.LastPolledAt, &fs.LastSuccessfulAt,
			&fs.LastETag, &fs.LastModified, &fs.ConsecutiveFailures,
			&fs.NextEligibleAt); err != nil {
			return nil, fmt.Errorf("feed state scan: %w", err)
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

// RecordSuccess resets the failure streak and stores the validators the
// server handed back. Callers pass the previous etag and last-modified
// through unchanged when the response omitted them.
func (s *FeedStateStore) RecordSuccess(ctx context.Context, feedID, etag, lastModified string, now, next time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE feed_poll_states SET
			last_polled_at       = $2,
			last_successful_at   = $2,
			last_etag            = $3,
			last_modified        = $4,
			consecutive_failures = 0,
			next_eligible_at     = $5
		WHERE feed_id = $1
	`, feedID, now, etag, lastModified, next)
	if err != nil {
		return fmt.Errorf("feed state success %s: %w", feedID, err)
	}
	return nil
}

// RecordFailure stores the new failure streak and the backoff deadline the
// scheduler computed from it.
func (s *FeedStateStore) RecordFailure(ctx context.Context, feedID string, failures int, now, next time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE feed_poll_states SET
			last_polled_at       = $2,
			consecutive_failures = $3,
			next_eligible_at     = $4
		WHERE feed_id = $1
	`, feedID, now, failures, next)
	if err != nil {
		return fmt.Errorf("feed state failure %s: %w", feedID, err)
	}
	return nil
}

// RecordSkip pushes the feed out without touching the failure streak. Used
// for publisher-side rejections that polling harder cannot fix.
func (s *FeedStateStore) RecordSkip(ctx context.Context, feedID string, now, next time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE feed_poll_states SET
			last_polled_at   = $2,
			next_eligible_at = $3
		WHERE feed_id = $1
	`, feedID, now, next)
	if err != nil {
		return fmt.Errorf("feed state skip %s: %w", feedID, err)
	}
	return nil
}
