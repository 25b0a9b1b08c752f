// Package changefeed runs partitioned, lease-based consumers over a
// collection's change feed. Leases are rows claimed by compare-and-set;
// a crashed worker's lease expires and another worker resumes from the
// stored continuation.
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLeaseLost reports that an operation on a held lease found it owned by
// someone else (or expired and reclaimed). The holder must abandon its
// batch without checkpointing.
var ErrLeaseLost = errors.New("lease lost")

// Lease is one partition's consumer lease.
type Lease struct {
	Collection   string
	Partition    int16
	Owner        string
	ExpiresAt    time.Time
	Continuation int64
}

// LeaseStore provides data access methods for change_feed_leases.
type LeaseStore struct {
	pool *pgxpool.Pool
}

// NewLeaseStore creates a new LeaseStore.
func NewLeaseStore(pool *pgxpool.Pool) *LeaseStore {
	return &LeaseStore{pool: pool}
}

// Ensure creates missing lease rows for every partition of a collection.
func (s *LeaseStore) Ensure(ctx context.Context, collection string, partitions int) error {
	for p := 0; p < partitions; p++ {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO change_feed_leases (collection, partition_id)
			VALUES ($1, $2)
			ON CONFLICT (collection, partition_id) DO NOTHING
		`, collection, int16(p))
		if err != nil {
			return fmt.Errorf("lease ensure %s/%d: %w", collection, p, err)
		}
	}
	return nil
}

// Acquire claims the partition's lease when it is unowned or expired. The
// claim is a single compare-and-set; losing the race returns (nil, nil).
func (s *LeaseStore) Acquire(ctx context.Context, collection string, partition int16, owner string, ttl time.Duration) (*Lease, error) {
	now := time.Now().UTC()
	expires := now.Add(ttl)

	row := s.pool.QueryRow(ctx, `
		UPDATE change_feed_leases
		SET owner = $3, expires_at = $4
		WHERE collection = $1 AND partition_id = $2
		  AND (owner = '' OR expires_at < $5)
		RETURNING continuation
	`, collection, partition, owner, expires, now)

	var continuation int64
	err := row.Scan(&continuation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lease acquire %s/%d: %w", collection, partition, err)
	}
	return &Lease{
		Collection:   collection,
		Partition:    partition,
		Owner:        owner,
		ExpiresAt:    expires,
		Continuation: continuation,
	}, nil
}

// Renew extends a held lease. ErrLeaseLost when the lease is no longer ours.
func (s *LeaseStore) Renew(ctx context.Context, collection string, partition int16, owner string, ttl time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE change_feed_leases
		SET expires_at = $4
		WHERE collection = $1 AND partition_id = $2 AND owner = $3
	`, collection, partition, owner, time.Now().UTC().Add(ttl))
	if err != nil {
		return fmt.Errorf("lease renew %s/%d: %w", collection, partition, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lease renew %s/%d: %w", collection, partition, ErrLeaseLost)
	}
	return nil
}

// Checkpoint stores the continuation for a held lease. ErrLeaseLost when
// the lease is no longer ours; the uncheckpointed batch is then redelivered
// to whoever holds it now.
func (s *LeaseStore) Checkpoint(ctx context.Context, collection string, partition int16, owner string, continuation int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE change_feed_leases
		SET continuation = $4
		WHERE collection = $1 AND partition_id = $2 AND owner = $3
	`, collection, partition, owner, continuation)
	if err != nil {
		return fmt.Errorf("lease checkpoint %s/%d: %w", collection, partition, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lease checkpoint %s/%d: %w", collection, partition, ErrLeaseLost)
	}
	return nil
}

// Release hands the lease back, keeping the continuation for the next
// holder. Releasing a lease someone else already took is not an error.
func (s *LeaseStore) Release(ctx context.Context, collection string, partition int16, owner string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE change_feed_leases
		SET owner = '', expires_at = now()
		WHERE collection = $1 AND partition_id = $2 AND owner = $3
	`, collection, partition, owner)
	if err != nil {
		return fmt.Errorf("lease release %s/%d: %w", collection, partition, err)
	}
	return nil
}
