package changefeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arenhaus/newswire/internal/metrics"
)

const (
	renewInterval = 10 * time.Second
	acquireRetry  = 30 * time.Second
	idleDelay     = 2 * time.Second
	errorDelay    = 5 * time.Second
	releaseGrace  = 5 * time.Second
)

// Handler processes one change-feed batch for a partition, starting after
// afterSeq. It returns the last sequence number fully processed and how
// many events that covered; the dispatcher checkpoints the returned prefix
// even when the handler also returns an error, so completed work is never
// redelivered and failed work always is.
type Handler func(ctx context.Context, partition int16, afterSeq int64) (lastSeq int64, n int, err error)

// Leases is the lease persistence surface the dispatcher needs.
type Leases interface {
	Ensure(ctx context.Context, collection string, partitions int) error
	Acquire(ctx context.Context, collection string, partition int16, owner string, ttl time.Duration) (*Lease, error)
	Renew(ctx context.Context, collection string, partition int16, owner string, ttl time.Duration) error
	Checkpoint(ctx context.Context, collection string, partition int16, owner string, continuation int64) error
	Release(ctx context.Context, collection string, partition int16, owner string) error
}

// Dispatcher competes for a collection's partition leases and pumps each
// held partition through a Handler. Every partition gets its own acquire
// loop so none starves; the worker count only bounds how many batches are
// in flight at once.
type Dispatcher struct {
	leases     Leases
	collection string
	partitions int
	ttl        time.Duration
	handle     Handler
	owner      string
	sem        chan struct{}
}

// NewDispatcher creates a dispatcher for one collection's feed.
func NewDispatcher(leases Leases, collection string, partitions, workers int, ttl time.Duration, handle Handler) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		leases:     leases,
		collection: collection,
		partitions: partitions,
		ttl:        ttl,
		handle:     handle,
		owner:      uuid.NewString(),
		sem:        make(chan struct{}, workers),
	}
}

// Run blocks until ctx is cancelled and every held lease is released.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.leases.Ensure(ctx, d.collection, d.partitions); err != nil {
		return err
	}
	slog.Info("changefeed: dispatcher starting",
		"collection", d.collection, "partitions", d.partitions, "owner", d.owner)

	var wg sync.WaitGroup
	for p := 0; p < d.partitions; p++ {
		wg.Add(1)
		go func(partition int16) {
			defer wg.Done()
			d.partitionLoop(ctx, partition)
		}(int16(p))
	}
	wg.Wait()
	slog.Info("changefeed: dispatcher stopped", "collection", d.collection)
	return nil
}

func (d *Dispatcher) partitionLoop(ctx context.Context, partition int16) {
	for ctx.Err() == nil {
		lease, err := d.leases.Acquire(ctx, d.collection, partition, d.owner, d.ttl)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("lease: acquire failed",
					"collection", d.collection, "partition", partition, "error", err)
			}
			sleep(ctx, acquireRetry)
			continue
		}
		if lease == nil {
			// Held elsewhere; check back around the time it could expire.
			sleep(ctx, acquireRetry)
			continue
		}
		d.runLease(ctx, lease)
	}
}

// runLease pumps one held partition until the lease is lost or ctx ends.
func (d *Dispatcher) runLease(ctx context.Context, lease *Lease) {
	leaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.LeasesHeld.WithLabelValues(d.collection).Inc()
	defer metrics.LeasesHeld.WithLabelValues(d.collection).Dec()
	slog.Info("lease: acquired",
		"collection", d.collection, "partition", lease.Partition,
		"continuation", lease.Continuation)

	go d.renewLoop(leaseCtx, cancel, lease.Partition)

	continuation := lease.Continuation
	for leaseCtx.Err() == nil {
		// A semaphore slot caps how many batches the process has in
		// flight across all partitions.
		select {
		case d.sem <- struct{}{}:
		case <-leaseCtx.Done():
			continue
		}
		last, n, err := d.handle(leaseCtx, lease.Partition, continuation)
		<-d.sem

		if last > continuation {
			if cerr := d.checkpoint(leaseCtx, lease.Partition, last); cerr != nil {
				slog.Warn("lease: checkpoint failed, dropping lease",
					"collection", d.collection, "partition", lease.Partition, "error", cerr)
				break
			}
			continuation = last
		}

		if err != nil {
			if leaseCtx.Err() != nil {
				break
			}
			metrics.FeedBatchFailures.WithLabelValues(d.collection).Inc()
			slog.Error("changefeed: batch failed",
				"collection", d.collection, "partition", lease.Partition,
				"continuation", continuation, "error", err)
			sleep(leaseCtx, errorDelay)
			continue
		}

		if n > 0 {
			metrics.FeedBatches.WithLabelValues(d.collection).Inc()
		} else {
			sleep(leaseCtx, idleDelay)
		}
	}

	// The root ctx may already be cancelled; release on a fresh one so a
	// clean shutdown hands the partition over immediately.
	rctx, rcancel := context.WithTimeout(context.Background(), releaseGrace)
	defer rcancel()
	if err := d.leases.Release(rctx, d.collection, lease.Partition, d.owner); err != nil {
		slog.Warn("lease: release failed",
			"collection", d.collection, "partition", lease.Partition, "error", err)
		return
	}
	slog.Info("lease: released", "collection", d.collection, "partition", lease.Partition)
}

func (d *Dispatcher) checkpoint(ctx context.Context, partition int16, continuation int64) error {
	return d.leases.Checkpoint(ctx, d.collection, partition, d.owner, continuation)
}

// renewLoop extends the lease every renewInterval and tears the partition
// down the moment a renewal fails.
func (d *Dispatcher) renewLoop(ctx context.Context, cancel context.CancelFunc, partition int16) {
	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.leases.Renew(ctx, d.collection, partition, d.owner, d.ttl); err != nil {
				if ctx.Err() == nil {
					slog.Warn("lease: renewal failed",
						"collection", d.collection, "partition", partition, "error", err)
				}
				cancel()
				return
			}
		}
	}
}

func sleep(ctx context.Context, dur time.Duration) {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
