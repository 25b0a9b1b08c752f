// Package metrics defines the Prometheus counters incremented across the
// pipeline. The worker exposes them on its own listener; the read API does
// not serve metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "ingest",
		Name:      "feed_polls_total",
		Help:      "Feed poll attempts by outcome (ok, not_modified, skipped, error).",
	}, []string{"outcome"})

	ArticlesUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "ingest",
		Name:      "articles_upserted_total",
		Help:      "Articles written to the store, inserts and revisions alike.",
	})

	EntriesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "ingest",
		Name:      "entries_skipped_total",
		Help:      "Feed entries dropped before storage, by reason.",
	}, []string{"reason"})

	StoriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "cluster",
		Name:      "stories_created_total",
		Help:      "New story clusters created.",
	})

	ArticlesAttached = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "cluster",
		Name:      "articles_attached_total",
		Help:      "Articles attached to an existing story.",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "cluster",
		Name:      "status_transitions_total",
		Help:      "Story status transitions.",
	}, []string{"from", "to"})

	HeadlineRewrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "cluster",
		Name:      "headline_rewrites_total",
		Help:      "Headline synthesis attempts by outcome (ok, invalid, error).",
	}, []string{"outcome"})

	FeedBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "changefeed",
		Name:      "batches_total",
		Help:      "Change-feed batches processed, by collection.",
	}, []string{"collection"})

	FeedBatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "changefeed",
		Name:      "batch_failures_total",
		Help:      "Change-feed batches that ended in an error, by collection.",
	}, []string{"collection"})

	LeasesHeld = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "newswire",
		Subsystem: "changefeed",
		Name:      "leases_held",
		Help:      "Partition leases currently held by this process.",
	}, []string{"collection"})

	Summaries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newswire",
		Subsystem: "summarize",
		Name:      "summaries_total",
		Help:      "Story summarization attempts by outcome (ok, error).",
	}, []string{"outcome"})
)
