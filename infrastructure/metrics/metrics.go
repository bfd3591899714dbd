package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tgclean"

var (
	avatarLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "avatar_cache",
			Name:      "lookups_total",
			Help:      "Avatar cache lookups by outcome (hit tier or miss reason).",
		},
		[]string{"result", "detail"},
	)

	avatarEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "avatar_cache",
			Name:      "evicted_total",
			Help:      "Avatar cache entries removed by size-based eviction.",
		},
	)

	hydrationBatchSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hydration",
			Name:      "batch_duration_seconds",
			Help:      "Time to enrich and merge one batch of chats.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	hydrationChatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hydration",
			Name:      "chats_enriched_total",
			Help:      "Chats merged by hydration batches.",
		},
	)

	hydrationDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hydration",
			Name:      "degraded_total",
			Help:      "Per-chat enrichment calls that failed and fell back to defaults.",
		},
		[]string{"kind"},
	)

	workerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat_worker",
			Name:      "jobs_total",
			Help:      "Chat worker jobs by kind and status.",
		},
		[]string{"kind", "status"},
	)

	workerJobSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat_worker",
			Name:      "job_duration_seconds",
			Help:      "Chat worker job duration.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	messagesDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deletion",
			Name:      "messages_total",
			Help:      "Messages processed by bulk deletion by outcome.",
		},
		[]string{"outcome"},
	)
)

// AvatarCache records avatar cache events.
type AvatarCache struct{}

func (AvatarCache) Hit(tier string)    { avatarLookupsTotal.WithLabelValues("hit", tier).Inc() }
func (AvatarCache) Miss(reason string) { avatarLookupsTotal.WithLabelValues("miss", reason).Inc() }
func (AvatarCache) Evicted(n int)      { avatarEvictedTotal.Add(float64(n)) }

// Hydration records pipeline events.
type Hydration struct{}

func (Hydration) BatchMerged(size int, took time.Duration) {
	hydrationBatchSeconds.Observe(took.Seconds())
	hydrationChatsTotal.Add(float64(size))
}

func (Hydration) Degraded(kind string) {
	hydrationDegradedTotal.WithLabelValues(kind).Inc()
}

// WorkerJobDone matches the chat worker pool completion hook.
func WorkerJobDone(kind string, err error, took time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	if kind == "" {
		kind = "unknown"
	}
	workerJobsTotal.WithLabelValues(kind, status).Inc()
	workerJobSeconds.WithLabelValues(kind).Observe(took.Seconds())
}

// MessagesDeleted records one deletion outcome.
func MessagesDeleted(deleted, failed int) {
	if deleted > 0 {
		messagesDeletedTotal.WithLabelValues("deleted").Add(float64(deleted))
	}
	if failed > 0 {
		messagesDeletedTotal.WithLabelValues("failed").Add(float64(failed))
	}
}
