package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_paste_created_total",
		Help: "no. of pastes created",
	})
	PasteRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_paste_retrieved_total",
		Help: "no. of pastes retrieved",
	})
	PastesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_pastes_expired_total",
		Help: "no. of pastes soft-deleted by the sweeper",
	})
	SweepCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_sweep_cycles_total",
		Help: "no. of expiration sweep cycles",
	})
	SweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_sweep_failures_total",
		Help: "no. of failed sweep cycles",
	})
	IDCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_id_collisions_total",
		Help: "no. of short-id collisions retried during create",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_cache_hits_total",
		Help: "no. of cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_cache_misses_total",
		Help: "no. of cache misses",
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snipbin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
)

func Init() {
}
