package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Loads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboardr_loads_total",
		Help: "Network-first load cycles, labelled by the state they ended in.",
	}, []string{"state"})

	LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashboardr_load_duration_ms",
		Help:    "Time from starting a load until its outcome is decided, in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 10000},
	})

	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboardr_remote_requests_total",
		Help: "Requests sent to the events API, labelled by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	CacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboardr_cache_ops_total",
		Help: "Local cache operations, labelled by operation and outcome.",
	}, []string{"op", "outcome"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboardr_notifications_total",
		Help: "Banners raised, labelled by kind.",
	}, []string{"kind"})

	TasksQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboardr_tasks_queued_total",
		Help: "Async tasks placed on the task pool queue.",
	})

	TasksInline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboardr_tasks_inline_total",
		Help: "Async tasks run on the caller because the queue was full.",
	})

	Online = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboardr_online",
		Help: "1 when the last connectivity probe reached the events API, 0 otherwise.",
	})

	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsd_requests_total",
		Help: "Requests handled by the events API, labelled by route and status code.",
	}, []string{"route", "code"})

	StoredEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventsd_stored_events",
		Help: "Number of events held by the events API after the last request.",
	})
)

// Outcome labels.
const (
	OK    = "ok"
	Error = "error"
)

// Result maps an error to an outcome label.
func Result(err error) string {
	if err != nil {
		return Error
	}
	return OK
}
