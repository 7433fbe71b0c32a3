package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bmrk_cache_reads_total",
		Help: "Bookmark cache reads by result (hit, miss, error).",
	}, []string{"result"})

	CacheFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bmrk_cache_fetch_duration_seconds",
		Help:    "Time spent fetching the bookmark list from the data service.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	BookmarkSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bmrk_bookmark_saves_total",
		Help: "Save attempts by entry point (action, context_menu, popup, message) and status.",
	}, []string{"source", "status"})

	BusEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bmrk_bus_events_total",
		Help: "Message bus events by type and direction (published, received, dropped).",
	}, []string{"type", "direction"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bmrk_api_requests_total",
		Help: "Data service API requests by route pattern and status code.",
	}, []string{"route", "status"})

	SessionsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bmrk_sessions_issued_total",
		Help: "Access/refresh token pairs issued by sign-in or refresh.",
	})
)
