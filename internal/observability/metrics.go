package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "matches_total", Help: "Ride requests matched to a driver"})
	MatchFailures     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "match_failures_total", Help: "Ride requests that exhausted all candidates and attempts"})
	MatchLatency      = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "dispatch", Name: "match_latency_seconds", Help: "Time from request submission to reservation"})
	OffersCreated     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "offers_created_total", Help: "Offers extended to drivers"})
	OffersAccepted    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "offers_accepted_total", Help: "Offers accepted before expiry"})
	OffersDeclined    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "offers_declined_total", Help: "Offers explicitly declined"})
	OffersExpired     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "offers_expired_total", Help: "Offers that timed out with no response"})
	PingsAccepted     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "pings_accepted_total", Help: "Driver location pings applied to the geo index"})
	PingsStaleDropped = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "pings_stale_dropped_total", Help: "Pings dropped for carrying an old timestamp"})
	SweepEvictions    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "sweep_evictions_total", Help: "Drivers evicted by the staleness sweeper"})
	DriversOnline     = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "dispatch", Name: "drivers_online", Help: "Idle drivers currently searchable in the geo index"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
