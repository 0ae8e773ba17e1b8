package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "td_feed_fetches_total",
			Help: "Outbound feed fetches by result",
		},
		[]string{"feed", "result"},
	)

	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "td_feed_fetch_duration_seconds",
			Help:    "Time spent fetching a feed",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"feed"},
	)

	FeedRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "td_feed_cached_records",
			Help: "Records currently cached per feed",
		},
		[]string{"feed"},
	)

	FeedLastRefresh = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "td_feed_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		},
		[]string{"feed"},
	)

	StreamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "td_stream_connections",
			Help: "Open threat stream connections",
		},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "td_events_emitted_total",
			Help: "Synthesized events sent to stream clients by class",
		},
		[]string{"class"},
	)

	DistinctSources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "td_stream_distinct_sources",
			Help: "Approximate number of distinct source addresses streamed",
		},
	)
)
