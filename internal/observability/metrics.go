package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MediaIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventface",
		Name:      "media_ingested_total",
		Help:      "Media items processed by the ingestion pipeline",
	}, []string{"outcome"})

	FacesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eventface",
		Name:      "faces_indexed_total",
		Help:      "Face records inserted into the face index",
	})

	IngestFaceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventface",
		Name:      "ingest_face_errors_total",
		Help:      "Faces skipped during ingestion, by error kind",
	}, []string{"kind"})

	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventface",
		Name:      "searches_total",
		Help:      "Find-my-photos requests, by outcome",
	}, []string{"outcome"})

	ExtractorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventface",
		Name:      "extractor_duration_seconds",
		Help:      "Duration of embedding extractor calls",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"op"})

	MatchCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eventface",
		Name:      "match_candidates",
		Help:      "Number of indexed faces scanned per match",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventface",
		Name:      "queue_depth",
		Help:      "Number of pending ingest tasks in queue",
	})

	MediaExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eventface",
		Name:      "media_expired_total",
		Help:      "Media items removed by the retention sweep",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventface",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventface",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
