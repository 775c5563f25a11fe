package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceapp_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voiceapp_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Live connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voiceapp_ws_connections_active",
			Help: "Currently registered WebSocket connections",
		},
	)

	ConnectionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voiceapp_ws_connections_evicted_total",
			Help: "Connections evicted by the liveness supervisor",
		},
	)

	EventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceapp_ws_events_sent_total",
			Help: "Events delivered to live connections",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voiceapp_ws_events_dropped_total",
			Help: "Event deliveries that failed (best-effort sends)",
		},
	)

	// Pipeline metrics
	PipelineJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceapp_pipeline_jobs_total",
			Help: "Pipeline jobs by variant and outcome",
		},
		[]string{"variant", "outcome"}, // variant: "transcription"|"synthesis", outcome: "completed"|"failed"
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voiceapp_pipeline_job_duration_seconds",
			Help:    "Pipeline job duration",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"variant"},
	)

	// Business metrics
	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceapp_messages_created_total",
			Help: "Messages created by origin kind",
		},
		[]string{"origin"}, // "text" or "voice"
	)

	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voiceapp_users_registered_total",
			Help: "Total users registered",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceapp_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceapp_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
