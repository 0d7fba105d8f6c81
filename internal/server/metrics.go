package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrlens_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrlens_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Detection metrics
	qrRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrlens_qr_requests_total",
			Help: "Total number of QR detection requests",
		},
		[]string{"endpoint", "outcome"}, // outcome: found, not_found, error
	)

	qrProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrlens_qr_processing_duration_seconds",
			Help:    "Detection pipeline duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	qrStrategyAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrlens_qr_strategy_attempts",
			Help:    "Number of strategy attempts per detection call",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"endpoint"},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qrlens_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qrlens_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrlens_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
