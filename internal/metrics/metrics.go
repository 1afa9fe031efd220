package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cronchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cronchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cronchat_messages_published_total",
			Help: "Total messages handed to the relay",
		},
		[]string{"type"}, // "user", "cron" or "system"
	)

	RelayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cronchat_relay_errors_total",
			Help: "Total relay publish failures",
		},
		[]string{"relay"},
	)

	SocketsOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cronchat_sockets_online",
			Help: "Websocket clients connected to this instance",
		},
	)

	SlowConsumersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cronchat_slow_consumers_evicted_total",
			Help: "Sockets dropped because their send buffer was full",
		},
	)

	BotTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cronchat_bot_ticks_total",
			Help: "Scheduled bot messages fired",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cronchat_rate_limit_hits_total",
			Help: "Socket messages rejected by the rate limiter",
		},
	)
)
