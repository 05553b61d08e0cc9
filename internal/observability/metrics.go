// Package observability provides prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsocial_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventsocial_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventsocial_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsocial_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsocial_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ChatMessagesTotal counts persisted chat messages by type.
	ChatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsocial_chat_messages_total",
		Help: "Total number of chat messages persisted",
	}, []string{"message_type"})

	// ChatSubscriptions is the gauge of (chat, user) subscriptions held by this instance.
	ChatSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventsocial_chat_subscriptions",
		Help: "Number of chat subscriptions held by the gateway",
	})

	// OTPCodesIssued counts verification codes sent out.
	OTPCodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventsocial_otp_codes_issued_total",
		Help: "Total number of registration codes issued",
	})

	// OTPCodesExpired counts pending codes cleared by the sweeper.
	OTPCodesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventsocial_otp_codes_expired_total",
		Help: "Total number of expired registration codes cleared",
	})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordChatMessage increments the persisted message counter.
func RecordChatMessage(messageType string) {
	ChatMessagesTotal.WithLabelValues(messageType).Inc()
}

// RecordWebSocketEvent increments the WebSocket events counter for the event type.
func RecordWebSocketEvent(eventType string) {
	WebSocketEventsTotal.WithLabelValues(eventType).Inc()
}

// ChatLabel formats a chat id for use as a metric or span label.
func ChatLabel(chatID uint) string {
	return strconv.FormatUint(uint64(chatID), 10)
}
