package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "displaylink",
			Subsystem: "session",
			Name:      "frames_sent_total",
			Help:      "Frames written to the server, by packet type.",
		},
		[]string{"packet"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "displaylink",
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Frames decoded from the server, by packet type.",
		},
		[]string{"packet"},
	)
	bytesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "displaylink",
			Subsystem: "session",
			Name:      "bytes_sent_total",
			Help:      "Wire bytes written to the server.",
		},
	)
	bytesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "displaylink",
			Subsystem: "session",
			Name:      "bytes_received_total",
			Help:      "Wire bytes decoded from the server.",
		},
	)
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "displaylink",
			Subsystem: "session",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts, by outcome.",
		},
		[]string{"outcome"},
	)
	protocolViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "displaylink",
			Subsystem: "session",
			Name:      "protocol_violations_total",
			Help:      "Sessions terminated by a protocol violation.",
		},
	)
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "displaylink",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Connected-session lifetime in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesSent, framesReceived,
			bytesSent, bytesReceived,
			connectAttempts, protocolViolations, sessionDuration,
		)
	})
}

func RecordFrameSent(packet string, bytes int) {
	RegisterMetrics()
	framesSent.WithLabelValues(packet).Inc()
	bytesSent.Add(float64(bytes))
}

func RecordFrameReceived(packet string, bytes int) {
	RegisterMetrics()
	framesReceived.WithLabelValues(packet).Inc()
	bytesReceived.Add(float64(bytes))
}

func RecordConnectAttempt(outcome string) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(outcome).Inc()
}

func RecordProtocolViolation() {
	RegisterMetrics()
	protocolViolations.Inc()
}

func ObserveSessionDuration(d time.Duration) {
	RegisterMetrics()
	sessionDuration.Observe(d.Seconds())
}
