// Package prometheus implements pkg/metrics's ClientMetrics and
// ServerMetrics on top of prometheus/client_golang, following the
// promauto.With(reg)-based registration style used throughout the
// project's ambient stack.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics is a pkg/metrics.ClientMetrics implementation registered
// against a single prometheus.Registerer. A nil *ClientMetrics is a valid
// no-op, same as pkg/metrics.NopClientMetrics, so callers can pass either.
type ClientMetrics struct {
	callsSent      *prometheus.CounterVec
	callsCompleted *prometheus.CounterVec
	callLatency    *prometheus.HistogramVec
	pendingCalls   prometheus.Gauge
}

// NewClientMetrics registers and returns a ClientMetrics under reg.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	return &ClientMetrics{
		callsSent: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "busrpc",
			Subsystem: "client",
			Name:      "calls_sent_total",
			Help:      "Total number of RPC calls handed to the bus.",
		}, []string{"function_id"}),
		callsCompleted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "busrpc",
			Subsystem: "client",
			Name:      "calls_completed_total",
			Help:      "Total number of RPC calls that resolved, by outcome.",
		}, []string{"function_id", "outcome"}),
		callLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "busrpc",
			Subsystem: "client",
			Name:      "call_latency_seconds",
			Help:      "Latency from Call() to resolution, in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function_id", "outcome"}),
		pendingCalls: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "busrpc",
			Subsystem: "client",
			Name:      "pending_calls",
			Help:      "Current number of in-flight RPC calls.",
		}),
	}
}

func (m *ClientMetrics) CallSent(functionID uint32) {
	if m == nil {
		return
	}
	m.callsSent.WithLabelValues(functionIDLabel(functionID)).Inc()
}

func (m *ClientMetrics) CallCompleted(functionID uint32, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	label := functionIDLabel(functionID)
	m.callsCompleted.WithLabelValues(label, outcome).Inc()
	m.callLatency.WithLabelValues(label, outcome).Observe(latency.Seconds())
}

func (m *ClientMetrics) SetPendingCalls(n int) {
	if m == nil {
		return
	}
	m.pendingCalls.Set(float64(n))
}

// ServerMetrics is a pkg/metrics.ServerMetrics implementation registered
// against a single prometheus.Registerer.
type ServerMetrics struct {
	requestsAdmitted *prometheus.CounterVec
	requestsRejected *prometheus.CounterVec
	requestsHandled  *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	queueDepth       *prometheus.GaugeVec
	clientCount      prometheus.Gauge
}

// NewServerMetrics registers and returns a ServerMetrics under reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	return &ServerMetrics{
		requestsAdmitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "busrpc",
			Subsystem: "server",
			Name:      "requests_admitted_total",
			Help:      "Total number of inbound requests that passed admission control.",
		}, []string{"function_id"}),
		requestsRejected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "busrpc",
			Subsystem: "server",
			Name:      "requests_rejected_total",
			Help:      "Total number of inbound requests turned away, by reason.",
		}, []string{"function_id", "reason"}),
		requestsHandled: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "busrpc",
			Subsystem: "server",
			Name:      "requests_handled_total",
			Help:      "Total number of dispatched requests, by outcome.",
		}, []string{"function_id", "outcome"}),
		requestLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "busrpc",
			Subsystem: "server",
			Name:      "request_latency_seconds",
			Help:      "Latency from dispatch to handler completion, in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function_id", "outcome"}),
		queueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "busrpc",
			Subsystem: "server",
			Name:      "client_queue_depth",
			Help:      "Current number of requests queued for a client connection.",
		}, []string{"client_addr"}),
		clientCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "busrpc",
			Subsystem: "server",
			Name:      "connected_clients",
			Help:      "Current number of connected clients.",
		}),
	}
}

func (m *ServerMetrics) RequestAdmitted(functionID uint32) {
	if m == nil {
		return
	}
	m.requestsAdmitted.WithLabelValues(functionIDLabel(functionID)).Inc()
}

func (m *ServerMetrics) RequestRejected(functionID uint32, reason string) {
	if m == nil {
		return
	}
	m.requestsRejected.WithLabelValues(functionIDLabel(functionID), reason).Inc()
}

func (m *ServerMetrics) RequestHandled(functionID uint32, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	label := functionIDLabel(functionID)
	m.requestsHandled.WithLabelValues(label, outcome).Inc()
	m.requestLatency.WithLabelValues(label, outcome).Observe(latency.Seconds())
}

func (m *ServerMetrics) SetQueueDepth(clientAddr string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(clientAddr).Set(float64(depth))
}

func (m *ServerMetrics) SetClientCount(n int) {
	if m == nil {
		return
	}
	m.clientCount.Set(float64(n))
}

func functionIDLabel(functionID uint32) string {
	return uintToString(functionID)
}
