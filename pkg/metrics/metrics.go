// Package metrics defines the optional instrumentation hooks the client and
// server engines call into. Both engines accept a nil ClientMetrics/
// ServerMetrics and substitute NopClientMetrics/NopServerMetrics for it,
// and a nil pointer of the concrete implementation (pkg/metrics/prometheus)
// is also a valid no-op, so that implementation is simply wired in or left
// out depending on whether metrics are enabled.
package metrics

import "time"

// ClientMetrics records client-engine activity: calls sent, how they
// resolved, and how many are currently in flight.
type ClientMetrics interface {
	// CallSent records that a call was handed to the bus.
	CallSent(functionID uint32)

	// CallCompleted records a call's terminal outcome and its latency
	// from send to resolution. outcome is one of "ok", "error",
	// "timeout", "broken", "busy", "canceled".
	CallCompleted(functionID uint32, outcome string, latency time.Duration)

	// SetPendingCalls reports the current number of in-flight calls.
	SetPendingCalls(n int)
}

// ServerMetrics records server-engine activity: requests admitted or
// rejected, how they were dispatched, and queue depth per client.
type ServerMetrics interface {
	// RequestAdmitted records that an inbound request passed admission
	// control and was queued for a worker.
	RequestAdmitted(functionID uint32)

	// RequestRejected records that an inbound request was turned away,
	// e.g. with SERVER_BUSY, INVALID_FUNCTION, or MISMATCHED_PARAMETER.
	RequestRejected(functionID uint32, reason string)

	// RequestHandled records a dispatched request's outcome and
	// handling latency.
	RequestHandled(functionID uint32, outcome string, latency time.Duration)

	// SetQueueDepth reports the current number of requests queued for a
	// given client connection.
	SetQueueDepth(clientAddr string, depth int)

	// SetClientCount reports the current number of connected clients.
	SetClientCount(n int)
}

// NopClientMetrics is a ClientMetrics that discards everything, useful in
// tests that don't want to depend on pkg/metrics/prometheus.
type NopClientMetrics struct{}

func (NopClientMetrics) CallSent(uint32)                                {}
func (NopClientMetrics) CallCompleted(uint32, string, time.Duration)     {}
func (NopClientMetrics) SetPendingCalls(int)                             {}

// NopServerMetrics is a ServerMetrics that discards everything.
type NopServerMetrics struct{}

func (NopServerMetrics) RequestAdmitted(uint32)                            {}
func (NopServerMetrics) RequestRejected(uint32, string)                    {}
func (NopServerMetrics) RequestHandled(uint32, string, time.Duration)      {}
func (NopServerMetrics) SetQueueDepth(string, int)                         {}
func (NopServerMetrics) SetClientCount(int)                                {}
