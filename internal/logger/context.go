package logger

import (
	"context"
	"time"
)

// Structured field keys used by the context-aware logging API and by call
// sites across rpcclient/rpcserver that want consistent attribute names.
const (
	KeyTraceID    = "trace_id"
	KeySpanID     = "span_id"
	KeyProcedure  = "procedure"
	KeyShare      = "peer"
	KeyClientIP   = "client_addr"
	KeyUID        = "request_id"
	KeyGID        = "function_id"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one RPC call as it
// flows through the client or server engine.
type LogContext struct {
	TraceID    string // OpenTelemetry trace ID
	SpanID     string // OpenTelemetry span ID
	Procedure  string // function name/alias being invoked, for logging only
	ClientAddr string // bus address of the remote peer
	RequestID  uint64 // wire request-id
	FunctionID uint32 // wire function-id
	StartTime  time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a call identified by request-id
// and function-id, to be threaded through handler and reply logging.
func NewLogContext(clientAddr string, requestID uint64, functionID uint32) *LogContext {
	return &LogContext{
		ClientAddr: clientAddr,
		RequestID:  requestID,
		FunctionID: functionID,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
