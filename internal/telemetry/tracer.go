package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for busrpc call spans.
const (
	AttrFunctionID = "busrpc.function_id"
	AttrRequestID  = "busrpc.request_id"
	AttrClientAddr = "busrpc.client_addr"
	AttrRPCCode    = "busrpc.rpc_code"
	AttrNoReply    = "busrpc.no_reply"
)

// FunctionID returns an attribute for the called function's numeric ID.
func FunctionID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrFunctionID, int64(id))
}

// RequestID returns an attribute for a packet's request ID.
func RequestID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrRequestID, int64(id))
}

// ClientAddr returns an attribute for the bus address of the client side of
// a call.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// RPCCode returns an attribute for a reply's RPC status code.
func RPCCode(code int32) attribute.KeyValue {
	return attribute.Int64(AttrRPCCode, int64(code))
}

// StartClientCallSpan starts a span around one client-side Call, tagged with
// the function being called and the request ID assigned to it.
func StartClientCallSpan(ctx context.Context, functionID uint32, requestID uint64) (context.Context, trace.Span) {
	return StartSpan(ctx, "busrpc.call", trace.WithAttributes(
		FunctionID(functionID),
		RequestID(requestID),
	))
}

// StartServerDispatchSpan starts a span around one server-side handler
// dispatch, tagged with the function being served and the calling client.
func StartServerDispatchSpan(ctx context.Context, functionID uint32, clientAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, "busrpc.dispatch", trace.WithAttributes(
		FunctionID(functionID),
		ClientAddr(clientAddr),
	))
}
