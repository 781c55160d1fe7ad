package rpcclient

import (
	"time"

	"github.com/dittobus/busrpc/internal/rpcwire"
	"github.com/dittobus/busrpc/pkg/rpcerrors"
)

// Result is what a Call eventually resolves to: either a successful reply
// packet, or an error carrying one of the fixed rpcerrors.Code values
// (NETWORK_TIMEOUT, NETWORK_BROKEN, or whatever the server returned in
// rpc_code), or the context's error when the call is canceled.
type Result struct {
	Reply *rpcwire.Packet
	Err   error
}

// pendingCall is one in-flight request, tracked under the Engine's lock by
// both its wire request_id (to match an incoming reply) and its timer_id
// (to match an expiring time.Timer), so either a reply or a timeout can
// resolve it exactly once. It remembers the caller's correlation slots so
// whichever result eventually resolves it — a real reply, a synthesized
// timeout, or a synthesized disconnect — can carry them back unchanged.
type pendingCall struct {
	requestID   uint64
	functionID  uint32
	timerID     uint64
	correlation rpcwire.Correlation
	timer       *time.Timer
	done        chan *Result
	resolved    bool
}

func newPendingCall(requestID uint64, functionID uint32, timerID uint64, correlation rpcwire.Correlation) *pendingCall {
	return &pendingCall{
		requestID:   requestID,
		functionID:  functionID,
		timerID:     timerID,
		correlation: correlation,
		done:        make(chan *Result, 1),
	}
}

// synthesizeResult builds a synthetic result packet carrying code and the
// pending call's remembered correlation slots but no arguments, used for the
// timeout and disconnect off-nominal exits: the caller still receives a
// result "exactly as a real result", just one stamped with a failure code
// instead of the server's own reply.
func (pc *pendingCall) synthesizeResult(code rpcerrors.Code, message string) *Result {
	hdr := rpcwire.Header{
		RequestID:  pc.requestID,
		FunctionID: pc.functionID,
		RPCCode:    int32(code),
	}
	pkt, err := rpcwire.Begin(hdr, true).Correlate(pc.correlation).End()
	if err != nil {
		return &Result{Err: resultError(code, message)}
	}
	return &Result{Reply: pkt, Err: resultError(code, message)}
}

// resultError builds an error value for a Result from a Code, using the
// Code's own name when no more specific message is available.
func resultError(code rpcerrors.Code, message string) error {
	if code.IsOK() {
		return nil
	}
	return rpcerrors.New(code, message)
}
