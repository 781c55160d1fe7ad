// Package rpcclient implements the client half of busrpc: send a call over
// a bus.Bus, track it until a reply or timeout arrives, and resolve it
// exactly once even when a reply and a timeout race each other, using
// dual-indexed pending-call bookkeeping (by request_id for reply lookup,
// by timer_id for timeout firing).
package rpcclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dittobus/busrpc/internal/logger"
	"github.com/dittobus/busrpc/internal/rpcregistry"
	"github.com/dittobus/busrpc/internal/rpcwire"
	"github.com/dittobus/busrpc/internal/telemetry"
	"github.com/dittobus/busrpc/pkg/bus"
	"github.com/dittobus/busrpc/pkg/metrics"
	"github.com/dittobus/busrpc/pkg/rpcerrors"
)

// Correlation is re-exported for callers that only import pkg/rpcclient.
type Correlation = rpcwire.Correlation

// Engine is a client-side RPC engine bound to one bus connection. It
// implements bus.ClientObserver so it can be registered directly against a
// bus.Bus implementation.
type Engine struct {
	mu sync.Mutex

	b          bus.Bus
	serverAddr bus.Address
	connected  bool

	cfg      Config
	metrics  metrics.ClientMetrics
	registry *rpcregistry.Registry

	reqGen      *rpcwire.RequestIDGenerator
	byRequestID map[uint64]*pendingCall
	byTimerID   map[uint64]*pendingCall
	nextTimerID uint64
}

// NewEngine returns a client engine that sends over b to serverAddr. m may
// be nil (pkg/metrics.NopClientMetrics semantics apply via nil receivers on
// the concrete implementation).
func NewEngine(b bus.Bus, serverAddr bus.Address, cfg Config, m metrics.ClientMetrics) *Engine {
	if m == nil {
		m = metrics.NopClientMetrics{}
	}
	return &Engine{
		b:           b,
		serverAddr:  serverAddr,
		cfg:         cfg,
		metrics:     m,
		registry:    rpcregistry.NewRegistry(),
		reqGen:      rpcwire.NewRequestIDGenerator(),
		byRequestID: make(map[uint64]*pendingCall),
		byTimerID:   make(map[uint64]*pendingCall),
	}
}

// Register records functionID's call/return signature so Call can validate
// a request's argument tags locally, before anything is ever sent, and so
// OnRecv can validate an inbound reply's argument tags before delivering it
// to the application.
func (e *Engine) Register(functionID uint32, callTypes, returnTypes []rpcwire.TypeTag) error {
	return e.registry.Register(functionID, callTypes, returnTypes)
}

// Unregister removes functionID's signature.
func (e *Engine) Unregister(functionID uint32) {
	e.registry.Unregister(functionID)
}

// Rebind swaps the underlying bus connection after a reconnect, without
// discarding in-flight calls: they simply keep waiting until their timers
// fire or a reply arrives over the new connection.
func (e *Engine) Rebind(b bus.Bus, serverAddr bus.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.b = b
	e.serverAddr = serverAddr
	e.connected = true
}

// OnConnect implements bus.ClientObserver.
func (e *Engine) OnConnect(addr bus.Address) {
	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
}

// OnDisconnect implements bus.ClientObserver: every pending call is
// resolved with NETWORK_BROKEN, since a lost connection can never deliver
// their replies.
func (e *Engine) OnDisconnect(addr bus.Address) {
	e.mu.Lock()
	e.connected = false
	calls := make([]*pendingCall, 0, len(e.byRequestID))
	for _, pc := range e.byRequestID {
		calls = append(calls, pc)
	}
	e.mu.Unlock()

	for _, pc := range calls {
		e.resolve(pc, pc.synthesizeResult(rpcerrors.NetworkBroken, "bus connection lost"))
	}
}

// OnRecv implements bus.ClientObserver: raw is expected to be one complete
// rpcwire packet carrying a reply.
func (e *Engine) OnRecv(addr bus.Address, raw []byte) {
	parsed, _, err := rpcwire.Parse(raw)
	if err != nil {
		logger.Warn("rpcclient: dropping unparseable reply frame", "error", err)
		return
	}

	e.mu.Lock()
	pc, ok := e.byRequestID[parsed.Header.RequestID]
	e.mu.Unlock()
	if !ok {
		// Either a stale duplicate or a reply that lost the race
		// against our own timeout; both are expected and silent.
		return
	}

	code := rpcerrors.Code(parsed.Header.RPCCode)
	if code.IsOK() {
		if sig, known := e.registry.Lookup(parsed.Header.FunctionID); known {
			if err := rpcregistry.ValidateReturn(sig, parsed.Args()); err != nil {
				logger.Warn("rpcclient: dropping reply with mismatched return arguments", "function_id", parsed.Header.FunctionID, "error", err)
				return
			}
		}
	}

	rebuilt, err := rpcwire.Begin(parsed.Header, true).Correlate(pc.correlation).PushMany(parsed.Args()).End()
	if err != nil {
		e.resolve(pc, &Result{Err: resultError(rpcerrors.ErrorGeneric, err.Error())})
		return
	}

	res := &Result{Reply: rebuilt}
	if !code.IsOK() {
		res.Err = resultError(code, "")
	}
	e.resolve(pc, res)
}

// Call sends a request for functionID with args and blocks until a reply
// arrives, the timeout elapses, the bus connection breaks, or ctx is
// canceled — whichever happens first. It is equivalent to CallCorrelated
// with a zero Correlation.
func (e *Engine) Call(ctx context.Context, functionID uint32, timeout time.Duration, noReply bool, args []rpcwire.Argument) (*rpcwire.Packet, error) {
	return e.CallCorrelated(ctx, functionID, timeout, noReply, args, Correlation{})
}

// CallCorrelated sends a request for functionID with args and blocks until a
// reply arrives, the timeout elapses, the bus connection breaks, or ctx is
// canceled — whichever happens first. A zero timeout is replaced with the
// engine's configured default. noReply marks the request as
// fire-and-forget: the call returns as soon as the frame is handed to the
// bus, without waiting for or expecting a server reply. correlation is
// never transmitted; it is remembered against the pending call and stamped
// onto whichever result eventually resolves it, including a synthesized
// timeout or disconnect result.
//
// functionID must already be registered via Register: the call signature is
// looked up and args are validated against it locally, before anything is
// sent, so a shape mismatch never reaches the bus.
func (e *Engine) CallCorrelated(ctx context.Context, functionID uint32, timeout time.Duration, noReply bool, args []rpcwire.Argument, correlation Correlation) (*rpcwire.Packet, error) {
	sig, known := e.registry.Lookup(functionID)
	if !known {
		return nil, rpcerrors.NewInvalidFunction(fmt.Sprintf("function %d is not registered", functionID))
	}
	if err := rpcregistry.ValidateCall(sig, args); err != nil {
		return nil, rpcerrors.NewMismatchedParameter(err.Error())
	}

	if timeout == 0 {
		timeout = e.cfg.DefaultTimeout
	}

	e.mu.Lock()
	if len(e.byRequestID) >= e.cfg.PendingCalls {
		e.mu.Unlock()
		return nil, rpcerrors.NewClientBusy(fmt.Sprintf("pending call limit %d reached", e.cfg.PendingCalls))
	}
	if !e.connected {
		e.mu.Unlock()
		return nil, rpcerrors.NewNetworkNotConnected("no active bus connection")
	}
	b, serverAddr := e.b, e.serverAddr
	e.mu.Unlock()

	requestID := e.reqGen.Next()
	ctx, span := telemetry.StartClientCallSpan(ctx, functionID, requestID)
	defer span.End()

	hdr := rpcwire.Header{
		RequestID:  requestID,
		FunctionID: functionID,
		NoReply:    noReply,
		TimeoutS:   uint32(timeout / time.Second),
	}
	pkt, err := rpcwire.Begin(hdr, true).Correlate(correlation).PushMany(args).End()
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, rpcerrors.NewInvalidArgument(err.Error())
	}

	if noReply {
		if sendErr := b.Send(ctx, serverAddr, pkt.Bytes()); sendErr != nil {
			telemetry.RecordError(ctx, sendErr)
			return nil, rpcerrors.NewNetworkBroken(sendErr.Error())
		}
		e.metrics.CallSent(functionID)
		e.metrics.CallCompleted(functionID, "ok", 0)
		return nil, nil
	}

	pc := newPendingCall(requestID, functionID, e.allocTimerID(), correlation)
	e.mu.Lock()
	e.byRequestID[requestID] = pc
	e.byTimerID[pc.timerID] = pc
	e.metrics.SetPendingCalls(len(e.byRequestID))
	e.mu.Unlock()

	pc.timer = time.AfterFunc(timeout, func() {
		e.resolve(pc, pc.synthesizeResult(rpcerrors.NetworkTimeout, "no reply within timeout"))
	})

	start := time.Now()
	if sendErr := b.Send(ctx, serverAddr, pkt.Bytes()); sendErr != nil {
		e.resolve(pc, pc.synthesizeResult(rpcerrors.NetworkBroken, sendErr.Error()))
	} else {
		e.metrics.CallSent(functionID)
	}

	select {
	case res := <-pc.done:
		e.metrics.CallCompleted(functionID, outcomeOf(res.Err), time.Since(start))
		if res.Err != nil {
			telemetry.RecordError(ctx, res.Err)
		}
		return res.Reply, res.Err
	case <-ctx.Done():
		e.resolve(pc, &Result{Err: ctx.Err()})
		e.metrics.CallCompleted(functionID, "canceled", time.Since(start))
		return nil, ctx.Err()
	}
}

// resolve delivers res to pc exactly once: whichever caller (reply arrival,
// timeout firing, disconnect, or cancellation) reaches it first wins, and
// every other caller's attempt becomes a silent no-op.
func (e *Engine) resolve(pc *pendingCall, res *Result) {
	e.mu.Lock()
	if pc.resolved {
		e.mu.Unlock()
		return
	}
	pc.resolved = true
	delete(e.byRequestID, pc.requestID)
	delete(e.byTimerID, pc.timerID)
	pending := len(e.byRequestID)
	e.mu.Unlock()

	if pc.timer != nil {
		pc.timer.Stop()
	}
	e.metrics.SetPendingCalls(pending)
	pc.done <- res
}

func (e *Engine) allocTimerID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextTimerID++
	return e.nextTimerID
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	switch rpcerrors.CodeOf(err) {
	case rpcerrors.NetworkTimeout:
		return "timeout"
	case rpcerrors.NetworkBroken, rpcerrors.NetworkNotConnected:
		return "broken"
	case rpcerrors.ClientBusy, rpcerrors.ServerBusy:
		return "busy"
	default:
		return "error"
	}
}
