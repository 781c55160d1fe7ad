// Package rpcserver implements the server half of busrpc: accept calls from
// any number of clients over a bus.Bus, validate them against a function
// registry, dispatch them to registered handlers through a bounded,
// per-client FIFO worker pool, and send results back — including the
// synthetic SERVER_BUSY reply sent when pending-work admission control is
// saturated.
package rpcserver

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/dittobus/busrpc/internal/logger"
	"github.com/dittobus/busrpc/internal/rpcregistry"
	"github.com/dittobus/busrpc/internal/rpcwire"
	"github.com/dittobus/busrpc/internal/telemetry"
	"github.com/dittobus/busrpc/pkg/bus"
	"github.com/dittobus/busrpc/pkg/metrics"
	"github.com/dittobus/busrpc/pkg/rpcerrors"
)

// HandlerFunc implements one registered function_id. It returns the reply
// arguments on success, or a non-OK Code (with args ignored) on failure.
type HandlerFunc func(ctx context.Context, clientAddr bus.Address, functionID uint32, args []rpcwire.Argument) ([]rpcwire.Argument, rpcerrors.Code)

// Engine is a server-side RPC engine serving any number of clients over one
// bus.Bus. It implements bus.ServerObserver so it can be registered
// directly against a bus.Bus implementation.
type Engine struct {
	mu sync.Mutex

	b        bus.Bus
	cfg      Config
	registry *rpcregistry.Registry
	handlers map[uint32]HandlerFunc
	metrics  metrics.ServerMetrics

	clients       map[bus.Address]*clientState
	sem           chan struct{}
	pendingGlobal int
}

// NewEngine returns a server engine dispatching over b using reg for
// signature validation. m may be nil.
func NewEngine(b bus.Bus, reg *rpcregistry.Registry, cfg Config, m metrics.ServerMetrics) *Engine {
	if m == nil {
		m = metrics.NopServerMetrics{}
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &Engine{
		b:        b,
		cfg:      cfg,
		registry: reg,
		handlers: make(map[uint32]HandlerFunc),
		metrics:  m,
		clients:  make(map[bus.Address]*clientState),
		sem:      make(chan struct{}, cfg.WorkerCount),
	}
}

// SetBus binds (or rebinds) the bus this engine sends replies and messages
// over. Call it before the bus starts delivering OnClientLogon/OnClientRecv
// events.
func (e *Engine) SetBus(b bus.Bus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.b = b
}

// RegisterHandler registers both the function's call/return signature and
// its implementation. It replaces any prior registration for functionID.
func (e *Engine) RegisterHandler(functionID uint32, callTypes, returnTypes []rpcwire.TypeTag, h HandlerFunc) error {
	if err := e.registry.Register(functionID, callTypes, returnTypes); err != nil {
		return err
	}
	e.mu.Lock()
	e.handlers[functionID] = h
	e.mu.Unlock()
	return nil
}

// UnregisterHandler removes functionID's signature and implementation.
func (e *Engine) UnregisterHandler(functionID uint32) {
	e.registry.Unregister(functionID)
	e.mu.Lock()
	delete(e.handlers, functionID)
	e.mu.Unlock()
}

// OnClientLogon implements bus.ServerObserver: it starts the per-client FIFO
// dispatcher for addr.
func (e *Engine) OnClientLogon(addr bus.Address) {
	e.mu.Lock()
	cs := newClientState(addr, e.cfg.PendingCalls)
	e.clients[addr] = cs
	n := len(e.clients)
	e.mu.Unlock()

	e.metrics.SetClientCount(n)
	go e.runClientDispatcher(cs)
}

// OnClientLogoff implements bus.ServerObserver: it stops addr's dispatcher
// and drops its queue.
func (e *Engine) OnClientLogoff(addr bus.Address) {
	e.mu.Lock()
	cs, ok := e.clients[addr]
	if ok {
		delete(e.clients, addr)
		e.pendingGlobal -= len(cs.queue)
	}
	n := len(e.clients)
	e.mu.Unlock()

	if ok {
		close(cs.quit)
	}
	e.metrics.SetClientCount(n)
}

// OnCheckUser implements bus.ServerObserver by accepting every connection;
// embedders that need authentication wrap the Engine and intercept before
// registering it as the bus's ServerObserver.
func (e *Engine) OnCheckUser(addr bus.Address, credentials []byte) bool {
	return true
}

// OnClientRecv implements bus.ServerObserver: raw is expected to be one
// complete rpcwire packet carrying a call.
func (e *Engine) OnClientRecv(addr bus.Address, raw []byte) {
	pkt, _, err := rpcwire.Parse(raw)
	if err != nil {
		logger.Warn("rpcserver: dropping unparseable request frame", "client_addr", string(addr), "error", err)
		return
	}

	rebuilt, err := rpcwire.Begin(pkt.Header, true).PushMany(pkt.Args()).End()
	if err != nil {
		e.replyError(addr, pkt.Header, rpcerrors.InvalidArgument)
		return
	}

	req := &inboundRequest{
		clientAddr: addr,
		header:     rebuilt.Header,
		args:       rebuilt.Args(),
		arrival:    time.Now(),
	}

	sig, known := e.registry.Lookup(req.header.FunctionID)
	if !known {
		e.metrics.RequestRejected(req.header.FunctionID, "invalid_function")
		e.replyError(addr, req.header, rpcerrors.InvalidFunction)
		return
	}
	if err := rpcregistry.ValidateCall(sig, req.args); err != nil {
		e.metrics.RequestRejected(req.header.FunctionID, "mismatched_parameter")
		e.replyError(addr, req.header, rpcerrors.MismatchedParameter)
		return
	}

	e.mu.Lock()
	cs, ok := e.clients[addr]
	if !ok {
		e.mu.Unlock()
		return
	}
	if e.pendingGlobal >= e.cfg.PendingCalls {
		e.mu.Unlock()
		e.metrics.RequestRejected(req.header.FunctionID, "server_busy")
		if !req.header.NoReply {
			e.replyError(addr, req.header, rpcerrors.ServerBusy)
		}
		return
	}
	e.pendingGlobal++
	e.mu.Unlock()

	e.metrics.RequestAdmitted(req.header.FunctionID)
	e.metrics.SetQueueDepth(string(addr), len(cs.queue)+1)

	select {
	case cs.queue <- req:
	case <-cs.quit:
		e.mu.Lock()
		e.pendingGlobal--
		e.mu.Unlock()
	}
}

// runClientDispatcher drains cs's FIFO queue one request at a time,
// acquiring a slot from the shared worker semaphore before dispatching so
// no two requests from the same client ever run concurrently, while
// different clients' requests may run in parallel up to WorkerCount.
func (e *Engine) runClientDispatcher(cs *clientState) {
	for {
		select {
		case req := <-cs.queue:
			e.mu.Lock()
			e.pendingGlobal--
			e.mu.Unlock()

			select {
			case e.sem <- struct{}{}:
				e.dispatch(req)
				<-e.sem
			case <-cs.quit:
				return
			}
		case <-cs.quit:
			return
		}
	}
}

func (e *Engine) dispatch(req *inboundRequest) {
	if req.expired(time.Now()) {
		e.metrics.RequestHandled(req.header.FunctionID, "expired", time.Since(req.arrival))
		return
	}

	e.mu.Lock()
	h, ok := e.handlers[req.header.FunctionID]
	e.mu.Unlock()
	if !ok {
		e.replyError(req.clientAddr, req.header, rpcerrors.InvalidFunction)
		return
	}

	ctx := context.Background()
	if req.header.TimeoutS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.header.TimeoutS)*time.Second)
		defer cancel()
	}
	ctx, span := telemetry.StartServerDispatchSpan(ctx, req.header.FunctionID, string(req.clientAddr))
	defer span.End()

	start := time.Now()
	replyArgs, code := h(ctx, req.clientAddr, req.header.FunctionID, req.args)
	if code.IsOK() {
		if sig, known := e.registry.Lookup(req.header.FunctionID); known {
			if err := rpcregistry.ValidateReturn(sig, replyArgs); err != nil {
				logger.Warn("rpcserver: handler returned mismatched reply arguments", "function_id", req.header.FunctionID, "error", err)
				code = rpcerrors.MismatchedParameter
				replyArgs = nil
			}
		}
	}
	e.metrics.RequestHandled(req.header.FunctionID, outcomeOf(code), time.Since(start))
	if !code.IsOK() {
		telemetry.SetStatus(ctx, codes.Error, code.String())
	}

	if req.header.NoReply {
		return
	}

	hdr := rpcwire.Header{
		RequestID:  req.header.RequestID,
		FunctionID: req.header.FunctionID,
		RPCCode:    int32(code),
	}
	var pkt *rpcwire.Packet
	var err error
	if code.IsOK() {
		pkt, err = rpcwire.Begin(hdr, true).PushMany(replyArgs).End()
	} else {
		pkt, err = rpcwire.Begin(hdr, true).End()
	}
	if err != nil {
		logger.Warn("rpcserver: failed to build reply packet", "function_id", req.header.FunctionID, "error", err)
		return
	}

	if sendErr := e.b.Send(context.Background(), req.clientAddr, pkt.Bytes()); sendErr != nil {
		logger.Warn("rpcserver: failed to send reply", "client_addr", string(req.clientAddr), "error", sendErr)
	}
}

// replyError sends a reply carrying code and no arguments, used for
// rejections that happen before a request ever reaches a handler.
func (e *Engine) replyError(addr bus.Address, reqHeader rpcwire.Header, code rpcerrors.Code) {
	if reqHeader.NoReply {
		return
	}
	hdr := rpcwire.Header{
		RequestID:  reqHeader.RequestID,
		FunctionID: reqHeader.FunctionID,
		RPCCode:    int32(code),
	}
	pkt, err := rpcwire.Begin(hdr, true).End()
	if err != nil {
		return
	}
	_ = e.b.Send(context.Background(), addr, pkt.Bytes())
}

// SendMessage sends a raw, non-RPC message directly to one client, letting
// a server push data at a client outside the call/reply protocol.
func (e *Engine) SendMessage(ctx context.Context, addr bus.Address, raw []byte) error {
	return e.b.Send(ctx, addr, raw)
}

// SendMessageToClients sends a raw, non-RPC message to every address in
// addrs.
func (e *Engine) SendMessageToClients(ctx context.Context, addrs []bus.Address, raw []byte) error {
	return e.b.Broadcast(ctx, addrs, raw)
}

// KickoutClient forcibly disconnects addr.
func (e *Engine) KickoutClient(addr bus.Address) error {
	return e.b.Kickout(addr)
}

// ClientCount returns the number of currently connected clients.
func (e *Engine) ClientCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clients)
}

func outcomeOf(code rpcerrors.Code) string {
	if code.IsOK() {
		return "ok"
	}
	return code.String()
}
