package rpcserver

import "github.com/dittobus/busrpc/pkg/bus"

// clientState tracks one connected client's FIFO request queue and the
// dispatcher goroutine draining it. Requests from the same client are
// always started and completed one at a time, in arrival order; the
// engine's global worker semaphore only bounds how many different clients'
// requests may be in flight simultaneously.
type clientState struct {
	addr  bus.Address
	queue chan *inboundRequest
	quit  chan struct{}
}

func newClientState(addr bus.Address, queueDepth int) *clientState {
	return &clientState{
		addr:  addr,
		queue: make(chan *inboundRequest, queueDepth),
		quit:  make(chan struct{}),
	}
}
