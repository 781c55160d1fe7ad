// Package loopbus is an in-process Bus implementation connecting exactly
// one client observer to one server observer over buffered Go channels. It
// exists for tests and for the cmd/busrpcd demo, standing in for whatever
// real reliable message bus an embedder would otherwise supply.
package loopbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/dittobus/busrpc/pkg/bus"
)

// frame is one raw message traveling across the loopback, tagged with the
// sender's address so the receiving side's observer sees who it came from.
type frame struct {
	from bus.Address
	raw  []byte
}

// Loopbus wires a single client side and a single server side together
// in-process. Call NewPair to obtain both halves already connected.
type Loopbus struct {
	mu      sync.Mutex
	clientAddr bus.Address
	serverAddr bus.Address

	toServer chan frame
	toClient chan frame

	serverObs bus.ServerObserver
	clientObs bus.ClientObserver

	closed bool
	done   chan struct{}
}

// ClientSide and ServerSide are the two bus.Bus handles returned by
// NewPair, to be handed to the client and server engines respectively.
type ClientSide struct{ lb *Loopbus }
type ServerSide struct{ lb *Loopbus }

// NewPair creates a connected client/server loopback pair. clientObs and
// serverObs are notified of logon and inbound frames as soon as Start is
// called.
func NewPair(clientObs bus.ClientObserver, serverObs bus.ServerObserver) (*ClientSide, *ServerSide) {
	lb := &Loopbus{
		clientAddr: bus.Address(xid.New().String()),
		serverAddr: bus.Address(xid.New().String()),
		toServer:   make(chan frame, 256),
		toClient:   make(chan frame, 256),
		clientObs:  clientObs,
		serverObs:  serverObs,
		done:       make(chan struct{}),
	}
	return &ClientSide{lb: lb}, &ServerSide{lb: lb}
}

// Start begins delivering frames to both observers and fires the initial
// OnConnect/OnClientLogon callbacks. It must be called once, after both
// engines have registered their observers with the ClientSide/ServerSide.
func (lb *Loopbus) Start() {
	go lb.pump(lb.toServer, func(f frame) {
		lb.serverObs.OnClientRecv(f.from, f.raw)
	})
	go lb.pump(lb.toClient, func(f frame) {
		lb.clientObs.OnRecv(f.from, f.raw)
	})
	lb.serverObs.OnClientLogon(lb.clientAddr)
	lb.clientObs.OnConnect(lb.serverAddr)
}

func (lb *Loopbus) pump(ch chan frame, deliver func(frame)) {
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return
			}
			deliver(f)
		case <-lb.done:
			return
		}
	}
}

// Close tears down the loopback, firing OnDisconnect/OnClientLogoff.
func (lb *Loopbus) Close() {
	lb.mu.Lock()
	if lb.closed {
		lb.mu.Unlock()
		return
	}
	lb.closed = true
	lb.mu.Unlock()

	close(lb.done)
	lb.serverObs.OnClientLogoff(lb.clientAddr)
	lb.clientObs.OnDisconnect(lb.serverAddr)
}

func (lb *Loopbus) send(ctx context.Context, ch chan frame, from bus.Address, raw []byte) error {
	lb.mu.Lock()
	closed := lb.closed
	lb.mu.Unlock()
	if closed {
		return fmt.Errorf("loopbus: connection closed")
	}

	select {
	case ch <- frame{from: from, raw: raw}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-lb.done:
		return fmt.Errorf("loopbus: connection closed")
	}
}

// Send implements bus.Bus for the client side: addr is ignored (a loopback
// has exactly one peer) and raw is delivered to the server observer.
func (c *ClientSide) Send(ctx context.Context, addr bus.Address, raw []byte) error {
	return c.lb.send(ctx, c.lb.toServer, c.lb.clientAddr, raw)
}

// Broadcast on the client side is equivalent to Send since a loopback has
// only one peer.
func (c *ClientSide) Broadcast(ctx context.Context, addrs []bus.Address, raw []byte) error {
	return c.lb.send(ctx, c.lb.toServer, c.lb.clientAddr, raw)
}

// Kickout closes the loopback from the client side.
func (c *ClientSide) Kickout(addr bus.Address) error {
	c.lb.Close()
	return nil
}

// ServerAddr returns the address the client engine should use to reach the
// server.
func (c *ClientSide) ServerAddr() bus.Address { return c.lb.serverAddr }

// Start begins delivering frames on the pair this side belongs to. Call it
// exactly once, from either side, after both observers are registered.
func (c *ClientSide) Start() { c.lb.Start() }

// Start begins delivering frames on the pair this side belongs to. Call it
// exactly once, from either side, after both observers are registered.
func (s *ServerSide) Start() { s.lb.Start() }

// Send implements bus.Bus for the server side: raw is delivered to the
// client observer regardless of addr, since a loopback has exactly one
// client.
func (s *ServerSide) Send(ctx context.Context, addr bus.Address, raw []byte) error {
	return s.lb.send(ctx, s.lb.toClient, s.lb.serverAddr, raw)
}

// Broadcast delivers raw to every address in addrs; on a loopback that is
// always the single connected client.
func (s *ServerSide) Broadcast(ctx context.Context, addrs []bus.Address, raw []byte) error {
	var firstErr error
	for range addrs {
		if err := s.lb.send(ctx, s.lb.toClient, s.lb.serverAddr, raw); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Kickout closes the loopback from the server side.
func (s *ServerSide) Kickout(addr bus.Address) error {
	s.lb.Close()
	return nil
}

// ClientAddr returns the address the server engine sees for its one client.
func (s *ServerSide) ClientAddr() bus.Address { return s.lb.clientAddr }
