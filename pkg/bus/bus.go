// Package bus defines the minimal contract the client and server RPC
// engines need from the externally supplied reliable message bus: address
// peers, hand them raw frames, and learn about connection lifecycle and
// inbound frames through an observer. busrpc never manages the underlying
// transport itself — a Bus implementation (a TCP reactor, a broker client,
// an in-process loopback for tests) is always supplied by the embedder; the
// bus itself is treated as an out-of-scope external collaborator.
package bus

import "context"

// Address identifies one peer connection as the bus sees it. Its value and
// lifetime are entirely up to the Bus implementation; engines only ever
// compare addresses for equality and pass them back to the Bus.
type Address string

// Bus is the outbound half of the contract: engines call these methods to
// push bytes at peers. Every method must be safe for concurrent use.
type Bus interface {
	// Send delivers raw to exactly one peer. It must not block past
	// ctx's deadline; a blocked or backed-up transport should return
	// context.DeadlineExceeded or its own busy error rather than hang.
	Send(ctx context.Context, addr Address, raw []byte) error

	// Broadcast delivers raw to every peer in addrs, best-effort: a
	// failure to reach one peer must not prevent delivery to the others.
	// It backs the server engine's peer-to-peer messaging passthrough,
	// distinct from the request/reply RPC path.
	Broadcast(ctx context.Context, addrs []Address, raw []byte) error

	// Kickout forcibly closes addr's connection. The server engine's
	// KickoutClient passes through to it to eject a client.
	Kickout(addr Address) error
}

// ClientObserver receives the events a client engine needs from its Bus
// connection: the bus is established/lost, and raw inbound frames (replies)
// arrive.
type ClientObserver interface {
	// OnConnect fires once the bus has a live connection to the server
	// at addr.
	OnConnect(addr Address)

	// OnDisconnect fires when the connection to addr is lost, before any
	// automatic reconnect attempt.
	OnDisconnect(addr Address)

	// OnRecv fires for every raw frame the bus delivers from addr.
	OnRecv(addr Address, raw []byte)
}

// ServerObserver receives the events a server engine needs from its Bus
// listener: clients logging on and off, inbound frames, and an optional
// admission check run before a client is fully accepted.
type ServerObserver interface {
	// OnClientLogon fires once a new client connection at addr is ready
	// to receive calls.
	OnClientLogon(addr Address)

	// OnClientLogoff fires when addr's connection closes, by either
	// side.
	OnClientLogoff(addr Address)

	// OnClientRecv fires for every raw frame the bus delivers from addr.
	OnClientRecv(addr Address, raw []byte)

	// OnCheckUser is consulted before a connecting peer is admitted.
	// credentials is whatever out-of-band token the Bus implementation
	// extracts from the connection handshake (may be nil if the bus
	// does no authentication of its own). Returning false rejects the
	// connection.
	OnCheckUser(addr Address, credentials []byte) bool
}
