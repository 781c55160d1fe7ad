package rpcserver

import (
	"time"

	"github.com/dittobus/busrpc/internal/rpcwire"
	"github.com/dittobus/busrpc/pkg/bus"
)

// inboundRequest is one parsed call sitting in a client's FIFO queue,
// stamped with its arrival time so a worker that finally reaches it after a
// long queueing delay can tell whether the caller's timeout has already
// elapsed and skip execution instead of replying to a call nobody is
// waiting on anymore.
type inboundRequest struct {
	clientAddr bus.Address
	header     rpcwire.Header
	args       []rpcwire.Argument
	arrival    time.Time
}

// expired reports whether this request's timeout has already elapsed by
// the time a worker is ready to dispatch it. A zero TimeoutS means no
// deadline.
func (r *inboundRequest) expired(now time.Time) bool {
	if r.header.TimeoutS == 0 {
		return false
	}
	deadline := r.arrival.Add(time.Duration(r.header.TimeoutS) * time.Second)
	return now.After(deadline)
}
