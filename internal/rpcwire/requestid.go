package rpcwire

import "sync"

// RequestIDGenerator hands out monotonically increasing request IDs, never
// zero (ParseHeader rejects a zero request_id, including on no_reply
// calls). One generator is shared by a client engine across all of its
// outbound calls.
type RequestIDGenerator struct {
	mu   sync.Mutex
	next uint64
}

// NewRequestIDGenerator returns a generator whose first Next() call yields 1.
func NewRequestIDGenerator() *RequestIDGenerator {
	return &RequestIDGenerator{next: 0}
}

// Next returns the next request ID, skipping zero on wraparound.
func (g *RequestIDGenerator) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	if g.next == 0 {
		g.next = 1
	}
	return g.next
}
