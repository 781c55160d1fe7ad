package rpcserver

// Config holds the server engine tunables: how many requests may sit
// queued across all clients before new ones are turned away with
// SERVER_BUSY, and how many requests may be dispatched concurrently.
type Config struct {
	// PendingCalls is the maximum number of requests that may be queued
	// across all clients combined (rpcs_pending_calls). A request that
	// would exceed it is immediately answered with rpcerrors.ServerBusy
	// instead of being queued, unless it is a no_reply request, which is
	// simply dropped.
	PendingCalls int

	// WorkerCount bounds how many requests this engine dispatches to
	// handlers concurrently, across all clients (rpcs_worker_count).
	// Requests from the same client are always handled one at a time and
	// in arrival order; WorkerCount only bounds cross-client
	// parallelism.
	WorkerCount int
}

// DefaultConfig returns the engine defaults used when no Config is
// supplied, matching pkg/config's ServerConfig defaults.
func DefaultConfig() Config {
	return Config{
		PendingCalls: 10000,
		WorkerCount:  2,
	}
}
