package rpcclient

import "time"

// Config holds the client engine tunables: how many in-flight calls it will
// track at once, and the timeout substituted for a call sent with
// timeout=0.
type Config struct {
	// PendingCalls is the maximum number of in-flight calls this engine
	// may hold at once (rpcc_pending_calls). Exceeding it fails Call
	// immediately with rpcerrors.ClientBusy.
	PendingCalls int

	// DefaultTimeout is substituted whenever Call is invoked with a
	// zero timeout (rpcc_rpc_timeout).
	DefaultTimeout time.Duration
}

// DefaultConfig returns the engine defaults used when no Config is
// supplied, matching pkg/config's ClientConfig defaults.
func DefaultConfig() Config {
	return Config{
		PendingCalls:   10000,
		DefaultTimeout: 10 * time.Second,
	}
}
