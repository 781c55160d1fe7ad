// Package rpcregistry tracks the call/return type signature of every
// function_id a client or server engine knows. It is consulted by the
// server to reject calls whose argument types don't match what was
// registered (MISMATCHED_PARAMETER) and calls naming an unregistered
// function_id (INVALID_FUNCTION), and by the client to check calls before
// sending them and replies before delivering them.
package rpcregistry

import (
	"fmt"
	"sync"

	"github.com/dittobus/busrpc/internal/rpcwire"
)

// Signature describes the ordered argument types a function_id expects on
// the call and returns on the reply.
type Signature struct {
	CallTypes   []rpcwire.TypeTag
	ReturnTypes []rpcwire.TypeTag
}

// Registry is a concurrency-safe function_id -> Signature map.
type Registry struct {
	mu    sync.RWMutex
	funcs map[uint32]Signature
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[uint32]Signature)}
}

// Register records the signature for functionID, replacing any existing
// registration. Registration is idempotent: registering the same id twice
// with the same signature is a no-op in effect, and registering it with a
// different signature simply replaces the old one — callers that need to
// detect a conflicting re-registration should check Lookup first.
func (r *Registry) Register(functionID uint32, callTypes, returnTypes []rpcwire.TypeTag) error {
	for _, t := range callTypes {
		if !t.Valid() {
			return fmt.Errorf("rpcregistry: invalid call type tag %d for function %d", uint8(t), functionID)
		}
	}
	for _, t := range returnTypes {
		if !t.Valid() {
			return fmt.Errorf("rpcregistry: invalid return type tag %d for function %d", uint8(t), functionID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[functionID] = Signature{
		CallTypes:   append([]rpcwire.TypeTag(nil), callTypes...),
		ReturnTypes: append([]rpcwire.TypeTag(nil), returnTypes...),
	}
	return nil
}

// Unregister removes functionID, if present.
func (r *Registry) Unregister(functionID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, functionID)
}

// Lookup returns the signature registered for functionID.
func (r *Registry) Lookup(functionID uint32) (Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.funcs[functionID]
	return sig, ok
}

// ValidateCall checks that args matches sig's call types by type tag,
// position, and count. It returns ErrMismatchedTypes if the argument types
// don't line up; whether a function_id is registered at all is answered by
// Lookup.
func ValidateCall(sig Signature, args []rpcwire.Argument) error {
	return validateTypes(sig.CallTypes, args)
}

// ValidateReturn checks a reply's arguments against the registered return
// signature, the same way ValidateCall checks a call.
func ValidateReturn(sig Signature, args []rpcwire.Argument) error {
	return validateTypes(sig.ReturnTypes, args)
}

func validateTypes(want []rpcwire.TypeTag, args []rpcwire.Argument) error {
	if len(want) != len(args) {
		return fmt.Errorf("%w: expected %d arguments, got %d", ErrMismatchedTypes, len(want), len(args))
	}
	for i, t := range want {
		if args[i].Type != t {
			return fmt.Errorf("%w: argument %d is %s, expected %s", ErrMismatchedTypes, i, args[i].Type, t)
		}
	}
	return nil
}
