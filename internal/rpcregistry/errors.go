package rpcregistry

import "errors"

var (
	// ErrUnknownFunction describes a function_id with no registration.
	// The engines detect that case through Lookup's boolean result, so no
	// function in this package returns it.
	ErrUnknownFunction = errors.New("rpcregistry: unknown function_id")

	// ErrMismatchedTypes is returned when a call or reply's argument
	// types don't match the registered signature, in count or in type.
	ErrMismatchedTypes = errors.New("rpcregistry: mismatched argument types")
)
