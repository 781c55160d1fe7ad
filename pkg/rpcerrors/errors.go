// Package rpcerrors defines the closed set of RPC result codes carried in a
// packet header's rpc_code field and the typed error value wrapping them,
// following the ErrorCode/StoreError/factory-function pattern used
// throughout the project's ambient stack.
package rpcerrors

import "fmt"

// Code is one of the fixed RPC result codes. The zero value, OK, means
// success; every other value is a terminal failure for the call.
type Code int32

const (
	OK                  Code = 0
	ErrorGeneric        Code = -1
	NotEnoughMemory     Code = -2
	MismatchedParameter Code = -1001
	InvalidArgument     Code = -1002
	InvalidFunction     Code = -1003
	ClientBusy          Code = -1088
	ServerBusy          Code = -1099
	NetworkNotConnected Code = -2001
	NetworkBroken       Code = -2054
	NetworkTimeout      Code = -2060
	NetworkBusy         Code = -2099
)

var codeNames = map[Code]string{
	OK:                  "OK",
	ErrorGeneric:        "ERROR",
	NotEnoughMemory:     "NOT_ENOUGH_MEMORY",
	MismatchedParameter: "MISMATCHED_PARAMETER",
	InvalidArgument:     "INVALID_ARGUMENT",
	InvalidFunction:     "INVALID_FUNCTION",
	ClientBusy:          "CLIENT_BUSY",
	ServerBusy:          "SERVER_BUSY",
	NetworkNotConnected: "NETWORK_NOT_CONNECTED",
	NetworkBroken:       "NETWORK_BROKEN",
	NetworkTimeout:      "NETWORK_TIMEOUT",
	NetworkBusy:         "NETWORK_BUSY",
}

// String renders the code the way it appears on the wire protocol docs,
// e.g. "SERVER_BUSY". Unknown codes render as "RPC_CODE(n)" with their
// integer value n.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("RPC_CODE(%d)", int32(c))
}

// IsOK reports whether c represents success.
func (c Code) IsOK() bool {
	return c == OK
}

// RPCError is the error value returned by the client and server engines
// whenever a call resolves to a non-OK Code. Message is optional
// diagnostic text; it is never sent on the wire, only the Code is.
type RPCError struct {
	Code    Code
	Message string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an *RPCError for code with an explicit message.
func New(code Code, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// Wrap builds an *RPCError for code using err's text as the message, or
// returns nil if err is nil.
func Wrap(code Code, err error) *RPCError {
	if err == nil {
		return nil
	}
	return &RPCError{Code: code, Message: err.Error()}
}

// CodeOf extracts the Code from err if it is (or wraps) an *RPCError,
// otherwise returns ErrorGeneric for any non-nil err and OK for nil.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var rpcErr *RPCError
	if AsRPCError(err, &rpcErr) {
		return rpcErr.Code
	}
	return ErrorGeneric
}

// AsRPCError reports whether err is an *RPCError, and if so assigns it to
// *target. It mirrors the stdlib errors.As signature without requiring
// callers to import errors purely for this one check.
func AsRPCError(err error, target **RPCError) bool {
	for err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			*target = rpcErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// --- convenience factory functions for each code, matching call sites that
// want to raise a specific failure without spelling out New(Code...) ---

func NewNotEnoughMemory(message string) *RPCError     { return New(NotEnoughMemory, message) }
func NewMismatchedParameter(message string) *RPCError { return New(MismatchedParameter, message) }
func NewInvalidArgument(message string) *RPCError     { return New(InvalidArgument, message) }
func NewInvalidFunction(message string) *RPCError     { return New(InvalidFunction, message) }
func NewClientBusy(message string) *RPCError          { return New(ClientBusy, message) }
func NewServerBusy(message string) *RPCError          { return New(ServerBusy, message) }
func NewNetworkNotConnected(message string) *RPCError { return New(NetworkNotConnected, message) }
func NewNetworkBroken(message string) *RPCError       { return New(NetworkBroken, message) }
func NewNetworkTimeout(message string) *RPCError { return New(NetworkTimeout, message) }
func NewNetworkBusy(message string) *RPCError    { return New(NetworkBusy, message) }

// --- Is*Error predicates, for call sites that branch on a specific failure
// without importing the Code constants directly ---

func IsClientBusy(err error) bool          { return CodeOf(err) == ClientBusy }
func IsServerBusy(err error) bool          { return CodeOf(err) == ServerBusy }
func IsNetworkTimeout(err error) bool      { return CodeOf(err) == NetworkTimeout }
func IsNetworkBroken(err error) bool       { return CodeOf(err) == NetworkBroken }
func IsNetworkNotConnected(err error) bool { return CodeOf(err) == NetworkNotConnected }
func IsInvalidFunction(err error) bool     { return CodeOf(err) == InvalidFunction }
func IsMismatchedParameter(err error) bool { return CodeOf(err) == MismatchedParameter }
