package rpcerrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "SERVER_BUSY", ServerBusy.String())
	assert.Equal(t, "OK", OK.String())
	assert.Contains(t, Code(42).String(), "42")
}

func TestCodeOfNilIsOK(t *testing.T) {
	assert.Equal(t, OK, CodeOf(nil))
}

func TestCodeOfPlainErrorIsGeneric(t *testing.T) {
	assert.Equal(t, ErrorGeneric, CodeOf(fmt.Errorf("boom")))
}

func TestCodeOfWrappedRPCError(t *testing.T) {
	inner := New(NetworkTimeout, "deadline exceeded")
	wrapped := fmt.Errorf("send failed: %w", inner)
	assert.Equal(t, NetworkTimeout, CodeOf(wrapped))
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsServerBusy(New(ServerBusy, "")))
	assert.False(t, IsServerBusy(New(ClientBusy, "")))
	assert.True(t, IsNetworkTimeout(fmt.Errorf("wrap: %w", New(NetworkTimeout, ""))))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrorGeneric, nil))
}

func TestErrorMessageFormatting(t *testing.T) {
	e := New(InvalidFunction, "function_id 7 not registered")
	assert.Equal(t, "INVALID_FUNCTION: function_id 7 not registered", e.Error())

	bare := New(OK, "")
	assert.Equal(t, "OK", bare.Error())
}
