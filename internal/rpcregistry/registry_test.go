package rpcregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dittobus/busrpc/internal/rpcwire"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	err := r.Register(1, []rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32}, []rpcwire.TypeTag{rpcwire.Int32})
	require.NoError(t, err)

	sig, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, []rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32}, sig.CallTypes)
}

func TestLookupMissingFunction(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup(99)
	assert.False(t, ok)
}

func TestRegisterIsIdempotentReplace(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(1, []rpcwire.TypeTag{rpcwire.Int32}, nil))
	require.NoError(t, r.Register(1, []rpcwire.TypeTag{rpcwire.Float64, rpcwire.Float64}, nil))

	sig, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, []rpcwire.TypeTag{rpcwire.Float64, rpcwire.Float64}, sig.CallTypes)
}

func TestUnregisterRemovesFunction(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(1, nil, nil))
	r.Unregister(1)
	_, ok := r.Lookup(1)
	assert.False(t, ok)
}

func TestRegisterRejectsInvalidTypeTag(t *testing.T) {
	r := NewRegistry()
	err := r.Register(1, []rpcwire.TypeTag{rpcwire.TypeTag(200)}, nil)
	assert.Error(t, err)
}

func TestValidateCallDetectsCountMismatch(t *testing.T) {
	sig := Signature{CallTypes: []rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32}}
	args := []rpcwire.Argument{*argPtr(rpcwire.NewInt32(1))}
	err := ValidateCall(sig, args)
	assert.ErrorIs(t, err, ErrMismatchedTypes)
}

func TestValidateCallDetectsTypeMismatch(t *testing.T) {
	sig := Signature{CallTypes: []rpcwire.TypeTag{rpcwire.Int32}}
	args := []rpcwire.Argument{*argPtr(rpcwire.NewFloat64(1))}
	err := ValidateCall(sig, args)
	assert.ErrorIs(t, err, ErrMismatchedTypes)
}

func TestValidateCallAccepts(t *testing.T) {
	sig := Signature{CallTypes: []rpcwire.TypeTag{rpcwire.Int32, rpcwire.Float64}}
	args := []rpcwire.Argument{*argPtr(rpcwire.NewInt32(1)), *argPtr(rpcwire.NewFloat64(2))}
	assert.NoError(t, ValidateCall(sig, args))
}

func argPtr(a rpcwire.Argument) *rpcwire.Argument { return &a }
