package rpcwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSimplePacket(t *testing.T, convert bool) *Packet {
	t.Helper()
	hdr := Header{RequestID: 42, FunctionID: 7, RPCCode: 0, NoReply: false, TimeoutS: 5}
	pkt, err := Begin(hdr, convert).
		Push(NewInt32(-123)).
		Push(NewUint64(0xdeadbeef)).
		Push(NewFloat64(3.25)).
		Push(NewInt32Slice([]int32{1, -2, 3})).
		End()
	require.NoError(t, err)
	return pkt
}

func TestRoundTripScalarsAndArrays(t *testing.T) {
	pkt := buildSimplePacket(t, true)

	parsed, n, err := Parse(pkt.Bytes())
	require.NoError(t, err)
	assert.Equal(t, len(pkt.Bytes()), n)
	assert.Equal(t, uint64(42), parsed.Header.RequestID)
	assert.Equal(t, uint32(7), parsed.Header.FunctionID)
	require.Equal(t, 4, parsed.NumArgs())

	a0, err := parsed.Arg(0)
	require.NoError(t, err)
	v0, err := a0.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-123), v0)

	a1, _ := parsed.Arg(1)
	v1, err := a1.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), v1)

	a2, _ := parsed.Arg(2)
	v2, err := a2.Float64()
	require.NoError(t, err)
	assert.Equal(t, 3.25, v2)

	a3, _ := parsed.Arg(3)
	v3, err := a3.Int32Slice()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -2, 3}, v3)
}

func TestParseZeroCopyArrayBorrowsInputBuffer(t *testing.T) {
	pkt := buildSimplePacket(t, true)
	buf := append([]byte(nil), pkt.Bytes()...)

	parsed, _, err := Parse(buf)
	require.NoError(t, err)
	a3, _ := parsed.Arg(3)
	v3, err := a3.Int32Slice()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -2, 3}, v3)
}

func TestRebuildWithConvertByteOrderNormalizesForeignArgument(t *testing.T) {
	// Simulate an argument that arrived declaring the opposite of the
	// host's byte order, as if received from a peer with a different
	// native order. swapToHost logic in the accessors must still recover
	// the correct value, and rebuilding with convert=true must normalize
	// the stored flag to host order.
	foreign := NewInt32(99)
	foreign.BigEndian = !hostBigEndian
	swapElements(foreign.scalar[:4], 4)

	v, err := foreign.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(99), v)

	hdr := Header{RequestID: 1, FunctionID: 1, TimeoutS: 1}
	rebuilt, err := Begin(hdr, true).Push(foreign).End()
	require.NoError(t, err)

	arg, _ := rebuilt.Arg(0)
	assert.Equal(t, hostBigEndian, arg.BigEndian)
	v2, err := arg.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(99), v2)
}

func TestParseRejectsBadSignature(t *testing.T) {
	buf := make([]byte, HeaderSize)
	_, _, err := Parse(buf)
	assert.Error(t, err)
}

func TestParseRejectsTruncatedBuffer(t *testing.T) {
	pkt := buildSimplePacket(t, true)
	_, _, err := Parse(pkt.Bytes()[:HeaderSize+2])
	assert.Error(t, err)
}

func TestBuilderRejectsInvalidTypeTag(t *testing.T) {
	hdr := Header{RequestID: 1, FunctionID: 1}
	bad := Argument{Type: TypeTag(200)}
	_, err := Begin(hdr, true).Push(bad).End()
	assert.Error(t, err)
}

func TestZeroLengthArrayRoundTrips(t *testing.T) {
	hdr := Header{RequestID: 1, FunctionID: 1}
	pkt, err := Begin(hdr, true).Push(NewInt32Slice(nil)).End()
	require.NoError(t, err)

	parsed, _, err := Parse(pkt.Bytes())
	require.NoError(t, err)
	arg, _ := parsed.Arg(0)
	assert.Equal(t, uint32(0), arg.Count())
	v, err := arg.Int32Slice()
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestRequestIDGeneratorSkipsZero(t *testing.T) {
	g := NewRequestIDGenerator()
	g.next = ^uint64(0)
	first := g.Next()
	assert.NotEqual(t, uint64(0), first)

	seen := map[uint64]bool{}
	for i := 0; i < 1000; i++ {
		id := g.Next()
		assert.NotEqual(t, uint64(0), id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestHeaderMarshalParseRoundTrip(t *testing.T) {
	hdr := Header{RequestID: 123456789, FunctionID: 99, RPCCode: -1002, NoReply: true, TimeoutS: 30}
	buf := hdr.Marshal(nil)
	got, n, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize, n)
	assert.Equal(t, hdr, got)
}

func TestParseHeaderRejectsZeroRequestID(t *testing.T) {
	hdr := Header{RequestID: 0, FunctionID: 7}
	buf := hdr.Marshal(nil)
	_, _, err := ParseHeader(buf)
	assert.Error(t, err)
}

func TestParseHeaderRejectsZeroFunctionID(t *testing.T) {
	hdr := Header{RequestID: 1, FunctionID: 0}
	buf := hdr.Marshal(nil)
	_, _, err := ParseHeader(buf)
	assert.Error(t, err)
}

func TestParseRejectsZeroRequestIDOrFunctionID(t *testing.T) {
	zeroRequestID := Header{RequestID: 0, FunctionID: 7}.Marshal(nil)
	_, _, err := Parse(zeroRequestID)
	assert.Error(t, err)

	zeroFunctionID := Header{RequestID: 7, FunctionID: 0}.Marshal(nil)
	_, _, err = Parse(zeroFunctionID)
	assert.Error(t, err)
}

// TestRoundTripPaddedArrayTypes exercises every 1- and 2-byte array element
// type, where arrayPad's up-to-4-byte padding rule actually changes the
// number of bytes on the wire, plus unpadded 4- and 8-byte element types
// for contrast.
func TestRoundTripPaddedArrayTypes(t *testing.T) {
	hdr := Header{RequestID: 1, FunctionID: 1}
	pkt, err := Begin(hdr, true).
		Push(NewBool8Slice([]bool{true, false, true})).
		Push(NewInt8Slice([]int8{-1, 2, -3})).
		Push(NewUint8Slice([]uint8{1, 2, 3})).
		Push(NewInt16Slice([]int16{-1000, 2000, -3000})).
		Push(NewUint16Slice([]uint16{1000, 2000, 3000})).
		Push(NewUint32Slice([]uint32{10, 20, 30})).
		Push(NewInt64Slice([]int64{-100, 200, -300})).
		Push(NewUint64Slice([]uint64{100, 200, 300})).
		Push(NewFloat32Slice([]float32{1.5, -2.5})).
		End()
	require.NoError(t, err)

	parsed, n, err := Parse(pkt.Bytes())
	require.NoError(t, err)
	assert.Equal(t, len(pkt.Bytes()), n)

	a0, _ := parsed.Arg(0)
	v0, err := a0.Bool8Slice()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, v0)

	a1, _ := parsed.Arg(1)
	v1, err := a1.Int8Slice()
	require.NoError(t, err)
	assert.Equal(t, []int8{-1, 2, -3}, v1)

	a2, _ := parsed.Arg(2)
	v2, err := a2.Uint8Slice()
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3}, v2)

	a3, _ := parsed.Arg(3)
	v3, err := a3.Int16Slice()
	require.NoError(t, err)
	assert.Equal(t, []int16{-1000, 2000, -3000}, v3)

	a4, _ := parsed.Arg(4)
	v4, err := a4.Uint16Slice()
	require.NoError(t, err)
	assert.Equal(t, []uint16{1000, 2000, 3000}, v4)

	a5, _ := parsed.Arg(5)
	v5, err := a5.Uint32Slice()
	require.NoError(t, err)
	assert.Equal(t, []uint32{10, 20, 30}, v5)

	a6, _ := parsed.Arg(6)
	v6, err := a6.Int64Slice()
	require.NoError(t, err)
	assert.Equal(t, []int64{-100, 200, -300}, v6)

	a7, _ := parsed.Arg(7)
	v7, err := a7.Uint64Slice()
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 200, 300}, v7)

	a8, _ := parsed.Arg(8)
	v8, err := a8.Float32Slice()
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2.5}, v8)
}
