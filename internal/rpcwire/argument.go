package rpcwire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Argument is one element of a packet's payload: a closed-set-tagged scalar
// or array value, carrying its own byte-order flag. A parsed
// Argument's array bytes are borrowed from the buffer it was parsed out of
// (zero-copy); a built Argument owns its bytes.
type Argument struct {
	Type      TypeTag
	BigEndian bool

	// scalar holds the raw payload for non-array types, left-justified,
	// always exactly ScalarPayloadSize bytes.
	scalar [ScalarPayloadSize]byte

	// array holds the raw element bytes (count*ElemSize, no padding) for
	// array types.
	array []byte

	count uint32
}

// Count returns the number of elements for an array Argument, or 0 for a
// scalar.
func (a *Argument) Count() uint32 {
	return a.count
}

// swapToHost returns a copy of raw with every element byte-swapped if a's
// declared order disagrees with the host's, otherwise returns raw unchanged.
func (a *Argument) swapToHost(raw []byte, elemSize int) []byte {
	if a.BigEndian == hostBigEndian {
		return raw
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	swapElements(out, elemSize)
	return out
}

func (a *Argument) scalarHostBytes() []byte {
	return a.swapToHost(a.scalar[:], a.Type.ElemSize())
}

// Bool returns a BOOL8 argument's value.
func (a *Argument) Bool() (bool, error) {
	if a.Type != Bool8 {
		return false, wrongType(Bool8, a.Type)
	}
	return a.scalar[0] != 0, nil
}

// Int8 returns an INT8 argument's value.
func (a *Argument) Int8() (int8, error) {
	if a.Type != Int8 {
		return 0, wrongType(Int8, a.Type)
	}
	return int8(a.scalar[0]), nil
}

// Uint8 returns a UINT8 argument's value.
func (a *Argument) Uint8() (uint8, error) {
	if a.Type != Uint8 {
		return 0, wrongType(Uint8, a.Type)
	}
	return a.scalar[0], nil
}

// Int16 returns an INT16 argument's value.
func (a *Argument) Int16() (int16, error) {
	if a.Type != Int16 {
		return 0, wrongType(Int16, a.Type)
	}
	return int16(binary.BigEndian.Uint16(orient(a.scalarHostBytes()[:2]))), nil
}

// Uint16 returns a UINT16 argument's value.
func (a *Argument) Uint16() (uint16, error) {
	if a.Type != Uint16 {
		return 0, wrongType(Uint16, a.Type)
	}
	return binary.BigEndian.Uint16(orient(a.scalarHostBytes()[:2])), nil
}

// Int32 returns an INT32 argument's value.
func (a *Argument) Int32() (int32, error) {
	if a.Type != Int32 {
		return 0, wrongType(Int32, a.Type)
	}
	return int32(binary.BigEndian.Uint32(orient(a.scalarHostBytes()[:4]))), nil
}

// Uint32 returns a UINT32 argument's value.
func (a *Argument) Uint32() (uint32, error) {
	if a.Type != Uint32 {
		return 0, wrongType(Uint32, a.Type)
	}
	return binary.BigEndian.Uint32(orient(a.scalarHostBytes()[:4])), nil
}

// Int64 returns an INT64 argument's value.
func (a *Argument) Int64() (int64, error) {
	if a.Type != Int64 {
		return 0, wrongType(Int64, a.Type)
	}
	return int64(binary.BigEndian.Uint64(orient(a.scalarHostBytes()[:8]))), nil
}

// Uint64 returns a UINT64 argument's value.
func (a *Argument) Uint64() (uint64, error) {
	if a.Type != Uint64 {
		return 0, wrongType(Uint64, a.Type)
	}
	return binary.BigEndian.Uint64(orient(a.scalarHostBytes()[:8])), nil
}

// Float32 returns a FLOAT32 argument's value.
func (a *Argument) Float32() (float32, error) {
	if a.Type != Float32 {
		return 0, wrongType(Float32, a.Type)
	}
	bits := binary.BigEndian.Uint32(orient(a.scalarHostBytes()[:4]))
	return math.Float32frombits(bits), nil
}

// Float64 returns a FLOAT64 argument's value.
func (a *Argument) Float64() (float64, error) {
	if a.Type != Float64 {
		return 0, wrongType(Float64, a.Type)
	}
	bits := binary.BigEndian.Uint64(orient(a.scalarHostBytes()[:8]))
	return math.Float64frombits(bits), nil
}

// orient reinterprets host-order bytes as big-endian for the binary.BigEndian
// readers above: when the host is little-endian, the bytes must be reversed
// before BigEndian.Uint* can recover the original host-native value.
func orient(hostBytes []byte) []byte {
	if hostBigEndian {
		return hostBytes
	}
	out := make([]byte, len(hostBytes))
	copy(out, hostBytes)
	return swapBytes(out)
}

// Bool8Slice returns a BOOL8ARRAY argument's elements.
func (a *Argument) Bool8Slice() ([]bool, error) {
	if a.Type != Bool8Array {
		return nil, wrongType(Bool8Array, a.Type)
	}
	out := make([]bool, a.count)
	for i := range out {
		out[i] = a.array[i] != 0
	}
	return out, nil
}

// Int8Slice returns an INT8ARRAY argument's elements.
func (a *Argument) Int8Slice() ([]int8, error) {
	if a.Type != Int8Array {
		return nil, wrongType(Int8Array, a.Type)
	}
	out := make([]int8, a.count)
	for i := range out {
		out[i] = int8(a.array[i])
	}
	return out, nil
}

// Uint8Slice returns a UINT8ARRAY argument's elements.
func (a *Argument) Uint8Slice() ([]uint8, error) {
	if a.Type != Uint8Array {
		return nil, wrongType(Uint8Array, a.Type)
	}
	out := make([]uint8, a.count)
	copy(out, a.array)
	return out, nil
}

// Int16Slice returns an INT16ARRAY argument's elements.
func (a *Argument) Int16Slice() ([]int16, error) {
	if a.Type != Int16Array {
		return nil, wrongType(Int16Array, a.Type)
	}
	raw := a.swapToHost(a.array, 2)
	out := make([]int16, a.count)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(orient(raw[i*2 : i*2+2])))
	}
	return out, nil
}

// Uint16Slice returns a UINT16ARRAY argument's elements.
func (a *Argument) Uint16Slice() ([]uint16, error) {
	if a.Type != Uint16Array {
		return nil, wrongType(Uint16Array, a.Type)
	}
	raw := a.swapToHost(a.array, 2)
	out := make([]uint16, a.count)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(orient(raw[i*2 : i*2+2]))
	}
	return out, nil
}

// Int32Slice returns an INT32ARRAY argument's elements.
func (a *Argument) Int32Slice() ([]int32, error) {
	if a.Type != Int32Array {
		return nil, wrongType(Int32Array, a.Type)
	}
	raw := a.swapToHost(a.array, 4)
	out := make([]int32, a.count)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(orient(raw[i*4 : i*4+4])))
	}
	return out, nil
}

// Uint32Slice returns a UINT32ARRAY argument's elements.
func (a *Argument) Uint32Slice() ([]uint32, error) {
	if a.Type != Uint32Array {
		return nil, wrongType(Uint32Array, a.Type)
	}
	raw := a.swapToHost(a.array, 4)
	out := make([]uint32, a.count)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(orient(raw[i*4 : i*4+4]))
	}
	return out, nil
}

// Int64Slice returns an INT64ARRAY argument's elements.
func (a *Argument) Int64Slice() ([]int64, error) {
	if a.Type != Int64Array {
		return nil, wrongType(Int64Array, a.Type)
	}
	raw := a.swapToHost(a.array, 8)
	out := make([]int64, a.count)
	for i := range out {
		out[i] = int64(binary.BigEndian.Uint64(orient(raw[i*8 : i*8+8])))
	}
	return out, nil
}

// Uint64Slice returns a UINT64ARRAY argument's elements.
func (a *Argument) Uint64Slice() ([]uint64, error) {
	if a.Type != Uint64Array {
		return nil, wrongType(Uint64Array, a.Type)
	}
	raw := a.swapToHost(a.array, 8)
	out := make([]uint64, a.count)
	for i := range out {
		out[i] = binary.BigEndian.Uint64(orient(raw[i*8 : i*8+8]))
	}
	return out, nil
}

// Float32Slice returns a FLOAT32ARRAY argument's elements.
func (a *Argument) Float32Slice() ([]float32, error) {
	if a.Type != Float32Array {
		return nil, wrongType(Float32Array, a.Type)
	}
	raw := a.swapToHost(a.array, 4)
	out := make([]float32, a.count)
	for i := range out {
		bits := binary.BigEndian.Uint32(orient(raw[i*4 : i*4+4]))
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// Float64Slice returns a FLOAT64ARRAY argument's elements.
func (a *Argument) Float64Slice() ([]float64, error) {
	if a.Type != Float64Array {
		return nil, wrongType(Float64Array, a.Type)
	}
	raw := a.swapToHost(a.array, 8)
	out := make([]float64, a.count)
	for i := range out {
		bits := binary.BigEndian.Uint64(orient(raw[i*8 : i*8+8]))
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}

func wrongType(want, got TypeTag) error {
	return fmt.Errorf("rpcwire: argument is %s, not %s", got, want)
}

// --- constructors, used by Builder.Push ---

func newScalarArg(t TypeTag, bigEndian bool, payload []byte) Argument {
	var a Argument
	a.Type = t
	a.BigEndian = bigEndian
	copy(a.scalar[:], payload)
	return a
}

func newArrayArg(t TypeTag, bigEndian bool, elems []byte, count uint32) Argument {
	var a Argument
	a.Type = t
	a.BigEndian = bigEndian
	a.array = elems
	a.count = count
	return a
}

// NewBool builds a BOOL8 Argument.
func NewBool(v bool) Argument {
	var b byte
	if v {
		b = 1
	}
	return newScalarArg(Bool8, hostBigEndian, []byte{b})
}

// NewInt8 builds an INT8 Argument.
func NewInt8(v int8) Argument {
	return newScalarArg(Int8, hostBigEndian, []byte{byte(v)})
}

// NewUint8 builds a UINT8 Argument.
func NewUint8(v uint8) Argument {
	return newScalarArg(Uint8, hostBigEndian, []byte{v})
}

// NewInt16 builds an INT16 Argument using the host's native byte order.
func NewInt16(v int16) Argument {
	return newScalarArg(Int16, hostBigEndian, hostOrder16(uint16(v)))
}

// NewUint16 builds a UINT16 Argument using the host's native byte order.
func NewUint16(v uint16) Argument {
	return newScalarArg(Uint16, hostBigEndian, hostOrder16(v))
}

// NewInt32 builds an INT32 Argument using the host's native byte order.
func NewInt32(v int32) Argument {
	return newScalarArg(Int32, hostBigEndian, hostOrder32(uint32(v)))
}

// NewUint32 builds a UINT32 Argument using the host's native byte order.
func NewUint32(v uint32) Argument {
	return newScalarArg(Uint32, hostBigEndian, hostOrder32(v))
}

// NewInt64 builds an INT64 Argument using the host's native byte order.
func NewInt64(v int64) Argument {
	return newScalarArg(Int64, hostBigEndian, hostOrder64(uint64(v)))
}

// NewUint64 builds a UINT64 Argument using the host's native byte order.
func NewUint64(v uint64) Argument {
	return newScalarArg(Uint64, hostBigEndian, hostOrder64(v))
}

// NewFloat32 builds a FLOAT32 Argument using the host's native byte order.
func NewFloat32(v float32) Argument {
	return newScalarArg(Float32, hostBigEndian, hostOrder32(math.Float32bits(v)))
}

// NewFloat64 builds a FLOAT64 Argument using the host's native byte order.
func NewFloat64(v float64) Argument {
	return newScalarArg(Float64, hostBigEndian, hostOrder64(math.Float64bits(v)))
}

// NewBool8Slice builds a BOOL8ARRAY Argument.
func NewBool8Slice(v []bool) Argument {
	buf := make([]byte, len(v))
	for i, x := range v {
		if x {
			buf[i] = 1
		}
	}
	return newArrayArg(Bool8Array, hostBigEndian, buf, uint32(len(v)))
}

// NewInt8Slice builds an INT8ARRAY Argument.
func NewInt8Slice(v []int8) Argument {
	buf := make([]byte, len(v))
	for i, x := range v {
		buf[i] = byte(x)
	}
	return newArrayArg(Int8Array, hostBigEndian, buf, uint32(len(v)))
}

// NewUint8Slice builds a UINT8ARRAY Argument (byte blob, no endianness
// concerns).
func NewUint8Slice(v []uint8) Argument {
	buf := make([]byte, len(v))
	copy(buf, v)
	return newArrayArg(Uint8Array, hostBigEndian, buf, uint32(len(v)))
}

// NewInt16Slice builds an INT16ARRAY Argument using the host's native byte
// order.
func NewInt16Slice(v []int16) Argument {
	buf := make([]byte, len(v)*2)
	for i, x := range v {
		copy(buf[i*2:i*2+2], hostOrder16(uint16(x)))
	}
	return newArrayArg(Int16Array, hostBigEndian, buf, uint32(len(v)))
}

// NewUint16Slice builds a UINT16ARRAY Argument using the host's native byte
// order.
func NewUint16Slice(v []uint16) Argument {
	buf := make([]byte, len(v)*2)
	for i, x := range v {
		copy(buf[i*2:i*2+2], hostOrder16(x))
	}
	return newArrayArg(Uint16Array, hostBigEndian, buf, uint32(len(v)))
}

// NewInt32Slice builds an INT32ARRAY Argument using the host's native byte
// order.
func NewInt32Slice(v []int32) Argument {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		copy(buf[i*4:i*4+4], hostOrder32(uint32(x)))
	}
	return newArrayArg(Int32Array, hostBigEndian, buf, uint32(len(v)))
}

// NewUint32Slice builds a UINT32ARRAY Argument using the host's native byte
// order.
func NewUint32Slice(v []uint32) Argument {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		copy(buf[i*4:i*4+4], hostOrder32(x))
	}
	return newArrayArg(Uint32Array, hostBigEndian, buf, uint32(len(v)))
}

// NewInt64Slice builds an INT64ARRAY Argument using the host's native byte
// order.
func NewInt64Slice(v []int64) Argument {
	buf := make([]byte, len(v)*8)
	for i, x := range v {
		copy(buf[i*8:i*8+8], hostOrder64(uint64(x)))
	}
	return newArrayArg(Int64Array, hostBigEndian, buf, uint32(len(v)))
}

// NewUint64Slice builds a UINT64ARRAY Argument using the host's native byte
// order.
func NewUint64Slice(v []uint64) Argument {
	buf := make([]byte, len(v)*8)
	for i, x := range v {
		copy(buf[i*8:i*8+8], hostOrder64(x))
	}
	return newArrayArg(Uint64Array, hostBigEndian, buf, uint32(len(v)))
}

// NewFloat32Slice builds a FLOAT32ARRAY Argument using the host's native
// byte order.
func NewFloat32Slice(v []float32) Argument {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		copy(buf[i*4:i*4+4], hostOrder32(math.Float32bits(x)))
	}
	return newArrayArg(Float32Array, hostBigEndian, buf, uint32(len(v)))
}

// NewFloat64Slice builds a FLOAT64ARRAY Argument using the host's native
// byte order.
func NewFloat64Slice(v []float64) Argument {
	buf := make([]byte, len(v)*8)
	for i, x := range v {
		copy(buf[i*8:i*8+8], hostOrder64(math.Float64bits(x)))
	}
	return newArrayArg(Float64Array, hostBigEndian, buf, uint32(len(v)))
}

func hostOrder16(v uint16) []byte {
	b := make([]byte, 2)
	binary.NativeEndian.PutUint16(b, v)
	return b
}

func hostOrder32(v uint32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, v)
	return b
}

func hostOrder64(v uint64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, v)
	return b
}
