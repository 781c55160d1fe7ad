package rpcwire

import "encoding/binary"

// hostBigEndian reports whether the running machine's native byte order is
// big-endian. Computed once via encoding/binary.NativeEndian rather than
// unsafe pointer tricks.
var hostBigEndian = func() bool {
	buf := make([]byte, 2)
	binary.NativeEndian.PutUint16(buf, 0x0102)
	return buf[0] == 0x01
}()

// HostBigEndian reports whether the local machine is big-endian. Exposed so
// callers constructing Arguments from host-native data know what to set as
// the BigEndian flag.
func HostBigEndian() bool {
	return hostBigEndian
}

// swapBytes reverses b in place and returns it, for converting a scalar or
// array element between big- and little-endian representations.
func swapBytes(b []byte) []byte {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}

// swapElements reverses every elemSize-wide element of b in place, used for
// array payloads where each element (not the whole buffer) must be
// byte-swapped independently.
func swapElements(b []byte, elemSize int) {
	if elemSize <= 1 {
		return
	}
	for off := 0; off+elemSize <= len(b); off += elemSize {
		swapBytes(b[off : off+elemSize])
	}
}
