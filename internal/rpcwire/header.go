package rpcwire

import (
	"encoding/binary"
	"fmt"
)

// Signature is the fixed 8-byte magic every packet begins with.
var Signature = [8]byte{'*', '*', '*', 'P', 'R', 'P', 'C', 0}

// HeaderSize is the fixed on-wire size, in bytes, of a packet header:
// signature(8) + request_id(8) + function_id(4) + rpc_code(4) + no_reply(1)
// + reserved(3) + timeout_s(4).
const HeaderSize = 8 + 8 + 4 + 4 + 1 + 3 + 4

// ArgPrefixSize is the fixed on-wire size of one Argument's prefix:
// big_endian(1) + type_tag(1) + reserved(2) + count(4).
const ArgPrefixSize = 1 + 1 + 2 + 4

// ScalarPayloadSize is the fixed wire width reserved for a scalar argument's
// payload, regardless of the type's actual element size; unused trailing
// bytes are zero.
const ScalarPayloadSize = 8

// Header is the fixed-size prologue of every rpcwire packet.
type Header struct {
	RequestID  uint64
	FunctionID uint32
	RPCCode    int32
	NoReply    bool
	TimeoutS   uint32
}

// Marshal appends the wire encoding of h to buf and returns the result.
func (h Header) Marshal(buf []byte) []byte {
	buf = append(buf, Signature[:]...)

	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:8], h.RequestID)
	buf = append(buf, tmp[:8]...)

	binary.BigEndian.PutUint32(tmp[:4], h.FunctionID)
	buf = append(buf, tmp[:4]...)

	binary.BigEndian.PutUint32(tmp[:4], uint32(h.RPCCode))
	buf = append(buf, tmp[:4]...)

	var noReply byte
	if h.NoReply {
		noReply = 1
	}
	buf = append(buf, noReply, 0, 0, 0)

	binary.BigEndian.PutUint32(tmp[:4], h.TimeoutS)
	buf = append(buf, tmp[:4]...)

	return buf
}

// ParseHeader reads a Header from the front of buf, returning the header and
// the number of bytes consumed. It fails if buf is shorter than HeaderSize
// or the signature does not match.
func ParseHeader(buf []byte) (Header, int, error) {
	if len(buf) < HeaderSize {
		return Header{}, 0, fmt.Errorf("rpcwire: short header: need %d bytes, have %d", HeaderSize, len(buf))
	}
	if string(buf[:8]) != string(Signature[:]) {
		return Header{}, 0, fmt.Errorf("rpcwire: bad signature %q", buf[:8])
	}

	h := Header{
		RequestID:  binary.BigEndian.Uint64(buf[8:16]),
		FunctionID: binary.BigEndian.Uint32(buf[16:20]),
		RPCCode:    int32(binary.BigEndian.Uint32(buf[20:24])),
		NoReply:    buf[24] != 0,
		TimeoutS:   binary.BigEndian.Uint32(buf[28:32]),
	}
	if h.RequestID == 0 {
		return Header{}, 0, fmt.Errorf("rpcwire: request_id must be non-zero")
	}
	if h.FunctionID == 0 {
		return Header{}, 0, fmt.Errorf("rpcwire: function_id must be non-zero")
	}
	return h, HeaderSize, nil
}
