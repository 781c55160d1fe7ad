package rpcwire

import (
	"encoding/binary"
	"fmt"
)

// MaxArguments bounds how many Arguments a single packet may carry, guarding
// parse() against a corrupt or hostile count field driving unbounded
// allocation.
const MaxArguments = 4096

// MaxArrayElements bounds a single array Argument's element count for the
// same reason.
const MaxArrayElements = 1 << 20

// Correlation holds the three application-supplied slots a packet carries
// purely for local use: never serialized to the wire, only threaded by the
// client engine from a request through to whichever result eventually
// resolves it (a real reply, a synthesized timeout, or a synthesized
// disconnect).
type Correlation struct {
	Magic1   int64
	Magic2   int64
	MagicStr string
}

// Packet is an immutable, built-or-parsed rpcwire packet: the fixed header
// plus its decoded Arguments, and (once End or Parse has run) the
// contiguous serialized form. Ordinary Go pointer sharing gives Packet its
// reference-counted-handle behavior for free — multiple goroutines may hold
// a *Packet and the garbage collector reclaims it once the last is dropped,
// so there is no AddRef/Release bookkeeping to reimplement.
type Packet struct {
	Header      Header
	Correlation Correlation
	args        []Argument
	raw         []byte

	// convertByteOrder records whether this packet's Arguments were
	// normalized to host byte order when built.
	convertByteOrder bool
}

// Args returns the packet's decoded arguments in call order.
func (p *Packet) Args() []Argument {
	return p.args
}

// Arg returns the i'th argument, or an error if i is out of range.
func (p *Packet) Arg(i int) (*Argument, error) {
	if i < 0 || i >= len(p.args) {
		return nil, fmt.Errorf("rpcwire: argument index %d out of range (have %d)", i, len(p.args))
	}
	return &p.args[i], nil
}

// NumArgs returns the number of arguments in the packet.
func (p *Packet) NumArgs() int {
	return len(p.args)
}

// Bytes returns the packet's serialized wire form. The returned slice must
// not be modified.
func (p *Packet) Bytes() []byte {
	return p.raw
}

// ConvertByteOrder reports whether this packet normalizes argument payloads
// to host byte order as they are pushed.
func (p *Packet) ConvertByteOrder() bool {
	return p.convertByteOrder
}

// Builder assembles a Packet from a header and a sequence of Arguments using
// a begin/push/push_many/end lifecycle.
type Builder struct {
	hdr         Header
	correlation Correlation
	args        []Argument
	convert     bool
	err         error
}

// Begin starts building a new packet with the given header. When
// convertByteOrder is true, every pushed Argument whose declared byte order
// disagrees with the local machine's is normalized to host order as it is
// staged; client and server engines rebuilding a packet from parsed
// Arguments always pass true, so the argument accessors above always see
// host-native data without a swap at read time. Arguments built directly
// from host values (NewInt32 et al.) are already in host order so
// convertByteOrder has no effect on them either way.
func Begin(hdr Header, convertByteOrder bool) *Builder {
	return &Builder{hdr: hdr, convert: convertByteOrder}
}

// Push appends one Argument, converting its byte order first if the builder
// was started with convertByteOrder=true and the argument's declared order
// disagrees with the host's.
func (b *Builder) Push(a Argument) *Builder {
	if b.err != nil {
		return b
	}
	if !a.Type.Valid() {
		b.err = fmt.Errorf("rpcwire: invalid type tag %d", uint8(a.Type))
		return b
	}
	if a.Type.IsArray() && a.count > MaxArrayElements {
		b.err = fmt.Errorf("rpcwire: array argument count %d exceeds limit %d", a.count, MaxArrayElements)
		return b
	}
	if a.Type.IsArray() {
		// Own the element bytes: a parsed Argument borrows them from the
		// input frame, which must be neither aliased nor swapped here.
		a.array = append([]byte(nil), a.array...)
	}

	if b.convert && a.BigEndian != hostBigEndian {
		if a.Type.IsArray() {
			swapElements(a.array, a.Type.ElemSize())
		} else {
			swapElements(a.scalar[:a.Type.ElemSize()], a.Type.ElemSize())
		}
		a.BigEndian = hostBigEndian
	}

	b.args = append(b.args, a)
	return b
}

// Correlate attaches c to the packet under construction. Correlation slots
// are local-only bookkeeping: they never appear in the serialized bytes.
func (b *Builder) Correlate(c Correlation) *Builder {
	b.correlation = c
	return b
}

// PushMany appends a sequence of Arguments in order.
func (b *Builder) PushMany(args []Argument) *Builder {
	for _, a := range args {
		b.Push(a)
	}
	return b
}

// End finalizes the packet: validates argument count, serializes the header
// and all arguments to a contiguous buffer, and returns the resulting
// Packet. A Builder must not be reused after End.
func (b *Builder) End() (*Packet, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.args) > MaxArguments {
		return nil, fmt.Errorf("rpcwire: argument count %d exceeds limit %d", len(b.args), MaxArguments)
	}

	buf := make([]byte, 0, HeaderSize+len(b.args)*16)
	buf = b.hdr.Marshal(buf)

	for i := range b.args {
		buf = marshalArgument(buf, &b.args[i])
	}

	return &Packet{
		Header:           b.hdr,
		Correlation:      b.correlation,
		args:             b.args,
		raw:              buf,
		convertByteOrder: b.convert,
	}, nil
}

func marshalArgument(buf []byte, a *Argument) []byte {
	var be byte
	if a.BigEndian {
		be = 1
	}
	buf = append(buf, be, byte(a.Type), 0, 0)

	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], a.count)
	buf = append(buf, tmp[:]...)

	if a.Type.IsArray() {
		buf = append(buf, a.array...)
		pad := arrayPad(int(a.count), a.Type.ElemSize())
		for i := 0; i < pad; i++ {
			buf = append(buf, 0)
		}
		return buf
	}

	return append(buf, a.scalar[:]...)
}

// Parse decodes a packet header and its Arguments from buf, returning the
// Packet and the number of bytes consumed. Array arguments borrow their
// backing bytes directly from buf (zero-copy); the caller must not mutate
// or reuse buf for the lifetime of the returned Packet's Arguments. The
// returned Packet's arguments are left exactly as declared on the wire — no
// byte-order conversion is performed here; a caller that wants host-native
// values rebuilds a new Packet from these Arguments via
// Begin(hdr, true).Push(...).End().
func Parse(buf []byte) (*Packet, int, error) {
	hdr, n, err := ParseHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	off := n

	var args []Argument
	for off < len(buf) {
		if len(buf)-off < ArgPrefixSize {
			return nil, 0, fmt.Errorf("rpcwire: truncated argument prefix at offset %d", off)
		}
		bigEndian := buf[off] != 0
		tag := TypeTag(buf[off+1])
		count := binary.BigEndian.Uint32(buf[off+4 : off+8])
		off += ArgPrefixSize

		if !tag.Valid() {
			return nil, 0, fmt.Errorf("rpcwire: invalid type tag %d at offset %d", uint8(tag), off-ArgPrefixSize)
		}
		if count > MaxArrayElements {
			return nil, 0, fmt.Errorf("rpcwire: array argument count %d exceeds limit %d", count, MaxArrayElements)
		}

		var a Argument
		if tag.IsArray() {
			elemSize := tag.ElemSize()
			payloadLen := int(count) * elemSize
			pad := arrayPad(int(count), elemSize)
			if len(buf)-off < payloadLen+pad {
				return nil, 0, fmt.Errorf("rpcwire: truncated array payload at offset %d", off)
			}
			a = newArrayArg(tag, bigEndian, buf[off:off+payloadLen:off+payloadLen], count)
			off += payloadLen + pad
		} else {
			if len(buf)-off < ScalarPayloadSize {
				return nil, 0, fmt.Errorf("rpcwire: truncated scalar payload at offset %d", off)
			}
			a = newScalarArg(tag, bigEndian, buf[off:off+ScalarPayloadSize])
			off += ScalarPayloadSize
		}

		if len(args) >= MaxArguments {
			return nil, 0, fmt.Errorf("rpcwire: argument count exceeds limit %d", MaxArguments)
		}
		args = append(args, a)
	}

	return &Packet{
		Header: hdr,
		args:   args,
		raw:    buf[:off],
	}, off, nil
}
