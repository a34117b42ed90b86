// Package nlattr implements the netlink attribute (TLV) wire format used by
// the netfilter subsystems: a 4-byte header holding a little-endian total
// length and type, followed by a payload padded to a 4-byte boundary.  An
// attribute payload may itself be a sequence of attributes.
package nlattr

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Error types.
var (
	ErrTruncated  = errors.New("truncated input")
	ErrMalformed  = errors.New("malformed attribute")
	ErrUnexpected = errors.New("unexpected attribute")
)

const (
	// HeaderLen is the size of the attribute header.
	HeaderLen = 4

	// Nested marks an attribute whose payload is a sequence of attributes.
	// Some producers set it on structured non-TLV payloads too, so parsers
	// mask it off before matching kinds.
	Nested = 0x8000

	// NetByteorder is the kernel's network-byte-order flag.  Buffer.Kind
	// masks it off and typed attributes re-emit without it; Unknown records
	// keep it in their raw type.
	NetByteorder = 0x4000

	// TypeMask selects the attribute kind without the two flag bits.
	TypeMask = 0x3fff

	// This previously came from syscall, but explicit here to work on Darwin.
	alignTo = 4
)

// Align rounds n up to the attribute alignment boundary.
func Align(n int) int {
	return (n + alignTo - 1) & ^(alignTo - 1)
}

// Attr is a single typed attribute.  Kind reports the raw 16-bit type field
// as it appears on the wire, including the Nested flag for variants whose
// payload is literally a sequence of sub-attributes.  ValueLen reports the
// payload length excluding header and padding, and EmitValue writes exactly
// that many bytes.
type Attr interface {
	Kind() uint16
	ValueLen() int
	EmitValue(b []byte)
}

// BufferLen reports the padded wire size of a single attribute.
func BufferLen(a Attr) int {
	return Align(HeaderLen + a.ValueLen())
}

// SizeAll reports the padded wire size of an attribute sequence.
func SizeAll(attrs []Attr) int {
	n := 0
	for _, a := range attrs {
		n += BufferLen(a)
	}
	return n
}

// Emit writes a into b and returns the padded number of bytes written.  The
// stored length field excludes padding; pad bytes are zeroed.  b must hold
// at least BufferLen(a) bytes.
func Emit(b []byte, a Attr) int {
	vlen := a.ValueLen()
	binary.LittleEndian.PutUint16(b, uint16(HeaderLen+vlen))
	binary.LittleEndian.PutUint16(b[2:], a.Kind())
	a.EmitValue(b[HeaderLen : HeaderLen+vlen])
	total := Align(HeaderLen + vlen)
	for i := HeaderLen + vlen; i < total; i++ {
		b[i] = 0
	}
	return total
}

// EmitAll writes the attributes into b in sequence order and returns the
// total number of bytes written.
func EmitAll(b []byte, attrs []Attr) int {
	n := 0
	for _, a := range attrs {
		n += Emit(b[n:], a)
	}
	return n
}

// Buffer is a view over one attribute record in a byte slice.  The view
// spans exactly the record's stored length; padding is not included.
type Buffer []byte

// Len reports the record's stored total length, header included.
func (b Buffer) Len() int {
	return int(binary.LittleEndian.Uint16(b))
}

// RawKind reports the type field with flag bits intact.
func (b Buffer) RawKind() uint16 {
	return binary.LittleEndian.Uint16(b[2:])
}

// Kind reports the type field with the framing flag bits masked off.
func (b Buffer) Kind() uint16 {
	return b.RawKind() & TypeMask
}

// IsNested reports whether the nested flag bit is set.  The flag is a hint,
// not a gate: parsers accept nested payloads either way.
func (b Buffer) IsNested() bool {
	return b.RawKind()&Nested != 0
}

// Value returns the payload bytes, excluding header and padding.  The slice
// aliases the underlying buffer; attributes that retain payload bytes copy
// them.
func (b Buffer) Value() []byte {
	return b[HeaderLen:b.Len()]
}

// AlignedLen reports the record's length rounded up to the alignment
// boundary, i.e. the offset of the successor record.
func (b Buffer) AlignedLen() int {
	return Align(b.Len())
}

// Iterator walks a sequence of attribute records in a payload.
type Iterator struct {
	rest []byte
	err  error
}

// NewIterator returns an Iterator over the records in b.
func NewIterator(b []byte) *Iterator {
	return &Iterator{rest: b}
}

// Next returns a view of the next record.  Iteration ends cleanly when
// fewer than HeaderLen bytes remain.  A record whose declared length is
// smaller than the header or larger than the remaining payload records an
// error, retrievable through Err, and stops iteration.
func (it *Iterator) Next() (Buffer, bool) {
	if it.err != nil || len(it.rest) < HeaderLen {
		return nil, false
	}
	l := int(binary.LittleEndian.Uint16(it.rest))
	if l < HeaderLen || l > len(it.rest) {
		it.err = errors.Wrapf(ErrMalformed, "attribute length %d with %d bytes remaining", l, len(it.rest))
		return nil, false
	}
	buf := Buffer(it.rest[:l])
	adv := Align(l)
	if adv > len(it.rest) {
		adv = len(it.rest)
	}
	it.rest = it.rest[adv:]
	return buf, true
}

// Err reports the malformed-record error that stopped iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// ParseAll walks the records in payload and converts each through parse.
// It fails fast on the first malformed record or parse error.
func ParseAll(payload []byte, parse func(Buffer) (Attr, error)) ([]Attr, error) {
	var attrs []Attr
	it := NewIterator(payload)
	for {
		buf, ok := it.Next()
		if !ok {
			break
		}
		a, err := parse(buf)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return attrs, nil
}

// ParseUnknown materializes every record in payload as an opaque Unknown.
func ParseUnknown(payload []byte) ([]Attr, error) {
	return ParseAll(payload, func(b Buffer) (Attr, error) {
		return NewUnknown(b), nil
	})
}

// Unknown is the opaque attribute used for kinds a dialect does not
// recognize.  Typ preserves the raw type field, flag bits included, so the
// record re-emits byte-for-byte.
type Unknown struct {
	Typ  uint16
	Data []byte
}

// NewUnknown copies the record in b into an owned Unknown.
func NewUnknown(b Buffer) Unknown {
	return Unknown{Typ: b.RawKind(), Data: append([]byte(nil), b.Value()...)}
}

// Kind implements Attr.
func (u Unknown) Kind() uint16 { return u.Typ }

// ValueLen implements Attr.
func (u Unknown) ValueLen() int { return len(u.Data) }

// EmitValue implements Attr.
func (u Unknown) EmitValue(b []byte) { copy(b, u.Data) }
