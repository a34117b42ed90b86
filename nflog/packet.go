package nflog

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/nlattr"
)

// Packet attribute kinds (NFULA_*).
const (
	AttrPacketHdr        uint16 = 1
	AttrMark             uint16 = 2
	AttrTimestamp        uint16 = 3
	AttrIfIndexInDev     uint16 = 4
	AttrIfIndexOutDev    uint16 = 5
	AttrIfIndexPhysInDev uint16 = 6
	AttrIfIndexPhysOut   uint16 = 7
	AttrHwAddr           uint16 = 8
	AttrPayload          uint16 = 9
	AttrPrefix           uint16 = 10
	AttrUID              uint16 = 11
	AttrSeq              uint16 = 12
	AttrSeqGlobal        uint16 = 13
	AttrGID              uint16 = 14
	AttrHwType           uint16 = 15
	AttrHwHeader         uint16 = 16
	AttrHwLen            uint16 = 17
)

// PacketHdr is the fixed packet header record, nfulnl_msg_packet_hdr: the
// link-layer protocol and the netfilter hook the packet was logged from,
// plus a pad byte.
type PacketHdr struct {
	HwProtocol uint16
	Hook       uint8
}

const packetHdrLen = 4

// Kind implements nlattr.Attr.
func (PacketHdr) Kind() uint16 { return AttrPacketHdr }

// ValueLen implements nlattr.Attr.
func (PacketHdr) ValueLen() int { return packetHdrLen }

// EmitValue implements nlattr.Attr.
func (h PacketHdr) EmitValue(b []byte) {
	binary.BigEndian.PutUint16(b, h.HwProtocol)
	b[2] = h.Hook
	b[3] = 0
}

func parsePacketHdr(b []byte) (PacketHdr, error) {
	if len(b) < packetHdrLen {
		return PacketHdr{}, errors.Wrapf(nlattr.ErrTruncated, "packet header: %d bytes", len(b))
	}
	return PacketHdr{
		HwProtocol: binary.BigEndian.Uint16(b),
		Hook:       b[2],
	}, nil
}

// Mark is the packet mark.
type Mark uint32

// Kind implements nlattr.Attr.
func (Mark) Kind() uint16 { return AttrMark }

// ValueLen implements nlattr.Attr.
func (Mark) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (m Mark) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(m)) }

// Timestamp is the packet arrival time, nfulnl_msg_packet_timestamp:
// seconds and microseconds, both 64-bit big-endian.
type Timestamp struct {
	Sec  uint64
	Usec uint64
}

const timestampLen = 16

// Kind implements nlattr.Attr.
func (Timestamp) Kind() uint16 { return AttrTimestamp }

// ValueLen implements nlattr.Attr.
func (Timestamp) ValueLen() int { return timestampLen }

// EmitValue implements nlattr.Attr.
func (t Timestamp) EmitValue(b []byte) {
	binary.BigEndian.PutUint64(b, t.Sec)
	binary.BigEndian.PutUint64(b[8:], t.Usec)
}

func parseTimestamp(b []byte) (Timestamp, error) {
	if len(b) < timestampLen {
		return Timestamp{}, errors.Wrapf(nlattr.ErrTruncated, "timestamp: %d bytes", len(b))
	}
	return Timestamp{
		Sec:  binary.BigEndian.Uint64(b),
		Usec: binary.BigEndian.Uint64(b[8:]),
	}, nil
}

// IfIndexInDev is the index of the interface the packet arrived on.
type IfIndexInDev uint32

// Kind implements nlattr.Attr.
func (IfIndexInDev) Kind() uint16 { return AttrIfIndexInDev }

// ValueLen implements nlattr.Attr.
func (IfIndexInDev) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (i IfIndexInDev) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(i)) }

// IfIndexOutDev is the index of the interface the packet left through.
type IfIndexOutDev uint32

// Kind implements nlattr.Attr.
func (IfIndexOutDev) Kind() uint16 { return AttrIfIndexOutDev }

// ValueLen implements nlattr.Attr.
func (IfIndexOutDev) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (i IfIndexOutDev) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(i)) }

// IfIndexPhysInDev is the physical ingress interface behind a bridge or
// bond.
type IfIndexPhysInDev uint32

// Kind implements nlattr.Attr.
func (IfIndexPhysInDev) Kind() uint16 { return AttrIfIndexPhysInDev }

// ValueLen implements nlattr.Attr.
func (IfIndexPhysInDev) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (i IfIndexPhysInDev) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(i)) }

// IfIndexPhysOutDev is the physical egress interface behind a bridge or
// bond.
type IfIndexPhysOutDev uint32

// Kind implements nlattr.Attr.
func (IfIndexPhysOutDev) Kind() uint16 { return AttrIfIndexPhysOut }

// ValueLen implements nlattr.Attr.
func (IfIndexPhysOutDev) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (i IfIndexPhysOutDev) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(i)) }

// HwAddr is the link-layer source address record, nfulnl_msg_packet_hw: a
// big-endian address length, two pad bytes, and up to eight address octets.
type HwAddr struct {
	AddrLen uint16
	Addr    [8]byte
}

const hwAddrLen = 12

// Kind implements nlattr.Attr.
func (HwAddr) Kind() uint16 { return AttrHwAddr }

// ValueLen implements nlattr.Attr.
func (HwAddr) ValueLen() int { return hwAddrLen }

// EmitValue implements nlattr.Attr.
func (h HwAddr) EmitValue(b []byte) {
	binary.BigEndian.PutUint16(b, h.AddrLen)
	b[2] = 0
	b[3] = 0
	copy(b[4:], h.Addr[:])
}

func parseHwAddr(b []byte) (HwAddr, error) {
	if len(b) < hwAddrLen {
		return HwAddr{}, errors.Wrapf(nlattr.ErrTruncated, "hardware address: %d bytes", len(b))
	}
	h := HwAddr{AddrLen: binary.BigEndian.Uint16(b)}
	copy(h.Addr[:], b[4:hwAddrLen])
	return h, nil
}

// Payload is the raw packet payload, as much of it as the copy mode allowed.
type Payload []byte

// Kind implements nlattr.Attr.
func (Payload) Kind() uint16 { return AttrPayload }

// ValueLen implements nlattr.Attr.
func (p Payload) ValueLen() int { return len(p) }

// EmitValue implements nlattr.Attr.
func (p Payload) EmitValue(b []byte) { copy(b, p) }

// Prefix is the log prefix configured on the rule, NUL-terminated on the
// wire.
type Prefix string

// Kind implements nlattr.Attr.
func (Prefix) Kind() uint16 { return AttrPrefix }

// ValueLen implements nlattr.Attr.
func (p Prefix) ValueLen() int { return nlattr.CStringLen(string(p)) }

// EmitValue implements nlattr.Attr.
func (p Prefix) EmitValue(b []byte) { nlattr.EmitCString(b, string(p)) }

// UID is the uid of the socket the packet belongs to.
type UID uint32

// Kind implements nlattr.Attr.
func (UID) Kind() uint16 { return AttrUID }

// ValueLen implements nlattr.Attr.
func (UID) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (u UID) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(u)) }

// GID is the gid of the socket the packet belongs to.
type GID uint32

// Kind implements nlattr.Attr.
func (GID) Kind() uint16 { return AttrGID }

// ValueLen implements nlattr.Attr.
func (GID) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (g GID) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(g)) }

// Seq is the per-instance packet sequence number.
type Seq uint32

// Kind implements nlattr.Attr.
func (Seq) Kind() uint16 { return AttrSeq }

// ValueLen implements nlattr.Attr.
func (Seq) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (s Seq) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(s)) }

// SeqGlobal is the sequence number across all logging instances.
type SeqGlobal uint32

// Kind implements nlattr.Attr.
func (SeqGlobal) Kind() uint16 { return AttrSeqGlobal }

// ValueLen implements nlattr.Attr.
func (SeqGlobal) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (s SeqGlobal) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(s)) }

// HwType is the ARPHRD_* hardware type of the receiving interface.
type HwType uint16

// Kind implements nlattr.Attr.
func (HwType) Kind() uint16 { return AttrHwType }

// ValueLen implements nlattr.Attr.
func (HwType) ValueLen() int { return 2 }

// EmitValue implements nlattr.Attr.
func (h HwType) EmitValue(b []byte) { binary.BigEndian.PutUint16(b, uint16(h)) }

// HwHeader is the link-layer header bytes.
type HwHeader []byte

// Kind implements nlattr.Attr.
func (HwHeader) Kind() uint16 { return AttrHwHeader }

// ValueLen implements nlattr.Attr.
func (h HwHeader) ValueLen() int { return len(h) }

// EmitValue implements nlattr.Attr.
func (h HwHeader) EmitValue(b []byte) { copy(b, h) }

// HwLen is the length of the link-layer header.
type HwLen uint16

// Kind implements nlattr.Attr.
func (HwLen) Kind() uint16 { return AttrHwLen }

// ValueLen implements nlattr.Attr.
func (HwLen) ValueLen() int { return 2 }

// EmitValue implements nlattr.Attr.
func (h HwLen) EmitValue(b []byte) { binary.BigEndian.PutUint16(b, uint16(h)) }

// ParsePacketAttr converts one record of an nflog packet message.
func ParsePacketAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrPacketHdr:
		h, err := parsePacketHdr(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_PACKET_HDR")
		}
		return h, nil
	case AttrMark:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_MARK")
		}
		return Mark(v), nil
	case AttrTimestamp:
		t, err := parseTimestamp(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_TIMESTAMP")
		}
		return t, nil
	case AttrIfIndexInDev:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_IFINDEX_INDEV")
		}
		return IfIndexInDev(v), nil
	case AttrIfIndexOutDev:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_IFINDEX_OUTDEV")
		}
		return IfIndexOutDev(v), nil
	case AttrIfIndexPhysInDev:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_IFINDEX_PHYSINDEV")
		}
		return IfIndexPhysInDev(v), nil
	case AttrIfIndexPhysOut:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_IFINDEX_PHYSOUTDEV")
		}
		return IfIndexPhysOutDev(v), nil
	case AttrHwAddr:
		h, err := parseHwAddr(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_HWADDR")
		}
		return h, nil
	case AttrPayload:
		return Payload(append([]byte(nil), buf.Value()...)), nil
	case AttrPrefix:
		s, err := nlattr.ParseCString(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_PREFIX")
		}
		return Prefix(s), nil
	case AttrUID:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_UID")
		}
		return UID(v), nil
	case AttrSeq:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_SEQ")
		}
		return Seq(v), nil
	case AttrSeqGlobal:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_SEQ_GLOBAL")
		}
		return SeqGlobal(v), nil
	case AttrGID:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_GID")
		}
		return GID(v), nil
	case AttrHwType:
		v, err := nlattr.ParseU16BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_HWTYPE")
		}
		return HwType(v), nil
	case AttrHwHeader:
		return HwHeader(append([]byte(nil), buf.Value()...)), nil
	case AttrHwLen:
		v, err := nlattr.ParseU16BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_HWLEN")
		}
		return HwLen(v), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}
