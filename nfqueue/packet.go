package nfqueue

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/nlattr"
)

// Packet attribute kinds (NFQA_*).
const (
	AttrPacketHdr        uint16 = 1
	AttrMark             uint16 = 3
	AttrTimestamp        uint16 = 4
	AttrIfIndexInDev     uint16 = 5
	AttrIfIndexOutDev    uint16 = 6
	AttrIfIndexPhysInDev uint16 = 7
	AttrIfIndexPhysOut   uint16 = 8
	AttrHwAddr           uint16 = 9
	AttrPayload          uint16 = 10
	AttrConntrack        uint16 = 11
	AttrConntrackInfo    uint16 = 12
	AttrCapLen           uint16 = 13
	AttrSkbInfo          uint16 = 14
	AttrExp              uint16 = 15
	AttrUID              uint16 = 16
	AttrGID              uint16 = 17
	AttrSecCtx           uint16 = 18
	AttrVLAN             uint16 = 19
	AttrL2Hdr            uint16 = 20
	AttrPriority         uint16 = 21
)

// PacketHdr is the fixed packet header record, nfqnl_msg_packet_hdr: the
// packet id to return a verdict for, the link-layer protocol, and the
// netfilter hook.  The payload is 7 bytes; padding brings the record to the
// alignment boundary.
type PacketHdr struct {
	PacketID   uint32
	HwProtocol uint16
	Hook       uint8
}

const packetHdrLen = 7

// Kind implements nlattr.Attr.
func (PacketHdr) Kind() uint16 { return AttrPacketHdr }

// ValueLen implements nlattr.Attr.
func (PacketHdr) ValueLen() int { return packetHdrLen }

// EmitValue implements nlattr.Attr.
func (h PacketHdr) EmitValue(b []byte) {
	binary.BigEndian.PutUint32(b, h.PacketID)
	binary.BigEndian.PutUint16(b[4:], h.HwProtocol)
	b[6] = h.Hook
}

func parsePacketHdr(b []byte) (PacketHdr, error) {
	if len(b) < packetHdrLen {
		return PacketHdr{}, errors.Wrapf(nlattr.ErrTruncated, "packet header: %d bytes", len(b))
	}
	return PacketHdr{
		PacketID:   binary.BigEndian.Uint32(b),
		HwProtocol: binary.BigEndian.Uint16(b[4:]),
		Hook:       b[6],
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

// Timestamp is the packet arrival time: seconds and microseconds, both
// 64-bit big-endian.
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

// IfIndexOutDev is the index of the interface the packet would leave
// through.
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

// HwAddr is the link-layer source address record, nfqnl_msg_packet_hw: a
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

// Payload is the raw packet payload, as much of it as the copy mode
// allowed.
type Payload []byte

// Kind implements nlattr.Attr.
func (Payload) Kind() uint16 { return AttrPayload }

// ValueLen implements nlattr.Attr.
func (p Payload) ValueLen() int { return len(p) }

// EmitValue implements nlattr.Attr.
func (p Payload) EmitValue(b []byte) { copy(b, p) }

// Conntrack is the opaque conntrack record attached to the packet.  Its
// contents are ctnetlink flow attributes; the blob is preserved as
// delivered.
type Conntrack []byte

// Kind implements nlattr.Attr.
func (Conntrack) Kind() uint16 { return AttrConntrack }

// ValueLen implements nlattr.Attr.
func (c Conntrack) ValueLen() int { return len(c) }

// EmitValue implements nlattr.Attr.
func (c Conntrack) EmitValue(b []byte) { copy(b, c) }

// ConntrackInfo is the ctinfo state value for the attached conntrack
// record.
type ConntrackInfo uint32

// Kind implements nlattr.Attr.
func (ConntrackInfo) Kind() uint16 { return AttrConntrackInfo }

// ValueLen implements nlattr.Attr.
func (ConntrackInfo) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (c ConntrackInfo) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(c)) }

// CapLen is the original packet length when the copy range truncated the
// payload.
type CapLen uint32

// Kind implements nlattr.Attr.
func (CapLen) Kind() uint16 { return AttrCapLen }

// ValueLen implements nlattr.Attr.
func (CapLen) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (c CapLen) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(c)) }

// Skb flag bits (NFQA_SKB_*).
const (
	SkbCsumNotReady    uint32 = 1 << 0
	SkbGSO             uint32 = 1 << 1
	SkbCsumNotVerified uint32 = 1 << 2
)

// SkbInfo is the skb metadata bitfield.  Unknown bits are preserved.
type SkbInfo uint32

// Kind implements nlattr.Attr.
func (SkbInfo) Kind() uint16 { return AttrSkbInfo }

// ValueLen implements nlattr.Attr.
func (SkbInfo) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (s SkbInfo) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(s)) }

// Has reports whether every bit of flag is set.
func (s SkbInfo) Has(flag uint32) bool { return uint32(s)&flag == flag }

// Exp is the opaque conntrack expectation record attached to the packet.
type Exp []byte

// Kind implements nlattr.Attr.
func (Exp) Kind() uint16 { return AttrExp }

// ValueLen implements nlattr.Attr.
func (e Exp) ValueLen() int { return len(e) }

// EmitValue implements nlattr.Attr.
func (e Exp) EmitValue(b []byte) { copy(b, e) }

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

// SecCtx is the LSM security context string of the sending socket.
type SecCtx []byte

// Kind implements nlattr.Attr.
func (SecCtx) Kind() uint16 { return AttrSecCtx }

// ValueLen implements nlattr.Attr.
func (s SecCtx) ValueLen() int { return len(s) }

// EmitValue implements nlattr.Attr.
func (s SecCtx) EmitValue(b []byte) { copy(b, s) }

// VLAN is the VLAN record.  Its contents are nested proto/tci attributes;
// the blob is preserved as delivered.
type VLAN []byte

// Kind implements nlattr.Attr.
func (VLAN) Kind() uint16 { return AttrVLAN }

// ValueLen implements nlattr.Attr.
func (v VLAN) ValueLen() int { return len(v) }

// EmitValue implements nlattr.Attr.
func (v VLAN) EmitValue(b []byte) { copy(b, v) }

// L2Hdr is the link-layer header bytes.
type L2Hdr []byte

// Kind implements nlattr.Attr.
func (L2Hdr) Kind() uint16 { return AttrL2Hdr }

// ValueLen implements nlattr.Attr.
func (h L2Hdr) ValueLen() int { return len(h) }

// EmitValue implements nlattr.Attr.
func (h L2Hdr) EmitValue(b []byte) { copy(b, h) }

// Priority is the skb priority.
type Priority uint32

// Kind implements nlattr.Attr.
func (Priority) Kind() uint16 { return AttrPriority }

// ValueLen implements nlattr.Attr.
func (Priority) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (p Priority) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(p)) }

// ParsePacketAttr converts one record of an nfqueue packet message.
func ParsePacketAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrPacketHdr:
		h, err := parsePacketHdr(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_PACKET_HDR")
		}
		return h, nil
	case AttrMark:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_MARK")
		}
		return Mark(v), nil
	case AttrTimestamp:
		t, err := parseTimestamp(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_TIMESTAMP")
		}
		return t, nil
	case AttrIfIndexInDev:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_IFINDEX_INDEV")
		}
		return IfIndexInDev(v), nil
	case AttrIfIndexOutDev:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_IFINDEX_OUTDEV")
		}
		return IfIndexOutDev(v), nil
	case AttrIfIndexPhysInDev:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_IFINDEX_PHYSINDEV")
		}
		return IfIndexPhysInDev(v), nil
	case AttrIfIndexPhysOut:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_IFINDEX_PHYSOUTDEV")
		}
		return IfIndexPhysOutDev(v), nil
	case AttrHwAddr:
		h, err := parseHwAddr(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_HWADDR")
		}
		return h, nil
	case AttrPayload:
		return Payload(append([]byte(nil), buf.Value()...)), nil
	case AttrConntrack:
		return Conntrack(append([]byte(nil), buf.Value()...)), nil
	case AttrConntrackInfo:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_CT_INFO")
		}
		return ConntrackInfo(v), nil
	case AttrCapLen:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_CAP_LEN")
		}
		return CapLen(v), nil
	case AttrSkbInfo:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_SKB_INFO")
		}
		return SkbInfo(v), nil
	case AttrExp:
		return Exp(append([]byte(nil), buf.Value()...)), nil
	case AttrUID:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_UID")
		}
		return UID(v), nil
	case AttrGID:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_GID")
		}
		return GID(v), nil
	case AttrSecCtx:
		return SecCtx(append([]byte(nil), buf.Value()...)), nil
	case AttrVLAN:
		return VLAN(append([]byte(nil), buf.Value()...)), nil
	case AttrL2Hdr:
		return L2Hdr(append([]byte(nil), buf.Value()...)), nil
	case AttrPriority:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_PRIORITY")
		}
		return Priority(v), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}
