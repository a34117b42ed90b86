package conntrack

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/nlattr"
)

// Tuple member kinds (CTA_TUPLE_*).
const (
	AttrTupleIP    uint16 = 1
	AttrTupleProto uint16 = 2
)

// IP tuple kinds (CTA_IP_*).
const (
	AttrIPv4Src uint16 = 1
	AttrIPv4Dst uint16 = 2
	AttrIPv6Src uint16 = 3
	AttrIPv6Dst uint16 = 4
)

// Proto tuple kinds (CTA_PROTO_*).
const (
	AttrProtoNum uint16 = 1
	AttrSrcPort  uint16 = 2
	AttrDstPort  uint16 = 3
)

// IP protocol numbers used in proto tuples.
const (
	ProtoICMP    uint8 = 1
	ProtoIGMP    uint8 = 2
	ProtoTCP     uint8 = 6
	ProtoUDP     uint8 = 17
	ProtoDCCP    uint8 = 33
	ProtoGRE     uint8 = 47
	ProtoICMPv6  uint8 = 58
	ProtoSCTP    uint8 = 132
	ProtoUDPLite uint8 = 136
)

// TupleIP is the address half of a flow tuple: a nested record carrying the
// source and destination addresses.
type TupleIP []nlattr.Attr

// Kind implements nlattr.Attr.
func (t TupleIP) Kind() uint16 { return AttrTupleIP | nlattr.Nested }

// ValueLen implements nlattr.Attr.
func (t TupleIP) ValueLen() int { return nlattr.SizeAll(t) }

// EmitValue implements nlattr.Attr.
func (t TupleIP) EmitValue(b []byte) { nlattr.EmitAll(b, t) }

// TupleProto is the protocol half of a flow tuple: protocol number and
// ports.
type TupleProto []nlattr.Attr

// Kind implements nlattr.Attr.
func (t TupleProto) Kind() uint16 { return AttrTupleProto | nlattr.Nested }

// ValueLen implements nlattr.Attr.
func (t TupleProto) ValueLen() int { return nlattr.SizeAll(t) }

// EmitValue implements nlattr.Attr.
func (t TupleProto) EmitValue(b []byte) { nlattr.EmitAll(b, t) }

// ParseTupleAttr converts one record inside a tuple.
func ParseTupleAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrTupleIP:
		attrs, err := nlattr.ParseAll(buf.Value(), ParseIPAttr)
		if err != nil {
			return nil, errors.Wrap(err, "CTA_TUPLE_IP")
		}
		return TupleIP(attrs), nil
	case AttrTupleProto:
		attrs, err := nlattr.ParseAll(buf.Value(), ParseProtoAttr)
		if err != nil {
			return nil, errors.Wrap(err, "CTA_TUPLE_PROTO")
		}
		return TupleProto(attrs), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}

// SrcAddr is a flow source address.  The emitted kind and width depend on
// the address family; on parse the family is inferred from the value length,
// not the kind.
type SrcAddr net.IP

// Kind implements nlattr.Attr.
func (a SrcAddr) Kind() uint16 {
	if net.IP(a).To4() != nil {
		return AttrIPv4Src
	}
	return AttrIPv6Src
}

// ValueLen implements nlattr.Attr.
func (a SrcAddr) ValueLen() int { return nlattr.IPLen(net.IP(a)) }

// EmitValue implements nlattr.Attr.
func (a SrcAddr) EmitValue(b []byte) { nlattr.EmitIP(b, net.IP(a)) }

// DstAddr is a flow destination address.
type DstAddr net.IP

// Kind implements nlattr.Attr.
func (a DstAddr) Kind() uint16 {
	if net.IP(a).To4() != nil {
		return AttrIPv4Dst
	}
	return AttrIPv6Dst
}

// ValueLen implements nlattr.Attr.
func (a DstAddr) ValueLen() int { return nlattr.IPLen(net.IP(a)) }

// EmitValue implements nlattr.Attr.
func (a DstAddr) EmitValue(b []byte) { nlattr.EmitIP(b, net.IP(a)) }

// ParseIPAttr converts one record inside an IP tuple.
func ParseIPAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrIPv4Src, AttrIPv6Src:
		ip, err := nlattr.ParseIP(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "tuple source address")
		}
		return SrcAddr(ip), nil
	case AttrIPv4Dst, AttrIPv6Dst:
		ip, err := nlattr.ParseIP(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "tuple destination address")
		}
		return DstAddr(ip), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}

// ProtoNum is the tuple's IP protocol number.
type ProtoNum uint8

// Kind implements nlattr.Attr.
func (ProtoNum) Kind() uint16 { return AttrProtoNum }

// ValueLen implements nlattr.Attr.
func (ProtoNum) ValueLen() int { return 1 }

// EmitValue implements nlattr.Attr.
func (p ProtoNum) EmitValue(b []byte) { b[0] = uint8(p) }

// SrcPort is the tuple's source port.
type SrcPort uint16

// Kind implements nlattr.Attr.
func (SrcPort) Kind() uint16 { return AttrSrcPort }

// ValueLen implements nlattr.Attr.
func (SrcPort) ValueLen() int { return 2 }

// EmitValue implements nlattr.Attr.
func (p SrcPort) EmitValue(b []byte) { binary.BigEndian.PutUint16(b, uint16(p)) }

// DstPort is the tuple's destination port.
type DstPort uint16

// Kind implements nlattr.Attr.
func (DstPort) Kind() uint16 { return AttrDstPort }

// ValueLen implements nlattr.Attr.
func (DstPort) ValueLen() int { return 2 }

// EmitValue implements nlattr.Attr.
func (p DstPort) EmitValue(b []byte) { binary.BigEndian.PutUint16(b, uint16(p)) }

// ParseProtoAttr converts one record inside a proto tuple.
func ParseProtoAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrProtoNum:
		v, err := nlattr.ParseU8(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTO_NUM")
		}
		return ProtoNum(v), nil
	case AttrSrcPort:
		v, err := nlattr.ParseU16BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTO_SRC_PORT")
		}
		return SrcPort(v), nil
	case AttrDstPort:
		v, err := nlattr.ParseU16BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTO_DST_PORT")
		}
		return DstPort(v), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}
