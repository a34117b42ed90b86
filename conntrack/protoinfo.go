package conntrack

import (
	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/nlattr"
)

// Protocol info kinds (CTA_PROTOINFO_*).  DCCP and SCTP sub-records are
// preserved opaquely.
const (
	AttrProtoInfoTCP  uint16 = 1
	AttrProtoInfoDCCP uint16 = 2
	AttrProtoInfoSCTP uint16 = 3
)

// TCP protocol info kinds (CTA_PROTOINFO_TCP_*).
const (
	AttrTCPState      uint16 = 1
	AttrTCPWScaleOrig uint16 = 2
	AttrTCPWScaleRepl uint16 = 3
	AttrTCPFlagsOrig  uint16 = 4
	AttrTCPFlagsReply uint16 = 5
)

// ProtoInfoTCP is the TCP connection-state sub-record inside a ProtoInfo.
type ProtoInfoTCP []nlattr.Attr

// Kind implements nlattr.Attr.
func (p ProtoInfoTCP) Kind() uint16 { return AttrProtoInfoTCP | nlattr.Nested }

// ValueLen implements nlattr.Attr.
func (p ProtoInfoTCP) ValueLen() int { return nlattr.SizeAll(p) }

// EmitValue implements nlattr.Attr.
func (p ProtoInfoTCP) EmitValue(b []byte) { nlattr.EmitAll(b, p) }

// ParseProtoInfoAttr converts one record inside a ProtoInfo.  The TCP
// sub-record is parsed into its typed tree; everything else is kept opaque.
func ParseProtoInfoAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrProtoInfoTCP:
		attrs, err := nlattr.ParseAll(buf.Value(), ParseProtoInfoTCPAttr)
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTOINFO_TCP")
		}
		return ProtoInfoTCP(attrs), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}

// TCPState is the TCP conntrack state byte.
type TCPState uint8

// Kind implements nlattr.Attr.
func (TCPState) Kind() uint16 { return AttrTCPState }

// ValueLen implements nlattr.Attr.
func (TCPState) ValueLen() int { return 1 }

// EmitValue implements nlattr.Attr.
func (s TCPState) EmitValue(b []byte) { b[0] = uint8(s) }

// TCPWScaleOrig is the window scale advertised in the original direction.
type TCPWScaleOrig uint8

// Kind implements nlattr.Attr.
func (TCPWScaleOrig) Kind() uint16 { return AttrTCPWScaleOrig }

// ValueLen implements nlattr.Attr.
func (TCPWScaleOrig) ValueLen() int { return 1 }

// EmitValue implements nlattr.Attr.
func (w TCPWScaleOrig) EmitValue(b []byte) { b[0] = uint8(w) }

// TCPWScaleReply is the window scale advertised in the reply direction.
type TCPWScaleReply uint8

// Kind implements nlattr.Attr.
func (TCPWScaleReply) Kind() uint16 { return AttrTCPWScaleRepl }

// ValueLen implements nlattr.Attr.
func (TCPWScaleReply) ValueLen() int { return 1 }

// EmitValue implements nlattr.Attr.
func (w TCPWScaleReply) EmitValue(b []byte) { b[0] = uint8(w) }

// TCPFlags is a flag/mask byte pair from the TCP protocol info record.  The
// kernel stores the pair host-endian; it is two single bytes on every
// supported architecture, so no byte swap applies.
type TCPFlags struct {
	Flags uint8
	Mask  uint8
}

// TCPFlagsOrig is the flag/mask pair seen in the original direction.
type TCPFlagsOrig TCPFlags

// Kind implements nlattr.Attr.
func (TCPFlagsOrig) Kind() uint16 { return AttrTCPFlagsOrig }

// ValueLen implements nlattr.Attr.
func (TCPFlagsOrig) ValueLen() int { return 2 }

// EmitValue implements nlattr.Attr.
func (f TCPFlagsOrig) EmitValue(b []byte) {
	b[0] = f.Flags
	b[1] = f.Mask
}

// TCPFlagsReply is the flag/mask pair seen in the reply direction.
type TCPFlagsReply TCPFlags

// Kind implements nlattr.Attr.
func (TCPFlagsReply) Kind() uint16 { return AttrTCPFlagsReply }

// ValueLen implements nlattr.Attr.
func (TCPFlagsReply) ValueLen() int { return 2 }

// EmitValue implements nlattr.Attr.
func (f TCPFlagsReply) EmitValue(b []byte) {
	b[0] = f.Flags
	b[1] = f.Mask
}

func parseTCPFlags(b []byte) (TCPFlags, error) {
	if len(b) < 2 {
		return TCPFlags{}, errors.Wrapf(nlattr.ErrTruncated, "TCP flag pair: %d bytes", len(b))
	}
	if len(b) > 2 {
		return TCPFlags{}, errors.Wrapf(nlattr.ErrMalformed, "TCP flag pair: %d bytes", len(b))
	}
	return TCPFlags{Flags: b[0], Mask: b[1]}, nil
}

// ParseProtoInfoTCPAttr converts one record inside the TCP protocol info.
func ParseProtoInfoTCPAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrTCPState:
		v, err := nlattr.ParseU8(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTOINFO_TCP_STATE")
		}
		return TCPState(v), nil
	case AttrTCPWScaleOrig:
		v, err := nlattr.ParseU8(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTOINFO_TCP_WSCALE_ORIGINAL")
		}
		return TCPWScaleOrig(v), nil
	case AttrTCPWScaleRepl:
		v, err := nlattr.ParseU8(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTOINFO_TCP_WSCALE_REPLY")
		}
		return TCPWScaleReply(v), nil
	case AttrTCPFlagsOrig:
		f, err := parseTCPFlags(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTOINFO_TCP_FLAGS_ORIGINAL")
		}
		return TCPFlagsOrig(f), nil
	case AttrTCPFlagsReply:
		f, err := parseTCPFlags(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTOINFO_TCP_FLAGS_REPLY")
		}
		return TCPFlagsReply(f), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}
