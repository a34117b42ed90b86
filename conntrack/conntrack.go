// Package conntrack encodes and decodes the ctnetlink attribute dialect:
// the messages that list, insert, and delete entries in the kernel's
// connection-tracking table, and the statistics dumps.
//
// Attribute layouts follow uapi/linux/netfilter/nfnetlink_conntrack.h.
package conntrack

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/nlattr"
)

// SubsystemID is the conntrack subsystem id (NFNL_SUBSYS_CTNETLINK).
const SubsystemID uint8 = 1

// MessageType is the conntrack operation, the low byte of the netlink
// message type.  Unrecognized values pass through unchanged.
type MessageType uint8

// Conntrack operations.
const (
	MsgNew         MessageType = 0
	MsgGet         MessageType = 1
	MsgDelete      MessageType = 2
	MsgGetCtrZero  MessageType = 3
	MsgGetStats    MessageType = 4
	MsgGetStatsCPU MessageType = 5
)

// Flow attribute kinds (CTA_*).
const (
	AttrTupleOrig  uint16 = 1
	AttrTupleReply uint16 = 2
	AttrStatus     uint16 = 3
	AttrProtoInfo  uint16 = 4
	AttrTimeout    uint16 = 7
	AttrMark       uint16 = 8
	AttrUse        uint16 = 11
	AttrID         uint16 = 12
)

// Message is one conntrack operation and its attribute sequence.  Flow
// operations (New, Get, Delete, GetCtrZero) carry flow attributes; the
// statistics dumps carry counter attributes; unknown operations keep every
// record opaque.  A Get with no attributes is a bare dump request.
type Message struct {
	Type  MessageType
	Attrs []nlattr.Attr
}

// Subsystem implements the dispatcher's inner-message contract.
func (m *Message) Subsystem() uint8 { return SubsystemID }

// MessageType reports the operation byte.
func (m *Message) MessageType() uint8 { return uint8(m.Type) }

// BufferLen reports the number of bytes Emit writes.
func (m *Message) BufferLen() int { return nlattr.SizeAll(m.Attrs) }

// Emit writes the attribute sequence, in declared order, into b.
func (m *Message) Emit(b []byte) { nlattr.EmitAll(b, m.Attrs) }

// ParseMessage parses the attribute area of a conntrack message for the
// given operation byte.
func ParseMessage(op uint8, b []byte) (*Message, error) {
	t := MessageType(op)
	var attrs []nlattr.Attr
	var err error
	switch t {
	case MsgNew, MsgGet, MsgDelete, MsgGetCtrZero:
		attrs, err = nlattr.ParseAll(b, ParseFlowAttr)
	case MsgGetStatsCPU:
		attrs, err = nlattr.ParseAll(b, ParseStatCPUAttr)
	case MsgGetStats:
		attrs, err = nlattr.ParseAll(b, ParseStatGlobalAttr)
	default:
		attrs, err = nlattr.ParseUnknown(b)
	}
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Attrs: attrs}, nil
}

// TupleOrig is the flow's original-direction tuple: an IP tuple and a
// protocol tuple.
type TupleOrig []nlattr.Attr

// Kind implements nlattr.Attr.
func (t TupleOrig) Kind() uint16 { return AttrTupleOrig | nlattr.Nested }

// ValueLen implements nlattr.Attr.
func (t TupleOrig) ValueLen() int { return nlattr.SizeAll(t) }

// EmitValue implements nlattr.Attr.
func (t TupleOrig) EmitValue(b []byte) { nlattr.EmitAll(b, t) }

// TupleReply is the flow's reply-direction tuple.
type TupleReply []nlattr.Attr

// Kind implements nlattr.Attr.
func (t TupleReply) Kind() uint16 { return AttrTupleReply | nlattr.Nested }

// ValueLen implements nlattr.Attr.
func (t TupleReply) ValueLen() int { return nlattr.SizeAll(t) }

// EmitValue implements nlattr.Attr.
func (t TupleReply) EmitValue(b []byte) { nlattr.EmitAll(b, t) }

// ProtoInfo carries per-protocol connection state sub-records.
type ProtoInfo []nlattr.Attr

// Kind implements nlattr.Attr.
func (p ProtoInfo) Kind() uint16 { return AttrProtoInfo | nlattr.Nested }

// ValueLen implements nlattr.Attr.
func (p ProtoInfo) ValueLen() int { return nlattr.SizeAll(p) }

// EmitValue implements nlattr.Attr.
func (p ProtoInfo) EmitValue(b []byte) { nlattr.EmitAll(b, p) }

// Timeout is the flow timeout in seconds.
type Timeout uint32

// Kind implements nlattr.Attr.
func (Timeout) Kind() uint16 { return AttrTimeout }

// ValueLen implements nlattr.Attr.
func (Timeout) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (t Timeout) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(t)) }

// Mark is the flow's packet mark.
type Mark uint32

// Kind implements nlattr.Attr.
func (Mark) Kind() uint16 { return AttrMark }

// ValueLen implements nlattr.Attr.
func (Mark) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (m Mark) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(m)) }

// Use is the flow's reference count.
type Use uint32

// Kind implements nlattr.Attr.
func (Use) Kind() uint16 { return AttrUse }

// ValueLen implements nlattr.Attr.
func (Use) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (u Use) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(u)) }

// ID is the kernel's connection id.
type ID uint32

// Kind implements nlattr.Attr.
func (ID) Kind() uint16 { return AttrID }

// ValueLen implements nlattr.Attr.
func (ID) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (id ID) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(id)) }

// ParseFlowAttr converts one record of a flow message into its typed
// attribute.  Unknown kinds become opaque records.
func ParseFlowAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrTupleOrig:
		attrs, err := nlattr.ParseAll(buf.Value(), ParseTupleAttr)
		if err != nil {
			return nil, errors.Wrap(err, "CTA_TUPLE_ORIG")
		}
		return TupleOrig(attrs), nil
	case AttrTupleReply:
		attrs, err := nlattr.ParseAll(buf.Value(), ParseTupleAttr)
		if err != nil {
			return nil, errors.Wrap(err, "CTA_TUPLE_REPLY")
		}
		return TupleReply(attrs), nil
	case AttrStatus:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_STATUS")
		}
		return Status(v), nil
	case AttrProtoInfo:
		attrs, err := nlattr.ParseAll(buf.Value(), ParseProtoInfoAttr)
		if err != nil {
			return nil, errors.Wrap(err, "CTA_PROTOINFO")
		}
		return ProtoInfo(attrs), nil
	case AttrTimeout:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_TIMEOUT")
		}
		return Timeout(v), nil
	case AttrMark:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_MARK")
		}
		return Mark(v), nil
	case AttrUse:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_USE")
		}
		return Use(v), nil
	case AttrID:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "CTA_ID")
		}
		return ID(v), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}
