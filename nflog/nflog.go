// Package nflog encodes and decodes the nfnetlink_log attribute dialect:
// the configuration commands that bind a logging group and the packet
// records the kernel copies to user space.
//
// Attribute layouts follow uapi/linux/netfilter/nfnetlink_log.h.
package nflog

import (
	"github.com/m-lab/nfnetlink/nlattr"
)

// SubsystemID is the nflog subsystem id (NFNL_SUBSYS_ULOG).
const SubsystemID uint8 = 4

// MessageType is the nflog operation, the low byte of the netlink message
// type.  Unrecognized values pass through unchanged.
type MessageType uint8

// Nflog operations.
const (
	MsgConfig MessageType = 1
	MsgPacket MessageType = 2
)

// Message is one nflog operation and its attribute sequence.
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

// ParseMessage parses the attribute area of an nflog message for the given
// operation byte.
func ParseMessage(op uint8, b []byte) (*Message, error) {
	t := MessageType(op)
	var attrs []nlattr.Attr
	var err error
	switch t {
	case MsgConfig:
		attrs, err = nlattr.ParseAll(b, ParseConfigAttr)
	case MsgPacket:
		attrs, err = nlattr.ParseAll(b, ParsePacketAttr)
	default:
		attrs, err = nlattr.ParseUnknown(b)
	}
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Attrs: attrs}, nil
}
