// Package nfqueue encodes and decodes the nfnetlink_queue attribute
// dialect: the configuration commands that bind a queue, the packet records
// the kernel parks for a decision, and the verdicts user space returns.
//
// Attribute layouts follow uapi/linux/netfilter/nfnetlink_queue.h.
package nfqueue

import (
	"github.com/m-lab/nfnetlink/nlattr"
)

// SubsystemID is the nfqueue subsystem id (NFNL_SUBSYS_QUEUE).
const SubsystemID uint8 = 3

// MessageType is the nfqueue operation, the low byte of the netlink message
// type.  Unrecognized values pass through unchanged.
type MessageType uint8

// Nfqueue operations.
const (
	MsgPacket       MessageType = 1
	MsgVerdict      MessageType = 2
	MsgConfig       MessageType = 3
	MsgVerdictBatch MessageType = 4
)

// Message is one nfqueue operation and its attribute sequence.
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

// ParseMessage parses the attribute area of an nfqueue message for the
// given operation byte.  A batch verdict carries the same attributes as a
// single verdict.
func ParseMessage(op uint8, b []byte) (*Message, error) {
	t := MessageType(op)
	var attrs []nlattr.Attr
	var err error
	switch t {
	case MsgConfig:
		attrs, err = nlattr.ParseAll(b, ParseConfigAttr)
	case MsgPacket:
		attrs, err = nlattr.ParseAll(b, ParsePacketAttr)
	case MsgVerdict, MsgVerdictBatch:
		attrs, err = nlattr.ParseAll(b, ParseVerdictAttr)
	default:
		attrs, err = nlattr.ParseUnknown(b)
	}
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Attrs: attrs}, nil
}
