// Package nfnetlink encodes and decodes the netfilter control messages
// carried over netlink: conntrack table operations, nflog packet logging,
// and nfqueue packet verdicts.  The package is a pure codec.  It exchanges
// framed byte slices with a generic netlink transport; sockets, request
// correlation, and multipart dump handling belong to that transport.
package nfnetlink

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/conntrack"
	"github.com/m-lab/nfnetlink/nflog"
	"github.com/m-lab/nfnetlink/nfqueue"
	"github.com/m-lab/nfnetlink/nlattr"
)

// ProtoFamily is the protocol family byte of the netfilter header, the
// NFPROTO_* enumeration from uapi/linux/netfilter.h.  Values outside the
// named set pass through unchanged.
type ProtoFamily uint8

// Protocol families.
const (
	FamilyUnspec ProtoFamily = 0
	FamilyInet   ProtoFamily = 1
	FamilyIPv4   ProtoFamily = 2
	FamilyARP    ProtoFamily = 3
	FamilyNetDev ProtoFamily = 5
	FamilyBridge ProtoFamily = 7
	FamilyIPv6   ProtoFamily = 10
	FamilyDECNet ProtoFamily = 12
)

var familyName = map[ProtoFamily]string{
	FamilyUnspec: "UNSPEC",
	FamilyInet:   "INET",
	FamilyIPv4:   "IPv4",
	FamilyARP:    "ARP",
	FamilyNetDev: "NETDEV",
	FamilyBridge: "BRIDGE",
	FamilyIPv6:   "IPv6",
	FamilyDECNet: "DECNET",
}

func (f ProtoFamily) String() string {
	s, ok := familyName[f]
	if !ok {
		return fmt.Sprintf("FAMILY_%d", uint8(f))
	}
	return s
}

// Subsystem ids, the high byte of a netfilter netlink message type, from
// uapi/linux/netfilter/nfnetlink.h.
const (
	SubsysNone             uint8 = 0
	SubsysConntrack        uint8 = 1
	SubsysConntrackExp     uint8 = 2
	SubsysQueue            uint8 = 3
	SubsysULog             uint8 = 4
	SubsysOSF              uint8 = 5
	SubsysIPSet            uint8 = 6
	SubsysAcct             uint8 = 7
	SubsysConntrackTimeout uint8 = 8
	SubsysCTHelper         uint8 = 9
	SubsysNFTables         uint8 = 10
	SubsysNFTCompat        uint8 = 11
)

// HeaderLen is the size of the netfilter header.
const HeaderLen = 4

// Header is the 4-byte record prefixing every netfilter payload, struct
// nfgenmsg in the kernel.  ResID is held in host order; on the wire it is
// big-endian.  It typically carries a resource number such as an nflog
// group or an nfqueue queue.
type Header struct {
	Family  ProtoFamily
	Version uint8
	ResID   uint16
}

// ParseHeader reads the header from the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, errors.Wrapf(nlattr.ErrTruncated, "netfilter header: %d bytes", len(b))
	}
	return Header{
		Family:  ProtoFamily(b[0]),
		Version: b[1],
		ResID:   binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

// Emit writes the header into the first HeaderLen bytes of b.
func (h Header) Emit(b []byte) {
	b[0] = uint8(h.Family)
	b[1] = h.Version
	binary.BigEndian.PutUint16(b[2:4], h.ResID)
}

// InnerMessage is a subsystem payload: the dialect-specific attribute
// sequence that follows the netfilter header.
type InnerMessage interface {
	Subsystem() uint8
	MessageType() uint8
	BufferLen() int
	Emit(b []byte)
}

// Message pairs the netfilter header with a subsystem payload.  A parsed
// Message owns its attribute tree; nothing aliases the source buffer.
type Message struct {
	Header Header
	Inner  InnerMessage
}

// Type reports the 16-bit netlink message type: subsystem high byte,
// operation low byte.
func (m Message) Type() uint16 {
	return uint16(m.Inner.Subsystem())<<8 | uint16(m.Inner.MessageType())
}

// BufferLen reports the number of bytes Emit writes.
func (m Message) BufferLen() int {
	return HeaderLen + m.Inner.BufferLen()
}

// Emit writes the header and the attribute sequence, in declared order,
// into b.  b must hold at least BufferLen bytes.
func (m Message) Emit(b []byte) {
	m.Header.Emit(b)
	m.Inner.Emit(b[HeaderLen:])
}

// Parse decodes a netfilter payload delivered by the netlink transport.
// msgType is the type field of the enclosing netlink header; its high byte
// selects the dialect and its low byte the operation.  Messages for
// subsystems without a dialect come back as OtherMessage with every
// attribute preserved opaquely.
func Parse(b []byte, msgType uint16) (*Message, error) {
	hdr, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	subsys := uint8(msgType >> 8)
	op := uint8(msgType)
	attrData := b[HeaderLen:]

	var inner InnerMessage
	switch subsys {
	case SubsysConntrack:
		cm, err := conntrack.ParseMessage(op, attrData)
		if err != nil {
			return nil, errors.Wrap(err, "conntrack payload")
		}
		inner = cm
	case SubsysQueue:
		qm, err := nfqueue.ParseMessage(op, attrData)
		if err != nil {
			return nil, errors.Wrap(err, "nfqueue payload")
		}
		inner = qm
	case SubsysULog:
		lm, err := nflog.ParseMessage(op, attrData)
		if err != nil {
			return nil, errors.Wrap(err, "nflog payload")
		}
		inner = lm
	default:
		attrs, err := nlattr.ParseUnknown(attrData)
		if err != nil {
			return nil, errors.Wrapf(err, "subsystem %d payload", subsys)
		}
		inner = &OtherMessage{Subsys: subsys, Op: op, Attrs: attrs}
	}
	return &Message{Header: hdr, Inner: inner}, nil
}

// OtherMessage carries a message for a subsystem this package has no
// dialect for.  Every attribute is retained as an opaque record, so the
// message re-emits byte-for-byte.
type OtherMessage struct {
	Subsys uint8
	Op     uint8
	Attrs  []nlattr.Attr
}

// Subsystem implements InnerMessage.
func (m *OtherMessage) Subsystem() uint8 { return m.Subsys }

// MessageType implements InnerMessage.
func (m *OtherMessage) MessageType() uint8 { return m.Op }

// BufferLen implements InnerMessage.
func (m *OtherMessage) BufferLen() int { return nlattr.SizeAll(m.Attrs) }

// Emit implements InnerMessage.
func (m *OtherMessage) Emit(b []byte) { nlattr.EmitAll(b, m.Attrs) }
