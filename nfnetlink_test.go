package nfnetlink_test

import (
	"bytes"
	"log"
	"net"
	"testing"

	"github.com/go-test/deep"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/nfnetlink"
	"github.com/m-lab/nfnetlink/conntrack"
	"github.com/m-lab/nfnetlink/nflog"
	"github.com/m-lab/nfnetlink/nfqueue"
	"github.com/m-lab/nfnetlink/nlattr"
)

// The conntrack fixtures are wireshark captures of nlmon against conntrack
// commands, netlink message header removed.

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func checkRoundTrip(t *testing.T, raw []byte, msgType uint16, want nfnetlink.Message) {
	t.Helper()
	got, err := nfnetlink.Parse(raw, msgType)
	rtx.Must(err, "Could not parse fixture")
	if diff := deep.Equal(*got, want); diff != nil {
		t.Error("Parse mismatch:", diff)
	}
	if want.Type() != msgType {
		t.Errorf("Message type 0x%04x != 0x%04x", want.Type(), msgType)
	}
	if want.BufferLen() != len(raw) {
		t.Errorf("BufferLen %d != fixture length %d", want.BufferLen(), len(raw))
	}
	buf := make([]byte, want.BufferLen())
	want.Emit(buf)
	if !bytes.Equal(buf, raw) {
		t.Errorf("Emit mismatch\n got  %x\n want %x", buf, raw)
	}
}

// conntrack -L
func TestConntrackDumpRequest(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x00}
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyUnspec},
		Inner:  &conntrack.Message{Type: conntrack.MsgGet},
	}
	checkRoundTrip(t, raw, 0x0101, want)
}

// conntrack -G -p tcp -s 10.57.97.124 -d 148.113.20.105 --sport 39600
// --dport 443
func TestConntrackGetTCPv4(t *testing.T) {
	raw := []byte{
		0x02, 0x00, 0x00, 0x00, 0x34, 0x00, 0x01, 0x80, 0x14, 0x00, 0x01, 0x80,
		0x08, 0x00, 0x01, 0x00, 0x0a, 0x39, 0x61, 0x7c, 0x08, 0x00, 0x02, 0x00,
		0x94, 0x71, 0x14, 0x69, 0x1c, 0x00, 0x02, 0x80, 0x05, 0x00, 0x01, 0x00,
		0x06, 0x00, 0x00, 0x00, 0x06, 0x00, 0x02, 0x00, 0x9a, 0xb0, 0x00, 0x00,
		0x06, 0x00, 0x03, 0x00, 0x01, 0xbb, 0x00, 0x00, 0x18, 0x00, 0x04, 0x80,
		0x14, 0x00, 0x01, 0x80, 0x06, 0x00, 0x04, 0x00, 0x0a, 0x0a, 0x00, 0x00,
		0x06, 0x00, 0x05, 0x00, 0x0a, 0x0a, 0x00, 0x00,
	}
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyIPv4},
		Inner: &conntrack.Message{
			Type: conntrack.MsgGet,
			Attrs: []nlattr.Attr{
				conntrack.TupleOrig{
					conntrack.TupleIP{
						conntrack.SrcAddr(net.ParseIP("10.57.97.124").To4()),
						conntrack.DstAddr(net.ParseIP("148.113.20.105").To4()),
					},
					conntrack.TupleProto{
						conntrack.ProtoNum(conntrack.ProtoTCP),
						conntrack.SrcPort(39600),
						conntrack.DstPort(443),
					},
				},
				conntrack.ProtoInfo{
					conntrack.ProtoInfoTCP{
						conntrack.TCPFlagsOrig{Flags: 10, Mask: 10},
						conntrack.TCPFlagsReply{Flags: 10, Mask: 10},
					},
				},
			},
		},
	}
	checkRoundTrip(t, raw, 0x0101, want)
}

// conntrack -G -p udp -s 2409:40c4:e8:6bc3:d1d8:1087:4fa2:68a3 --sport 58456
// -d 2404:6800:4009:81d::200e --dport 443
func TestConntrackGetUDPv6(t *testing.T) {
	raw := []byte{
		0x0a, 0x00, 0x00, 0x00, 0x4c, 0x00, 0x01, 0x80, 0x2c, 0x00, 0x01, 0x80,
		0x14, 0x00, 0x03, 0x00, 0x24, 0x09, 0x40, 0xc4, 0x00, 0xe8, 0x6b, 0xc3,
		0xd1, 0xd8, 0x10, 0x87, 0x4f, 0xa2, 0x68, 0xa3, 0x14, 0x00, 0x04, 0x00,
		0x24, 0x04, 0x68, 0x00, 0x40, 0x09, 0x08, 0x1d, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x20, 0x0e, 0x1c, 0x00, 0x02, 0x80, 0x05, 0x00, 0x01, 0x00,
		0x11, 0x00, 0x00, 0x00, 0x06, 0x00, 0x02, 0x00, 0xe4, 0x58, 0x00, 0x00,
		0x06, 0x00, 0x03, 0x00, 0x01, 0xbb, 0x00, 0x00,
	}
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyIPv6},
		Inner: &conntrack.Message{
			Type: conntrack.MsgGet,
			Attrs: []nlattr.Attr{
				conntrack.TupleOrig{
					conntrack.TupleIP{
						conntrack.SrcAddr(net.ParseIP("2409:40c4:e8:6bc3:d1d8:1087:4fa2:68a3")),
						conntrack.DstAddr(net.ParseIP("2404:6800:4009:81d::200e")),
					},
					conntrack.TupleProto{
						conntrack.ProtoNum(conntrack.ProtoUDP),
						conntrack.SrcPort(58456),
						conntrack.DstPort(443),
					},
				},
			},
		},
	}
	checkRoundTrip(t, raw, 0x0101, want)
}

// conntrack -D -f ipv4 -p tcp --src 10.255.160.124 --sport 39640
// --dst 140.82.113.26 --dport 443
func TestConntrackDeleteTCPv4(t *testing.T) {
	raw := []byte{
		0x02, 0x00, 0x00, 0x00, 0x34, 0x00, 0x01, 0x80, 0x14, 0x00, 0x01, 0x80,
		0x08, 0x00, 0x01, 0x00, 0x0a, 0xff, 0xa0, 0x7c, 0x08, 0x00, 0x02, 0x00,
		0x8c, 0x52, 0x71, 0x1a, 0x1c, 0x00, 0x02, 0x80, 0x05, 0x00, 0x01, 0x00,
		0x06, 0x00, 0x00, 0x00, 0x06, 0x00, 0x02, 0x00, 0x9a, 0xd8, 0x00, 0x00,
		0x06, 0x00, 0x03, 0x00, 0x01, 0xbb, 0x00, 0x00, 0x34, 0x00, 0x02, 0x80,
		0x14, 0x00, 0x01, 0x80, 0x08, 0x00, 0x01, 0x00, 0x8c, 0x52, 0x71, 0x1a,
		0x08, 0x00, 0x02, 0x00, 0x0a, 0xff, 0xa0, 0x7c, 0x1c, 0x00, 0x02, 0x80,
		0x05, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00, 0x00, 0x06, 0x00, 0x02, 0x00,
		0x01, 0xbb, 0x00, 0x00, 0x06, 0x00, 0x03, 0x00, 0x9a, 0xd8, 0x00, 0x00,
		0x08, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x8e, 0x08, 0x00, 0x07, 0x00,
		0x00, 0x06, 0x97, 0x77, 0x08, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x30, 0x00, 0x04, 0x80, 0x2c, 0x00, 0x01, 0x80, 0x05, 0x00, 0x01, 0x00,
		0x03, 0x00, 0x00, 0x00, 0x06, 0x00, 0x04, 0x00, 0x23, 0x00, 0x00, 0x00,
		0x06, 0x00, 0x05, 0x00, 0x23, 0x00, 0x00, 0x00, 0x05, 0x00, 0x02, 0x00,
		0x0a, 0x00, 0x00, 0x00, 0x05, 0x00, 0x03, 0x00, 0x0a, 0x00, 0x00, 0x00,
	}
	status := conntrack.StatusSeenReply | conntrack.StatusAssured |
		conntrack.StatusConfirmed | conntrack.StatusSrcNatDone |
		conntrack.StatusDstNatDone
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyIPv4},
		Inner: &conntrack.Message{
			Type: conntrack.MsgDelete,
			Attrs: []nlattr.Attr{
				conntrack.TupleOrig{
					conntrack.TupleIP{
						conntrack.SrcAddr(net.ParseIP("10.255.160.124").To4()),
						conntrack.DstAddr(net.ParseIP("140.82.113.26").To4()),
					},
					conntrack.TupleProto{
						conntrack.ProtoNum(conntrack.ProtoTCP),
						conntrack.SrcPort(39640),
						conntrack.DstPort(443),
					},
				},
				conntrack.TupleReply{
					conntrack.TupleIP{
						conntrack.SrcAddr(net.ParseIP("140.82.113.26").To4()),
						conntrack.DstAddr(net.ParseIP("10.255.160.124").To4()),
					},
					conntrack.TupleProto{
						conntrack.ProtoNum(conntrack.ProtoTCP),
						conntrack.SrcPort(443),
						conntrack.DstPort(39640),
					},
				},
				status,
				conntrack.Timeout(431991),
				conntrack.Mark(0),
				conntrack.ProtoInfo{
					conntrack.ProtoInfoTCP{
						conntrack.TCPState(uint8(conntrack.TCP_CONNTRACK_ESTABLISHED)),
						conntrack.TCPFlagsOrig{Flags: 35, Mask: 0},
						conntrack.TCPFlagsReply{Flags: 35, Mask: 0},
						conntrack.TCPWScaleOrig(10),
						conntrack.TCPWScaleReply(10),
					},
				},
			},
		},
	}
	checkRoundTrip(t, raw, 0x0102, want)
}

// conntrack -I -p tcp --src 192.168.1.100 --dst 10.0.0.1 --sport 12345
// --dport 80 --state SYN_SENT --timeout 60
func TestConntrackNew(t *testing.T) {
	raw := []byte{
		0x02, 0x00, 0x00, 0x00, 0x34, 0x00, 0x01, 0x80, 0x14, 0x00, 0x01, 0x80,
		0x08, 0x00, 0x01, 0x00, 0xc0, 0xa8, 0x01, 0x64, 0x08, 0x00, 0x02, 0x00,
		0x0a, 0x00, 0x00, 0x01, 0x1c, 0x00, 0x02, 0x80, 0x05, 0x00, 0x01, 0x00,
		0x06, 0x00, 0x00, 0x00, 0x06, 0x00, 0x02, 0x00, 0x30, 0x39, 0x00, 0x00,
		0x06, 0x00, 0x03, 0x00, 0x00, 0x50, 0x00, 0x00, 0x34, 0x00, 0x02, 0x80,
		0x14, 0x00, 0x01, 0x80, 0x08, 0x00, 0x01, 0x00, 0x0a, 0x00, 0x00, 0x01,
		0x08, 0x00, 0x02, 0x00, 0xc0, 0xa8, 0x01, 0x64, 0x1c, 0x00, 0x02, 0x80,
		0x05, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00, 0x00, 0x06, 0x00, 0x02, 0x00,
		0x00, 0x50, 0x00, 0x00, 0x06, 0x00, 0x03, 0x00, 0x30, 0x39, 0x00, 0x00,
		0x08, 0x00, 0x07, 0x00, 0x00, 0x00, 0x00, 0x3c, 0x20, 0x00, 0x04, 0x80,
		0x1c, 0x00, 0x01, 0x80, 0x05, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00,
		0x06, 0x00, 0x04, 0x00, 0x0a, 0x0a, 0x00, 0x00, 0x06, 0x00, 0x05, 0x00,
		0x0a, 0x0a, 0x00, 0x00,
	}
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyIPv4},
		Inner: &conntrack.Message{
			Type: conntrack.MsgNew,
			Attrs: []nlattr.Attr{
				conntrack.TupleOrig{
					conntrack.TupleIP{
						conntrack.SrcAddr(net.ParseIP("192.168.1.100").To4()),
						conntrack.DstAddr(net.ParseIP("10.0.0.1").To4()),
					},
					conntrack.TupleProto{
						conntrack.ProtoNum(conntrack.ProtoTCP),
						conntrack.SrcPort(12345),
						conntrack.DstPort(80),
					},
				},
				conntrack.TupleReply{
					conntrack.TupleIP{
						conntrack.SrcAddr(net.ParseIP("10.0.0.1").To4()),
						conntrack.DstAddr(net.ParseIP("192.168.1.100").To4()),
					},
					conntrack.TupleProto{
						conntrack.ProtoNum(conntrack.ProtoTCP),
						conntrack.SrcPort(80),
						conntrack.DstPort(12345),
					},
				},
				conntrack.Timeout(60),
				conntrack.ProtoInfo{
					conntrack.ProtoInfoTCP{
						conntrack.TCPState(uint8(conntrack.TCP_CONNTRACK_SYN_SENT)),
						conntrack.TCPFlagsOrig{Flags: 10, Mask: 10},
						conntrack.TCPFlagsReply{Flags: 10, Mask: 10},
					},
				},
			},
		},
	}
	checkRoundTrip(t, raw, 0x0100, want)
}

func TestNfqueueVerdict(t *testing.T) {
	raw := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x0c, 0x00, 0x02, 0x00,
		0x00, 0x00, 0x00, 0x01, // NF_ACCEPT
		0x01, 0x02, 0x03, 0x04, // packet id
	}
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyInet},
		Inner: &nfqueue.Message{
			Type: nfqueue.MsgVerdict,
			Attrs: []nlattr.Attr{
				nfqueue.VerdictHdr{Verdict: nfqueue.VerdictAccept, PacketID: 0x01020304},
			},
		},
	}
	checkRoundTrip(t, raw, 0x0302, want)
}

func TestNflogConfigBind(t *testing.T) {
	raw := []byte{
		0x02, 0x00, 0x00, 0x01, // IPv4, group 1
		0x05, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, // bind
		0x06, 0x00, 0x06, 0x00, 0x00, 0x02, 0x00, 0x00, // SEQ_GLOBAL
		0x0a, 0x00, 0x02, 0x00, 0x00, 0x00, 0xff, 0xff, 0x02, 0x00, 0x00, 0x00, // packet, max range
		0x08, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x0a, // 100ms
	}
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyIPv4, ResID: 1},
		Inner: &nflog.Message{
			Type: nflog.MsgConfig,
			Attrs: []nlattr.Attr{
				nflog.CmdBind,
				nflog.FlagSeqGlobal,
				nflog.ModePacketMax,
				nflog.Timeout(10),
			},
		},
	}
	checkRoundTrip(t, raw, 0x0401, want)
}

func TestUnknownSubsystemPreserved(t *testing.T) {
	raw := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x05, 0x00, 0x07, 0x00, 0xaa, 0x00, 0x00, 0x00,
		0x08, 0x00, 0x09, 0x80, 0x01, 0x02, 0x03, 0x04,
	}
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyIPv4},
		Inner: &nfnetlink.OtherMessage{
			Subsys: 0x7f,
			Op:     0x05,
			Attrs: []nlattr.Attr{
				nlattr.Unknown{Typ: 0x0007, Data: []byte{0xaa}},
				nlattr.Unknown{Typ: 0x8009, Data: []byte{0x01, 0x02, 0x03, 0x04}},
			},
		},
	}
	checkRoundTrip(t, raw, 0x7f05, want)
}

func TestUnknownConntrackOpPreserved(t *testing.T) {
	raw := []byte{
		0x00, 0x00, 0x00, 0x00,
		0x08, 0x00, 0x63, 0x00, 0xde, 0xad, 0xbe, 0xef,
	}
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyUnspec},
		Inner: &conntrack.Message{
			Type: conntrack.MessageType(0x42),
			Attrs: []nlattr.Attr{
				nlattr.Unknown{Typ: 0x0063, Data: []byte{0xde, 0xad, 0xbe, 0xef}},
			},
		},
	}
	checkRoundTrip(t, raw, 0x0142, want)
}

func TestUnknownFlowAttributePreserved(t *testing.T) {
	// A flow message whose single attribute kind (99) no dialect knows.
	raw := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x07, 0x00, 0x63, 0x00, 0x01, 0x02, 0x03, 0x00,
	}
	want := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyIPv4},
		Inner: &conntrack.Message{
			Type: conntrack.MsgGet,
			Attrs: []nlattr.Attr{
				nlattr.Unknown{Typ: 0x0063, Data: []byte{0x01, 0x02, 0x03}},
			},
		},
	}
	checkRoundTrip(t, raw, 0x0101, want)
}

func TestParseTruncatedHeader(t *testing.T) {
	_, err := nfnetlink.Parse([]byte{0x02, 0x00}, 0x0101)
	if err == nil {
		t.Fatal("Expected an error for a short netfilter header")
	}
}

func TestEmitDeterministic(t *testing.T) {
	msg := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyInet},
		Inner: &nfqueue.Message{
			Type: nfqueue.MsgConfig,
			Attrs: []nlattr.Attr{
				nfqueue.Cmd{Cmd: nfqueue.CmdBind, PF: 2},
				nfqueue.Params{CopyRange: 0xffff, CopyMode: nfqueue.CopyPacket},
			},
		},
	}
	a := make([]byte, msg.BufferLen())
	for i := range a {
		a[i] = 0xff
	}
	msg.Emit(a)
	b := make([]byte, msg.BufferLen())
	msg.Emit(b)
	if !bytes.Equal(a, b) {
		t.Errorf("Two emissions differ:\n %x\n %x", a, b)
	}
}
