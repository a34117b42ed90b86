package conntrack

import "fmt"

// TCPConntrackState enumerates the TCP tracking states carried in the
// ProtoInfoTCP state byte, from uapi/linux/netfilter/nf_conntrack_tcp.h.
type TCPConntrackState uint8

// All of these constants' names make the linter complain, but we inherited
// these names from external C code, so we will keep them.
const (
	TCP_CONNTRACK_NONE        TCPConntrackState = 0
	TCP_CONNTRACK_SYN_SENT    TCPConntrackState = 1
	TCP_CONNTRACK_SYN_RECV    TCPConntrackState = 2
	TCP_CONNTRACK_ESTABLISHED TCPConntrackState = 3
	TCP_CONNTRACK_FIN_WAIT    TCPConntrackState = 4
	TCP_CONNTRACK_CLOSE_WAIT  TCPConntrackState = 5
	TCP_CONNTRACK_LAST_ACK    TCPConntrackState = 6
	TCP_CONNTRACK_TIME_WAIT   TCPConntrackState = 7
	TCP_CONNTRACK_CLOSE       TCPConntrackState = 8
	TCP_CONNTRACK_SYN_SENT2   TCPConntrackState = 9
)

var tcpStateName = map[TCPConntrackState]string{
	0: "NONE",
	1: "SYN_SENT",
	2: "SYN_RECV",
	3: "ESTABLISHED",
	4: "FIN_WAIT",
	5: "CLOSE_WAIT",
	6: "LAST_ACK",
	7: "TIME_WAIT",
	8: "CLOSE",
	9: "SYN_SENT2",
}

func (s TCPConntrackState) String() string {
	name, ok := tcpStateName[s]
	if !ok {
		return fmt.Sprintf("UNKNOWN_STATE_%d", uint8(s))
	}
	return name
}
