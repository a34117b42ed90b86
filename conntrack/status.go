package conntrack

import (
	"encoding/binary"
	"strings"
)

// Status is the connection status bitfield, IPS_* from
// uapi/linux/netfilter/nf_conntrack_common.h.  Unknown bits are preserved,
// so a status round-trips losslessly.  Bit positions have drifted across
// kernel releases; the values here match current kernels.
type Status uint32

// Status bits.
const (
	StatusExpected     Status = 1 << 0
	StatusSeenReply    Status = 1 << 1
	StatusAssured      Status = 1 << 2
	StatusConfirmed    Status = 1 << 3
	StatusSrcNat       Status = 1 << 4
	StatusDstNat       Status = 1 << 5
	StatusSeqAdjust    Status = 1 << 6
	StatusSrcNatDone   Status = 1 << 7
	StatusDstNatDone   Status = 1 << 8
	StatusDying        Status = 1 << 9
	StatusFixedTimeout Status = 1 << 10
	StatusTemplate     Status = 1 << 11
	StatusUntracked    Status = 1 << 12
	StatusHelper       Status = 1 << 13
	StatusOffload      Status = 1 << 14

	// StatusNatMask covers both NAT bits, StatusNatDoneMask both
	// NAT-done bits.
	StatusNatMask     = StatusSrcNat | StatusDstNat
	StatusNatDoneMask = StatusSrcNatDone | StatusDstNatDone
)

// Has reports whether every bit of f is set in s.
func (s Status) Has(f Status) bool {
	return s&f == f
}

var statusName = []struct {
	bit  Status
	name string
}{
	{StatusExpected, "EXPECTED"},
	{StatusSeenReply, "SEEN_REPLY"},
	{StatusAssured, "ASSURED"},
	{StatusConfirmed, "CONFIRMED"},
	{StatusSrcNat, "SRC_NAT"},
	{StatusDstNat, "DST_NAT"},
	{StatusSeqAdjust, "SEQ_ADJUST"},
	{StatusSrcNatDone, "SRC_NAT_DONE"},
	{StatusDstNatDone, "DST_NAT_DONE"},
	{StatusDying, "DYING"},
	{StatusFixedTimeout, "FIXED_TIMEOUT"},
	{StatusTemplate, "TEMPLATE"},
	{StatusUntracked, "UNTRACKED"},
	{StatusHelper, "HELPER"},
	{StatusOffload, "OFFLOAD"},
}

func (s Status) String() string {
	var names []string
	for _, f := range statusName {
		if s.Has(f.bit) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}

// Kind implements nlattr.Attr.
func (Status) Kind() uint16 { return AttrStatus }

// ValueLen implements nlattr.Attr.
func (Status) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (s Status) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(s)) }
