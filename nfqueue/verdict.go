package nfqueue

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/nlattr"
)

// AttrVerdictHdr is the verdict record kind (NFQA_VERDICT_HDR).
const AttrVerdictHdr uint16 = 2

// Verdict is the decision returned for a queued packet, NF_* from
// uapi/linux/netfilter.h.  Values outside the named set pass through.
type Verdict uint32

// Verdicts.
const (
	VerdictDrop   Verdict = 0
	VerdictAccept Verdict = 1
	VerdictStolen Verdict = 2
	VerdictQueue  Verdict = 3
	VerdictRepeat Verdict = 4
	VerdictStop   Verdict = 5
)

var verdictName = map[Verdict]string{
	VerdictDrop:   "DROP",
	VerdictAccept: "ACCEPT",
	VerdictStolen: "STOLEN",
	VerdictQueue:  "QUEUE",
	VerdictRepeat: "REPEAT",
	VerdictStop:   "STOP",
}

func (v Verdict) String() string {
	name, ok := verdictName[v]
	if !ok {
		return fmt.Sprintf("VERDICT_%d", uint32(v))
	}
	return name
}

// VerdictHdr is the verdict record, nfqnl_msg_verdict_hdr: the verdict and
// the packet id it applies to, both big-endian.  In a batch verdict the id
// is the highest packet id covered.
type VerdictHdr struct {
	Verdict  Verdict
	PacketID uint32
}

const verdictHdrLen = 8

// Kind implements nlattr.Attr.
func (VerdictHdr) Kind() uint16 { return AttrVerdictHdr }

// ValueLen implements nlattr.Attr.
func (VerdictHdr) ValueLen() int { return verdictHdrLen }

// EmitValue implements nlattr.Attr.
func (v VerdictHdr) EmitValue(b []byte) {
	binary.BigEndian.PutUint32(b, uint32(v.Verdict))
	binary.BigEndian.PutUint32(b[4:], v.PacketID)
}

func parseVerdictHdr(b []byte) (VerdictHdr, error) {
	if len(b) < verdictHdrLen {
		return VerdictHdr{}, errors.Wrapf(nlattr.ErrTruncated, "verdict header: %d bytes", len(b))
	}
	return VerdictHdr{
		Verdict:  Verdict(binary.BigEndian.Uint32(b)),
		PacketID: binary.BigEndian.Uint32(b[4:]),
	}, nil
}

// ParseVerdictAttr converts one record of a verdict message.
func ParseVerdictAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrVerdictHdr:
		v, err := parseVerdictHdr(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_VERDICT_HDR")
		}
		return v, nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}
