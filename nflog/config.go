package nflog

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/nlattr"
)

// Config attribute kinds (NFULA_CFG_*).
const (
	AttrCfgCmd      uint16 = 1
	AttrCfgMode     uint16 = 2
	AttrCfgNlBufSiz uint16 = 3
	AttrCfgTimeout  uint16 = 4
	AttrCfgQThresh  uint16 = 5
	AttrCfgFlags    uint16 = 6
)

// Cmd is a configuration command byte.  The protocol family for the PF
// commands travels in the netfilter header, not here.
type Cmd uint8

// Configuration commands (NFULNL_CFG_CMD_*).
const (
	CmdNone     Cmd = 0
	CmdBind     Cmd = 1
	CmdUnbind   Cmd = 2
	CmdPfBind   Cmd = 3
	CmdPfUnbind Cmd = 4
)

// Kind implements nlattr.Attr.
func (Cmd) Kind() uint16 { return AttrCfgCmd }

// ValueLen implements nlattr.Attr.
func (Cmd) ValueLen() int { return 1 }

// EmitValue implements nlattr.Attr.
func (c Cmd) EmitValue(b []byte) { b[0] = uint8(c) }

// Copy modes (NFULNL_COPY_*).
const (
	CopyNone   uint8 = 0
	CopyMeta   uint8 = 1
	CopyPacket uint8 = 2
)

// Mode selects how much of each packet the kernel copies to user space:
// nfulnl_msg_config_mode, a big-endian copy range followed by the copy-mode
// byte and a pad byte.
type Mode struct {
	CopyRange uint32
	CopyMode  uint8
}

// ModePacketMax copies packet payloads up to the largest range the kernel
// honors.
var ModePacketMax = Mode{CopyRange: 0xffff, CopyMode: CopyPacket}

const modeLen = 6

// Kind implements nlattr.Attr.
func (Mode) Kind() uint16 { return AttrCfgMode }

// ValueLen implements nlattr.Attr.
func (Mode) ValueLen() int { return modeLen }

// EmitValue implements nlattr.Attr.
func (m Mode) EmitValue(b []byte) {
	binary.BigEndian.PutUint32(b, m.CopyRange)
	b[4] = m.CopyMode
	b[5] = 0
}

func parseMode(b []byte) (Mode, error) {
	if len(b) < modeLen {
		return Mode{}, errors.Wrapf(nlattr.ErrTruncated, "config mode: %d bytes", len(b))
	}
	return Mode{
		CopyRange: binary.BigEndian.Uint32(b),
		CopyMode:  b[4],
	}, nil
}

// BufSize is the requested netlink socket buffer size in bytes.  The kernel
// caps it at 131072.
type BufSize uint32

// Kind implements nlattr.Attr.
func (BufSize) Kind() uint16 { return AttrCfgNlBufSiz }

// ValueLen implements nlattr.Attr.
func (BufSize) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (s BufSize) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(s)) }

// Timeout is the flush timeout in hundredths of a second.
type Timeout uint32

// TimeoutFromDuration converts d to the wire resolution, saturating at the
// largest representable timeout.
func TimeoutFromDuration(d time.Duration) Timeout {
	hundredths := d.Milliseconds() / 10
	if hundredths > math.MaxUint32 {
		return Timeout(math.MaxUint32)
	}
	return Timeout(hundredths)
}

// Kind implements nlattr.Attr.
func (Timeout) Kind() uint16 { return AttrCfgTimeout }

// ValueLen implements nlattr.Attr.
func (Timeout) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (t Timeout) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(t)) }

// QThresh is the queue threshold: the number of packets the kernel batches
// before flushing them to user space.
type QThresh uint32

// Kind implements nlattr.Attr.
func (QThresh) Kind() uint16 { return AttrCfgQThresh }

// ValueLen implements nlattr.Attr.
func (QThresh) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (q QThresh) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(q)) }

// Flags is the configuration flag bitfield (NFULNL_CFG_F_*).  Unknown bits
// are preserved.
type Flags uint16

// Configuration flags.
const (
	FlagSeq       Flags = 1 << 0
	FlagSeqGlobal Flags = 1 << 1
	FlagConntrack Flags = 1 << 2
)

// Has reports whether every bit of f is set.
func (fl Flags) Has(f Flags) bool { return fl&f == f }

// Kind implements nlattr.Attr.
func (Flags) Kind() uint16 { return AttrCfgFlags }

// ValueLen implements nlattr.Attr.
func (Flags) ValueLen() int { return 2 }

// EmitValue implements nlattr.Attr.
func (fl Flags) EmitValue(b []byte) { binary.BigEndian.PutUint16(b, uint16(fl)) }

// ParseConfigAttr converts one record of an nflog config message.
func ParseConfigAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrCfgCmd:
		v, err := nlattr.ParseU8(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_CFG_CMD")
		}
		return Cmd(v), nil
	case AttrCfgMode:
		m, err := parseMode(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_CFG_MODE")
		}
		return m, nil
	case AttrCfgNlBufSiz:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_CFG_NLBUFSIZ")
		}
		return BufSize(v), nil
	case AttrCfgTimeout:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_CFG_TIMEOUT")
		}
		return Timeout(v), nil
	case AttrCfgQThresh:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_CFG_QTHRESH")
		}
		return QThresh(v), nil
	case AttrCfgFlags:
		v, err := nlattr.ParseU16BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFULA_CFG_FLAGS")
		}
		return Flags(v), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}
