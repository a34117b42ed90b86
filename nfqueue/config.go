package nfqueue

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/nlattr"
)

// Config attribute kinds (NFQA_CFG_*).
const (
	AttrCfgCmd         uint16 = 1
	AttrCfgParams      uint16 = 2
	AttrCfgQueueMaxLen uint16 = 3
	AttrCfgMask        uint16 = 4
	AttrCfgFlags       uint16 = 5
)

// Command bytes (NFQNL_CFG_CMD_*).
const (
	CmdNone     uint8 = 0
	CmdBind     uint8 = 1
	CmdUnbind   uint8 = 2
	CmdPfBind   uint8 = 3
	CmdPfUnbind uint8 = 4
)

// Cmd is the configuration command record, nfqnl_msg_config_cmd: a command
// byte, a pad byte, and a big-endian protocol family.
type Cmd struct {
	Cmd uint8
	PF  uint16
}

const cmdLen = 4

// Kind implements nlattr.Attr.
func (Cmd) Kind() uint16 { return AttrCfgCmd }

// ValueLen implements nlattr.Attr.
func (Cmd) ValueLen() int { return cmdLen }

// EmitValue implements nlattr.Attr.
func (c Cmd) EmitValue(b []byte) {
	b[0] = c.Cmd
	b[1] = 0
	binary.BigEndian.PutUint16(b[2:], c.PF)
}

func parseCmd(b []byte) (Cmd, error) {
	if len(b) < cmdLen {
		return Cmd{}, errors.Wrapf(nlattr.ErrTruncated, "config command: %d bytes", len(b))
	}
	return Cmd{Cmd: b[0], PF: binary.BigEndian.Uint16(b[2:])}, nil
}

// Copy modes (NFQNL_COPY_*).
const (
	CopyNone   uint8 = 0
	CopyMeta   uint8 = 1
	CopyPacket uint8 = 2
)

// Params is the queue parameter record, nfqnl_msg_config_params: a
// big-endian copy range, the copy-mode byte, and three pad bytes.
type Params struct {
	CopyRange uint32
	CopyMode  uint8
}

const paramsLen = 8

// Kind implements nlattr.Attr.
func (Params) Kind() uint16 { return AttrCfgParams }

// ValueLen implements nlattr.Attr.
func (Params) ValueLen() int { return paramsLen }

// EmitValue implements nlattr.Attr.
func (p Params) EmitValue(b []byte) {
	binary.BigEndian.PutUint32(b, p.CopyRange)
	b[4] = p.CopyMode
	b[5] = 0
	b[6] = 0
	b[7] = 0
}

func parseParams(b []byte) (Params, error) {
	if len(b) < paramsLen {
		return Params{}, errors.Wrapf(nlattr.ErrTruncated, "config params: %d bytes", len(b))
	}
	return Params{CopyRange: binary.BigEndian.Uint32(b), CopyMode: b[4]}, nil
}

// QueueMaxLen is the maximum number of packets the kernel parks before it
// starts dropping (or accepting, with FlagFailOpen).
type QueueMaxLen uint32

// Kind implements nlattr.Attr.
func (QueueMaxLen) Kind() uint16 { return AttrCfgQueueMaxLen }

// ValueLen implements nlattr.Attr.
func (QueueMaxLen) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (q QueueMaxLen) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(q)) }

// Queue feature flag bits (NFQA_CFG_F_*), used by both Flags and Mask.
const (
	FlagFailOpen  uint32 = 1 << 0
	FlagConntrack uint32 = 1 << 1
	FlagGSO       uint32 = 1 << 2
	FlagUIDGID    uint32 = 1 << 3
	FlagSecCtx    uint32 = 1 << 4
)

// Flags requests queue features.  Unknown bits are preserved.
type Flags uint32

// Kind implements nlattr.Attr.
func (Flags) Kind() uint16 { return AttrCfgFlags }

// ValueLen implements nlattr.Attr.
func (Flags) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (f Flags) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(f)) }

// Has reports whether every bit of flag is set.
func (f Flags) Has(flag uint32) bool { return uint32(f)&flag == flag }

// Mask selects which Flags bits the kernel should change.
type Mask uint32

// Kind implements nlattr.Attr.
func (Mask) Kind() uint16 { return AttrCfgMask }

// ValueLen implements nlattr.Attr.
func (Mask) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (m Mask) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, uint32(m)) }

// Has reports whether every bit of flag is set.
func (m Mask) Has(flag uint32) bool { return uint32(m)&flag == flag }

// ParseConfigAttr converts one record of an nfqueue config message.
func ParseConfigAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	switch buf.Kind() {
	case AttrCfgCmd:
		c, err := parseCmd(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_CFG_CMD")
		}
		return c, nil
	case AttrCfgParams:
		p, err := parseParams(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_CFG_PARAMS")
		}
		return p, nil
	case AttrCfgQueueMaxLen:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_CFG_QUEUE_MAXLEN")
		}
		return QueueMaxLen(v), nil
	case AttrCfgMask:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_CFG_MASK")
		}
		return Mask(v), nil
	case AttrCfgFlags:
		v, err := nlattr.ParseU32BE(buf.Value())
		if err != nil {
			return nil, errors.Wrap(err, "NFQA_CFG_FLAGS")
		}
		return Flags(v), nil
	default:
		return nlattr.NewUnknown(buf), nil
	}
}
