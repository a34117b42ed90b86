package conntrack

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/m-lab/nfnetlink/nlattr"
)

// CPUCounter names one per-CPU statistics counter, CTA_STATS_* from
// uapi/linux/netfilter/nfnetlink_conntrack.h.  The kernel stopped emitting
// the first few at some point; they still parse.
type CPUCounter uint16

// Per-CPU counters.
const (
	CounterSearched      CPUCounter = 1
	CounterFound         CPUCounter = 2
	CounterNew           CPUCounter = 3
	CounterInvalid       CPUCounter = 4
	CounterIgnore        CPUCounter = 5
	CounterDelete        CPUCounter = 6
	CounterDeleteList    CPUCounter = 7
	CounterInsert        CPUCounter = 8
	CounterInsertFailed  CPUCounter = 9
	CounterDrop          CPUCounter = 10
	CounterEarlyDrop     CPUCounter = 11
	CounterError         CPUCounter = 12
	CounterSearchRestart CPUCounter = 13
	CounterClashResolve  CPUCounter = 14
	CounterChainTooLong  CPUCounter = 15
)

var cpuCounterName = map[CPUCounter]string{
	CounterSearched:      "SEARCHED",
	CounterFound:         "FOUND",
	CounterNew:           "NEW",
	CounterInvalid:       "INVALID",
	CounterIgnore:        "IGNORE",
	CounterDelete:        "DELETE",
	CounterDeleteList:    "DELETE_LIST",
	CounterInsert:        "INSERT",
	CounterInsertFailed:  "INSERT_FAILED",
	CounterDrop:          "DROP",
	CounterEarlyDrop:     "EARLY_DROP",
	CounterError:         "ERROR",
	CounterSearchRestart: "SEARCH_RESTART",
	CounterClashResolve:  "CLASH_RESOLVE",
	CounterChainTooLong:  "CHAIN_TOOLONG",
}

func (c CPUCounter) String() string {
	name, ok := cpuCounterName[c]
	if !ok {
		return fmt.Sprintf("COUNTER_%d", uint16(c))
	}
	return name
}

// StatCPU is one counter record from a per-CPU statistics dump.  The CPU
// number travels in the netfilter header's resource id.
type StatCPU struct {
	Counter CPUCounter
	Value   uint32
}

// Kind implements nlattr.Attr.
func (s StatCPU) Kind() uint16 { return uint16(s.Counter) }

// ValueLen implements nlattr.Attr.
func (StatCPU) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (s StatCPU) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, s.Value) }

// ParseStatCPUAttr converts one record of a per-CPU statistics message.
func ParseStatCPUAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	c := CPUCounter(buf.Kind())
	if _, ok := cpuCounterName[c]; !ok {
		return nlattr.NewUnknown(buf), nil
	}
	v, err := nlattr.ParseU32BE(buf.Value())
	if err != nil {
		return nil, errors.Wrapf(err, "CTA_STATS_%s", c)
	}
	return StatCPU{Counter: c, Value: v}, nil
}

// GlobalCounter names one table-wide statistics counter,
// CTA_STATS_GLOBAL_*.
type GlobalCounter uint16

// Global counters.
const (
	CounterEntries    GlobalCounter = 1
	CounterMaxEntries GlobalCounter = 2
)

var globalCounterName = map[GlobalCounter]string{
	CounterEntries:    "ENTRIES",
	CounterMaxEntries: "MAX_ENTRIES",
}

func (c GlobalCounter) String() string {
	name, ok := globalCounterName[c]
	if !ok {
		return fmt.Sprintf("COUNTER_%d", uint16(c))
	}
	return name
}

// StatGlobal is one counter record from a table-wide statistics dump.
type StatGlobal struct {
	Counter GlobalCounter
	Value   uint32
}

// Kind implements nlattr.Attr.
func (s StatGlobal) Kind() uint16 { return uint16(s.Counter) }

// ValueLen implements nlattr.Attr.
func (StatGlobal) ValueLen() int { return 4 }

// EmitValue implements nlattr.Attr.
func (s StatGlobal) EmitValue(b []byte) { binary.BigEndian.PutUint32(b, s.Value) }

// ParseStatGlobalAttr converts one record of a table-wide statistics
// message.
func ParseStatGlobalAttr(buf nlattr.Buffer) (nlattr.Attr, error) {
	c := GlobalCounter(buf.Kind())
	if _, ok := globalCounterName[c]; !ok {
		return nlattr.NewUnknown(buf), nil
	}
	v, err := nlattr.ParseU32BE(buf.Value())
	if err != nil {
		return nil, errors.Wrapf(err, "CTA_STATS_GLOBAL_%s", c)
	}
	return StatGlobal{Counter: c, Value: v}, nil
}
