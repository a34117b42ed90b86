//go:build linux
// +build linux

// ctdump dumps the kernel's conntrack table: it sends a conntrack Get dump
// request through a generic netlink transport, parses every reply with the
// nfnetlink codec, and prints one line per flow, or CSV with -csv.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/m-lab/nfnetlink"
	"github.com/m-lab/nfnetlink/conntrack"
	"github.com/m-lab/nfnetlink/metrics"
	"github.com/m-lab/nfnetlink/nlattr"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var csvOutput = flag.Bool("csv", false, "Write flows as CSV instead of plain text")

// flowRow is the flattened per-flow record used for output.
type flowRow struct {
	Proto   uint8  `csv:"Proto"`
	SrcIP   string `csv:"SrcIP"`
	SPort   uint16 `csv:"SPort"`
	DstIP   string `csv:"DstIP"`
	DPort   uint16 `csv:"DPort"`
	Status  string `csv:"Status"`
	Timeout uint32 `csv:"Timeout"`
	Mark    uint32 `csv:"Mark"`
}

func fillTuple(row *flowRow, tuple []nlattr.Attr) {
	for _, a := range tuple {
		switch v := a.(type) {
		case conntrack.TupleIP:
			for _, ipa := range v {
				switch ip := ipa.(type) {
				case conntrack.SrcAddr:
					row.SrcIP = net.IP(ip).String()
				case conntrack.DstAddr:
					row.DstIP = net.IP(ip).String()
				}
			}
		case conntrack.TupleProto:
			for _, pa := range v {
				switch p := pa.(type) {
				case conntrack.ProtoNum:
					row.Proto = uint8(p)
				case conntrack.SrcPort:
					row.SPort = uint16(p)
				case conntrack.DstPort:
					row.DPort = uint16(p)
				}
			}
		}
	}
}

func newFlowRow(msg *nfnetlink.Message) flowRow {
	row := flowRow{}
	cm, ok := msg.Inner.(*conntrack.Message)
	if !ok {
		return row
	}
	for _, a := range cm.Attrs {
		switch v := a.(type) {
		case conntrack.TupleOrig:
			fillTuple(&row, v)
		case conntrack.Status:
			row.Status = v.String()
		case conntrack.Timeout:
			row.Timeout = uint32(v)
		case conntrack.Mark:
			row.Mark = uint32(v)
		}
	}
	return row
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from env")

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	conn, err := netlink.Dial(unix.NETLINK_NETFILTER, nil)
	rtx.Must(err, "Could not open netlink socket")
	defer conn.Close()

	req := nfnetlink.Message{
		Header: nfnetlink.Header{Family: nfnetlink.FamilyUnspec},
		Inner:  &conntrack.Message{Type: conntrack.MsgGet},
	}
	buf := make([]byte, req.BufferLen())
	req.Emit(buf)
	metrics.MessagesEmitted.WithLabelValues(metrics.SubsystemLabel(nfnetlink.SubsysConntrack)).Inc()

	replies, err := conn.Execute(netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(req.Type()),
			Flags: netlink.Request | netlink.Dump,
		},
		Data: buf,
	})
	rtx.Must(err, "Conntrack dump failed")

	var rows []flowRow
	for i := range replies {
		msg, err := nfnetlink.Parse(replies[i].Data, uint16(replies[i].Header.Type))
		if err != nil {
			metrics.ParseErrors.WithLabelValues(metrics.SubsystemLabel(uint8(replies[i].Header.Type >> 8))).Inc()
			log.Println("Skipping unparseable message:", err)
			continue
		}
		metrics.MessagesParsed.WithLabelValues(metrics.SubsystemLabel(msg.Inner.Subsystem())).Inc()
		rows = append(rows, newFlowRow(msg))
	}

	if *csvOutput {
		rtx.Must(gocsv.Marshal(rows, os.Stdout), "Could not write CSV")
		return
	}
	for _, r := range rows {
		fmt.Printf("proto=%d %s:%d -> %s:%d status=%s timeout=%d mark=%d\n",
			r.Proto, r.SrcIP, r.SPort, r.DstIP, r.DPort, r.Status, r.Timeout, r.Mark)
	}
}
