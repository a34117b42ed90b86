package nlattr_test

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/m-lab/nfnetlink/nlattr"
)

func TestParseScalars(t *testing.T) {
	if v, err := nlattr.ParseU8([]byte{0x7f}); err != nil || v != 0x7f {
		t.Error("ParseU8 failed:", v, err)
	}
	if v, err := nlattr.ParseU16BE([]byte{0x01, 0xbb}); err != nil || v != 443 {
		t.Error("ParseU16BE failed:", v, err)
	}
	if v, err := nlattr.ParseU32BE([]byte{0x00, 0x06, 0x97, 0x77}); err != nil || v != 431991 {
		t.Error("ParseU32BE failed:", v, err)
	}
	if v, err := nlattr.ParseU64BE([]byte{0, 0, 0, 0, 0, 0, 0x01, 0x00}); err != nil || v != 256 {
		t.Error("ParseU64BE failed:", v, err)
	}
}

func TestParseScalarWidth(t *testing.T) {
	if _, err := nlattr.ParseU32BE([]byte{1, 2}); !errors.Is(err, nlattr.ErrTruncated) {
		t.Error("Expected ErrTruncated, got:", err)
	}
	if _, err := nlattr.ParseU8([]byte{1, 2}); !errors.Is(err, nlattr.ErrMalformed) {
		t.Error("Expected ErrMalformed, got:", err)
	}
	if _, err := nlattr.ParseU16BE([]byte{1, 2, 3}); !errors.Is(err, nlattr.ErrMalformed) {
		t.Error("Expected ErrMalformed, got:", err)
	}
	if _, err := nlattr.ParseU64BE(nil); !errors.Is(err, nlattr.ErrTruncated) {
		t.Error("Expected ErrTruncated, got:", err)
	}
}

func TestParseIP(t *testing.T) {
	ip, err := nlattr.ParseIP([]byte{10, 57, 97, 124})
	if err != nil || ip.String() != "10.57.97.124" {
		t.Error("IPv4 parse failed:", ip, err)
	}
	v6 := net.ParseIP("2404:6800:4009:81d::200e")
	ip, err = nlattr.ParseIP(v6)
	if err != nil || !ip.Equal(v6) {
		t.Error("IPv6 parse failed:", ip, err)
	}
	if _, err = nlattr.ParseIP([]byte{1, 2, 3, 4, 5}); !errors.Is(err, nlattr.ErrMalformed) {
		t.Error("Expected ErrMalformed for a 5-byte address, got:", err)
	}
}

func TestParseIPOwnsBytes(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	ip, err := nlattr.ParseIP(src)
	if err != nil {
		t.Fatal(err)
	}
	src[0] = 99
	if ip[0] != 1 {
		t.Error("Parsed address aliases the source buffer")
	}
}

func TestEmitIP(t *testing.T) {
	buf := make([]byte, 4)
	nlattr.EmitIP(buf, net.ParseIP("148.113.20.105"))
	if !bytes.Equal(buf, []byte{148, 113, 20, 105}) {
		t.Errorf("IPv4 emit: %v", buf)
	}
	if nlattr.IPLen(net.ParseIP("148.113.20.105")) != 4 {
		t.Error("IPLen should be 4 for a v4-mapped address")
	}
	buf = make([]byte, 16)
	addr := net.ParseIP("2409:40c4:e8:6bc3:d1d8:1087:4fa2:68a3")
	nlattr.EmitIP(buf, addr)
	if !bytes.Equal(buf, addr.To16()) {
		t.Errorf("IPv6 emit: %v", buf)
	}
	if nlattr.IPLen(addr) != 16 {
		t.Error("IPLen should be 16")
	}
}

func TestCString(t *testing.T) {
	s, err := nlattr.ParseCString([]byte{'s', 's', 'h', 0})
	if err != nil || s != "ssh" {
		t.Error("ParseCString failed:", s, err)
	}
	if _, err = nlattr.ParseCString([]byte{'s', 's', 'h'}); !errors.Is(err, nlattr.ErrMalformed) {
		t.Error("Expected ErrMalformed without a NUL, got:", err)
	}
	if _, err = nlattr.ParseCString([]byte{'a', 0, 'b', 0}); !errors.Is(err, nlattr.ErrMalformed) {
		t.Error("Expected ErrMalformed for an interior NUL, got:", err)
	}

	buf := make([]byte, nlattr.CStringLen("ssh"))
	nlattr.EmitCString(buf, "ssh")
	if !bytes.Equal(buf, []byte{'s', 's', 'h', 0}) {
		t.Errorf("EmitCString: %v", buf)
	}
}
