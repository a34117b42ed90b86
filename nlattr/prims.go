package nlattr

import (
	"bytes"
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

// Fixed-width payload parsers.  Netfilter payload scalars are big-endian
// unless a dialect says otherwise.  Each parser requires the payload to be
// exactly the field width: a short slice is truncated input, a long one is
// a malformed attribute.

// ParseU8 reads a single-byte payload.
func ParseU8(b []byte) (uint8, error) {
	if err := checkWidth(b, 1); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ParseU16BE reads a big-endian 16-bit payload.
func ParseU16BE(b []byte) (uint16, error) {
	if err := checkWidth(b, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ParseU32BE reads a big-endian 32-bit payload.
func ParseU32BE(b []byte) (uint32, error) {
	if err := checkWidth(b, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ParseU64BE reads a big-endian 64-bit payload.
func ParseU64BE(b []byte) (uint64, error) {
	if err := checkWidth(b, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func checkWidth(b []byte, want int) error {
	if len(b) < want {
		return errors.Wrapf(ErrTruncated, "need %d bytes, have %d", want, len(b))
	}
	if len(b) > want {
		return errors.Wrapf(ErrMalformed, "need %d bytes, have %d", want, len(b))
	}
	return nil
}

// ParseIP reads an IP address payload.  The address family is inferred from
// the length: 4 bytes is IPv4, 16 is IPv6.  The returned slice is an owned
// copy.
func ParseIP(b []byte) (net.IP, error) {
	switch len(b) {
	case net.IPv4len, net.IPv6len:
		return append(net.IP(nil), b...), nil
	default:
		return nil, errors.Wrapf(ErrMalformed, "IP address of %d bytes", len(b))
	}
}

// IPLen reports the emitted width of ip: 4 for IPv4, 16 otherwise.
func IPLen(ip net.IP) int {
	if ip.To4() != nil {
		return net.IPv4len
	}
	return net.IPv6len
}

// EmitIP writes ip into b in octet order, 4 bytes for IPv4 and 16 for IPv6.
func EmitIP(b []byte, ip net.IP) {
	if ip4 := ip.To4(); ip4 != nil {
		copy(b, ip4)
		return
	}
	copy(b, ip.To16())
}

// ParseCString reads a NUL-terminated string payload.  The NUL must be the
// final byte.
func ParseCString(b []byte) (string, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 || i != len(b)-1 {
		return "", errors.Wrap(ErrMalformed, "string payload without terminating NUL")
	}
	return string(b[:i]), nil
}

// CStringLen reports the payload width of s emitted as a NUL-terminated
// string.
func CStringLen(s string) int {
	return len(s) + 1
}

// EmitCString writes s and its terminating NUL into b.
func EmitCString(b []byte, s string) {
	copy(b, s)
	b[len(s)] = 0
}
