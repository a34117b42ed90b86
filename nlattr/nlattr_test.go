package nlattr_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-test/deep"

	"github.com/m-lab/nfnetlink/nlattr"
)

func TestAlign(t *testing.T) {
	cases := [][2]int{{0, 0}, {1, 4}, {3, 4}, {4, 4}, {5, 8}, {12, 12}, {13, 16}}
	for _, c := range cases {
		if got := nlattr.Align(c[0]); got != c[1] {
			t.Errorf("Align(%d) = %d, want %d", c[0], got, c[1])
		}
	}
}

func TestIterator(t *testing.T) {
	// Two records, the first padded, then a 3-byte truncated tail.
	payload := []byte{
		0x05, 0x00, 0x01, 0x00, 0xaa, 0x00, 0x00, 0x00,
		0x08, 0x00, 0x02, 0x80, 0x01, 0x02, 0x03, 0x04,
		0xff, 0xff, 0xff,
	}
	it := nlattr.NewIterator(payload)

	buf, ok := it.Next()
	if !ok {
		t.Fatal("Expected a first record")
	}
	if buf.Len() != 5 || buf.Kind() != 1 || buf.IsNested() || buf.AlignedLen() != 8 {
		t.Errorf("Bad first record: len=%d kind=%d", buf.Len(), buf.Kind())
	}
	if !bytes.Equal(buf.Value(), []byte{0xaa}) {
		t.Errorf("Bad first value %x", buf.Value())
	}

	buf, ok = it.Next()
	if !ok {
		t.Fatal("Expected a second record")
	}
	if buf.Kind() != 2 || !buf.IsNested() || buf.RawKind() != 0x8002 {
		t.Errorf("Bad second record: kind=%d raw=%#x", buf.Kind(), buf.RawKind())
	}

	// The 3 remaining bytes terminate iteration without an error.
	if _, ok = it.Next(); ok {
		t.Error("Expected iteration to end")
	}
	if it.Err() != nil {
		t.Error("A truncated tail is not an error:", it.Err())
	}
}

func TestIteratorMalformed(t *testing.T) {
	// Declared length below the header size.
	it := nlattr.NewIterator([]byte{0x02, 0x00, 0x01, 0x00})
	if _, ok := it.Next(); ok {
		t.Error("Expected iteration to stop")
	}
	if !errors.Is(it.Err(), nlattr.ErrMalformed) {
		t.Error("Expected ErrMalformed, got:", it.Err())
	}

	// Declared length past the end of the payload.
	it = nlattr.NewIterator([]byte{0x0c, 0x00, 0x01, 0x00, 0x01, 0x02})
	if _, ok := it.Next(); ok {
		t.Error("Expected iteration to stop")
	}
	if !errors.Is(it.Err(), nlattr.ErrMalformed) {
		t.Error("Expected ErrMalformed, got:", it.Err())
	}
}

func TestUnknownRoundTrip(t *testing.T) {
	raw := []byte{0x07, 0x00, 0x2a, 0x40, 0x01, 0x02, 0x03, 0x00}
	attrs, err := nlattr.ParseUnknown(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := []nlattr.Attr{nlattr.Unknown{Typ: 0x402a, Data: []byte{0x01, 0x02, 0x03}}}
	if diff := deep.Equal(attrs, want); diff != nil {
		t.Error(diff)
	}
	if nlattr.SizeAll(attrs) != len(raw) {
		t.Errorf("SizeAll %d != %d", nlattr.SizeAll(attrs), len(raw))
	}
	out := make([]byte, nlattr.SizeAll(attrs))
	nlattr.EmitAll(out, attrs)
	if !bytes.Equal(out, raw) {
		t.Errorf("Emit mismatch: %x != %x", out, raw)
	}
}

func TestUnknownOwnsData(t *testing.T) {
	raw := []byte{0x05, 0x00, 0x01, 0x00, 0xaa, 0x00, 0x00, 0x00}
	attrs, err := nlattr.ParseUnknown(raw)
	if err != nil {
		t.Fatal(err)
	}
	raw[4] = 0xbb
	if attrs[0].(nlattr.Unknown).Data[0] != 0xaa {
		t.Error("Parsed attribute aliases the source buffer")
	}
}

func TestEmitZeroesPadding(t *testing.T) {
	a := nlattr.Unknown{Typ: 1, Data: []byte{0xee}}
	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	n := nlattr.Emit(buf, a)
	if n != 8 {
		t.Errorf("Emit returned %d, want 8", n)
	}
	if !bytes.Equal(buf, []byte{0x05, 0x00, 0x01, 0x00, 0xee, 0x00, 0x00, 0x00}) {
		t.Errorf("Padding not zeroed: %x", buf)
	}
}

func TestEmitAllCursorAlignment(t *testing.T) {
	attrs := []nlattr.Attr{
		nlattr.Unknown{Typ: 1, Data: []byte{1}},
		nlattr.Unknown{Typ: 2, Data: []byte{1, 2, 3, 4, 5}},
		nlattr.Unknown{Typ: 3, Data: nil},
	}
	total := 0
	for _, a := range attrs {
		n := nlattr.BufferLen(a)
		if n%4 != 0 {
			t.Errorf("BufferLen %d is not a multiple of 4", n)
		}
		total += n
	}
	if nlattr.SizeAll(attrs) != total {
		t.Error("SizeAll disagrees with per-attribute BufferLen")
	}
	buf := make([]byte, total)
	if nlattr.EmitAll(buf, attrs) != total {
		t.Error("EmitAll wrote an unexpected number of bytes")
	}
}
