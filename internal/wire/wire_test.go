package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"time"
)

var stamp = time.UnixMilli(1714564800123)

func TestSingleRoundTrip(t *testing.T) {
	cases := []Single{
		{Gen: 0, StoredAt: stamp},
		{Gen: 42, StoredAt: stamp, Payload: []byte("hello")},
		{Gen: math.MaxUint64, StoredAt: stamp, Payload: []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		got, err := DecodeSingle(EncodeSingle(tc))
		if err != nil {
			t.Fatalf("DecodeSingle: %v", err)
		}
		if got.Gen != tc.Gen || !got.StoredAt.Equal(tc.StoredAt) || !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("got %+v want %+v", got, tc)
		}
	}
}

func TestSingleRejectsTrailingBytes(t *testing.T) {
	enc := append(EncodeSingle(Single{Gen: 7, StoredAt: stamp, Payload: []byte("x")}), 0xDE, 0xAD)
	if _, err := DecodeSingle(enc); err != ErrCorrupt {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestSingleCorruptHeadersAndLengths(t *testing.T) {
	enc := EncodeSingle(Single{Gen: 1, StoredAt: stamp, Payload: []byte("abc")})

	mutate := func(f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), enc...))
	}
	cases := map[string][]byte{
		"magic":   mutate(func(b []byte) []byte { b[0] = 'X'; return b }),
		"version": mutate(func(b []byte) []byte { b[4] = version + 1; return b }),
		"kind":    mutate(func(b []byte) []byte { b[5] = kindBulk; return b }),
		// vlen sits after header(6) + gen(8) + storedAt(8)
		"vlen": mutate(func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[22:26], 4)
			return b
		}),
		"truncated": enc[:len(enc)-1],
		"short":     enc[:5],
		"empty":     nil,
	}
	for name, b := range cases {
		if _, err := DecodeSingle(b); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSinglePayloadAliasesInput(t *testing.T) {
	enc := EncodeSingle(Single{Gen: 1, StoredAt: stamp, Payload: []byte("Z")})
	s, err := DecodeSingle(enc)
	if err != nil {
		t.Fatalf("DecodeSingle: %v", err)
	}
	s.Payload[0] = 'Q'
	s2, _ := DecodeSingle(enc)
	if s2.Payload[0] != 'Q' {
		t.Fatalf("payload was copied")
	}
	// capacity is clipped so appends never spill into the frame
	if cap(s.Payload) != len(s.Payload) {
		t.Fatalf("payload cap = %d, len = %d", cap(s.Payload), len(s.Payload))
	}
}

func TestBulkRoundTrip(t *testing.T) {
	cases := [][]BulkItem{
		nil,
		{{Key: "a", Gen: 1, Payload: []byte("x")}},
		{
			{Key: "a", Gen: 1, Payload: []byte("x")},
			{Key: "b", Gen: 2},
			{Key: "c", Gen: 3, Payload: []byte{9, 8, 7}},
		},
		// duplicates are preserved in order
		{
			{Key: "dup", Gen: 1, Payload: []byte("old")},
			{Key: "dup", Gen: 2, Payload: []byte("new")},
		},
	}
	for _, items := range cases {
		enc, err := EncodeBulk(Bulk{StoredAt: stamp, Items: items})
		if err != nil {
			t.Fatalf("EncodeBulk: %v", err)
		}
		got, err := DecodeBulk(enc)
		if err != nil {
			t.Fatalf("DecodeBulk: %v", err)
		}
		if !got.StoredAt.Equal(stamp) || len(got.Items) != len(items) {
			t.Fatalf("got %+v", got)
		}
		for i := range items {
			g := got.Items[i]
			if g.Key != items[i].Key || g.Gen != items[i].Gen || !bytes.Equal(g.Payload, items[i].Payload) {
				t.Fatalf("item %d: got %+v want %+v", i, g, items[i])
			}
		}
	}
}

func TestBulkRejectsTrailingBytes(t *testing.T) {
	enc, err := EncodeBulk(Bulk{StoredAt: stamp, Items: []BulkItem{{Key: "k", Gen: 1, Payload: []byte("v")}}})
	if err != nil {
		t.Fatalf("EncodeBulk: %v", err)
	}
	if _, err := DecodeBulk(append(enc, 0xBE, 0xEF)); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestBulkBogusCount(t *testing.T) {
	b := appendHeader(nil, kindBulk)
	b = binary.BigEndian.AppendUint64(b, uint64(stamp.UnixMilli()))
	b = binary.BigEndian.AppendUint32(b, ^uint32(0))
	if _, err := DecodeBulk(b); err == nil {
		t.Fatalf("expected error on bogus n")
	}

	b = appendHeader(nil, kindBulk)
	b = binary.BigEndian.AppendUint64(b, uint64(stamp.UnixMilli()))
	b = binary.BigEndian.AppendUint32(b, 1)
	if _, err := DecodeBulk(b); err == nil {
		t.Fatalf("expected error on missing item body")
	}
}

func TestBulkKeyLengthValidation(t *testing.T) {
	if _, err := EncodeBulk(Bulk{Items: []BulkItem{{Key: "", Gen: 1}}}); err == nil {
		t.Fatalf("expected error on empty key")
	}
	if _, err := EncodeBulk(Bulk{Items: []BulkItem{{Key: strings.Repeat("a", 0x10000), Gen: 1}}}); err == nil {
		t.Fatalf("expected error on key length > 0xFFFF")
	}
	if _, err := EncodeBulk(Bulk{Items: []BulkItem{{Key: strings.Repeat("b", 0xFFFF), Gen: 1}}}); err != nil {
		t.Fatalf("boundary key length: %v", err)
	}
}

func TestBulkCorruptLengths(t *testing.T) {
	enc, err := EncodeBulk(Bulk{StoredAt: stamp, Items: []BulkItem{{Key: "k", Gen: 9, Payload: []byte("xyz")}}})
	if err != nil {
		t.Fatalf("EncodeBulk: %v", err)
	}
	// header(6) + storedAt(8) + n(4)
	const items = 18

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindSingle
	if _, err := DecodeBulk(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	badVlen := append([]byte(nil), enc...)
	off := items + 2 + 1 + 8
	binary.BigEndian.PutUint32(badVlen[off:off+4], 4)
	if _, err := DecodeBulk(badVlen); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	badKlen := append([]byte(nil), enc...)
	binary.BigEndian.PutUint16(badKlen[items:items+2], 5)
	if _, err := DecodeBulk(badKlen); err == nil {
		t.Fatalf("expected error on klen beyond buffer")
	}

	zeroKlen := append([]byte(nil), enc...)
	binary.BigEndian.PutUint16(zeroKlen[items:items+2], 0)
	if _, err := DecodeBulk(zeroKlen); err == nil {
		t.Fatalf("expected error on zero klen")
	}
}
