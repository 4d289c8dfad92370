// Package wire frames response-tier records. Every record carries the
// generation it was written under and the time it was stored, so readers can
// reject superseded or over-age bytes without decoding the payload.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	version    byte = 1
	kindSingle byte = 1
	kindBulk   byte = 2

	headerLen = 4 + 1 + 1 // magic | ver | kind
)

var (
	ErrCorrupt = errors.New("querycache: corrupt tier record")
	magic      = [4]byte{'Q', 'C', 'T', 'R'}
)

// Single is one value record.
//
//	magic(4) | ver(1) | kind(1) | gen(u64) | storedAt(i64 unix ms) | vlen(u32) | payload
type Single struct {
	Gen      uint64
	StoredAt time.Time
	Payload  []byte
}

func EncodeSingle(s Single) []byte {
	b := make([]byte, 0, headerLen+8+8+4+len(s.Payload))
	b = appendHeader(b, kindSingle)
	b = binary.BigEndian.AppendUint64(b, s.Gen)
	b = binary.BigEndian.AppendUint64(b, uint64(s.StoredAt.UnixMilli()))
	b = binary.BigEndian.AppendUint32(b, uint32(len(s.Payload)))
	return append(b, s.Payload...)
}

// DecodeSingle parses b. The returned payload aliases b.
func DecodeSingle(b []byte) (Single, error) {
	r, err := newReader(b, kindSingle)
	if err != nil {
		return Single{}, err
	}
	var s Single
	s.Gen = r.u64()
	s.StoredAt = time.UnixMilli(int64(r.u64()))
	s.Payload = r.bytes(int(r.u32()))
	if err := r.done(); err != nil {
		return Single{}, err
	}
	return s, nil
}

// BulkItem is one member of a bulk record.
type BulkItem struct {
	Key     string
	Gen     uint64
	Payload []byte
}

// Bulk is a set-shaped record.
//
//	magic(4) | ver(1) | kind(1) | storedAt(i64 unix ms) | n(u32)
//	{ klen(u16) | key | gen(u64) | vlen(u32) | payload } * n
type Bulk struct {
	StoredAt time.Time
	Items    []BulkItem
}

// EncodeBulk fails on keys that are empty or longer than 0xFFFF bytes.
func EncodeBulk(bk Bulk) ([]byte, error) {
	size := headerLen + 8 + 4
	for _, it := range bk.Items {
		if l := len(it.Key); l == 0 || l > 0xFFFF {
			return nil, fmt.Errorf("wire: bulk key length %d out of range", l)
		}
		size += 2 + len(it.Key) + 8 + 4 + len(it.Payload)
	}
	b := make([]byte, 0, size)
	b = appendHeader(b, kindBulk)
	b = binary.BigEndian.AppendUint64(b, uint64(bk.StoredAt.UnixMilli()))
	b = binary.BigEndian.AppendUint32(b, uint32(len(bk.Items)))
	for _, it := range bk.Items {
		b = binary.BigEndian.AppendUint16(b, uint16(len(it.Key)))
		b = append(b, it.Key...)
		b = binary.BigEndian.AppendUint64(b, it.Gen)
		b = binary.BigEndian.AppendUint32(b, uint32(len(it.Payload)))
		b = append(b, it.Payload...)
	}
	return b, nil
}

// DecodeBulk parses b. Payloads alias b.
func DecodeBulk(b []byte) (Bulk, error) {
	r, err := newReader(b, kindBulk)
	if err != nil {
		return Bulk{}, err
	}
	var bk Bulk
	bk.StoredAt = time.UnixMilli(int64(r.u64()))
	n := int(r.u32())
	// every item takes at least 15 bytes; never trust n for preallocation
	if r.err != nil || n > (len(b)-r.off)/15 {
		return Bulk{}, ErrCorrupt
	}
	bk.Items = make([]BulkItem, 0, n)
	for i := 0; i < n; i++ {
		klen := int(r.u16())
		if klen == 0 {
			return Bulk{}, ErrCorrupt
		}
		key := r.bytes(klen)
		gen := r.u64()
		payload := r.bytes(int(r.u32()))
		if r.err != nil {
			return Bulk{}, r.err
		}
		bk.Items = append(bk.Items, BulkItem{Key: string(key), Gen: gen, Payload: payload})
	}
	if err := r.done(); err != nil {
		return Bulk{}, err
	}
	return bk, nil
}

func appendHeader(b []byte, kind byte) []byte {
	b = append(b, magic[:]...)
	return append(b, version, kind)
}

// reader is a bounds-checked cursor; the first short read sticks as err.
type reader struct {
	b   []byte
	off int
	err error
}

func newReader(b []byte, kind byte) (*reader, error) {
	if len(b) < headerLen || [4]byte(b[:4]) != magic || b[4] != version || b[5] != kind {
		return nil, ErrCorrupt
	}
	return &reader{b: b, off: headerLen}, nil
}

func (r *reader) take(n int) []byte {
	if r.err != nil || n < 0 || n > len(r.b)-r.off {
		r.err = ErrCorrupt
		return nil
	}
	p := r.b[r.off : r.off+n : r.off+n]
	r.off += n
	return p
}

func (r *reader) u16() uint16 {
	if p := r.take(2); p != nil {
		return binary.BigEndian.Uint16(p)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if p := r.take(4); p != nil {
		return binary.BigEndian.Uint32(p)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if p := r.take(8); p != nil {
		return binary.BigEndian.Uint64(p)
	}
	return 0
}

func (r *reader) bytes(n int) []byte { return r.take(n) }

// done rejects trailing bytes.
func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.b) {
		return ErrCorrupt
	}
	return nil
}
