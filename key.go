package querycache

import (
	"fmt"
	"strings"
)

// Key identifies one cacheable resource: an ordered tuple of scalar parts.
// Two keys are equal iff they have the same number of parts and every part
// compares equal (same dynamic type and value). The zero Key has no parts.
//
// Keys are immutable; NewKey copies its arguments.
type Key struct {
	parts []any
	id    string // canonical encoding, used as the map key in Store
}

// NewKey builds a key from scalar parts (strings, booleans, integers and
// floats). It panics on any other part type: keys are built from literals and
// ids in code, so an unsupported part is a programming error.
func NewKey(parts ...any) Key {
	cp := make([]any, len(parts))
	var b strings.Builder
	for i, p := range parts {
		switch p.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			panic(fmt.Sprintf("querycache: unsupported key part %T", p))
		}
		cp[i] = p
		if i > 0 {
			b.WriteByte(0x1f)
		}
		// %#v quotes strings so a separator inside a part cannot collide.
		fmt.Fprintf(&b, "%T:%#v", p, p)
	}
	return Key{parts: cp, id: b.String()}
}

// Len returns the number of parts.
func (k Key) Len() int { return len(k.parts) }

// Parts returns a copy of the key's parts.
func (k Key) Parts() []any {
	out := make([]any, len(k.parts))
	copy(out, k.parts)
	return out
}

// Equal reports whether k and o identify the same resource.
func (k Key) Equal(o Key) bool { return k.id == o.id }

// HasPrefix reports whether the first prefix.Len() parts of k equal prefix.
// Every key has the empty key as prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.parts) > len(k.parts) {
		return false
	}
	for i, p := range prefix.parts {
		if k.parts[i] != p {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	s := make([]string, len(k.parts))
	for i, p := range k.parts {
		s[i] = fmt.Sprint(p)
	}
	return "[" + strings.Join(s, " ") + "]"
}
