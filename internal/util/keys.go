package util

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// UniqSorted returns the distinct members of keys in ascending order. keys
// is not modified.
func UniqSorted(keys []string) []string {
	s := slices.Clone(keys)
	slices.Sort(s)
	return slices.Compact(s)
}

// BulkKey names a set of members: prefix + ":" + the first 16 hex chars of
// the sha256 over the members. sorted must already be UniqSorted.
func BulkKey(prefix string, sorted []string) string {
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x1f")))
	return prefix + ":" + hex.EncodeToString(sum[:8])
}
