package querycache

// Select projects e's data through fn at read time. The projection is not
// stored. ok is false, and fn is not called, unless e is in StatusSuccess and
// holds a T.
func Select[T, R any](e Entry, fn func(T) R) (r R, ok bool) {
	v, ok := Data[T](e)
	if !ok {
		return r, false
	}
	return fn(v), true
}

// Filter returns the items for which keep is true in a new slice; items is
// never modified. A nil or empty input yields nil.
func Filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
