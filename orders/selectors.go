package orders

import qc "github.com/unkn0wn-root/querycache"

// FilterByStatus returns the orders with the given status in a new slice.
// An empty status returns orders itself. orders is never modified and may be
// nil.
func FilterByStatus(orders []Order, status Status) []Order {
	if status == "" {
		return orders
	}
	return qc.Filter(orders, func(o Order) bool { return o.Status == status })
}

// CountByStatus tallies orders per status.
func CountByStatus(orders []Order) map[Status]int {
	out := make(map[Status]int, len(Statuses))
	for _, o := range orders {
		out[o.Status]++
	}
	return out
}
