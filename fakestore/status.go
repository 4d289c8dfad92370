package fakestore

import (
	"math/rand/v2"
	"sync"

	"github.com/unkn0wn-root/querycache/orders"
)

// StatusSource assigns the status of a cart each time it is read.
type StatusSource interface {
	Status(orderID int) orders.Status
	// Remember records a status set through UpdateOrderStatus.
	Remember(orderID int, s orders.Status)
}

// Random picks a uniformly random status on every read and forgets updates,
// so a refetch may disagree with a previous read or a completed update.
type Random struct{}

func (Random) Status(int) orders.Status {
	return orders.Statuses[rand.IntN(len(orders.Statuses))]
}

func (Random) Remember(int, orders.Status) {}

// Sticky keeps the first status seen for each order and any status set by
// an update. Inner draws first statuses; nil means Random.
type Sticky struct {
	Inner StatusSource

	mu sync.Mutex
	m  map[int]orders.Status
}

func NewSticky(inner StatusSource) *Sticky {
	if inner == nil {
		inner = Random{}
	}
	return &Sticky{Inner: inner, m: make(map[int]orders.Status)}
}

func (s *Sticky) Status(id int) orders.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	if !ok {
		st = s.Inner.Status(id)
		s.m[id] = st
	}
	return st
}

func (s *Sticky) Remember(id int, st orders.Status) {
	s.mu.Lock()
	s.m[id] = st
	s.mu.Unlock()
	s.Inner.Remember(id, st)
}

// Fixed always answers the same status. Handy in tests and demos.
type Fixed orders.Status

func (f Fixed) Status(int) orders.Status { return orders.Status(f) }
func (Fixed) Remember(int, orders.Status) {}
