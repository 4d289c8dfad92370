package orders

import (
	"context"
	"sync"

	qc "github.com/unkn0wn-root/querycache"
)

// Service is the consumer-facing facade: the list screen reads Orders, the
// detail screen opens an OrderView and calls UpdateStatus.
type Service struct {
	c   *qc.Client
	api API

	mu        sync.Mutex
	mutations map[int]*qc.Mutation[Status, Order]
}

func NewService(c *qc.Client, api API) *Service {
	return &Service{
		c:         c,
		api:       api,
		mutations: make(map[int]*qc.Mutation[Status, Order]),
	}
}

// Orders returns the collection filtered by status (empty = all), fetching
// it if missing or stale.
func (s *Service) Orders(ctx context.Context, status Status) ([]Order, error) {
	all, err := qc.Fetch(ctx, s.c, OrdersQuery(s.api))
	if err != nil {
		return nil, err
	}
	return FilterByStatus(all, status), nil
}

// OrdersSnapshot is what a list screen renders.
type OrdersSnapshot struct {
	Status qc.Status
	Err    error
	Orders []Order
}

// ObserveOrders subscribes fn to the collection, filtered by status at read
// time, and triggers the subscription-time fetch decision.
func (s *Service) ObserveOrders(status Status, fn func(OrdersSnapshot)) (unsubscribe func()) {
	return qc.Observe(s.c, OrdersQuery(s.api), func(e qc.Entry) {
		fn(ordersSnapshot(e, status))
	})
}

// OrdersNow returns the current collection view without fetching.
func (s *Service) OrdersNow(status Status) OrdersSnapshot {
	return ordersSnapshot(s.c.Store().Get(OrdersKey()), status)
}

func ordersSnapshot(e qc.Entry, status Status) OrdersSnapshot {
	list, _ := qc.Select(e, func(all []Order) []Order { return FilterByStatus(all, status) })
	return OrdersSnapshot{Status: e.Status, Err: e.Err, Orders: list}
}

// OrderSnapshot is what a detail screen renders.
type OrderSnapshot struct {
	// Order is nil until the order itself is loaded; its ProductDetails stay
	// nil until the products are loaded.
	Order      *OrderWithProducts
	Status     qc.Status // combined over order and products
	Err        error     // order error if any, else products error
	IsUpdating bool
}

// OrderView follows one order and its products.
type OrderView struct {
	s      *Service
	id     int
	gate   *qc.Gate
	unsubs []func()
}

// Order opens a view of order id: the detail is fetched (or refreshed when
// stale) and the product list follows it once it succeeds. Close the view
// when done.
func (s *Service) Order(id int) (*OrderView, error) {
	g, err := qc.Depend(s.c, OrderProductsQuery(s.api, id))
	if err != nil {
		return nil, err
	}
	v := &OrderView{s: s, id: id, gate: g}
	v.unsubs = append(v.unsubs, qc.Observe(s.c, OrderQuery(s.api, id), nil))
	g.Ensure()
	return v, nil
}

// Snapshot returns the joined view as of now.
func (v *OrderView) Snapshot() OrderSnapshot {
	return v.snapshot(v.gate.Status())
}

// Subscribe calls fn with a fresh snapshot after every change to the order,
// its products or its status mutation.
func (v *OrderView) Subscribe(fn func(OrderSnapshot)) (unsubscribe func()) {
	u1 := v.gate.Subscribe(func(cb qc.Combined) { fn(v.snapshot(cb)) })
	u2 := v.s.c.Store().Subscribe(StatusMutationKey(v.id), func(qc.Entry) { fn(v.Snapshot()) })
	return func() {
		u1()
		u2()
	}
}

// Wait blocks until the order and its products have both settled.
func (v *OrderView) Wait(ctx context.Context) (OrderSnapshot, error) {
	cb, err := v.gate.Wait(ctx)
	return v.snapshot(cb), err
}

// Close stops following the order. Entries stay cached.
func (v *OrderView) Close() {
	for _, u := range v.unsubs {
		u()
	}
	v.unsubs = nil
	v.gate.Close()
}

func (v *OrderView) snapshot(cb qc.Combined) OrderSnapshot {
	snap := OrderSnapshot{
		Status:     cb.Status,
		Err:        cb.Err,
		IsUpdating: v.s.Updating(v.id),
	}
	if o, ok := qc.Data[Order](cb.Upstreams[0]); ok {
		joined := &OrderWithProducts{Order: o}
		joined.ProductDetails, _ = qc.Data[[]Product](cb.Downstream)
		snap.Order = joined
	}
	return snap
}

// UpdateStatus sets the status of order id and patches the cached detail and
// collection with the result. It fails with querycache.ErrMutationInFlight
// while a previous update of the same order is pending.
func (s *Service) UpdateStatus(ctx context.Context, id int, status Status) (Order, error) {
	return s.mutation(id).Run(ctx, status)
}

// Updating reports whether a status update of order id is pending.
func (s *Service) Updating(id int) bool {
	return qc.MutationStatusOf(s.c.Store().Get(StatusMutationKey(id))) == qc.MutationPending
}

func (s *Service) mutation(id int) *qc.Mutation[Status, Order] {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mutations[id]
	if !ok {
		m = UpdateStatusMutation(s.c, s.api, id)
		s.mutations[id] = m
	}
	return m
}
