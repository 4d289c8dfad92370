package orders

import "context"

// API is the remote collaborator the queries and the mutation run against.
// Implementations return values the cache treats as authoritative.
type API interface {
	ListOrders(ctx context.Context) ([]Order, error)
	GetOrder(ctx context.Context, id int) (Order, error)
	// GetProducts returns the products for ids, in ids order.
	GetProducts(ctx context.Context, ids []int) ([]Product, error)
	// UpdateOrderStatus returns the updated order record.
	UpdateOrderStatus(ctx context.Context, id int, status Status) (Order, error)
}
