package orders

import (
	"context"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	qc "github.com/unkn0wn-root/querycache"
)

// OrdersQuery fetches the whole collection. Filtering happens at read time
// through FilterByStatus, so every filter shares one entry and one fetch.
func OrdersQuery(api API) qc.Query[[]Order] {
	return qc.Query[[]Order]{
		Key:   OrdersKey(),
		Fetch: api.ListOrders,
	}
}

// OrderQuery fetches one order's detail.
func OrderQuery(api API, id int) qc.Query[Order] {
	return qc.Query[Order]{
		Key: OrderKey(id),
		Fetch: func(ctx context.Context) (Order, error) {
			return api.GetOrder(ctx, id)
		},
	}
}

// OrderProductsQuery fetches the products of an order once its detail is
// available. Only the line items are compared between upstream versions: a
// status change of the order does not refetch its products.
func OrderProductsQuery(api API, id int) qc.DependentQuery[Order, []Product] {
	return qc.DependentQuery[Order, []Product]{
		Upstream: OrderKey(id),
		Key:      OrderProductsKey(id),
		Fetch: func(ctx context.Context, o Order) ([]Product, error) {
			ids := o.ProductIDs()
			if len(ids) == 0 {
				return []Product{}, nil
			}
			return api.GetProducts(ctx, ids)
		},
		Equal: sameLineItems,
	}
}

func sameLineItems(a, b Order) bool {
	return cmp.Equal(a.Products, b.Products, cmpopts.EquateEmpty())
}
