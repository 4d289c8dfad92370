package orders

import qc "github.com/unkn0wn-root/querycache"

// OrdersKey is the key of the full orders collection.
func OrdersKey() qc.Key { return qc.NewKey("orders") }

// OrderKey is the key of one order's detail.
func OrderKey(id int) qc.Key { return qc.NewKey("order", id) }

// OrderProductsKey is the key of one order's product list.
func OrderProductsKey(id int) qc.Key { return qc.NewKey("order-products", id) }

// StatusMutationKey is where the status mutation of one order publishes its
// state.
func StatusMutationKey(id int) qc.Key { return qc.MutationKey("order-status", id) }
