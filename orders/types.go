package orders

import (
	"fmt"
	"slices"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusShipped Status = "shipped"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusPaid, StatusShipped}

// Valid reports whether s is one of Statuses.
func (s Status) Valid() bool { return slices.Contains(Statuses, s) }

// ParseStatus parses a status name. The empty string parses to the empty
// status, which filters nothing.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st == "" || st.Valid() {
		return st, nil
	}
	return "", fmt.Errorf("orders: unknown status %q (want one of %v)", s, Statuses)
}

// CartItem is one line item of an order.
type CartItem struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

type Order struct {
	ID       int        `json:"id"`
	UserID   int        `json:"userId"`
	Date     string     `json:"date"`
	Products []CartItem `json:"products"`
	Status   Status     `json:"status"`
}

// ProductIDs returns the product ids of o's line items in order.
func (o Order) ProductIDs() []int {
	ids := make([]int, len(o.Products))
	for i, it := range o.Products {
		ids[i] = it.ProductID
	}
	return ids
}

// ItemCount is the total quantity across line items.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Products {
		n += it.Quantity
	}
	return n
}

type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

type Product struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      Rating  `json:"rating"`
}

// OrderWithProducts joins an order with its product details. ProductDetails
// is nil until the dependent product query has succeeded.
type OrderWithProducts struct {
	Order
	ProductDetails []Product `json:"productDetails,omitempty"`
}

// Total is the sum of price*quantity over the line items whose product is
// known.
func (o OrderWithProducts) Total() float64 {
	price := make(map[int]float64, len(o.ProductDetails))
	for _, p := range o.ProductDetails {
		price[p.ID] = p.Price
	}
	var sum float64
	for _, it := range o.Products {
		sum += price[it.ProductID] * float64(it.Quantity)
	}
	return sum
}
