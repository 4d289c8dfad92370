// Package fakestore implements orders.API against the Fake Store REST API
// (https://fakestoreapi.com): carts are orders, products are looked up one
// request per id.
//
// The remote API has no notion of order status and no way to change it.
// Statuses are assigned client-side by a StatusSource, and
// UpdateOrderStatus re-reads the cart and returns it with the requested
// status, the server-confirmed record as far as the caller can tell.
//
// Every request goes through a circuit breaker and is retried with
// exponential backoff on transport errors and 5xx/429 responses.
package fakestore
