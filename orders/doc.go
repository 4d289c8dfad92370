// Package orders binds the order-management domain to the querycache
// engine: the orders collection with its status filter, the order detail with
// its dependent product list, and the status update mutation that keeps both
// consistent without a refetch.
package orders
