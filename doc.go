// Package querycache implements a keyed cache of asynchronous resources for
// interactive clients. It deduplicates concurrent fetches per key, rejects
// responses from superseded fetches via per-key request generations, gates
// dependent queries on their upstream data and propagates mutation results into
// every entry that contains the mutated record.
//
// Components:
//   - Store: key -> Entry map; the only mutator is Set/Batch, listeners are
//     notified synchronously after each write.
//   - Client: the query executor. Decides per read/subscription whether to
//     start a fetch and writes the outcome back iff its generation is current.
//   - Gate: a dependent query wired to one or more upstream keys.
//   - Mutation: runs a write and applies its patches as one observable update.
//
// Keys:
//
//	["orders"]              - collection
//	["order", 3]            - detail
//	["order-products", 3]   - dependent on ["order", 3]
//	["mutation", name, ...] - mutation state
//
// Race guard:
//
//	gen := entry.Generation + 1 // on fetch start, entry -> Loading
//	v, err := producer(ctx)
//	write iff entry.Generation == gen // otherwise the result is discarded
package querycache
