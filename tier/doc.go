// Package tier is a shared second-level cache for producer responses. The
// query cache keeps one process's view; the tier lets several views (or
// processes, with the Redis provider) reuse each other's remote lookups.
//
// Records are guarded by per-key generations (compare-and-swap): a writer
// snapshots the generation before its remote read and the write lands only
// if nobody invalidated the key in between. Reads validate the generation
// again, so a tier hit is never older than the last Invalidate.
//
// Keys:
//
//	single:<ns>:<key>  one value
//	bulk:<ns>:<hash>   a set of values (hash over the sorted member keys)
//
// Pattern:
//
//	obs := t.SnapshotGen(ctx, k)
//	v, err := fetchRemote(k)
//	_ = t.SetWithGen(ctx, k, v, obs, 0)
package tier
