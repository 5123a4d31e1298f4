// Package qcache implements the in-process query-result cache behind the
// cache.ICache interface. It memoizes fetch operations by string key,
// deduplicates concurrent requests, bounds the number of simultaneous
// fetches and evicts least-recently-used terminal entries under capacity
// pressure.
//
// The package focuses on:
//   - A single mutex around all scheduler state so the concurrency bound
//     holds under arbitrary caller parallelism
//   - LIFO dispatch of queued fetches (recency bias: the request belonging
//     to what the user currently looks at is served first)
//   - Waiter fan-out so every concurrent Get for a key shares one fetch
//   - A lifecycle event stream decoupled from the locked region
//
// Key Components:
//
//   - QueryCache: The cache itself. Entries move through the status machine
//     pending -> queued -> fetching -> success|error. Terminal entries serve
//     reads immediately and cache failures as well as values; a retry
//     requires an explicit Evict. Eviction order is tracked with a logical
//     access clock (monotonic counter, not wall time) in a heap+map hybrid
//     index, so finding the LRU victim is O(1) and freshening a read O(log n).
//
//   - Scheduling: Get pushes new work onto a LIFO stack. Whenever a
//     concurrency slot is free (at queue time or when a fetch settles), the
//     top of the stack is dispatched onto its own goroutine. Settlement
//     broadcasts to all waiters and immediately redispatches, keeping
//     throughput at the configured bound.
//
//   - Capacity policy: registering a key when the cache is full evicts the
//     least-recently-accessed terminal entry. If every entry is still
//     active (queued/fetching), registration fails explicitly with
//     RetCCacheFull instead of silently dropping the key or growing without
//     bound.
//
//   - Cancellation: Cancel (or an expired Get context) only removes caller
//     interest. A fetch that already started is never interrupted - it
//     completes and settles the entry for future readers.
//
// Usage Example:
//
//	c := qcache.New[[]byte](&qcache.Options{Capacity: 100, MaxConcurrent: 5})
//	defer c.Close()
//
//	rows, err := c.Get(ctx, "SELECT * FROM t LIMIT 50", func(ctx context.Context) ([]byte, error) {
//		return source.Fetch(ctx, "SELECT * FROM t LIMIT 50")
//	})
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Fetch functions run outside the
//	cache lock and must be safe to run on their own goroutine.
package qcache
