// Package cache defines the contract for a query-result cache with bounded
// fetch concurrency, request deduplication and LRU eviction. It is the
// abstraction layer used by result-hungry frontends (data grids, query
// editors) that request pages of query results by string key and must not
// overwhelm the backing data source with parallel fetches.
//
// The package focuses on:
//   - A unified interface (ICache) for local and remote cache implementations
//   - A small entry-status taxonomy (Status) describing the fetch lifecycle
//   - Structured error reporting with typed return codes
//
// Key Components:
//
//   - ICache Interface: The core abstraction. Callers register keys and ask
//     for values via Get, supplying a FetchFunc that produces the value on a
//     cache miss. Concurrent Gets for the same key share a single in-flight
//     fetch (fan-out: every waiter is notified on settlement). The number of
//     simultaneous fetches is bounded; surplus requests queue up and are
//     dispatched in LIFO order, newest first, on the assumption that the most
//     recent request is the one the user is still looking at.
//
//   - Status: The entry lifecycle (pending -> queued -> fetching ->
//     success|error). The terminal states cache their outcome - including
//     failures - until the entry is explicitly evicted. A caller that wants a
//     retry after an error must Evict and re-request the key.
//
//   - Error System: Typed error codes (RetCode) let callers distinguish a
//     full cache from a closed one or a cached fetch failure without string
//     matching.
//
// Implementations:
//
//   - Local cache (qcache): the in-process implementation with LIFO dispatch,
//     LRU eviction and lifecycle events. Available in the
//     "github.com/resqcache/resq/lib/cache/qcache" package.
//
//   - Remote cache (rpc/client): an ICache-shaped client that forwards
//     operations to a resq server over the configured transport; the fetch
//     itself runs server-side against the source bound to the served cache.
//
// The conformance suite in "github.com/resqcache/resq/lib/cache/cachetest"
// can be run against any ICache implementation.
package cache
