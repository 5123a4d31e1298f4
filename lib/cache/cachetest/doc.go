// Package cachetest provides a reusable conformance test suite for
// implementations of the cache.ICache interface.
//
// The suite is implementation agnostic: it is run against the in-process
// qcache implementation as well as the RPC client, which resolves fetches
// on the server side. To make both comparable, the suite uses echo
// semantics - every fetch must resolve to the bytes of its own key. Local
// caches get this behavior from the fetch functions the suite passes to
// Get, remote caches from an echo fetcher configured on the server.
//
// Usage:
//
//	func TestMyCache(t *testing.T) {
//		cachetest.RunCacheTests(t, "MyCache", func() cache.ICache[[]byte] {
//			return mypkg.New(...)
//		})
//	}
package cachetest
