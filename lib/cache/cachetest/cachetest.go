package cachetest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/resqcache/resq/lib/cache"
)

// CacheFactory is a function that creates a new instance of an ICache
// implementation. The returned cache must resolve fetches to the key bytes
// (echo semantics): local implementations do so via the fetch function this
// suite passes to Get, remote implementations via an echo fetcher configured
// on the server side.
type CacheFactory func() cache.ICache[[]byte]

// RunCacheTests runs a conformance test suite for an ICache implementation.
func RunCacheTests(t *testing.T, name string, factory CacheFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Register&Has", func(t *testing.T) {
			testRegisterHas(t, factory())
		})

		t.Run("Get", func(t *testing.T) {
			testGet(t, factory())
		})

		t.Run("GetStatus", func(t *testing.T) {
			testGetStatus(t, factory())
		})

		t.Run("Cancel", func(t *testing.T) {
			testCancel(t, factory())
		})

		t.Run("Evict", func(t *testing.T) {
			testEvict(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("Stats", func(t *testing.T) {
			testStats(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentAccess", func(t *testing.T) {
			testConcurrentAccess(t, factory())
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// echoFetch resolves to the key bytes, matching the suite's echo convention.
func echoFetch(key string) cache.FetchFunc[[]byte] {
	return func(ctx context.Context) ([]byte, error) {
		return []byte(key), nil
	}
}

// mustGet fetches a key and fails the test on error or value mismatch.
func mustGet(t *testing.T, c cache.ICache[[]byte], key string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	value, err := c.Get(ctx, key, echoFetch(key))
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	if !bytes.Equal(value, []byte(key)) {
		t.Fatalf("Get(%q): expected echo value, got %q", key, value)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testRegisterHas(t *testing.T, c cache.ICache[[]byte]) {
	defer c.Close()

	testKey := "register-test-key"

	if c.Has(testKey) {
		t.Errorf("Expected Has to return false for unregistered key")
	}

	if err := c.Register(testKey); err != nil {
		t.Fatalf("Unexpected error during Register: %v", err)
	}

	if !c.Has(testKey) {
		t.Errorf("Expected Has to return true after Register")
	}

	// Registering an existing key is a no-op
	if err := c.Register(testKey); err != nil {
		t.Errorf("Expected re-register to succeed, got %v", err)
	}

	if c.Len() != 1 {
		t.Errorf("Expected exactly one entry, got %d", c.Len())
	}
}

func testGet(t *testing.T, c cache.ICache[[]byte]) {
	defer c.Close()

	testKey := "get-test-key"

	mustGet(t, c, testKey)

	// Settled entries serve repeated reads
	mustGet(t, c, testKey)
	mustGet(t, c, testKey)

	if status, ok := c.GetStatus(testKey); !ok || status != cache.StatusSuccess {
		t.Errorf("Expected success status after Get, got (%s, %v)", status, ok)
	}
}

func testGetStatus(t *testing.T, c cache.ICache[[]byte]) {
	defer c.Close()

	testKey := "status-test-key"

	if _, ok := c.GetStatus(testKey); ok {
		t.Errorf("Expected GetStatus to report missing for unknown key")
	}

	if err := c.Register(testKey); err != nil {
		t.Fatalf("Unexpected error during Register: %v", err)
	}

	if status, ok := c.GetStatus(testKey); !ok || status != cache.StatusPending {
		t.Errorf("Expected pending status after Register, got (%s, %v)", status, ok)
	}

	mustGet(t, c, testKey)

	if status, ok := c.GetStatus(testKey); !ok || status != cache.StatusSuccess {
		t.Errorf("Expected success status after Get, got (%s, %v)", status, ok)
	}
}

func testCancel(t *testing.T, c cache.ICache[[]byte]) {
	defer c.Close()

	testKey := "cancel-test-key"

	// Cancel of an unknown key is a no-op
	c.Cancel("nonexistent-key")

	if err := c.Register(testKey); err != nil {
		t.Fatalf("Unexpected error during Register: %v", err)
	}

	c.Cancel(testKey)

	// The entry survives, only caller interest is dropped
	if !c.Has(testKey) {
		t.Errorf("Expected key to still exist after Cancel")
	}
	if status, ok := c.GetStatus(testKey); !ok || status != cache.StatusPending {
		t.Errorf("Expected pending status after Cancel, got (%s, %v)", status, ok)
	}

	// The key is still fetchable afterwards
	mustGet(t, c, testKey)
}

func testEvict(t *testing.T, c cache.ICache[[]byte]) {
	defer c.Close()

	testKey := "evict-test-key"

	if c.Evict("nonexistent-key") {
		t.Errorf("Expected Evict to return false for unknown key")
	}

	// Pending entries are not evictable
	if err := c.Register(testKey); err != nil {
		t.Fatalf("Unexpected error during Register: %v", err)
	}
	if c.Evict(testKey) {
		t.Errorf("Expected Evict to return false for non-terminal entry")
	}

	mustGet(t, c, testKey)

	if !c.Evict(testKey) {
		t.Errorf("Expected Evict to return true for settled entry")
	}
	if c.Has(testKey) {
		t.Errorf("Expected key to be gone after Evict")
	}

	// The key can be fetched again after eviction
	mustGet(t, c, testKey)
}

func testClear(t *testing.T, c cache.ICache[[]byte]) {
	defer c.Close()

	for i := 0; i < 10; i++ {
		mustGet(t, c, fmt.Sprintf("clear-test-key-%d", i))
	}

	if c.Len() != 10 {
		t.Fatalf("Expected 10 entries before Clear, got %d", c.Len())
	}

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d entries", c.Len())
	}

	// The cache stays usable
	mustGet(t, c, "clear-test-key-0")
}

func testStats(t *testing.T, c cache.ICache[[]byte]) {
	defer c.Close()

	testKey := "stats-test-key"

	mustGet(t, c, testKey) // miss
	mustGet(t, c, testKey) // hit

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Errorf("Expected 1 entry, got %d", stats.Entries)
	}
	if stats.Hits < 1 {
		t.Errorf("Expected at least 1 hit, got %d", stats.Hits)
	}
	if stats.Misses < 1 {
		t.Errorf("Expected at least 1 miss, got %d", stats.Misses)
	}
}

func testEdgeCases(t *testing.T, c cache.ICache[[]byte]) {
	defer c.Close()

	// Empty key
	emptyKey := ""
	mustGet(t, c, emptyKey)
	if !c.Has(emptyKey) {
		t.Errorf("Empty key not found after Get")
	}

	// Large key (e.g. a multi-kilobyte SQL statement)
	largeKey := string(bytes.Repeat([]byte("x"), 4096))
	mustGet(t, c, largeKey)
	if !c.Has(largeKey) {
		t.Errorf("Large key not found after Get")
	}
}

func testConcurrentAccess(t *testing.T, c cache.ICache[[]byte]) {
	defer c.Close()

	numWorkers := 8
	numKeys := 50
	opsPerWorker := 500

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			for i := 0; i < opsPerWorker; i++ {
				// Hot keys force waiter fan-out, the op mix exercises the
				// whole surface under contention
				key := fmt.Sprintf("concurrent-key-%d", (workerId+i)%numKeys)

				switch i % 10 {
				case 0, 1, 2, 3, 4, 5, 6:
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					value, err := c.Get(ctx, key, echoFetch(key))
					cancel()
					if err != nil {
						t.Errorf("Get(%q) failed: %v", key, err)
					} else if !bytes.Equal(value, []byte(key)) {
						t.Errorf("Get(%q): value mismatch: %q", key, value)
					}
				case 7:
					c.Has(key)
				case 8:
					c.GetStatus(key)
				case 9:
					c.Evict(key)
				}
			}
		}(w)
	}

	wg.Wait()

	// Every surviving entry must be consistent
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("concurrent-key-%d", i)
		if c.Has(key) {
			mustGet(t, c, key)
		}
	}
}

func testClose(t *testing.T, c cache.ICache[[]byte]) {
	mustGet(t, c, "close-test-key")

	if err := c.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}

	if err := c.Register("post-close-key"); !cache.IsCode(err, cache.RetCCacheClosed) {
		t.Errorf("Expected RetCCacheClosed after Close, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Get(ctx, "post-close-key", echoFetch("post-close-key")); !cache.IsCode(err, cache.RetCCacheClosed) {
		t.Errorf("Expected RetCCacheClosed from Get after Close, got %v", err)
	}

	// Close is idempotent
	if err := c.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
}
