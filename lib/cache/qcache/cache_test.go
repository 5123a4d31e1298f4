package qcache

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/resqcache/resq/lib/cache"
)

// waitForStatus polls until the entry for key reaches the wanted status.
func waitForStatus(t *testing.T, c *QueryCache[string], key string, want cache.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status, ok := c.GetStatus(key); ok && status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	status, ok := c.GetStatus(key)
	t.Fatalf("Timeout waiting for key %q to reach %s (exists=%v, status=%s)", key, want, ok, status)
}

// staticFetch returns a fetch function resolving to value and counts calls.
func staticFetch(value string, calls *atomic.Int32) cache.FetchFunc[string] {
	return func(ctx context.Context) (string, error) {
		if calls != nil {
			calls.Add(1)
		}
		return value, nil
	}
}

// TestRegisterAndHas verifies entry creation and idempotency
func TestRegisterAndHas(t *testing.T) {
	c := New[string](nil)
	defer c.Close()

	if c.Has("k") {
		t.Error("Has should be false for unregistered key")
	}

	if err := c.Register("k"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !c.Has("k") {
		t.Error("Has should be true after Register")
	}

	status, ok := c.GetStatus("k")
	if !ok || status != cache.StatusPending {
		t.Errorf("Expected pending status, got (%s, %v)", status, ok)
	}

	// Idempotent for existing keys
	if err := c.Register("k"); err != nil {
		t.Errorf("Re-register of existing key should be a no-op, got %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", c.Len())
	}
}

// TestGetFetchOnce verifies the fetch-once property: a successful entry is
// served from memory, the fetch function never runs again
func TestGetFetchOnce(t *testing.T) {
	c := New[string](nil)
	defer c.Close()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		value, err := c.Get(context.Background(), "k", staticFetch("result", &calls))
		if err != nil {
			t.Fatalf("Get %d failed: %v", i, err)
		}
		if value != "result" {
			t.Errorf("Get %d: expected %q, got %q", i, "result", value)
		}
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("Fetch should run exactly once, ran %d times", n)
	}
}

// TestConcurrentGetSharesFetch verifies waiter fan-out: concurrent Gets for
// the same key share a single in-flight fetch and all receive the result
func TestConcurrentGetSharesFetch(t *testing.T) {
	c := New[string](nil)
	defer c.Close()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "shared", nil
	}

	const numWaiters = 10
	var wg sync.WaitGroup
	wg.Add(numWaiters)
	errs := make(chan error, numWaiters)

	for i := 0; i < numWaiters; i++ {
		go func() {
			defer wg.Done()
			value, err := c.Get(context.Background(), "k", fetch)
			if err != nil {
				errs <- err
				return
			}
			if value != "shared" {
				errs <- errors.New("unexpected value " + value)
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Waiter failed: %v", err)
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("Expected a single shared fetch, got %d", n)
	}
}

// TestConcurrencyLimit verifies that the number of simultaneously fetching
// entries never exceeds the configured bound
func TestConcurrencyLimit(t *testing.T) {
	const limit = 2
	c := New[string](&Options{Capacity: 100, MaxConcurrent: limit})
	defer c.Close()

	var current, max atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		cur := current.Add(1)
		defer current.Add(-1)
		for {
			observed := max.Load()
			if cur <= observed || max.CompareAndSwap(observed, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		return "v", nil
	}

	keys := []string{"a", "b", "c", "d", "e", "f"}
	var wg sync.WaitGroup
	wg.Add(len(keys))
	for _, key := range keys {
		go func(key string) {
			defer wg.Done()
			if _, err := c.Get(context.Background(), key, fetch); err != nil {
				t.Errorf("Get(%q) failed: %v", key, err)
			}
		}(key)
	}
	wg.Wait()

	if observed := max.Load(); observed > limit {
		t.Errorf("Concurrency bound violated: observed %d simultaneous fetches, limit %d", observed, limit)
	} else if observed != limit {
		t.Errorf("Expected the limit of %d to be reached, observed %d", limit, observed)
	}
}

// TestLIFODispatch verifies that queued entries are dispatched newest-first
// as concurrency slots free up
func TestLIFODispatch(t *testing.T) {
	c := New[string](&Options{Capacity: 100, MaxConcurrent: 1})
	defer c.Close()

	release := make(chan struct{})
	blocker := func(ctx context.Context) (string, error) {
		<-release
		return "blocked", nil
	}

	var mu sync.Mutex
	var order []string
	recorder := func(key string) cache.FetchFunc[string] {
		return func(ctx context.Context) (string, error) {
			mu.Lock()
			order = append(order, key)
			mu.Unlock()
			return key, nil
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Get(context.Background(), "block", blocker)
	}()
	waitForStatus(t, c, "block", cache.StatusFetching)

	// Queue A, B, C in order while the only slot is occupied
	for _, key := range []string{"A", "B", "C"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			c.Get(context.Background(), key, recorder(key))
		}(key)
		waitForStatus(t, c, key, cache.StatusQueued)
	}

	close(release)
	wg.Wait()

	want := []string{"C", "B", "A"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("Expected %d dispatches, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("LIFO order violated: expected %v, got %v", want, order)
		}
	}
}

// TestFailureIsolation verifies that a failed fetch only affects its own key
// and that the failure is cached until eviction
func TestFailureIsolation(t *testing.T) {
	c := New[string](nil)
	defer c.Close()

	var failCalls atomic.Int32
	failing := func(ctx context.Context) (string, error) {
		failCalls.Add(1)
		return "", errors.New("boom")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	var errA, errB error
	var valueB string
	go func() {
		defer wg.Done()
		_, errA = c.Get(context.Background(), "a", failing)
	}()
	go func() {
		defer wg.Done()
		valueB, errB = c.Get(context.Background(), "b", staticFetch("ok", nil))
	}()
	wg.Wait()

	if !cache.IsCode(errA, cache.RetCFetchFailed) {
		t.Errorf("Expected RetCFetchFailed for key a, got %v", errA)
	}
	if errB != nil || valueB != "ok" {
		t.Errorf("Key b should be unaffected, got (%q, %v)", valueB, errB)
	}

	// The error is terminal: served from cache, no retry
	if _, err := c.Get(context.Background(), "a", failing); !cache.IsCode(err, cache.RetCFetchFailed) {
		t.Errorf("Expected cached RetCFetchFailed, got %v", err)
	}
	if n := failCalls.Load(); n != 1 {
		t.Errorf("Failed fetch should not be retried automatically, ran %d times", n)
	}

	// Explicit eviction enables the retry
	if !c.Evict("a") {
		t.Fatal("Evict of terminal error entry should succeed")
	}
	value, err := c.Get(context.Background(), "a", staticFetch("recovered", nil))
	if err != nil || value != "recovered" {
		t.Errorf("Retry after Evict failed: (%q, %v)", value, err)
	}
}

// TestLRUEviction verifies that registering past capacity removes the entry
// with the oldest access among terminal entries
func TestLRUEviction(t *testing.T) {
	c := New[string](&Options{Capacity: 3, MaxConcurrent: 5})
	defer c.Close()

	for _, key := range []string{"k1", "k2", "k3"} {
		if _, err := c.Get(context.Background(), key, staticFetch(key, nil)); err != nil {
			t.Fatalf("Get(%q) failed: %v", key, err)
		}
	}

	// Freshen k1, leaving k2 as the LRU entry
	if _, err := c.Get(context.Background(), "k1", staticFetch("k1", nil)); err != nil {
		t.Fatalf("Hit on k1 failed: %v", err)
	}

	if err := c.Register("k4"); err != nil {
		t.Fatalf("Register at capacity should evict, got %v", err)
	}

	if c.Has("k2") {
		t.Error("k2 should have been evicted as least recently accessed")
	}
	for _, key := range []string{"k1", "k3", "k4"} {
		if !c.Has(key) {
			t.Errorf("Key %q should still exist", key)
		}
	}

	if stats := c.Stats(); stats.Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.Evictions)
	}
}

// TestRegisterCacheFull verifies the explicit failure when the cache is at
// capacity and every entry is still active
func TestRegisterCacheFull(t *testing.T) {
	c := New[string](&Options{Capacity: 2, MaxConcurrent: 2})
	defer c.Close()

	release := make(chan struct{})
	blocker := func(ctx context.Context) (string, error) {
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			c.Get(context.Background(), key, blocker)
		}(key)
		waitForStatus(t, c, key, cache.StatusFetching)
	}

	err := c.Register("c")
	if !cache.IsCode(err, cache.RetCCacheFull) {
		t.Errorf("Expected RetCCacheFull while all entries are active, got %v", err)
	}
	if !errors.Is(err, cache.ErrCacheFull) {
		t.Errorf("Expected err to match cache.ErrCacheFull, got %v", err)
	}

	close(release)
	wg.Wait()

	// Now both entries are terminal and evictable
	if err := c.Register("c"); err != nil {
		t.Errorf("Register after settlement should evict and succeed, got %v", err)
	}
}

// TestQueuedBehindConcurrencyLimit verifies the scenario of a sixth request
// queued behind five occupied slots: it must not start until a slot frees
func TestQueuedBehindConcurrencyLimit(t *testing.T) {
	c := New[string](&Options{Capacity: 100, MaxConcurrent: 5})
	defer c.Close()

	release := make(chan struct{})
	blocker := func(ctx context.Context) (string, error) {
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for _, key := range []string{"q1", "q2", "q3", "q4", "q5"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			c.Get(context.Background(), key, blocker)
		}(key)
		waitForStatus(t, c, key, cache.StatusFetching)
	}

	var sixthStarted atomic.Bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Get(context.Background(), "q6", func(ctx context.Context) (string, error) {
			sixthStarted.Store(true)
			return "v6", nil
		})
	}()
	waitForStatus(t, c, "q6", cache.StatusQueued)

	if stats := c.Stats(); stats.Fetching != 5 || stats.Queued != 1 {
		t.Errorf("Expected 5 fetching / 1 queued, got %d / %d", stats.Fetching, stats.Queued)
	}
	if sixthStarted.Load() {
		t.Error("Sixth fetch must not start while all slots are occupied")
	}

	close(release)
	wg.Wait()

	if !sixthStarted.Load() {
		t.Error("Sixth fetch should have run after a slot freed up")
	}
}

// TestCancelQueued verifies that cancelling a queued entry unqueues it and
// rejects its waiters
func TestCancelQueued(t *testing.T) {
	c := New[string](&Options{Capacity: 100, MaxConcurrent: 1})
	defer c.Close()

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Get(context.Background(), "block", func(ctx context.Context) (string, error) {
			<-release
			return "v", nil
		})
	}()
	waitForStatus(t, c, "block", cache.StatusFetching)

	var cancelled atomic.Bool
	getDone := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "a", func(ctx context.Context) (string, error) {
			cancelled.Store(false)
			return "never", nil
		})
		getDone <- err
	}()
	waitForStatus(t, c, "a", cache.StatusQueued)

	c.Cancel("a")

	select {
	case err := <-getDone:
		if !cache.IsCode(err, cache.RetCCancelled) {
			t.Errorf("Expected RetCCancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Cancelled Get should return promptly")
	}

	if status, ok := c.GetStatus("a"); !ok || status != cache.StatusPending {
		t.Errorf("Cancelled queued entry should be pending again, got (%s, %v)", status, ok)
	}

	close(release)
	wg.Wait()

	// The cancelled entry must never have been dispatched
	if status, _ := c.GetStatus("a"); status != cache.StatusPending {
		t.Errorf("Unqueued entry was dispatched anyway, status %s", status)
	}
}

// TestCancelWhileFetching verifies that cancelling an in-flight entry does
// not interrupt the fetch: it completes and settles the cache
func TestCancelWhileFetching(t *testing.T) {
	c := New[string](nil)
	defer c.Close()

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "late", nil
	}

	getDone := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "k", fetch)
		getDone <- err
	}()
	waitForStatus(t, c, "k", cache.StatusFetching)

	c.Cancel("k")
	select {
	case err := <-getDone:
		if !cache.IsCode(err, cache.RetCCancelled) {
			t.Errorf("Expected RetCCancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Cancelled Get should return promptly")
	}

	// The fetch still completes and updates the cache
	close(release)
	waitForStatus(t, c, "k", cache.StatusSuccess)

	value, err := c.Get(context.Background(), "k", fetch)
	if err != nil || value != "late" {
		t.Errorf("Expected cached result after cancelled fetch, got (%q, %v)", value, err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("Fetch should have run exactly once, ran %d times", n)
	}
}

// TestGetContextCancelled verifies that an expired Get context drops only
// the caller, not the fetch
func TestGetContextCancelled(t *testing.T) {
	c := New[string](nil)
	defer c.Close()

	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		<-release
		return "v", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "k", fetch)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}

	close(release)
	waitForStatus(t, c, "k", cache.StatusSuccess)
}

// TestClear verifies that Clear rejects waiters and empties the cache
func TestClear(t *testing.T) {
	c := New[string](nil)
	defer c.Close()

	if _, err := c.Get(context.Background(), "done", staticFetch("v", nil)); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	release := make(chan struct{})
	defer close(release)
	getDone := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "pending", func(ctx context.Context) (string, error) {
			<-release
			return "v", nil
		})
		getDone <- err
	}()
	waitForStatus(t, c, "pending", cache.StatusFetching)

	c.Clear()

	select {
	case err := <-getDone:
		if !cache.IsCode(err, cache.RetCCancelled) {
			t.Errorf("Expected RetCCancelled after Clear, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Waiter should be rejected by Clear")
	}

	if c.Len() != 0 {
		t.Errorf("Cache should be empty after Clear, has %d entries", c.Len())
	}
}

// TestClose verifies lifecycle teardown
func TestClose(t *testing.T) {
	c := New[string](nil)

	release := make(chan struct{})
	defer close(release)
	getDone := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "k", func(ctx context.Context) (string, error) {
			<-release
			return "v", nil
		})
		getDone <- err
	}()
	waitForStatus(t, c, "k", cache.StatusFetching)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-getDone:
		if !cache.IsCode(err, cache.RetCCacheClosed) {
			t.Errorf("Expected RetCCacheClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Waiter should be rejected by Close")
	}

	if err := c.Register("other"); !cache.IsCode(err, cache.RetCCacheClosed) {
		t.Errorf("Register after Close should fail with RetCCacheClosed, got %v", err)
	}
	if _, err := c.Get(context.Background(), "other", staticFetch("v", nil)); !cache.IsCode(err, cache.RetCCacheClosed) {
		t.Errorf("Get after Close should fail with RetCCacheClosed, got %v", err)
	}

	// Double close is a no-op
	if err := c.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}

// TestEvents verifies the lifecycle event stream for a single key
func TestEvents(t *testing.T) {
	c := New[string](nil)

	if _, err := c.Get(context.Background(), "k", staticFetch("v", nil)); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	c.Close()

	var types []EventType
	for ev := range c.Events() {
		types = append(types, ev.Type)
	}

	want := []EventType{EventRegistered, EventQueued, EventFetching, EventSettled}
	if len(types) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("Event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

// TestCloseWithoutEventConsumer verifies that caches whose Events channel is
// never requested leave no goroutines behind after Close
func TestCloseWithoutEventConsumer(t *testing.T) {
	before := runtime.NumGoroutine()

	for i := 0; i < 50; i++ {
		c := New[string](nil)
		if _, err := c.Get(context.Background(), "k", staticFetch("v", nil)); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		c.Close()
	}

	// Fetch goroutines and event consumers need a moment to exit
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && runtime.NumGoroutine() > before {
		time.Sleep(10 * time.Millisecond)
	}

	if after := runtime.NumGoroutine(); after > before {
		t.Errorf("Closed caches without event consumers should leave no goroutines, had %d before and %d after", before, after)
	}
}

// TestNewDoesNotMutateOptions verifies that defaulting happens on a copy
func TestNewDoesNotMutateOptions(t *testing.T) {
	opts := &Options{}
	c := New[string](opts)
	defer c.Close()

	if opts.Capacity != 0 || opts.MaxConcurrent != 0 {
		t.Errorf("Caller options were modified: %+v", *opts)
	}
	if c.opts.Capacity != DefaultCapacity || c.opts.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("Expected defaults to apply internally, got %+v", c.opts)
	}
}

// TestStats verifies counter bookkeeping
func TestStats(t *testing.T) {
	c := New[string](nil)
	defer c.Close()

	c.Get(context.Background(), "k", staticFetch("v", nil)) // miss
	c.Get(context.Background(), "k", staticFetch("v", nil)) // hit
	c.Get(context.Background(), "fail", func(ctx context.Context) (string, error) {
		return "", errors.New("nope")
	}) // miss + fetch error

	stats := c.Stats()
	if stats.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("Expected 2 misses, got %d", stats.Misses)
	}
	if stats.FetchErrors != 1 {
		t.Errorf("Expected 1 fetch error, got %d", stats.FetchErrors)
	}
}
