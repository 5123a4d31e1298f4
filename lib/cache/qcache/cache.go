package qcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/resqcache/resq/lib/cache"
	"github.com/resqcache/resq/lib/util"
)

// --------------------------------------------------------------------------
// Constants and Options
// --------------------------------------------------------------------------

const (
	// DefaultCapacity is the maximum number of entries held by default.
	DefaultCapacity = 100
	// DefaultMaxConcurrent is the default bound on in-flight fetches.
	DefaultMaxConcurrent = 5
)

// Options configures a QueryCache during initialization.
type Options struct {
	Capacity      int    // Maximum number of entries (0 = DefaultCapacity)
	MaxConcurrent int    // Maximum simultaneous fetches (0 = DefaultMaxConcurrent)
	MetricsName   string // Label for exported metrics ("" = metrics disabled)
}

// DefaultOptions returns the default QueryCache options.
func DefaultOptions() *Options {
	return &Options{
		Capacity:      DefaultCapacity,
		MaxConcurrent: DefaultMaxConcurrent,
	}
}

// --------------------------------------------------------------------------
// Core Structures
// --------------------------------------------------------------------------

// settlement is the outcome delivered to every waiter of an entry.
type settlement[V any] struct {
	value V
	err   error
}

// entry holds the cached state for one key.
//
// The waiters slice fans out the settlement to every concurrent Get for the
// key: each waiter owns a buffered channel that receives exactly one
// settlement (from the fetch, a Cancel or Close), so senders never block.
type entry[V any] struct {
	key     string
	status  cache.Status
	value   V
	err     error
	fetch   cache.FetchFunc[V]
	waiters []chan settlement[V]
}

// QueryCache is the in-process implementation of cache.ICache.
//
// All scheduler state (entry map, dispatch stack, LRU index, slot counter)
// mutates under one mutex so the check-slot/start-fetch critical section is
// atomic and the concurrency bound cannot be exceeded by racing callers.
// Fetches themselves run on their own goroutines outside the lock.
type QueryCache[V any] struct {
	opts Options

	// baseCtx is handed to every fetch and cancelled on Close
	baseCtx context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	closed      bool
	entries     map[string]*entry[V]
	stack       []string // LIFO dispatch stack, top = most recently queued
	lru         *util.MapHeap
	accessClock uint64 // logical access index, monotonic under mu
	fetching    int    // entries currently in StatusFetching

	// counters (authoritative, under mu)
	hitCount        uint64
	missCount       uint64
	evictionCount   uint64
	fetchErrorCount uint64

	events *util.LockFreeMPSC[Event]

	// exported metrics, nil if MetricsName is empty
	mHits        *metrics.Counter
	mMisses      *metrics.Counter
	mEvictions   *metrics.Counter
	mFetchErrors *metrics.Counter
}

// compile time interface check
var _ cache.ICache[[]byte] = (*QueryCache[[]byte])(nil)

// --------------------------------------------------------------------------
// Initialization
// --------------------------------------------------------------------------

// New creates a new QueryCache with the specified options (optional).
// The options are copied, the caller's struct is never modified.
func New[V any](opts *Options) *QueryCache[V] {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &QueryCache[V]{
		opts:    o,
		baseCtx: ctx,
		cancel:  cancel,
		entries: make(map[string]*entry[V], o.Capacity),
		lru:     util.NewMapHeap(),
		events:  util.NewLockFreeMPSC[Event](),
	}

	if o.MetricsName != "" {
		c.mHits = metrics.GetOrCreateCounter(fmt.Sprintf(`resq_cache_hits_total{cache=%q}`, o.MetricsName))
		c.mMisses = metrics.GetOrCreateCounter(fmt.Sprintf(`resq_cache_misses_total{cache=%q}`, o.MetricsName))
		c.mEvictions = metrics.GetOrCreateCounter(fmt.Sprintf(`resq_cache_evictions_total{cache=%q}`, o.MetricsName))
		c.mFetchErrors = metrics.GetOrCreateCounter(fmt.Sprintf(`resq_cache_fetch_errors_total{cache=%q}`, o.MetricsName))
	}

	return c
}

// Events returns the entry lifecycle event stream. The stream goroutine
// starts on the first call, so a cache whose events are never requested
// carries no extra goroutine. Once requested, the stream should be drained;
// the channel is closed when the cache is closed.
func (c *QueryCache[V]) Events() <-chan *Event {
	return c.events.Recv()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see cache/interface.go)
// --------------------------------------------------------------------------

func (c *QueryCache[V]) Register(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return cache.NewError(cache.RetCCacheClosed, "cache is closed")
	}

	_, err := c.registerLocked(key)
	return err
}

func (c *QueryCache[V]) Get(ctx context.Context, key string, fetch cache.FetchFunc[V]) (V, error) {
	var zero V

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, cache.NewError(cache.RetCCacheClosed, "cache is closed")
	}

	e, err := c.registerLocked(key)
	if err != nil {
		c.mu.Unlock()
		return zero, err
	}

	c.touchLocked(e)

	// Terminal entries are served immediately; the fetch is never re-run.
	switch e.status {
	case cache.StatusSuccess:
		c.hitCount++
		c.incr(c.mHits)
		value := e.value
		c.mu.Unlock()
		return value, nil
	case cache.StatusError:
		c.hitCount++
		c.incr(c.mHits)
		msg := e.err.Error()
		c.mu.Unlock()
		return zero, cache.NewError(cache.RetCFetchFailed, msg)
	}

	c.missCount++
	c.incr(c.mMisses)

	waiter := make(chan settlement[V], 1)
	e.waiters = append(e.waiters, waiter)

	if e.status == cache.StatusPending {
		// First interested caller wins: its fetch function is the one that
		// runs, later Gets for the key just wait on the same settlement.
		e.fetch = fetch
		e.status = cache.StatusQueued
		c.stack = append(c.stack, key)
		c.emit(EventQueued, key, "")
	}

	c.dispatchLocked()
	c.mu.Unlock()

	select {
	case s := <-waiter:
		return s.value, s.err
	case <-ctx.Done():
		// Drop only this caller's interest. A fetch that already started
		// still completes and settles the entry for future readers.
		c.removeWaiter(key, waiter)
		return zero, ctx.Err()
	}
}

func (c *QueryCache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func (c *QueryCache[V]) GetStatus(key string) (cache.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return e.status, true
}

func (c *QueryCache[V]) Cancel(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}

	c.rejectWaiters(e, cache.NewError(cache.RetCCancelled, "request cancelled"))

	// A queued entry leaves the dispatch stack and becomes pending again.
	// A fetching entry is left alone: the fetch completes and settles the
	// entry, it just has nobody left to notify.
	if e.status == cache.StatusQueued {
		c.removeFromStack(key)
		e.status = cache.StatusPending
		e.fetch = nil
	}

	c.emit(EventCancelled, key, "")
}

func (c *QueryCache[V]) Evict(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.status.Terminal() {
		return false
	}

	delete(c.entries, key)
	c.lru.RemoveByKey(key)
	c.evictionCount++
	c.incr(c.mEvictions)
	c.emit(EventEvicted, key, "")
	return true
}

func (c *QueryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		c.rejectWaiters(e, cache.NewError(cache.RetCCancelled, "cache cleared"))
	}

	c.entries = make(map[string]*entry[V], c.opts.Capacity)
	c.stack = nil
	c.lru = util.NewMapHeap()
	// Note: c.fetching is NOT reset, in-flight fetches still hold their
	// slots until they return (their entries are gone, so they settle into
	// the void and only free the slot).
}

func (c *QueryCache[V]) Stats() cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	queued := 0
	for _, e := range c.entries {
		if e.status == cache.StatusQueued {
			queued++
		}
	}

	return cache.Stats{
		Entries:     len(c.entries),
		Queued:      queued,
		Fetching:    c.fetching,
		Hits:        c.hitCount,
		Misses:      c.missCount,
		Evictions:   c.evictionCount,
		FetchErrors: c.fetchErrorCount,
	}
}

func (c *QueryCache[V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	for _, e := range c.entries {
		c.rejectWaiters(e, cache.NewError(cache.RetCCacheClosed, "cache closed"))
	}
	c.entries = make(map[string]*entry[V])
	c.stack = nil
	c.lru = util.NewMapHeap()
	c.mu.Unlock()

	// Cancel the context handed to in-flight fetches and stop the event
	// stream. Fetch goroutines drain on their own.
	c.cancel()
	c.events.Close()
	return nil
}

// --------------------------------------------------------------------------
// Scheduling (all methods below expect c.mu to be held)
// --------------------------------------------------------------------------

// registerLocked creates a pending entry for key if absent, evicting the
// least-recently-accessed terminal entry when at capacity. It fails with
// RetCCacheFull if the cache is full and every entry is still active.
func (c *QueryCache[V]) registerLocked(key string) (*entry[V], error) {
	if e, ok := c.entries[key]; ok {
		return e, nil
	}

	if len(c.entries) >= c.opts.Capacity {
		// Only terminal entries live in the LRU index, so the heap root is
		// always a legal victim.
		victim, ok := c.lru.PopMin()
		if !ok {
			return nil, cache.NewError(cache.RetCCacheFull,
				fmt.Sprintf("cache at capacity (%d) with no evictable entry", c.opts.Capacity))
		}
		delete(c.entries, victim)
		c.evictionCount++
		c.incr(c.mEvictions)
		c.emit(EventEvicted, victim, "")
	}

	e := &entry[V]{
		key:    key,
		status: cache.StatusPending,
	}
	c.entries[key] = e
	c.emit(EventRegistered, key, "")
	return e, nil
}

// touchLocked advances the logical access clock for an entry. Only terminal
// entries are tracked in the LRU index - active entries are not evictable.
func (c *QueryCache[V]) touchLocked(e *entry[V]) {
	c.accessClock++
	if e.status.Terminal() {
		c.lru.Touch(e.key, c.accessClock)
	}
}

// dispatchLocked starts fetches for queued entries until the concurrency
// limit is reached or the stack is empty. The stack is consumed top-first,
// so the most recently queued request wins the next free slot (LIFO).
func (c *QueryCache[V]) dispatchLocked() {
	for c.fetching < c.opts.MaxConcurrent && len(c.stack) > 0 {
		key := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]

		e, ok := c.entries[key]
		if !ok || e.status != cache.StatusQueued {
			// Stale stack slot left behind by Cancel or Clear
			continue
		}

		e.status = cache.StatusFetching
		c.fetching++
		c.emit(EventFetching, key, "")
		go c.runFetch(key, e.fetch)
	}
}

// runFetch executes one fetch outside the lock and settles the entry.
func (c *QueryCache[V]) runFetch(key string, fetch cache.FetchFunc[V]) {
	value, err := fetch(c.baseCtx)

	c.mu.Lock()
	c.fetching--

	// The entry may be gone (Clear/Close) - then the outcome is dropped and
	// only the slot is freed.
	if e, ok := c.entries[key]; ok && e.status == cache.StatusFetching {
		c.accessClock++
		e.fetch = nil

		var s settlement[V]
		if err != nil {
			e.status = cache.StatusError
			e.err = err
			c.fetchErrorCount++
			c.incr(c.mFetchErrors)
			c.emit(EventSettled, key, err.Error())
			s = settlement[V]{err: cache.NewError(cache.RetCFetchFailed, err.Error())}
		} else {
			e.status = cache.StatusSuccess
			e.value = value
			c.emit(EventSettled, key, "")
			s = settlement[V]{value: value}
		}

		// The entry is terminal now and becomes an eviction candidate.
		c.lru.Touch(key, c.accessClock)

		// Fan-out: every concurrent Get for this key gets the settlement.
		waiters := e.waiters
		e.waiters = nil
		for _, ch := range waiters {
			ch <- s
		}
	}

	// A slot freed up - dispatch the most recently queued entry. Errors are
	// isolated to their key, the scheduler keeps going either way.
	c.dispatchLocked()
	c.mu.Unlock()
}

// rejectWaiters delivers err to all waiters of an entry and clears the list.
func (c *QueryCache[V]) rejectWaiters(e *entry[V], err error) {
	for _, ch := range e.waiters {
		ch <- settlement[V]{err: err}
	}
	e.waiters = nil
}

// removeFromStack deletes a key from the dispatch stack.
func (c *QueryCache[V]) removeFromStack(key string) {
	for i, k := range c.stack {
		if k == key {
			c.stack = append(c.stack[:i], c.stack[i+1:]...)
			return
		}
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// removeWaiter drops a single waiter channel (caller gave up via context).
func (c *QueryCache[V]) removeWaiter(key string, waiter chan settlement[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	for i, ch := range e.waiters {
		if ch == waiter {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return
		}
	}
}

// incr increments a metric counter if metrics are enabled.
func (c *QueryCache[V]) incr(m *metrics.Counter) {
	if m != nil {
		m.Inc()
	}
}

// emit publishes a lifecycle event. Push is lock-free, so holding c.mu here
// is cheap and keeps event order consistent with state transitions.
func (c *QueryCache[V]) emit(t EventType, key, errMsg string) {
	c.events.Push(&Event{Type: t, Key: key, Err: errMsg})
}
