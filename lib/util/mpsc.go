// Package util provides a lock-free Multi-Producer Single-Consumer (MPSC)
// queue used to carry cache lifecycle events out of the locked scheduler
// region to a single consumer (logging, tests, monitoring).
//
// Features and Guarantees:
//
//   - Lock-Free writes: atomic operations keep Push cheap even when many
//     goroutines settle fetches concurrently
//   - Unbounded Size: the queue grows as needed, limited only by memory
//   - Thread-Safe writes: any number of goroutines may Push concurrently
//   - Single Consumer: one goroutine consumes values via the Recv channel
//   - Lazy Consumer: the consumer goroutine starts on the first Recv call, a
//     queue whose output is never requested carries no goroutine at all
//   - No Strict FIFO Guarantee: under concurrent Push operations the order is
//     determined by which producer completes first
package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is a lock-free multi-producer single-consumer queue built on
// a linked list of nodes with atomic pointer operations.
type LockFreeMPSC[T any] struct {
	head      atomic.Pointer[node[T]]
	tail      atomic.Pointer[node[T]]
	out       chan *T
	closed    atomic.Bool
	startOnce sync.Once

	// Condition variable so the consumer can sleep while the queue is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates a new queue. The consumer goroutine is not started
// until the output channel is requested via Recv.
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	// Sentinel node so head/tail are never nil
	sentinel := &node[T]{}

	q := &LockFreeMPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	return q
}

// Push adds an item to the queue.
// Returns true if the item was added, or false if the queue is closed.
//
// Thread-safety: safe for concurrent use by any number of producers.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var backoff uint8
	for {
		tailNode := q.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			// The tail has no successor yet, try to append our node
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// Appended. The tail CAS may lose to a helping producer,
				// which is fine - tail converges either way.
				q.tail.CompareAndSwap(tailNode, newNode)

				// Wake the consumer
				q.cond.Signal()
				return true
			}
		} else {
			// Help a producer that appended but has not updated tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// Exponential backoff under contention: spin first, yield once the
		// retry count grows, so a burst of settling fetches does not turn
		// into a thundering herd on the tail pointer.
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume drains the linked list into the output channel and frees nodes.
func (q *LockFreeMPSC[T]) consume() {
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}

			hasItems = true
			value := next.value

			// Advance head, releasing the old node to the GC
			q.head.Store(next)
			q.out <- value
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			// Re-check after acquiring the lock, a producer may have pushed
			// between the empty check and here
			head := q.head.Load()
			if head.next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the receive-only channel for consuming from the queue. The
// first call starts the consumer goroutine; a queue whose output is never
// requested has no consumer, and its items are released together with the
// queue itself. Once requested, the channel must be drained or the consumer
// blocks on the next delivery.
func (q *LockFreeMPSC[T]) Recv() <-chan *T {
	q.startOnce.Do(func() {
		go q.consume()
	})
	return q.out
}

// Close closes the queue, preventing further writes. If a consumer was
// started (Recv has been called), items already queued are still delivered
// before the Recv channel closes; without one they are simply dropped with
// the queue.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.cond.Signal()
}

// IsClosed returns true if the queue is closed.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}
