package util

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

// TestBasicOperations tests basic push and consume functionality
func TestBasicOperations(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	values := make([]int, 10)
	for i := 0; i < 10; i++ {
		values[i] = i
		if !q.Push(&values[i]) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("Expected %d, got %v", i, *val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	// Queue should now be empty
	select {
	case val := <-q.Recv():
		t.Errorf("Queue should be empty, but got %v", *val)
	case <-time.After(10 * time.Millisecond):
		// Expected timeout
	}
}

// TestConcurrentProducers verifies the queue works correctly with multiple producers
func TestConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	const numProducers = 10
	const itemsPerProducer = 1000
	totalItems := numProducers * itemsPerProducer

	received := make(map[int]bool)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for count := 0; count < totalItems; count++ {
			select {
			case val := <-q.Recv():
				if val == nil {
					t.Errorf("Received nil item")
					return
				}
				if received[*val] {
					t.Errorf("Duplicate item received: %d", *val)
				}
				received[*val] = true
			case <-time.After(2 * time.Second):
				t.Errorf("Timeout waiting for items, received %d of %d", count, totalItems)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(numProducers)

	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()

			base := producerID * itemsPerProducer
			for i := 0; i < itemsPerProducer; i++ {
				val := base + i
				if !q.Push(&val) {
					t.Errorf("Producer %d failed to push item %d", producerID, i)
				}
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}

	wg.Wait()

	select {
	case <-done:
		// Consumer finished
	case <-time.After(5 * time.Second):
		t.Fatalf("Timeout waiting for consumer to finish")
	}

	if len(received) != totalItems {
		t.Errorf("Expected %d distinct items, got %d", totalItems, len(received))
	}
}

// TestUnconsumedQueueNoGoroutine verifies that queues whose output is never
// requested do not hold a consumer goroutine alive after Close
func TestUnconsumedQueueNoGoroutine(t *testing.T) {
	before := runtime.NumGoroutine()

	for i := 0; i < 50; i++ {
		q := NewLockFreeMPSC[int]()
		for j := 0; j < 5; j++ {
			val := j
			q.Push(&val)
		}
		q.Close()
	}

	// Give any stray goroutines time to exit before counting
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && runtime.NumGoroutine() > before {
		time.Sleep(10 * time.Millisecond)
	}

	if after := runtime.NumGoroutine(); after > before {
		t.Errorf("Expected no goroutines to survive closed unconsumed queues, had %d before and %d after", before, after)
	}
}

// TestRecvAfterClose verifies that a consumer requested only after Close
// still drains the queue and sees the channel close
func TestRecvAfterClose(t *testing.T) {
	q := NewLockFreeMPSC[int]()

	values := make([]int, 3)
	for i := 0; i < 3; i++ {
		values[i] = i
		q.Push(&values[i])
	}
	q.Close()

	received := 0
	for {
		select {
		case val, ok := <-q.Recv():
			if !ok {
				if received != 3 {
					t.Errorf("Expected 3 items before close, got %d", received)
				}
				return
			}
			if *val != received {
				t.Errorf("Expected %d, got %v", received, *val)
			}
			received++
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for queue to drain and close, received %d items", received)
		}
	}
}

// TestCloseQueue verifies closing behavior
func TestCloseQueue(t *testing.T) {
	q := NewLockFreeMPSC[int]()

	values := make([]int, 5)
	for i := 0; i < 5; i++ {
		values[i] = i
		q.Push(&values[i])
	}

	q.Close()

	// No pushes after close
	val := 100
	if q.Push(&val) {
		t.Error("Should not be able to push after queue is closed")
	}
	if !q.IsClosed() {
		t.Error("IsClosed should report true after Close")
	}

	// Items queued before close are still delivered
	for i := 0; i < 5; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("Expected %d, got %v", i, *val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	// Channel closes once drained
	select {
	case _, ok := <-q.Recv():
		if ok {
			t.Error("Channel should be closed but delivered a value")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for channel close")
	}
}
