// This file provides a specialized priority queue used as the cache's LRU
// eviction index.
//
// The implementation combines a binary min-heap with a hash map so the cache
// can both find the least-recently-accessed entry in O(1) (Peek) and keep the
// index in sync with reads and removals by key:
//
//   - O(log n) for Touch (insert or re-prioritize) and PopMin
//   - O(1) for key lookups and existence checks
//   - O(log n) for key-based removal
//
// Priorities are logical access indices handed out by the cache, not wall
// clock timestamps. The heap orders entries by the access index at which they
// were last read, so the root is always the eviction candidate.
//
// This implementation is not thread-safe; the owning cache serializes all
// access behind its own mutex.

package util

import (
	"container/heap"
	"strconv"
)

// item is a single entry in the eviction index: a cache key plus the logical
// access index at which it was last read.
type item struct {
	Key      string // Cache key of the entry
	Priority uint64 // Logical access index of the last read
	index    int    // Index in the heap slice, maintained by the heap package
}

func (i *item) String() string {
	return "{Key: " + i.Key + ", Priority: " + strconv.FormatUint(i.Priority, 10) + "}"
}

// MapHeap implements the LRU eviction index with both heap operations and
// key-based access.
type MapHeap struct {
	items    []*item          // The actual heap slice
	itemsMap map[string]*item // Map for O(1) access by key
}

// NewMapHeap creates a new empty eviction index.
func NewMapHeap() *MapHeap {
	return &MapHeap{
		items:    make([]*item, 0),
		itemsMap: make(map[string]*item),
	}
}

// Len returns the number of items in the index (part of heap.Interface).
func (h *MapHeap) Len() int { return len(h.items) }

// Less compares items by priority (part of heap.Interface).
// The lowest access index sits at the root, i.e. the LRU candidate.
func (h *MapHeap) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface).
func (h *MapHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface).
func (h *MapHeap) Push(x interface{}) {
	n := len(h.items)
	item := x.(*item)
	item.index = n
	h.items = append(h.items, item)
	h.itemsMap[item.Key] = item
}

// Pop removes and returns the minimum item (part of heap.Interface).
func (h *MapHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	h.items = old[:n-1]
	delete(h.itemsMap, item.Key)
	return item
}

// Touch inserts the key with the given priority, or re-prioritizes it if it
// is already present. The cache calls this whenever a terminal entry is read.
func (h *MapHeap) Touch(key string, priority uint64) {
	if item, exists := h.itemsMap[key]; exists {
		item.Priority = priority
		heap.Fix(h, item.index)
		return
	}

	heap.Push(h, &item{
		Key:      key,
		Priority: priority,
	})
}

// RemoveByKey removes an item by its key. It returns the priority the item
// held and whether it existed.
func (h *MapHeap) RemoveByKey(key string) (uint64, bool) {
	item, exists := h.itemsMap[key]
	if !exists {
		return 0, false
	}

	heap.Remove(h, item.index)
	return item.Priority, true
}

// Peek returns the key with the lowest priority without removing it.
func (h *MapHeap) Peek() (string, bool) {
	if len(h.items) == 0 {
		return "", false
	}
	return h.items[0].Key, true
}

// PopMin removes and returns the key with the lowest priority.
func (h *MapHeap) PopMin() (string, bool) {
	if len(h.items) == 0 {
		return "", false
	}
	item := heap.Pop(h).(*item)
	return item.Key, true
}

// Contains checks if a key exists in the index.
func (h *MapHeap) Contains(key string) bool {
	_, exists := h.itemsMap[key]
	return exists
}
