package util

import (
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}
}

// TestTouch tests inserting items into the index
func TestTouch(t *testing.T) {
	mh := NewMapHeap()

	mh.Touch("a", 100)
	mh.Touch("b", 200)
	mh.Touch("c", 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}

	for _, key := range []string{"a", "b", "c"} {
		if !mh.Contains(key) {
			t.Errorf("Heap should contain key %q", key)
		}
	}

	// Min heap, so the lowest access index should be first
	key, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}
	if key != "c" {
		t.Errorf("Expected min item to be \"c\", got %q", key)
	}
}

// TestTouchUpdate tests re-prioritizing existing items
func TestTouchUpdate(t *testing.T) {
	mh := NewMapHeap()

	mh.Touch("a", 100)
	mh.Touch("b", 200)

	// Freshen "a" past "b"
	mh.Touch("a", 300)

	if mh.Len() != 2 {
		t.Errorf("Touch of existing key should not grow the heap, len=%d", mh.Len())
	}

	min, _ := mh.Peek()
	if min != "b" {
		t.Errorf("Min item should now be \"b\", got %q", min)
	}

	// Move "b" even lower
	mh.Touch("b", 50)

	min, _ = mh.Peek()
	if min != "b" {
		t.Errorf("Min item should still be \"b\", got %q", min)
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap()

	mh.Touch("a", 100)
	mh.Touch("b", 200)
	mh.Touch("c", 300)

	priority, exists := mh.RemoveByKey("b")
	if !exists {
		t.Fatal("RemoveByKey should return true for existing key")
	}
	if priority != 200 {
		t.Errorf("RemoveByKey should return priority 200, got %d", priority)
	}

	if mh.Len() != 2 {
		t.Errorf("Heap should have 2 items after removal, has %d", mh.Len())
	}
	if mh.Contains("b") {
		t.Error("Heap should not contain key \"b\" after removal")
	}

	if _, exists = mh.RemoveByKey("nope"); exists {
		t.Error("RemoveByKey should return false for non-existent key")
	}
}

// TestPopMinOrder tests that items pop in access order
func TestPopMinOrder(t *testing.T) {
	mh := NewMapHeap()

	// Insert in random order
	entries := []struct {
		key      string
		priority uint64
	}{
		{"e", 50},
		{"c", 30},
		{"a", 10},
		{"d", 40},
		{"b", 20},
	}
	for _, e := range entries {
		mh.Touch(e.key, e.priority)
	}

	want := []string{"a", "b", "c", "d", "e"}
	for i, expected := range want {
		key, ok := mh.PopMin()
		if !ok {
			t.Fatalf("PopMin %d should succeed", i)
		}
		if key != expected {
			t.Errorf("PopMin %d: expected %q, got %q", i, expected, key)
		}
	}

	if _, ok := mh.PopMin(); ok {
		t.Error("PopMin on empty heap should return false")
	}
}
