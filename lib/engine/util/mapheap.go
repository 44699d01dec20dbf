// Package util
//
// This file provides a keyed min-heap used as the expiry queue of document
// engines. It combines a binary heap with a hash map so the garbage
// collector gets both priority-ordered access (which document expires next)
// and O(1) key-based access (a document was rewritten or removed, drop its
// scheduled expiry).
//
// Complexity:
//   - O(log n) for priority operations (Push, Pop, Update)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// Concurrency: not thread-safe, callers synchronize externally (each engine
// shard owns one heap behind its own lock).
package util

import (
	"container/heap"
	"strconv"
)

// Item is an element of the queue with a uint64 key for identification
// and a uint64 priority (typically a logical deadline)
type Item struct {
	Key      uint64 // unique identifier for the item
	Priority uint64 // ordering value, smallest first
	index    int    // index in the heap, maintained by the heap package
}

func (i *Item) String() string {
	return "{Key: " + strconv.FormatUint(i.Key, 10) + ", Priority: " + strconv.FormatUint(i.Priority, 10) + "}"
}

// MapHeap implements a priority queue with both heap operations
// and key-based access
type MapHeap struct {
	items    []*Item          // the actual heap slice
	itemsMap map[uint64]*Item // map for O(1) access by key
}

// NewMapHeap creates a new keyed priority queue
func NewMapHeap() *MapHeap {
	return &MapHeap{
		items:    make([]*Item, 0),
		itemsMap: make(map[uint64]*Item),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap) Len() int { return len(mh.items) }

// Less compares items by priority (part of heap.Interface)
// Smallest priority first (min-heap by logical deadline)
func (mh *MapHeap) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (mh *MapHeap) Push(x interface{}) {
	n := len(mh.items)
	item := x.(*Item)
	item.index = n
	mh.items = append(mh.items, item)
	mh.itemsMap[item.Key] = item
}

// Pop removes and returns the minimum item (part of heap.Interface)
func (mh *MapHeap) Pop() interface{} {
	old := mh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	mh.items = old[:n-1]
	delete(mh.itemsMap, item.Key)
	return item
}

// AddItem adds a new item to the queue or updates the priority of an existing one
func (mh *MapHeap) AddItem(key, priority uint64) {
	if item, exists := mh.itemsMap[key]; exists {
		item.Priority = priority
		heap.Fix(mh, item.index)
		return
	}

	item := &Item{
		Key:      key,
		Priority: priority,
	}
	heap.Push(mh, item)
}

// RemoveByKey removes an item by its key
func (mh *MapHeap) RemoveByKey(key uint64) (uint64, bool) {
	item, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}

	heap.Remove(mh, item.index)
	return item.Priority, true
}

// Peek returns the minimum priority item without removing it
func (mh *MapHeap) Peek() (*Item, bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return mh.items[0], true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap) Contains(key uint64) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap) GetByKey(key uint64) (*Item, bool) {
	item, exists := mh.itemsMap[key]
	return item, exists
}
