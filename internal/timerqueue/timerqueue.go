// Package timerqueue orders pending timer deadlines so the dispatch loop can
// ask for the soonest one cheaply.
package timerqueue

import (
	"container/heap"
	"time"
)

// Item is a queued deadline. Value is opaque to the queue.
type Item struct {
	Deadline time.Time
	Value    any

	seq   uint64
	index int
}

// Queued reports whether the item currently sits in a queue.
func (it *Item) Queued() bool {
	return it.index >= 0
}

type items []*Item

func (h items) Len() int { return len(h) }

// Equal deadlines keep insertion order.
func (h items) Less(i, j int) bool {
	if h[i].Deadline.Equal(h[j].Deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].Deadline.Before(h[j].Deadline)
}

func (h items) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *items) Push(x any) {
	it := x.(*Item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *items) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is a min-heap of deadlines. It is not safe for concurrent use.
type Queue struct {
	heap items
	seq  uint64
}

func New() *Queue {
	return &Queue{}
}

// NewItem returns an unqueued item carrying value.
func NewItem(value any) *Item {
	return &Item{Value: value, index: -1}
}

func (q *Queue) Len() int {
	return len(q.heap)
}

// Push queues it at deadline. An item that is already queued is moved.
func (q *Queue) Push(it *Item, deadline time.Time) {
	if it.Queued() {
		q.Remove(it)
	}
	q.seq++
	it.seq = q.seq
	it.Deadline = deadline
	heap.Push(&q.heap, it)
}

// Remove takes it out of the queue. Removing an unqueued item is a no-op.
func (q *Queue) Remove(it *Item) {
	if !it.Queued() || it.index >= len(q.heap) || q.heap[it.index] != it {
		return
	}
	heap.Remove(&q.heap, it.index)
}

// PeekMin returns the soonest deadline, if any.
func (q *Queue) PeekMin() (time.Time, bool) {
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].Deadline, true
}

// PopReady removes and returns, in deadline order, every item whose
// deadline is not after now.
func (q *Queue) PopReady(now time.Time) []*Item {
	var ready []*Item
	for len(q.heap) > 0 && !q.heap[0].Deadline.After(now) {
		ready = append(ready, heap.Pop(&q.heap).(*Item))
	}
	return ready
}
