// -*- tab-width:2 -*-

package netchan

import (
	"time"
)

// An item holds one scheduled envelope in the release queue.
type item struct {
	env       *Envelope
	releaseAt time.Time
	// The index is needed by heap.Fix and is maintained by the
	// heap.Interface methods.
	index int // The index of the item in the heap.
}

// A releaseQueue implements heap.Interface and holds items ordered
// soonest release first, regardless of insertion order.
type releaseQueue []*item

func (pq releaseQueue) Len() int { return len(pq) }

func (pq releaseQueue) Less(i, j int) bool {
	// Pop gives us the earliest release time.
	return pq[i].releaseAt.Before(pq[j].releaseAt)
}

func (pq releaseQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push adds a value to the pqueue - called by
// heap.Interface
func (pq *releaseQueue) Push(x any) {
	n := len(*pq)
	it := x.(*item)
	it.index = n
	*pq = append(*pq, it)
}

// Pop removes a value from the pqueue -
// called by heap.Interface
func (pq *releaseQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // avoid memory leak
	it.index = -1  // for safety
	*pq = old[0 : n-1]
	return it
}

// peek returns the earliest item without removing it, or nil.
func (pq releaseQueue) peek() *item {
	if len(pq) == 0 {
		return nil
	}

	return pq[0]
}
