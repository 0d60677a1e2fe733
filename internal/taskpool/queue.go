package taskpool

import (
	"container/heap"
	"encoding/json"
	"sort"

	"github.com/standardbeagle/contentbase/internal/types"
)

// taskKey identifies one (file_id, task_type) pair: at most one instance
// may be pending or running at a time.
type taskKey struct {
	FileID types.FileIdentifier
	Task   types.ContentTaskType
}

// pendingEntry is one task waiting in the scheduler's priority queue.
type pendingEntry struct {
	key        taskKey
	file       types.FileInfo
	priority   types.PriorityKey
	parameters json.RawMessage
	index      int // heap index, maintained by priorityQueue.Swap
}

// priorityQueue is a max-heap over pendingEntry ordered by PriorityKey,
// the same container/heap.Interface shape used elsewhere in this module's
// ancestry for priority scheduling: Push/Pop manipulate the backing slice
// directly and Swap keeps each entry's own index field in sync so a
// specific entry can later be removed by heap.Remove in O(log n).
type priorityQueue struct {
	entries []*pendingEntry
}

func newPriorityQueue() *priorityQueue {
	pq := &priorityQueue{}
	heap.Init(pq)
	return pq
}

func (pq *priorityQueue) Len() int { return len(pq.entries) }

func (pq *priorityQueue) Less(i, j int) bool {
	return pq.entries[i].priority.Less(pq.entries[j].priority)
}

func (pq *priorityQueue) Swap(i, j int) {
	pq.entries[i], pq.entries[j] = pq.entries[j], pq.entries[i]
	pq.entries[i].index = i
	pq.entries[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	e := x.(*pendingEntry)
	e.index = len(pq.entries)
	pq.entries = append(pq.entries, e)
}

func (pq *priorityQueue) Pop() any {
	old := pq.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	pq.entries = old[:n-1]
	return e
}

// Enqueue pushes a new entry, keeping the heap invariant.
func (pq *priorityQueue) Enqueue(e *pendingEntry) { heap.Push(pq, e) }

// Remove extracts e from the queue given its last-known heap index.
func (pq *priorityQueue) Remove(e *pendingEntry) {
	if e.index < 0 || e.index >= len(pq.entries) || pq.entries[e.index] != e {
		return
	}
	heap.Remove(pq, e.index)
}

// Find returns the pending entry for key, or nil.
func (pq *priorityQueue) Find(key taskKey) *pendingEntry {
	for _, e := range pq.entries {
		if e.key == key {
			return e
		}
	}
	return nil
}

// Snapshot returns every entry currently queued, in priority order
// (highest priority, i.e. smallest per PriorityKey.Less, first). The heap
// array itself is only root-ordered, so scheduling a dependency-gated
// queue needs this full ordering to skip a blocked head without popping
// it.
func (pq *priorityQueue) Snapshot() []*pendingEntry {
	out := append([]*pendingEntry(nil), pq.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].priority.Less(out[j].priority) })
	return out
}

// RemoveMatching removes and returns every entry satisfying pred, used by
// CancelByIdAndType/CancelById/CancelAll to drain pending work.
func (pq *priorityQueue) RemoveMatching(pred func(*pendingEntry) bool) []*pendingEntry {
	var removed []*pendingEntry
	for _, e := range pq.Snapshot() {
		if pred(e) {
			pq.Remove(e)
			removed = append(removed, e)
		}
	}
	return removed
}
