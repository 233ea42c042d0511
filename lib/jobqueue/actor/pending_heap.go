package actor

import (
	"container/heap"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
)

// pendingHeap is the priority-ordered collection of Pending jobs owned by a
// single queue actor. Ordering key is (priority DESC, created_at ASC, id
// ASC); a binary heap gives O(log n) push/pop.
type pendingHeap []*job.Job

var _ heap.Interface = (*pendingHeap)(nil)

func (h pendingHeap) Len() int { return len(h) }

// Less implements the total order: higher priority first; ties broken by
// older creation time; further ties by smaller id.
func (h pendingHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) {
	*h = append(*h, x.(*job.Job))
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// removeByID removes and returns the job with the given id from the heap, if
// present. Used by CancelJob, which must be able to pull a job out of the
// pending set by identity rather than by heap order.
func (h *pendingHeap) removeByID(id job.ID) (*job.Job, bool) {
	for i, j := range *h {
		if j.ID == id {
			removed := heap.Remove(h, i)
			return removed.(*job.Job), true
		}
	}
	return nil, false
}
