package prioritizer

import "quoter/internal/schema"

// pending is a queued request tagged with its submission sequence.
type pending struct {
	req schema.OrderRequest
	seq uint64
}

// pendingHeap orders by priority descending, then submission order. The
// tie-break keeps equal-priority forwarding fair and deterministic.
type pendingHeap []pending

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(pending)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
