package watchdog

// nodeHeap is a min-heap of *AsyncTimeout keyed on expiry, with insertion
// order as a tie-break. It implements container/heap.Interface; every
// mutation keeps each node's index field in sync so a node can be removed
// in O(log n) without a linear scan.
type nodeHeap []*AsyncTimeout

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].expiry != h[j].expiry {
		return h[i].expiry.Before(h[j].expiry)
	}

	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*AsyncTimeout)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]

	return item
}
