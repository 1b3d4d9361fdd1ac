package proxy

import "container/heap"

// requestQueue is a priority queue ordered by (priority, seq).
type requestQueue struct {
	items requestHeap
}

func (q *requestQueue) Len() int {
	return len(q.items)
}

func (q *requestQueue) push(r *queuedRequest) {
	heap.Push(&q.items, r)
}

// pop removes the highest-priority, oldest request.
func (q *requestQueue) pop() *queuedRequest {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*queuedRequest)
}

// remove takes r out of the queue and reports whether it was queued.
func (q *requestQueue) remove(r *queuedRequest) bool {
	if !r.queued() || r.index >= len(q.items) || q.items[r.index] != r {
		return false
	}
	heap.Remove(&q.items, r.index)
	return true
}

// drain empties the queue in dequeue order.
func (q *requestQueue) drain() []*queuedRequest {
	out := make([]*queuedRequest, 0, len(q.items))
	for len(q.items) > 0 {
		out = append(out, q.pop())
	}
	return out
}

type requestHeap []*queuedRequest

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *requestHeap) Push(x any) {
	r := x.(*queuedRequest)
	r.index = len(*h)
	*h = append(*h, r)
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*h = old[:n-1]
	return r
}
