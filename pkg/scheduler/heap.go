package scheduler

import "container/heap"

// taskHeap is a min-heap of tasks ordered by sortIndex, then insertion id.
//
// The same type backs both the ready queue (sortIndex is the expiration
// time) and the timer queue (sortIndex is the start time).
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].sortIndex != h[j].sortIndex {
		return h[i].sortIndex < h[j].sortIndex
	}
	return h[i].ID < h[j].ID
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

func (h taskHeap) peek() *Task {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

func (h *taskHeap) push(t *Task) { heap.Push(h, t) }

func (h *taskHeap) pop() *Task {
	if len(*h) == 0 {
		return nil
	}
	return heap.Pop(h).(*Task)
}
