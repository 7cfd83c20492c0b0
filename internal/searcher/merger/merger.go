// Package merger selects the best K scored pages.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/ranker"
)

// DefaultLimit is used when a caller asks for no positive limit.
const DefaultLimit = 10

// TopK returns the limit best pages in descending score order. Ties go to
// the lower page index.
func TopK(pages []ranker.ScoredPage, limit int) []ranker.ScoredPage {
	if limit <= 0 {
		limit = DefaultLimit
	}
	h := &scoredPageHeap{}
	heap.Init(h)
	for _, p := range pages {
		heap.Push(h, p)
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]ranker.ScoredPage, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredPage)
	}
	return result
}

// scoredPageHeap is a min-heap: the worst kept page sits on top.
type scoredPageHeap []ranker.ScoredPage

func (h scoredPageHeap) Len() int { return len(h) }

func (h scoredPageHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].PageIndex > h[j].PageIndex
}

func (h scoredPageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredPageHeap) Push(x any) {
	*h = append(*h, x.(ranker.ScoredPage))
}

func (h *scoredPageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
