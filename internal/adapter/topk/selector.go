// Package topk selects the highest scoring candidates of a scan.
package topk

import (
	"container/heap"
	"sort"
)

// Candidate is a scored position in scan order.
type Candidate struct {
	Index int
	Score float64
}

// before reports whether a ranks ahead of b: higher score first, and on
// equal score the earlier scan position first.
func before(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// Select returns the min(k, len(scored)) best candidates, best first.
// k <= 0 yields an empty result.
func Select(scored []Candidate, k int) []Candidate {
	if k <= 0 || len(scored) == 0 {
		return []Candidate{}
	}
	if k >= len(scored) {
		out := append([]Candidate(nil), scored...)
		sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })
		return out
	}

	h := make(worstFirst, 0, k)
	for _, c := range scored {
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if before(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	out := make([]Candidate, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Candidate)
	}
	return out
}

// worstFirst is a heap whose root is the lowest ranked kept candidate.
type worstFirst []Candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return before(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) { *h = append(*h, x.(Candidate)) }

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
