package topk

import (
	"math/rand"
	"sort"
	"testing"
)

func indexes(cs []Candidate) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.Index
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelect(t *testing.T) {
	scored := []Candidate{
		{Index: 0, Score: 0.1},
		{Index: 1, Score: 0.9},
		{Index: 2, Score: 0.5},
		{Index: 3, Score: 0.7},
	}

	tests := []struct {
		name string
		k    int
		want []int
	}{
		{"top two", 2, []int{1, 3}},
		{"all", 4, []int{1, 3, 2, 0}},
		{"more than available", 10, []int{1, 3, 2, 0}},
		{"zero", 0, []int{}},
		{"negative", -3, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := indexes(Select(scored, tt.k))
			if !equalInts(got, tt.want) {
				t.Errorf("Select(k=%d) = %v, want %v", tt.k, got, tt.want)
			}
		})
	}
}

func TestSelectTiesKeepScanOrder(t *testing.T) {
	scored := []Candidate{
		{Index: 0, Score: 0.5},
		{Index: 1, Score: 0.5},
		{Index: 2, Score: 0.8},
		{Index: 3, Score: 0.5},
		{Index: 4, Score: 0.5},
	}

	got := indexes(Select(scored, 3))
	want := []int{2, 0, 1}
	if !equalInts(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	got = indexes(Select(scored, 5))
	want = []int{2, 0, 1, 3, 4}
	if !equalInts(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelectDoesNotModifyInput(t *testing.T) {
	scored := []Candidate{{Index: 0, Score: 0.1}, {Index: 1, Score: 0.9}}
	Select(scored, 5)
	if scored[0].Index != 0 || scored[1].Index != 1 {
		t.Errorf("input reordered: %v", scored)
	}
}

func TestSelectMatchesFullSort(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	scored := make([]Candidate, 500)
	for i := range scored {
		// Coarse scores force plenty of ties.
		scored[i] = Candidate{Index: i, Score: float64(r.Intn(20)) / 20}
	}

	full := append([]Candidate(nil), scored...)
	sort.SliceStable(full, func(i, j int) bool { return full[i].Score > full[j].Score })

	for _, k := range []int{1, 7, 50, 499, 500} {
		got := indexes(Select(scored, k))
		want := indexes(full[:k])
		if !equalInts(got, want) {
			t.Fatalf("k=%d: heap selection differs from stable sort", k)
		}
	}
}
