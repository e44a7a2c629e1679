package splitter

import "sort"

// PageSet is a set of zero-based page indices of the original document.
type PageSet map[int]struct{}

// NewPageSet returns a set holding the given indices.
func NewPageSet(pages ...int) PageSet {
	s := make(PageSet, len(pages))
	for _, p := range pages {
		s[p] = struct{}{}
	}
	return s
}

func (s PageSet) Add(p int) { s[p] = struct{}{} }
func (s PageSet) Len() int  { return len(s) }

func (s PageSet) Has(p int) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy of the set.
func (s PageSet) Clone() PageSet {
	out := make(PageSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Sorted returns the members in ascending order.
func (s PageSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
