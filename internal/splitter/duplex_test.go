package splitter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDuplexPartner(t *testing.T) {
	t.Parallel()

	tests := []struct{ page, want int }{
		{0, 1}, {1, 0}, {2, 3}, {3, 2}, {10, 11}, {11, 10},
	}
	for _, tc := range tests {
		if got := DuplexPartner(tc.page); got != tc.want {
			t.Errorf("DuplexPartner(%d) = %d, want %d", tc.page, got, tc.want)
		}
	}
}

func TestExpandDuplex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		color  []int
		total  int
		duplex bool
		want   []int
	}{
		{name: "disabled keeps set", color: []int{1, 4}, total: 6, duplex: false, want: []int{1, 4}},
		{name: "odd page pulls previous", color: []int{1}, total: 4, duplex: true, want: []int{0, 1}},
		{name: "even page pulls next", color: []int{2}, total: 4, duplex: true, want: []int{2, 3}},
		{name: "single page document", color: []int{0}, total: 1, duplex: true, want: []int{0}},
		{name: "last page of odd document", color: []int{4}, total: 5, duplex: true, want: []int{4}},
		{name: "empty set", color: nil, total: 8, duplex: true, want: []int{}},
		{name: "both sides already color", color: []int{2, 3}, total: 4, duplex: true, want: []int{2, 3}},
		{name: "several sheets", color: []int{0, 3, 6}, total: 8, duplex: true, want: []int{0, 1, 2, 3, 6, 7}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ExpandDuplex(NewPageSet(tc.color...), tc.total, tc.duplex).Sorted()
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ExpandDuplex(%v, %d, %v) mismatch (-want +got):\n%s", tc.color, tc.total, tc.duplex, diff)
			}
		})
	}
}

func TestExpandDuplex_DisabledIsIdentity(t *testing.T) {
	for total := 0; total < 6; total++ {
		for mask := 0; mask < 1<<total; mask++ {
			s := maskSet(mask, total)
			if diff := cmp.Diff(s.Sorted(), ExpandDuplex(s, total, false).Sorted()); diff != "" {
				t.Fatalf("expand(%v, %d, false) changed the set:\n%s", s.Sorted(), total, diff)
			}
		}
	}
}

func TestExpandDuplex_Idempotent(t *testing.T) {
	for total := 0; total < 7; total++ {
		for mask := 0; mask < 1<<total; mask++ {
			once := ExpandDuplex(maskSet(mask, total), total, true)
			twice := ExpandDuplex(once, total, true)
			if diff := cmp.Diff(once.Sorted(), twice.Sorted()); diff != "" {
				t.Fatalf("expansion not idempotent for %v, total %d:\n%s", maskSet(mask, total).Sorted(), total, diff)
			}
		}
	}
}

func TestExpandDuplex_DoesNotMutateInput(t *testing.T) {
	in := NewPageSet(1)
	_ = ExpandDuplex(in, 4, true)
	if diff := cmp.Diff([]int{1}, in.Sorted()); diff != "" {
		t.Errorf("input set modified (-want +got):\n%s", diff)
	}
}

// maskSet builds the set of bits set in mask below total.
func maskSet(mask, total int) PageSet {
	s := make(PageSet)
	for p := 0; p < total; p++ {
		if mask&(1<<p) != 0 {
			s.Add(p)
		}
	}
	return s
}
