package splitter

// Result is the outcome of partitioning a document's pages.
// When HasColor is false both index slices are nil and no output should be assembled.
type Result struct {
	HasColor     bool
	ColorIndices []int
	BWIndices    []int
}

// Partition splits [0,total) into ascending color and black-and-white index sequences.
// Every page lands in exactly one sequence. Color members outside [0,total) are ignored.
func Partition(color PageSet, total int) Result {
	var colorIdx, bwIdx []int
	for p := 0; p < total; p++ {
		if color.Has(p) {
			colorIdx = append(colorIdx, p)
		} else {
			bwIdx = append(bwIdx, p)
		}
	}
	if len(colorIdx) == 0 {
		return Result{}
	}
	if bwIdx == nil {
		bwIdx = []int{}
	}
	return Result{HasColor: true, ColorIndices: colorIdx, BWIndices: bwIdx}
}
