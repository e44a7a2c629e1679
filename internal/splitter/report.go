package splitter

import (
	"fmt"
	"io"
	"strings"
)

var reportRule = strings.Repeat("-", 30)

// Report writes the side-by-side distribution of original page numbers (1-based)
// between the color and black-and-white outputs. In duplex mode a rule separates
// each sheet, except after the last row.
func Report(w io.Writer, r Result, total int, duplex bool) error {
	color := NewPageSet(r.ColorIndices...)
	bw := NewPageSet(r.BWIndices...)

	var sb strings.Builder
	sb.WriteString("\nPage distribution:\n")
	sb.WriteString("Color\tB&W\n")
	sb.WriteString(reportRule + "\n")
	for p := 0; p < total; p++ {
		sb.WriteString(reportCell(color, p))
		sb.WriteString(reportCell(bw, p))
		sb.WriteByte('\n')
		if duplex && p%2 == 1 && p < total-1 {
			sb.WriteString(reportRule + "\n")
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatReport returns Report's output as a string.
func FormatReport(r Result, total int, duplex bool) string {
	var sb strings.Builder
	_ = Report(&sb, r, total, duplex)
	return sb.String()
}

func reportCell(s PageSet, p int) string {
	if s.Has(p) {
		return fmt.Sprintf("%d\t\t", p+1)
	}
	return "\t\t"
}
