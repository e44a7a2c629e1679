// Package pdftest writes small, valid PDF documents for tests that need the
// real renderer and assembler.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Page describes one fixture page. Color pages are filled solid red; the
// others get a mid-gray square on a white page.
type Page struct {
	Width  float64
	Height float64
	Color  bool
}

// Pages returns n monochrome pages whose widths run from base to base+n-1,
// so each page is identifiable by its MediaBox. Indices in color are red.
func Pages(n int, base float64, color ...int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Width: base + float64(i), Height: base}
	}
	for _, i := range color {
		pages[i].Color = true
	}
	return pages
}

// Write stores a PDF with the given pages at path.
func Write(path string, pages []Page) error {
	data, err := Build(pages)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Build renders pages to PDF bytes with a classic cross-reference table.
func Build(pages []Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftest: a document needs at least one page")
	}

	// object 1 is the catalog, 2 the page tree, then a page and its content stream per page
	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
	)
	for i, p := range pages {
		if p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("pdftest: page %d has no area", i)
		}
		w, h := num(p.Width), num(p.Height)
		content := fmt.Sprintf("0.5 g %s %s %s %s re f\n", num(p.Width/4), num(p.Height/4), num(p.Width/2), num(p.Height/2))
		if p.Color {
			content = fmt.Sprintf("1 0 0 rg 0 0 %s %s re f\n", w, h)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << >> /Contents %d 0 R >>", w, h, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	// every entry is exactly 20 bytes including the two-byte line end
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes(), nil
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
