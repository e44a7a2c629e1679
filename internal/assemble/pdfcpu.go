package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

// PDFAssembler extracts page subsets of a PDF into new files with pdfcpu.
type PDFAssembler struct {
	conf *model.Configuration
}

// New returns an assembler using pdfcpu's default configuration.
func New() *PDFAssembler {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFAssembler{conf: conf}
}

// Assemble writes the given 0-based pages of src to dst. Pages keep their original
// content and appear in ascending original order. dst is replaced atomically.
func (a *PDFAssembler) Assemble(ctx context.Context, src, dst string, pages []int) error {
	if len(pages) == 0 {
		return errors.New("no pages selected")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".colorsplit-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	sel := PageSelection(pages)
	if err := api.TrimFile(src, tmpPath, sel, a.conf); err != nil {
		return fmt.Errorf("pdfcpu trim: %w", err)
	}

	n, err := api.PageCountFile(tmpPath)
	if err != nil {
		return fmt.Errorf("pdf page count failed: %w", err)
	}
	if n != len(pages) {
		return fmt.Errorf("assembled %d pages, expected %d", n, len(pages))
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("move output into place: %w", err)
	}
	log.Info().Str("src", src).Str("dst", dst).Int("pages", n).Msg("assembled PDF")
	return nil
}

// PageCount returns the number of pages in the PDF at path.
func (a *PDFAssembler) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// PageSelection converts ascending 0-based indices to pdfcpu's 1-based page
// selection, collapsing consecutive runs into ranges ("1-3", "5").
func PageSelection(pages []int) []string {
	var out []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		start, end := pages[i]+1, pages[j]+1
		if start == end {
			out = append(out, strconv.Itoa(start))
		} else {
			out = append(out, fmt.Sprintf("%d-%d", start, end))
		}
		i = j + 1
	}
	return out
}
