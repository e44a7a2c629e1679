package render

import (
	"fmt"
	"image"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/colorsplit/internal/filetype"
	"github.com/local/colorsplit/internal/splitter"
)

// DefaultDPI matches MuPDF's default pixmap resolution (one pixel per PDF point).
const DefaultDPI = 72.0

// FitzOpener opens PDFs with go-fitz (MuPDF) after checking the file really is a PDF.
type FitzOpener struct {
	DPI      float64
	detector *filetype.Detector
}

// NewFitzOpener returns an opener rendering at dpi; dpi <= 0 selects DefaultDPI.
func NewFitzOpener(dpi float64) *FitzOpener {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &FitzOpener{DPI: dpi, detector: filetype.New()}
}

// Open implements splitter.Opener. Failures to identify or parse the file are
// reported as splitter.ErrInvalidInput.
func (o *FitzOpener) Open(path string) (splitter.Document, error) {
	if err := o.detector.RequirePDF(path); err != nil {
		return nil, fmt.Errorf("%w: %v", splitter.ErrInvalidInput, err)
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", splitter.ErrInvalidInput, err)
	}
	log.Debug().Str("pdf", path).Int("pages", doc.NumPage()).Float64("dpi", o.DPI).Msg("opened PDF for rendering")
	return &fitzDocument{doc: doc, dpi: o.DPI}, nil
}

// fitzDocument adapts *fitz.Document to splitter.Document.
type fitzDocument struct {
	doc *fitz.Document
	dpi float64
}

func (d *fitzDocument) NumPage() int { return d.doc.NumPage() }

// RenderPage rasterizes page i (0-based) to RGBA.
func (d *fitzDocument) RenderPage(i int) (image.Image, error) {
	img, err := d.doc.ImageDPI(i, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
	}
	b := img.Bounds()
	log.Debug().Int("page", i+1).Int("width", b.Dx()).Int("height", b.Dy()).Msg("rendered page")
	return img, nil
}

func (d *fitzDocument) Close() error { return d.doc.Close() }
