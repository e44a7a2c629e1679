package render

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/local/colorsplit/internal/pdftest"
	"github.com/local/colorsplit/internal/splitter"
)

func TestNewFitzOpener_DefaultDPI(t *testing.T) {
	if got := NewFitzOpener(0).DPI; got != DefaultDPI {
		t.Errorf("Expected default DPI %v, got %v", DefaultDPI, got)
	}
	if got := NewFitzOpener(150).DPI; got != 150 {
		t.Errorf("Expected DPI 150, got %v", got)
	}
}

func TestOpen_RejectsNonPDF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(p, []byte("plain text, not a PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewFitzOpener(0).Open(p)
	if !errors.Is(err, splitter.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := NewFitzOpener(0).Open(filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, splitter.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestRenderPage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "doc.pdf")
	if err := pdftest.Write(p, pdftest.Pages(3, 100, 1)); err != nil {
		t.Fatal(err)
	}

	doc, err := NewFitzOpener(0).Open(p)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	if n := doc.NumPage(); n != 3 {
		t.Fatalf("NumPage = %d, want 3", n)
	}
	for i, wantColor := range []bool{false, true, false} {
		img, err := doc.RenderPage(i)
		if err != nil {
			t.Fatalf("page %d: %v", i, err)
		}
		// one pixel per point at the default resolution
		b := img.Bounds()
		if w := 100 + i; abs(b.Dx()-w) > 1 || abs(b.Dy()-100) > 1 {
			t.Errorf("page %d: bounds %v, want about %dx100", i, b, w)
		}
		if got := splitter.IsColor(img, splitter.DefaultThresholds()); got != wantColor {
			t.Errorf("page %d: IsColor = %v, want %v", i, got, wantColor)
		}
	}

	if _, err := doc.RenderPage(7); err == nil {
		t.Error("Expected error for a page past the end")
	}
}

func TestRenderPage_DPIScales(t *testing.T) {
	p := filepath.Join(t.TempDir(), "doc.pdf")
	if err := pdftest.Write(p, pdftest.Pages(1, 72)); err != nil {
		t.Fatal(err)
	}
	doc, err := NewFitzOpener(144).Open(p)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	img, err := doc.RenderPage(0)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); abs(b.Dx()-144) > 1 || abs(b.Dy()-144) > 1 {
		t.Errorf("bounds %v, want about 144x144", b)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
