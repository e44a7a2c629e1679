package splitter

import (
	"path/filepath"
	"strings"
)

const (
	ColorSuffix = "_color"
	BWSuffix    = "_bw"
)

// OutputPaths derives the color and black-and-white output paths for source:
// same directory, same extension, name suffixed with _color and _bw.
func OutputPaths(source string) (colorPath, bwPath string) {
	dir := filepath.Dir(source)
	ext := filepath.Ext(source)
	name := strings.TrimSuffix(filepath.Base(source), ext)
	if ext == "" {
		ext = ".pdf"
	}
	return filepath.Join(dir, name+ColorSuffix+ext), filepath.Join(dir, name+BWSuffix+ext)
}
