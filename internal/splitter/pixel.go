package splitter

import (
	"image"
	"image/color"
)

const (
	// DefaultSaturationThreshold is the per-pixel saturation above which a pixel counts as colored.
	DefaultSaturationThreshold = 0.35
	// DefaultColorFractionThreshold is the share of colored pixels above which a page is color.
	DefaultColorFractionThreshold = 0.001

	// saturationEpsilon keeps pure black pixels from dividing by zero.
	saturationEpsilon = 1e-7
)

// Thresholds tunes the color heuristic.
type Thresholds struct {
	Saturation    float64
	ColorFraction float64
}

// DefaultThresholds returns the thresholds typical document corpora were tuned against.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Saturation:    DefaultSaturationThreshold,
		ColorFraction: DefaultColorFractionThreshold,
	}
}

// IsColor reports whether the raster carries enough saturated pixels to be printed in color.
// Stray colored pixels from anti-aliasing or JPEG noise stay below the fraction threshold,
// while photos or highlighted text on a white page exceed it.
func IsColor(img image.Image, th Thresholds) bool {
	return ColorFraction(img, th) > th.ColorFraction
}

// ColorFraction returns the share of pixels whose saturation exceeds th.Saturation.
// An empty raster yields 0.
func ColorFraction(img image.Image, th Thresholds) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total <= 0 {
		return 0
	}

	var colored int
	switch src := img.(type) {
	case *image.RGBA:
		colored = countSaturated8(src.Pix, src.Stride, b, src.Rect, th.Saturation)
	case *image.NRGBA:
		colored = countSaturated8(src.Pix, src.Stride, b, src.Rect, th.Saturation)
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				if saturated(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, th.Saturation) {
					colored++
				}
			}
		}
	}
	return float64(colored) / float64(total)
}

// countSaturated8 walks 8-bit RGBA-layout pixel data and ignores the alpha byte.
func countSaturated8(pix []uint8, stride int, b, rect image.Rectangle, threshold float64) int {
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - rect.Min.Y) * stride
		for x := b.Min.X; x < b.Max.X; x++ {
			i := row + (x-rect.Min.X)*4
			r := float64(pix[i]) / 255
			g := float64(pix[i+1]) / 255
			bl := float64(pix[i+2]) / 255
			if saturated(r, g, bl, threshold) {
				n++
			}
		}
	}
	return n
}

// saturated applies the HSV saturation test to one normalized pixel.
func saturated(r, g, b, threshold float64) bool {
	hi := max(r, g, b)
	lo := min(r, g, b)
	return (hi-lo)/(hi+saturationEpsilon) > threshold
}
