package capture

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// cornerInset is the fraction of each dimension cut from the two top
// corners, approximating the rounded top of a physical inspection tag.
const cornerInset = 0.04

// TagShape is the fixed-size portrait outline captured frames are projected
// into: a six-point polygon (a rectangle with both top corners cut at 4%
// insets).
type TagShape struct {
	Width  int
	Height int
}

// Validate checks the shape dimensions.
func (s TagShape) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("tag shape dimensions must be > 0, got %dx%d", s.Width, s.Height)
	}
	return nil
}

// contains reports whether the pixel at (x, y) lies inside the tag outline.
// The outline is the full rectangle minus the two top corner triangles.
func (s TagShape) contains(x, y int) bool {
	ix := cornerInset * float64(s.Width)
	iy := cornerInset * float64(s.Height)
	fx, fy := float64(x)+0.5, float64(y)+0.5

	// Top-left triangle: below the line from (0, iy) to (ix, 0).
	if fx/ix+fy/iy < 1 {
		return false
	}
	// Top-right triangle, mirrored.
	if (float64(s.Width)-fx)/ix+fy/iy < 1 {
		return false
	}
	return true
}

// Project draws src into the tag outline: uniform cover scaling
// (scale = max of the per-axis ratios) centered on the source frame, with
// everything outside the hexagonal clip left black. The result always has
// exactly the shape's dimensions regardless of the source aspect ratio.
func (s TagShape) Project(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return dst
	}

	scaleX := float64(s.Width) / float64(srcW)
	scaleY := float64(s.Height) / float64(srcH)
	scale := scaleX
	if scaleY > scale {
		scale = scaleY
	}

	scaledW := float64(srcW) * scale
	scaledH := float64(srcH) * scale
	offsetX := (float64(s.Width) - scaledW) / 2
	offsetY := (float64(s.Height) - scaledH) / 2

	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			if !s.contains(x, y) {
				continue
			}
			sx := int((float64(x) - offsetX) / scale)
			sy := int((float64(y) - offsetY) / scale)
			if sx < 0 || sx >= srcW || sy < 0 || sy >= srcH {
				continue
			}
			dst.Set(x, y, src.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return dst
}
