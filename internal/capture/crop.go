package capture

import (
	"image"
	"math"
)

const (
	// CropWidthFraction is the share of the frame width kept around the center.
	CropWidthFraction = 0.75
	// CropAspect is height/width of the crop (4:3 landscape label window).
	CropAspect = 3.0 / 4.0
)

// Rect is a crop window in frame pixel space. Coordinates may be fractional.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CropRegion returns the centered label window for a width x height frame.
//
// The window is 75% of the frame width at a 4:3 aspect. When that would be
// taller than the frame (portrait or very narrow frames) the window is shrunk
// to the frame height, keeping the aspect and the centering.
func CropRegion(width, height int) Rect {
	w, h := float64(width), float64(height)

	cropW := w * CropWidthFraction
	cropH := cropW * CropAspect
	if cropH > h {
		cropH = h
		cropW = cropH / CropAspect
	}

	return Rect{
		X:      (w - cropW) / 2,
		Y:      (h - cropH) / 2,
		Width:  cropW,
		Height: cropH,
	}
}

// Pixels snaps the window to whole pixels inside bounds.
func (r Rect) Pixels(bounds image.Rectangle) image.Rectangle {
	x0 := bounds.Min.X + int(math.Round(r.X))
	y0 := bounds.Min.Y + int(math.Round(r.Y))
	out := image.Rect(x0, y0, x0+int(math.Round(r.Width)), y0+int(math.Round(r.Height)))
	return out.Intersect(bounds)
}

// TargetSize scales the window to targetWidth, preserving its aspect.
func (r Rect) TargetSize(targetWidth int) (int, int) {
	if r.Width <= 0 {
		return targetWidth, 0
	}
	h := r.Height * (float64(targetWidth) / r.Width)
	return targetWidth, int(math.Round(h))
}
