package capture

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCropRegionIsHorizontallyCentered(t *testing.T) {
	sizes := [][2]int{
		{1920, 1080}, {1280, 720}, {640, 480}, {1080, 1920},
		{3000, 500}, {333, 777}, {1, 1}, {1023, 769},
	}

	for _, s := range sizes {
		r := CropRegion(s[0], s[1])
		w := float64(s[0])
		if r.X != w-r.Width-r.X {
			t.Errorf("%dx%d: left margin %v != right margin %v", s[0], s[1], r.X, w-r.Width-r.X)
		}
	}
}

func TestCropRegionLandscape(t *testing.T) {
	r := CropRegion(1920, 1080)

	assert.InDelta(t, 1440, r.Width, 1e-9)
	assert.InDelta(t, 1080, r.Height, 1e-9)
	assert.InDelta(t, 240, r.X, 1e-9)
	assert.InDelta(t, 0, r.Y, 1e-9)

	w, h := r.TargetSize(1024)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)
}

func TestCropRegionClampsToFrameHeight(t *testing.T) {
	// 75% of 3000 at 4:3 would be 1687.5 tall, more than the frame.
	r := CropRegion(3000, 500)

	assert.InDelta(t, 500, r.Height, 1e-9)
	assert.InDelta(t, 500/CropAspect, r.Width, 1e-9)
	assert.InDelta(t, 0, r.Y, 1e-9)
	assert.InDelta(t, r.Height/r.Width, CropAspect, 1e-9)
}

func TestCropRegionPortraitIsVerticallyCentered(t *testing.T) {
	r := CropRegion(1080, 1920)

	assert.InDelta(t, 810, r.Width, 1e-9)
	assert.InDelta(t, 607.5, r.Height, 1e-9)
	assert.InDelta(t, (1920-607.5)/2, r.Y, 1e-9)
}

func TestRectPixelsStaysInsideBounds(t *testing.T) {
	bounds := image.Rect(10, 20, 1930, 1100)
	px := CropRegion(bounds.Dx(), bounds.Dy()).Pixels(bounds)

	assert.True(t, px.In(bounds))
	assert.Equal(t, image.Rect(250, 20, 1690, 1100), px)
}
