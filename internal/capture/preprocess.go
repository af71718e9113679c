package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/nfnt/resize"
)

// MaxFramePixels bounds the decoded size of an uploaded frame (4096x4096).
const MaxFramePixels = 4096 * 4096

var (
	// ErrEmptyFrame is returned when there is no frame content to work on.
	ErrEmptyFrame = errors.New("capture: empty frame")
	// ErrFrameTooLarge is returned for frames whose dimensions exceed MaxFramePixels.
	ErrFrameTooLarge = errors.New("capture: frame too large")
)

// Payload is an encoded label image ready for the extraction service.
type Payload struct {
	JPEG   []byte
	Width  int
	Height int
}

// Base64 returns the bare base64 JPEG, without any data URI prefix.
func (p Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.JPEG)
}

// Preprocessor crops, scales and normalizes a camera frame for OCR.
type Preprocessor struct {
	TargetWidth int
	Quality     int
	Contrast    float64
	Brightness  float64
}

// NewPreprocessor returns the label pipeline defaults: 1024px wide,
// contrast x1.5, brightness x1.1, JPEG quality 85.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		TargetWidth: 1024,
		Quality:     85,
		Contrast:    1.5,
		Brightness:  1.1,
	}
}

// Process turns a raw frame into an encoded payload.
// The output depends only on the frame and the preprocessor settings.
func (p *Preprocessor) Process(frame image.Image) (Payload, error) {
	if frame == nil || frame.Bounds().Empty() {
		return Payload{}, ErrEmptyFrame
	}

	bounds := frame.Bounds()
	if tooLarge(bounds.Dx(), bounds.Dy()) {
		return Payload{}, ErrFrameTooLarge
	}
	region := CropRegion(bounds.Dx(), bounds.Dy())
	crop := region.Pixels(bounds)
	if crop.Empty() {
		return Payload{}, ErrEmptyFrame
	}

	tw, th := region.TargetSize(p.TargetWidth)
	if th <= 0 {
		return Payload{}, ErrEmptyFrame
	}

	window := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(window, window.Bounds(), frame, crop.Min, draw.Src)

	scaled := resize.Resize(uint(tw), uint(th), window, resize.Bilinear)
	gray := p.filter(scaled)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gray, &jpeg.Options{Quality: p.Quality}); err != nil {
		return Payload{}, fmt.Errorf("preprocess frame: encode jpeg: %w", err)
	}

	return Payload{JPEG: buf.Bytes(), Width: tw, Height: th}, nil
}

// filter converts the scaled label to grayscale, boosting contrast
// around mid-gray and then brightness. Luma weights follow Rec. 709.
func (p *Preprocessor) filter(src image.Image) *image.Gray {
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	out := image.NewGray(rgba.Bounds())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := rgba.RGBAAt(x, y)
			l := (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
			l = (l-0.5)*p.Contrast + 0.5
			l *= p.Brightness
			out.SetGray(x, y, color.Gray{Y: clamp8(l)})
		}
	}
	return out
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

func tooLarge(w, h int) bool {
	return int64(w)*int64(h) > MaxFramePixels
}

// DecodeFrame reads a JPEG or PNG frame as uploaded by the capture client.
func DecodeFrame(r io.Reader) (image.Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return DecodeFrameBytes(raw)
}

// DecodeFrameBytes checks the header dimensions against MaxFramePixels
// before decoding any pixel data.
func DecodeFrameBytes(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyFrame
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if tooLarge(cfg.Width, cfg.Height) {
		return nil, fmt.Errorf("decode frame: %dx%d: %w", cfg.Width, cfg.Height, ErrFrameTooLarge)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// DecodeBase64Frame accepts a bare base64 image or a data URI.
func DecodeBase64Frame(s string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(StripDataURI(s))
	if err != nil {
		return nil, fmt.Errorf("decode frame: base64: %w", err)
	}
	return DecodeFrameBytes(raw)
}

// StripDataURI drops a "data:<mime>;base64," prefix if present.
func StripDataURI(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}
