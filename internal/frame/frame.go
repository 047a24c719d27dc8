package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrFormat is returned for frames whose layout, size or buffer length don't
// agree. It signals a bug in the producer, not a runtime condition.
var ErrFormat = errors.New("malformed frame")

// Layout is the channel order of a packed pixel buffer
type Layout int

const (
	// LayoutRGBA 4 channels, last one is alpha or padding
	LayoutRGBA Layout = iota
	// LayoutBGRA 4 channels, last one is alpha or padding
	LayoutBGRA
	// LayoutRGB 3 channels
	LayoutRGB
	// LayoutBGR 3 channels
	LayoutBGR
)

// Channels returns the number of bytes per pixel, 0 for unknown layouts
func (l Layout) Channels() int {
	switch l {
	case LayoutRGBA, LayoutBGRA:
		return 4
	case LayoutRGB, LayoutBGR:
		return 3
	}
	return 0
}

func (l Layout) String() string {
	switch l {
	case LayoutRGBA:
		return "rgba"
	case LayoutBGRA:
		return "bgra"
	case LayoutRGB:
		return "rgb"
	case LayoutBGR:
		return "bgr"
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// offsets of the red, green and blue samples inside a pixel
func (l Layout) offsets() (r, g, b int) {
	switch l {
	case LayoutBGRA, LayoutBGR:
		return 2, 1, 0
	}
	return 0, 1, 2
}

// Frame is a tightly packed pixel buffer, rows follow each other without
// padding.
type Frame struct {
	Width  int
	Height int
	Layout Layout
	Pix    []byte
}

// New allocates a zeroed frame
func New(width, height int, layout Layout) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Layout: layout,
		Pix:    make([]byte, width*height*layout.Channels()),
	}
}

// FromRGBA wraps a captured image. The pixel buffer is shared when the image
// is already packed and copied row by row otherwise.
func FromRGBA(img *image.RGBA) *Frame {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	f := &Frame{Width: w, Height: h, Layout: LayoutRGBA}
	rowLen := w * 4
	start := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y)
	if img.Stride == rowLen {
		f.Pix = img.Pix[start : start+rowLen*h]
		return f
	}
	f.Pix = make([]byte, rowLen*h)
	for y := 0; y < h; y++ {
		off := start + y*img.Stride
		copy(f.Pix[y*rowLen:(y+1)*rowLen], img.Pix[off:off+rowLen])
	}
	return f
}

// Validate checks the frame is well formed
func (f *Frame) Validate() error {
	ch := f.Layout.Channels()
	if ch == 0 {
		return fmt.Errorf("%w: unknown layout %v", ErrFormat, f.Layout)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: invalid size %dx%d", ErrFormat, f.Width, f.Height)
	}
	if want := f.Width * f.Height * ch; len(f.Pix) != want {
		return fmt.Errorf("%w: %s %dx%d needs %d bytes, got %d",
			ErrFormat, f.Layout, f.Width, f.Height, want, len(f.Pix))
	}
	return nil
}

// Size returns the frame dimensions as a point
func (f *Frame) Size() image.Point {
	return image.Point{X: f.Width, Y: f.Height}
}

// ColorModel implements image.Image
func (f *Frame) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// At implements image.Image. Alpha is always reported opaque.
func (f *Frame) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.RGBA{}
	}
	ch := f.Layout.Channels()
	i := (y*f.Width + x) * ch
	r, g, b := f.Layout.offsets()
	return color.RGBA{R: f.Pix[i+r], G: f.Pix[i+g], B: f.Pix[i+b], A: 0xff}
}
