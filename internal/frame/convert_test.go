package frame

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertDropsAlpha(t *testing.T) {
	src := &Frame{Width: 2, Height: 1, Layout: LayoutRGBA, Pix: []byte{
		10, 20, 30, 255,
		40, 50, 60, 0,
	}}

	out, err := Convert(src, LayoutRGB)
	require.NoError(t, err)

	want := &Frame{Width: 2, Height: 1, Layout: LayoutRGB, Pix: []byte{10, 20, 30, 40, 50, 60}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Convert() mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertChannelOrder(t *testing.T) {
	bgra := &Frame{Width: 1, Height: 1, Layout: LayoutBGRA, Pix: []byte{3, 2, 1, 0xff}}

	rgb, err := Convert(bgra, LayoutRGB)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, rgb.Pix)

	bgr, err := Convert(bgra, LayoutBGR)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 2, 1}, bgr.Pix)

	back, err := Convert(bgr, LayoutRGB)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, back.Pix)
}

func TestConvertDeterministic(t *testing.T) {
	src := New(64, 48, LayoutRGBA)
	for i := range src.Pix {
		src.Pix[i] = byte(i * 7)
	}
	orig := append([]byte(nil), src.Pix...)

	a, err := Convert(src, LayoutRGB)
	require.NoError(t, err)
	b, err := Convert(src, LayoutRGB)
	require.NoError(t, err)

	assert.Equal(t, a.Pix, b.Pix)
	assert.Equal(t, src.Size(), a.Size())
	assert.Equal(t, orig, src.Pix, "source must not be modified")
	assert.Len(t, a.Pix, 64*48*3)
}

func TestConvertMalformed(t *testing.T) {
	cases := map[string]struct {
		src *Frame
		dst Layout
	}{
		"short buffer":   {&Frame{Width: 2, Height: 2, Layout: LayoutRGBA, Pix: make([]byte, 15)}, LayoutRGB},
		"zero size":      {&Frame{Width: 0, Height: 2, Layout: LayoutRGBA}, LayoutRGB},
		"unknown layout": {&Frame{Width: 1, Height: 1, Layout: Layout(42), Pix: make([]byte, 4)}, LayoutRGB},
		"4ch target":     {New(1, 1, LayoutRGBA), LayoutBGRA},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Convert(tc.src, tc.dst)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestFromRGBACompactsStride(t *testing.T) {
	parent := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for i := range parent.Pix {
		parent.Pix[i] = byte(i)
	}
	sub := parent.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)

	f := FromRGBA(sub)
	require.NoError(t, f.Validate())
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 2, f.Height)
	// first pixel of the sub image is parent pixel (1,1)
	assert.Equal(t, parent.Pix[parent.PixOffset(1, 1):parent.PixOffset(1, 1)+4], f.Pix[:4])

	packed := image.NewRGBA(image.Rect(0, 0, 2, 2))
	g := FromRGBA(packed)
	assert.Same(t, &packed.Pix[0], &g.Pix[0], "packed images are not copied")
}

func TestFrameAt(t *testing.T) {
	f := &Frame{Width: 1, Height: 1, Layout: LayoutBGR, Pix: []byte{3, 2, 1}}
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 0xff}, f.At(0, 0))
	assert.Equal(t, color.RGBA{}, f.At(1, 0))
	assert.Equal(t, image.Rect(0, 0, 1, 1), f.Bounds())
}
