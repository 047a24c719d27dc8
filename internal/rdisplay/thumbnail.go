package rdisplay

import (
	"image"

	"github.com/nfnt/resize"
)

// Thumbnail scales img to fit a maxSize square, keeping the aspect ratio
func Thumbnail(img image.Image, maxSize uint) image.Image {
	return resize.Thumbnail(maxSize, maxSize, img, resize.Lanczos3)
}
