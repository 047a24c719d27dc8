package encoders

import (
	"errors"
	"image"
	"io"
)

// ErrUnsupportedCodec no encoder is registered for the codec
var ErrUnsupportedCodec = errors.New("codec not supported")

// Service creates encoder instances
type Service interface {
	NewEncoder(codec VideoCodec, size image.Point, frameRate int) (Encoder, error)
	Supports(codec VideoCodec) bool
}

// Encoder takes an image/frame and encodes it
type Encoder interface {
	io.Closer
	// Encode returns the Annex-B access unit produced for the frame, it may
	// be empty when the encoder holds frames back
	Encode(image.Image) ([]byte, error)
	// Flush drains the frames the encoder held back, one access unit each
	Flush() ([][]byte, error)
}

//VideoCodec only h264 is available for now
type VideoCodec = int

const (
	//H264Codec h264
	H264Codec VideoCodec = iota
)
