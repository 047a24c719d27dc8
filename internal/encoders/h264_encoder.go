package encoders

import (
	"bytes"
	"image"

	"github.com/gen2brain/x264-go"
)

//H264Encoder h264 encoder
type H264Encoder struct {
	buffer  *bytes.Buffer
	encoder *x264.Encoder
	// SPS, PPS and SEI written by x264 on open, they go in front of the
	// first picture
	headers []byte
}

func newH264Encoder(size image.Point, frameRate int) (Encoder, error) {
	buffer := bytes.NewBuffer(make([]byte, 0))
	opts := x264.Options{
		Width:     size.X,
		Height:    size.Y,
		FrameRate: frameRate,
		Tune:      "zerolatency",
		Preset:    "veryfast",
		Profile:   "baseline",
		LogLevel:  x264.LogWarning,
	}
	encoder, err := x264.NewEncoder(buffer, &opts)
	if err != nil {
		return nil, err
	}
	e := &H264Encoder{
		buffer:  buffer,
		encoder: encoder,
	}
	e.headers = e.take()
	return e, nil
}

//Encode encodes a frame into a h264 access unit
func (e *H264Encoder) Encode(frame image.Image) ([]byte, error) {
	err := e.encoder.Encode(frame)
	if err != nil {
		return nil, err
	}
	return e.withHeaders(e.take()), nil
}

//Flush returns the delayed frames, zerolatency tuning means there are none
//in practice. Units without a picture are dropped.
func (e *H264Encoder) Flush() ([][]byte, error) {
	err := e.encoder.Flush()
	if err != nil {
		return nil, err
	}
	var units [][]byte
	for _, au := range SplitAccessUnits(e.take()) {
		if HasPicture(au) {
			units = append(units, e.withHeaders(au))
		}
	}
	return units, nil
}

// withHeaders prepends the stream headers to the first non empty unit
func (e *H264Encoder) withHeaders(au []byte) []byte {
	if len(au) == 0 || e.headers == nil {
		return au
	}
	out := append(e.headers, au...)
	e.headers = nil
	return out
}

// take copies the buffered output, the buffer memory is reused afterwards
func (e *H264Encoder) take() []byte {
	if e.buffer.Len() == 0 {
		return nil
	}
	payload := append([]byte(nil), e.buffer.Bytes()...)
	e.buffer.Reset()
	return payload
}

//Close closes the inner x264 encoder
func (e *H264Encoder) Close() error {
	return e.encoder.Close()
}

func init() {
	registeredEncoders[H264Codec] = newH264Encoder
}
