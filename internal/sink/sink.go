// Package sink writes converted frames into a playable video file.
//
// A Sink is owned by a single goroutine, none of its methods are safe for
// concurrent use.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/rs/zerolog"
	"github.com/rviscarra/screenrec/internal/container"
	"github.com/rviscarra/screenrec/internal/encoders"
	"github.com/rviscarra/screenrec/internal/frame"
)

var (
	// ErrSinkOpen the output can't be created with the requested parameters
	ErrSinkOpen = errors.New("sink open failed")
	// ErrEncode a frame couldn't be encoded or muxed
	ErrEncode = errors.New("encode failed")
	// ErrEmptyRecording Close was called without any frame written. The file
	// is left empty at its path.
	ErrEmptyRecording = errors.New("empty recording")
	// ErrClosed the sink was already closed
	ErrClosed = errors.New("sink closed")
)

type options struct {
	codec          encoders.VideoCodec
	service        encoders.Service
	fragmentFrames int
	logger         zerolog.Logger
}

// Option customizes Open
type Option func(*options)

// WithCodec selects the video codec, H.264 by default
func WithCodec(codec encoders.VideoCodec) Option {
	return func(o *options) { o.codec = codec }
}

// WithEncoderService replaces the encoder factory
func WithEncoderService(svc encoders.Service) Option {
	return func(o *options) { o.service = svc }
}

// WithFragmentFrames sets how many frames go into each MP4 fragment
func WithFragmentFrames(n int) Option {
	return func(o *options) { o.fragmentFrames = n }
}

// WithLogger attaches a logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Sink encodes frames of a fixed size into an MP4 file
type Sink struct {
	path   string
	width  int
	height int

	file *os.File
	buf  *bufio.Writer
	enc  encoders.Encoder
	mux  *container.Writer
	log  zerolog.Logger

	submitted int
	err       error
	closed    bool
}

// Open creates the file at path and prepares an encoder for width x height
// frames played back at frameRate.
func Open(path string, width, height, frameRate int, opts ...Option) (*Sink, error) {
	o := options{
		codec:          encoders.H264Codec,
		service:        encoders.NewEncoderService(),
		fragmentFrames: container.DefaultFragmentFrames,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("%w: size %dx%d must be positive and even", ErrSinkOpen, width, height)
	}
	if frameRate <= 0 {
		return nil, fmt.Errorf("%w: invalid frame rate %d", ErrSinkOpen, frameRate)
	}
	if !o.service.Supports(o.codec) {
		return nil, fmt.Errorf("%w: %w: %d", ErrSinkOpen, encoders.ErrUnsupportedCodec, o.codec)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSinkOpen, err)
	}

	enc, err := o.service.NewEncoder(o.codec, image.Pt(width, height), frameRate)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: encoder: %w", ErrSinkOpen, err)
	}

	buf := bufio.NewWriter(file)
	mux, err := container.NewWriter(buf, frameRate, o.fragmentFrames)
	if err != nil {
		enc.Close()
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: %w", ErrSinkOpen, err)
	}

	o.logger.Debug().
		Str("path", path).
		Int("width", width).
		Int("height", height).
		Int("fps", frameRate).
		Msg("sink opened")

	return &Sink{
		path:   path,
		width:  width,
		height: height,
		file:   file,
		buf:    buf,
		enc:    enc,
		mux:    mux,
		log:    o.logger,
	}, nil
}

// Layout is the pixel layout Write expects
func (s *Sink) Layout() frame.Layout {
	return frame.LayoutRGB
}

// Path of the output file
func (s *Sink) Path() string {
	return s.path
}

// Frames returns how many frames reached the file. Frames of the fragment
// being filled are counted once it is written, at the latest by Close.
func (s *Sink) Frames() int {
	return s.mux.Samples()
}

// Write encodes f as the next frame. After the first failure every later
// call fails with the same error.
func (s *Sink) Write(f *frame.Frame) error {
	if s.closed {
		return ErrClosed
	}
	if s.err != nil {
		return s.err
	}

	if err := f.Validate(); err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrEncode, err))
	}
	if f.Layout != s.Layout() {
		return s.fail(fmt.Errorf("%w: frame layout %v, want %v", ErrEncode, f.Layout, s.Layout()))
	}
	if f.Width != s.width || f.Height != s.height {
		return s.fail(fmt.Errorf("%w: frame %dx%d, sink opened at %dx%d",
			ErrEncode, f.Width, f.Height, s.width, s.height))
	}

	au, err := s.enc.Encode(f)
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrEncode, err))
	}
	s.submitted++
	if len(au) == 0 {
		return nil
	}
	if err := s.mux.WriteAccessUnit(au); err != nil {
		return s.fail(fmt.Errorf("%w: mux: %w", ErrEncode, err))
	}
	return nil
}

func (s *Sink) fail(err error) error {
	s.err = err
	return err
}

// Close drains the encoder, writes the last fragment and closes the file.
// Resources are released even when one of the steps fails.
func (s *Sink) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true

	var errs []error
	if s.err == nil {
		units, err := s.enc.Flush()
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: flush: %w", ErrEncode, err))
		}
		for _, au := range units {
			if err := s.mux.WriteAccessUnit(au); err != nil {
				errs = append(errs, fmt.Errorf("%w: mux: %w", ErrEncode, err))
				break
			}
		}
	}
	if err := s.enc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("encoder close: %w", err))
	}

	empty := false
	if err := s.mux.Close(); err != nil {
		if errors.Is(err, container.ErrNoSamples) {
			empty = true
		} else {
			errs = append(errs, fmt.Errorf("%w: finalize: %w", ErrEncode, err))
		}
	}
	if err := s.buf.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush %s: %w", s.path, err))
	}
	if err := s.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync %s: %w", s.path, err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", s.path, err))
	}

	s.log.Debug().
		Str("path", s.path).
		Int("submitted", s.submitted).
		Int("frames", s.mux.Samples()).
		Msg("sink closed")

	if empty {
		errs = append(errs, ErrEmptyRecording)
	}
	return errors.Join(errs...)
}
