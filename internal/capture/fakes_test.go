package capture

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/rviscarra/screenrec/internal/frame"
	"github.com/rviscarra/screenrec/internal/rdisplay"
)

// fakeSource hands out fakeGrabbers and counts how often it was asked to
type fakeSource struct {
	opens   atomic.Int32
	openErr error

	// failAt makes the n-th Grab (1 based) fail
	failAt int
	// onGrab runs inside Grab, after the frame is produced
	onGrab func(n int)
	// gate, when set, blocks every Grab until it can receive or is closed
	gate chan struct{}

	mu       sync.Mutex
	grabbers []*fakeGrabber
}

func (s *fakeSource) CreateScreenGrabber(screen rdisplay.Screen) (rdisplay.ScreenGrabber, error) {
	s.opens.Add(1)
	if s.openErr != nil {
		return nil, s.openErr
	}
	g := &fakeGrabber{src: s, screen: screen}
	s.mu.Lock()
	s.grabbers = append(s.grabbers, g)
	s.mu.Unlock()
	return g, nil
}

func (s *fakeSource) last() *fakeGrabber {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.grabbers) == 0 {
		return nil
	}
	return s.grabbers[len(s.grabbers)-1]
}

type fakeGrabber struct {
	src    *fakeSource
	screen rdisplay.Screen
	grabs  atomic.Int32
	closes atomic.Int32
}

func (g *fakeGrabber) Grab() (*frame.Frame, error) {
	if g.src.gate != nil {
		<-g.src.gate
	}
	n := int(g.grabs.Add(1))
	if g.src.failAt > 0 && n == g.src.failAt {
		return nil, errors.New("xgb: BadMatch")
	}
	img := image.NewRGBA(image.Rect(0, 0, g.screen.Width(), g.screen.Height()))
	for i := range img.Pix {
		img.Pix[i] = byte(n*13 + i)
	}
	if g.src.onGrab != nil {
		g.src.onGrab(n)
	}
	return frame.FromRGBA(img), nil
}

func (g *fakeGrabber) Screen() rdisplay.Screen {
	return g.screen
}

func (g *fakeGrabber) Close() error {
	g.closes.Add(1)
	return nil
}

// fakeSink remembers the size of every frame it gets
type fakeSink struct {
	path          string
	width, height int
	fps           int

	failAt   int
	closeErr error

	mu     sync.Mutex
	sizes  []image.Point
	closes int
}

func (s *fakeSink) Write(f *frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := f.Validate(); err != nil {
		return err
	}
	if s.failAt > 0 && len(s.sizes)+1 == s.failAt {
		return errors.New("x264: encoder fault")
	}
	s.sizes = append(s.sizes, f.Size())
	return nil
}

func (s *fakeSink) Layout() frame.Layout {
	return frame.LayoutRGB
}

func (s *fakeSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sizes)
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

// fakeSinks is a SinkOpener keeping track of what it opened
type fakeSinks struct {
	openErr  error
	failAt   int
	closeErr error

	mu    sync.Mutex
	sinks []*fakeSink
}

func (f *fakeSinks) open(path string, width, height, fps int) (VideoSink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := &fakeSink{path: path, width: width, height: height, fps: fps, failAt: f.failAt, closeErr: f.closeErr}
	f.sinks = append(f.sinks, s)
	return s, nil
}

func (f *fakeSinks) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks)
}

func (f *fakeSinks) last() *fakeSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sinks[len(f.sinks)-1]
}
