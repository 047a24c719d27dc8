package rdisplay

import (
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
	"github.com/rviscarra/screenrec/internal/frame"
)

// backend is the subset of kbinani/screenshot we rely on
type backend interface {
	NumActiveDisplays() int
	GetDisplayBounds(displayIndex int) image.Rectangle
	CaptureRect(rect image.Rectangle) (*image.RGBA, error)
}

type screenshotBackend struct{}

func (screenshotBackend) NumActiveDisplays() int {
	return screenshot.NumActiveDisplays()
}

func (screenshotBackend) GetDisplayBounds(displayIndex int) image.Rectangle {
	return screenshot.GetDisplayBounds(displayIndex)
}

func (screenshotBackend) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(rect)
}

// XVideoProvider implements the rdisplay.Service interface for XServer
type XVideoProvider struct {
	backend backend
}

// XScreenGrabber captures frames from a X server
type XScreenGrabber struct {
	backend backend
	screen  Screen

	mu     sync.Mutex
	closed bool
}

// NewVideoProvider returns an X Server-based video provider
func NewVideoProvider() (*XVideoProvider, error) {
	return &XVideoProvider{backend: screenshotBackend{}}, nil
}

// Screens Returns the available screens to capture
func (x *XVideoProvider) Screens() ([]Screen, error) {
	numScreens := x.backend.NumActiveDisplays()
	if numScreens <= 0 {
		return nil, fmt.Errorf("%w: no active displays", ErrEnumeration)
	}
	screens := make([]Screen, numScreens)
	for i := 0; i < numScreens; i++ {
		bix, err := backendIndex(i, numScreens)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEnumeration, err)
		}
		bounds := x.backend.GetDisplayBounds(bix)
		if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
			return nil, fmt.Errorf("%w: display %d reports size %dx%d",
				ErrEnumeration, i, bounds.Dx(), bounds.Dy())
		}
		screens[i] = Screen{
			Index:  i,
			Bounds: bounds,
		}
	}
	return screens, nil
}

// CreateScreenGrabber binds a grabber to the screen. The screen must still
// exist with the same bounds it was enumerated with.
func (x *XVideoProvider) CreateScreenGrabber(screen Screen) (ScreenGrabber, error) {
	bix, err := backendIndex(screen.Index, x.backend.NumActiveDisplays())
	if err != nil {
		return nil, err
	}
	if bounds := x.backend.GetDisplayBounds(bix); bounds != screen.Bounds {
		return nil, fmt.Errorf("%w: display %d bounds changed from %v to %v",
			ErrDeviceOpen, screen.Index, screen.Bounds, bounds)
	}
	return &XScreenGrabber{
		backend: x.backend,
		screen:  screen,
	}, nil
}

// Grab captures the bound region
func (g *XScreenGrabber) Grab() (*frame.Frame, error) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: grabber closed", ErrCapture)
	}

	img, err := g.backend.CaptureRect(g.screen.Bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	f := frame.FromRGBA(img)
	if f.Width != g.screen.Width() || f.Height != g.screen.Height() {
		return nil, fmt.Errorf("%w: got %dx%d frame from display %v",
			ErrCapture, f.Width, f.Height, g.screen)
	}
	return f, nil
}

// Screen returns the screen we're capturing
func (g *XScreenGrabber) Screen() Screen {
	return g.screen
}

// Close releases the grabber, calling it more than once is harmless
func (g *XScreenGrabber) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return nil
}
