package rdisplay

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/rviscarra/screenrec/internal/frame"
)

var (
	// ErrEnumeration the capture subsystem can't list displays
	ErrEnumeration = errors.New("display enumeration failed")
	// ErrDeviceOpen a grabber can't be bound to the requested display
	ErrDeviceOpen = errors.New("display open failed")
	// ErrCapture a frame couldn't be captured
	ErrCapture = errors.New("capture failed")
)

// ScreenGrabber captures frames from a single display on demand
type ScreenGrabber interface {
	io.Closer
	// Grab blocks until the current image of the display is available
	Grab() (*frame.Frame, error)
	Screen() Screen
}

// Screen describes one capturable display as seen at enumeration time
type Screen struct {
	Index  int
	Bounds image.Rectangle
}

// Width of the display in pixels
func (s Screen) Width() int {
	return s.Bounds.Dx()
}

// Height of the display in pixels
func (s Screen) Height() int {
	return s.Bounds.Dy()
}

func (s Screen) String() string {
	return fmt.Sprintf("#%d %dx%d", s.Index, s.Width(), s.Height())
}

// Service lists displays and opens grabbers on them
type Service interface {
	CreateScreenGrabber(screen Screen) (ScreenGrabber, error)
	Screens() ([]Screen, error)
}
