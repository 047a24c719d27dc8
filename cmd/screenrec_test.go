package main

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rviscarra/screenrec/internal/frame"
	"github.com/rviscarra/screenrec/internal/rdisplay"
)

type stubVideo struct {
	screens []rdisplay.Screen
	err     error
}

func (v *stubVideo) Screens() ([]rdisplay.Screen, error) {
	return v.screens, v.err
}

func (v *stubVideo) CreateScreenGrabber(s rdisplay.Screen) (rdisplay.ScreenGrabber, error) {
	return &stubGrabber{screen: s}, nil
}

type stubGrabber struct {
	screen rdisplay.Screen
}

func (g *stubGrabber) Grab() (*frame.Frame, error) {
	return frame.FromRGBA(image.NewRGBA(image.Rect(0, 0, g.screen.Width(), g.screen.Height()))), nil
}

func (g *stubGrabber) Screen() rdisplay.Screen { return g.screen }

func (g *stubGrabber) Close() error { return nil }

func TestListScreens(t *testing.T) {
	video := &stubVideo{screens: []rdisplay.Screen{
		{Index: 0, Bounds: image.Rect(0, 0, 1920, 1080)},
		{Index: 1, Bounds: image.Rect(1920, 0, 3200, 720)},
	}}

	var out bytes.Buffer
	require.NoError(t, listScreens(video, &out, ""))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "0\t1920x1080"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1\t1280x720"), lines[1])
}

func TestListScreensThumbnails(t *testing.T) {
	dir := t.TempDir()
	video := &stubVideo{screens: []rdisplay.Screen{
		{Index: 0, Bounds: image.Rect(0, 0, 1920, 1080)},
	}}

	var out bytes.Buffer
	require.NoError(t, listScreens(video, &out, dir))

	path := filepath.Join(dir, "display-0.png")
	assert.Contains(t, out.String(), path)

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	cfg, err := png.DecodeConfig(fh)
	require.NoError(t, err)
	assert.Equal(t, thumbnailSize, cfg.Width)
	assert.Equal(t, 180, cfg.Height)
}

func TestListScreensError(t *testing.T) {
	video := &stubVideo{err: rdisplay.ErrEnumeration}
	err := listScreens(video, &bytes.Buffer{}, "")
	assert.True(t, errors.Is(err, rdisplay.ErrEnumeration))
}
