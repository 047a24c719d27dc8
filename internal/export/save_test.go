package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestSaveMovesRecording(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "screenrec-1.mp4")
	dst := filepath.Join(dir, "out", "meeting.mp4")
	require.NoError(t, os.Mkdir(filepath.Dir(dst), 0o755))

	data := bytes.Repeat([]byte("ftypmoof"), 64<<10)
	writeFile(t, src, data)

	require.NoError(t, Save(context.Background(), src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "temporary file removed")
}

func TestSaveReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "new.mp4")
	dst := filepath.Join(dir, "out.mp4")
	writeFile(t, src, []byte("new"))
	writeFile(t, dst, []byte("old recording"))

	require.NoError(t, Save(context.Background(), src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestSaveMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.mp4")
	writeFile(t, dst, []byte("old"))

	err := Save(context.Background(), filepath.Join(dir, "nope.mp4"), dst)
	assert.ErrorIs(t, err, ErrSave)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestSaveMissingDestinationDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rec.mp4")
	writeFile(t, src, []byte("data"))

	err := Save(context.Background(), src, filepath.Join(dir, "missing", "out.mp4"))
	assert.ErrorIs(t, err, ErrSave)

	_, err = os.Stat(src)
	assert.NoError(t, err, "source kept when the save fails")
}

func TestSaveCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rec.mp4")
	dst := filepath.Join(dir, "out.mp4")
	writeFile(t, src, []byte("data"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Save(ctx, src, dst)
	assert.ErrorIs(t, err, ErrSave)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(src)
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no pending file left behind")
}

func TestSaveSamePath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rec.mp4")
	writeFile(t, src, []byte("data"))

	require.NoError(t, Save(context.Background(), src, filepath.Join(dir, ".", "rec.mp4")))

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}
