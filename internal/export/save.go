// Package export moves finished recordings from the session temp path to
// where the user asked for them.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	xlog "github.com/rviscarra/screenrec/internal/log"
)

// ErrSave the recording could not be stored at its destination
var ErrSave = errors.New("save failed")

// Save copies src to dst and removes src once dst is durable on disk.
// dst is replaced atomically, a failed save leaves any previous dst and src
// untouched.
func Save(ctx context.Context, src, dst string) error {
	logger := xlog.WithComponent("export")

	same, err := samePath(src, dst)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	if same {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open recording: %w", ErrSave, err)
	}
	defer in.Close()

	pending, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("%w: create pending file: %w", ErrSave, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending file")
		}
	}()

	n, err := io.Copy(pending, &ctxReader{ctx: ctx, r: in})
	if err != nil {
		return fmt.Errorf("%w: copy recording: %w", ErrSave, err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrSave, dst, err)
	}

	in.Close()
	if err := os.Remove(src); err != nil {
		// dst is complete, a stale temp file is only worth a warning
		logger.Warn().Err(err).Str("path", src).Msg("removing temporary recording")
	}

	logger.Info().
		Str("from", src).
		Str("to", dst).
		Int64("bytes", n).
		Msg("recording saved")
	return nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

// ctxReader stops a copy between reads once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
