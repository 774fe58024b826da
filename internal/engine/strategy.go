package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/time/rate"
)

// copyBufSize is the read granularity for whole-file copies.
const copyBufSize = 128 * 1024

// Strategy updates a single destination file from its source
// counterpart. Implementations are the whole-file copier and the delta
// strategy; both write through a temporary file that atomically replaces
// the destination.
type Strategy interface {
	SyncFile(ctx context.Context, source, dest string) error
}

// Copier is the default strategy: it mirrors files with whole-file
// copies.
type Copier struct {
	limiter *rate.Limiter
}

// NewCopier returns a copy strategy. limiter may be nil for unthrottled
// writes.
func NewCopier(limiter *rate.Limiter) *Copier {
	return &Copier{limiter: limiter}
}

// SyncFile copies source over dest byte for byte, preserving mode and
// mtime.
func (c *Copier) SyncFile(ctx context.Context, source, dest string) error {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return sourceErr(source, err)
	}
	return copyFile(ctx, source, dest, srcInfo, c.limiter)
}

// copyFile streams source into a temp file beside dest and renames it
// into place. Shared by the copy strategy and the delta strategy's
// missing-destination path.
func copyFile(ctx context.Context, source, dest string, srcInfo os.FileInfo, limiter *rate.Limiter) error {
	srcFile, err := os.Open(source)
	if err != nil {
		return sourceErr(source, err)
	}
	defer srcFile.Close()

	return writeAtomic(dest, srcInfo, func(f *os.File) error {
		w := limitWriter(ctx, f, limiter)
		buf := make([]byte, copyBufSize)
		for {
			n, readErr := srcFile.Read(buf)
			if n > 0 {
				if _, writeErr := w.Write(buf[:n]); writeErr != nil {
					return destErr(dest, fmt.Errorf("write: %w", writeErr))
				}
			}
			if readErr == io.EOF {
				return nil
			}
			if readErr != nil {
				return sourceErr(source, fmt.Errorf("read: %w", readErr))
			}
		}
	})
}
