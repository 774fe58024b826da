package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// tmpPathFor returns a unique temporary path in the same directory as
// dst, so the final rename never crosses a filesystem boundary.
func tmpPathFor(dst string) string {
	dir := filepath.Dir(dst)
	base := filepath.Base(dst)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.dsync-tmp", base, uuid.New().String()[:8]))
}

// writeAtomic materializes dst through a temporary file: write fills the
// temp file, metadata from srcInfo is applied to the open fd, the file is
// fsynced, and only then renamed over dst. On any failure the temp file
// is removed and dst is left untouched.
func writeAtomic(dst string, srcInfo os.FileInfo, write func(*os.File) error) error {
	tmpPath := tmpPathFor(dst)

	trackTmp(tmpPath)
	defer func() {
		untrackTmp(tmpPath)
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, srcInfo.Mode().Perm())
	if err != nil {
		return destErr(dst, fmt.Errorf("create tmp: %w", err))
	}

	if err := write(f); err != nil {
		f.Close()
		return err
	}

	if err := setFileMetadata(f, srcInfo); err != nil {
		f.Close()
		return destErr(dst, fmt.Errorf("set metadata: %w", err))
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return destErr(dst, fmt.Errorf("fsync tmp: %w", err))
	}
	if err := f.Close(); err != nil {
		return destErr(dst, fmt.Errorf("close tmp: %w", err))
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return destErr(dst, fmt.Errorf("rename: %w", err))
	}
	return nil
}
