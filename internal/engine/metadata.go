package engine

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// setFileMetadata applies the source's mode bits and mtime to the open
// temp file before it is renamed into place.
func setFileMetadata(f *os.File, srcInfo os.FileInfo) error {
	rawFd := int(f.Fd())

	if err := unix.Fchmod(rawFd, uint32(srcInfo.Mode().Perm())); err != nil {
		return fmt.Errorf("fchmod: %w", err)
	}

	mtime := unix.NsecToTimespec(srcInfo.ModTime().UnixNano())
	times := []unix.Timespec{mtime, mtime}
	if err := unix.UtimesNanoAt(rawFd, "", times, unix.AT_EMPTY_PATH); err != nil {
		// Fallback: some systems don't support AT_EMPTY_PATH.
		if err2 := unix.UtimesNanoAt(unix.AT_FDCWD, f.Name(), times, 0); err2 != nil {
			return fmt.Errorf("utimensat: %w", err)
		}
	}
	return nil
}

// touchMetadata refreshes mode and mtime on an existing destination file
// whose content already matches the source.
func touchMetadata(path string, srcInfo os.FileInfo) error {
	if err := os.Chmod(path, srcInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Chtimes(path, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return fmt.Errorf("chtimes: %w", err)
	}
	return nil
}
