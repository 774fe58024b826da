package engine

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// verifyTree walks the source tree in traversal order and compares the
// BLAKE3 digest of every regular file against its destination copy. A
// mismatch means the sync did not reproduce the source and is treated as
// an internal failure.
func verifyTree(ctx context.Context, srcRoot, dstRoot string) error {
	return filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return sourceErr(path, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return internalErr(path, err)
		}
		dstPath := filepath.Join(dstRoot, rel)

		srcSum, err := blake3Sum(path)
		if err != nil {
			return sourceErr(path, err)
		}
		dstSum, err := blake3Sum(dstPath)
		if err != nil {
			return destErr(dstPath, err)
		}
		if srcSum != dstSum {
			return internalErr(dstPath, fmt.Errorf("checksum mismatch: src %x dst %x", srcSum[:8], dstSum[:8]))
		}
		return nil
	})
}

func blake3Sum(path string) ([32]byte, error) {
	var sum [32]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
