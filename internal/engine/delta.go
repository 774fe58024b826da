package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"

	"github.com/terror/dsync/internal/delta"
	"github.com/terror/dsync/internal/stats"
)

// DeltaConfig parameterizes a delta strategy.
type DeltaConfig struct {
	BlockSize     int           // required, in [1, delta.MaxBlockSize]
	MaxIndexBytes int64         // 0 means delta.DefaultMaxIndexBytes
	Limiter       *rate.Limiter // optional write throttle
}

// DeltaStrategy reconstructs changed destination files from blocks
// already present in the previous destination copy plus literal bytes
// from the source. It owns a stats registry recording per-file transfer
// accounting for the lifetime of the strategy.
type DeltaStrategy struct {
	blockSize     int
	maxIndexBytes int64
	limiter       *rate.Limiter
	registry      *stats.Registry
}

// NewDeltaStrategy validates cfg and returns a delta strategy with an
// empty registry.
func NewDeltaStrategy(cfg DeltaConfig) (*DeltaStrategy, error) {
	if cfg.BlockSize < 1 || cfg.BlockSize > delta.MaxBlockSize {
		return nil, argErr("", fmt.Errorf("block size %d out of range [1, %d]", cfg.BlockSize, delta.MaxBlockSize))
	}
	maxIndexBytes := cfg.MaxIndexBytes
	if maxIndexBytes <= 0 {
		maxIndexBytes = delta.DefaultMaxIndexBytes
	}
	return &DeltaStrategy{
		blockSize:     cfg.BlockSize,
		maxIndexBytes: maxIndexBytes,
		limiter:       cfg.Limiter,
		registry:      stats.NewRegistry(),
	}, nil
}

// Stats returns a snapshot of every per-file record from this run.
func (d *DeltaStrategy) Stats() map[string]stats.FileStats {
	return d.registry.All()
}

// StatsFor returns the record for one destination path, if present.
func (d *DeltaStrategy) StatsFor(dest string) (stats.FileStats, bool) {
	return d.registry.Get(filepath.Clean(dest))
}

// SyncFile brings dest into byte agreement with source, reusing
// destination blocks where possible.
func (d *DeltaStrategy) SyncFile(ctx context.Context, source, dest string) error {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return sourceErr(source, err)
	}
	srcSize := srcInfo.Size()

	dstInfo, err := os.Stat(dest)
	if err != nil {
		if !os.IsNotExist(err) {
			return destErr(dest, err)
		}
		// No basis to match against; fall back to a whole-file copy.
		if copyErr := copyFile(ctx, source, dest, srcInfo, d.limiter); copyErr != nil {
			return copyErr
		}
		d.record(dest, stats.FileStats{
			TotalBytes:       srcSize,
			BytesTransferred: srcSize,
			LiteralBytes:     srcSize,
		})
		return nil
	}

	if srcSize == 0 {
		if err := writeAtomic(dest, srcInfo, func(*os.File) error { return nil }); err != nil {
			return err
		}
		d.record(dest, stats.FileStats{})
		return nil
	}

	if srcSize == dstInfo.Size() {
		equal, err := contentEqual(source, dest)
		if err != nil {
			return err
		}
		if equal {
			if err := touchMetadata(dest, srcInfo); err != nil {
				return destErr(dest, err)
			}
			d.record(dest, stats.FileStats{
				TotalBytes:   srcSize,
				MatchedBytes: srcSize,
			})
			return nil
		}
	}

	return d.syncDelta(ctx, source, dest, srcInfo, dstInfo.Size())
}

func (d *DeltaStrategy) syncDelta(ctx context.Context, source, dest string, srcInfo os.FileInfo, dstSize int64) error {
	dstFile, err := os.Open(dest)
	if err != nil {
		return destErr(dest, err)
	}
	defer dstFile.Close()

	sig, err := delta.ComputeSignature(dstFile, dstSize, d.blockSize, d.maxIndexBytes)
	if err != nil {
		if errors.Is(err, delta.ErrIndexTooLarge) {
			return strategyErr(dest, err)
		}
		return destErr(dest, err)
	}

	srcFile, err := os.Open(source)
	if err != nil {
		return sourceErr(source, err)
	}
	defer srcFile.Close()

	var fileStats stats.FileStats
	err = writeAtomic(dest, srcInfo, func(f *os.File) error {
		// Copy ops pread the old destination; the open handle stays
		// valid after the rename replaces the path.
		ap := delta.NewApplier(dstFile, limitWriter(ctx, f, d.limiter))
		emit := func(op delta.Op) error {
			if applyErr := ap.Apply(op); applyErr != nil {
				return destErr(dest, applyErr)
			}
			return nil
		}

		var encodeErr error
		fileStats, encodeErr = delta.Encode(srcFile, sig, emit)
		if encodeErr != nil {
			return asSyncError(encodeErr, sourceErr, source)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if fileStats.TotalBytes != srcInfo.Size() {
		return internalErr(dest, fmt.Errorf(
			"instruction stream covered %d bytes, source is %d", fileStats.TotalBytes, srcInfo.Size()))
	}

	slog.Debug("delta applied",
		"dest", dest,
		"total", fileStats.TotalBytes,
		"transferred", fileStats.BytesTransferred,
		"reused", fileStats.MatchedBytes)

	d.record(dest, fileStats)
	return nil
}

func (d *DeltaStrategy) record(dest string, fs stats.FileStats) {
	d.registry.Record(filepath.Clean(dest), fs)
}

// contentEqual reports whether two equal-sized files carry identical
// bytes, compared via streaming xxhash digests.
func contentEqual(source, dest string) (bool, error) {
	srcSum, err := fileDigest(source)
	if err != nil {
		return false, sourceErr(source, err)
	}
	dstSum, err := fileDigest(dest)
	if err != nil {
		return false, destErr(dest, err)
	}
	return srcSum == dstSum, nil
}

func fileDigest(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
