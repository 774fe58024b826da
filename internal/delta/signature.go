// Package delta implements rsync-style block matching: it fingerprints an
// existing destination file, matches a source stream against those blocks
// with a rolling weak checksum, and emits an instruction stream that
// reconstructs the source from destination blocks plus literal bytes.
package delta

import (
	"errors"
	"fmt"
	"io"

	"github.com/terror/dsync/internal/checksum"
)

// DefaultBlockSize is the block length used when none is configured.
const DefaultBlockSize = 64 * 1024

// MaxBlockSize bounds configurable block lengths.
const MaxBlockSize = 1 << 30

// DefaultMaxIndexBytes caps the in-memory block index. Small block sizes
// over large basis files would otherwise grow the index without bound.
const DefaultMaxIndexBytes = 256 << 20

// indexEntryCost is a conservative per-block estimate covering the
// signature record and its share of the candidate map.
const indexEntryCost = 96

// ErrIndexTooLarge is returned when the basis file would need a block
// index above the configured memory ceiling.
var ErrIndexTooLarge = errors.New("block index exceeds memory ceiling")

// BlockSignature identifies one basis block by its weak checksum and
// strong digest. Length equals the block size except for a short final
// block.
type BlockSignature struct {
	Index  int
	Offset int64
	Length int
	Weak   uint32
	Strong [checksum.StrongSize]byte
}

// Signature holds the block signatures of a basis file together with a
// weak-checksum lookup index. For a given basis content and block size
// the signature is deterministic: blocks appear in file order and
// candidate lists ascend by offset.
type Signature struct {
	Blocks    []BlockSignature
	BlockSize int
	FileSize  int64

	byWeak map[uint32][]int
}

// ComputeSignature fingerprints the basis stream in blockSize units.
// fileSize is used to fail fast when the resulting index would exceed
// maxIndexBytes (0 means DefaultMaxIndexBytes).
func ComputeSignature(r io.Reader, fileSize int64, blockSize int, maxIndexBytes int64) (*Signature, error) {
	if blockSize < 1 || blockSize > MaxBlockSize {
		return nil, fmt.Errorf("block size %d out of range [1, %d]", blockSize, MaxBlockSize)
	}
	if maxIndexBytes <= 0 {
		maxIndexBytes = DefaultMaxIndexBytes
	}

	if fileSize > 0 {
		numBlocks := (fileSize + int64(blockSize) - 1) / int64(blockSize)
		if numBlocks*indexEntryCost > maxIndexBytes {
			return nil, fmt.Errorf("%w: %d blocks of %d bytes (limit %s)",
				ErrIndexTooLarge, numBlocks, blockSize, formatLimit(maxIndexBytes))
		}
	}

	sig := &Signature{
		BlockSize: blockSize,
		byWeak:    make(map[uint32][]int),
	}

	buf := make([]byte, blockSize)
	var offset int64
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			block := buf[:n]
			bs := BlockSignature{
				Index:  len(sig.Blocks),
				Offset: offset,
				Length: n,
				Weak:   checksum.Sum(block),
				Strong: checksum.Strong(block),
			}
			sig.byWeak[bs.Weak] = append(sig.byWeak[bs.Weak], bs.Index)
			sig.Blocks = append(sig.Blocks, bs)
			offset += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read basis block at %d: %w", offset, err)
		}
	}
	sig.FileSize = offset

	return sig, nil
}

// find returns the lowest-offset basis block whose weak checksum, strong
// digest, and length all match window. The strong digest is computed only
// when the weak checksum has candidates.
func (s *Signature) find(weak uint32, window []byte) (BlockSignature, bool) {
	candidates := s.byWeak[weak]
	if len(candidates) == 0 {
		return BlockSignature{}, false
	}
	strong := checksum.Strong(window)
	for _, idx := range candidates {
		b := s.Blocks[idx]
		if b.Length == len(window) && b.Strong == strong {
			return b, true
		}
	}
	return BlockSignature{}, false
}

func formatLimit(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MiB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
