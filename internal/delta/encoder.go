package delta

import (
	"fmt"
	"io"

	"github.com/terror/dsync/internal/checksum"
	"github.com/terror/dsync/internal/stats"
)

// Encode matches src against the basis signature and emits reconstruction
// instructions in source order. The source is processed as a stream: at
// any moment the encoder holds one block-sized window, a bounded read
// buffer, and a literal buffer flushed at the block size.
//
// The returned stats account literal and matched bytes; transferred bytes
// equal literal bytes (instruction overhead is not counted).
func Encode(src io.Reader, sig *Signature, emit func(Op) error) (stats.FileStats, error) {
	if sig == nil || len(sig.Blocks) == 0 || int64(sig.BlockSize) > sig.FileSize {
		// No basis block can ever match: short basis files only carry a
		// block smaller than the window length.
		blockSize := DefaultBlockSize
		if sig != nil {
			blockSize = sig.BlockSize
		}
		return encodeAllLiteral(src, blockSize, emit)
	}

	e := &encoder{
		src:  src,
		sig:  sig,
		emit: emit,
	}
	return e.run()
}

type encoder struct {
	src  io.Reader
	sig  *Signature
	emit func(Op) error

	buf    []byte
	start  int
	filled int
	eof    bool

	lit          []byte
	literalBytes int64
	matchedBytes int64
}

func (e *encoder) run() (stats.FileStats, error) {
	blockSize := e.sig.BlockSize

	// The read buffer holds the current window plus lookahead so single
	// byte rolls rarely touch the reader.
	extra := blockSize
	if extra < 4096 {
		extra = 4096
	}
	if extra > 1<<20 {
		extra = 1 << 20
	}
	e.buf = make([]byte, blockSize+extra)
	e.lit = make([]byte, 0, blockSize)

	var rc *checksum.Rolling
	seed := true

	for {
		if e.filled-e.start < blockSize+1 && !e.eof {
			if err := e.fill(); err != nil {
				return stats.FileStats{}, fmt.Errorf("read source: %w", err)
			}
		}

		avail := e.filled - e.start
		if avail == 0 {
			break
		}
		if avail < blockSize {
			// Fewer than a full window remains; no match is possible.
			e.lit = append(e.lit, e.buf[e.start:e.filled]...)
			e.start = e.filled
			break
		}

		window := e.buf[e.start : e.start+blockSize]
		if seed {
			rc = checksum.NewRolling(window)
			seed = false
		}

		if b, ok := e.sig.find(rc.Sum(), window); ok {
			if err := e.flushLiteral(); err != nil {
				return stats.FileStats{}, err
			}
			if err := e.emit(Op{BlockIdx: b.Index, Offset: b.Offset, Length: b.Length}); err != nil {
				return stats.FileStats{}, err
			}
			e.matchedBytes += int64(b.Length)
			e.start += blockSize
			seed = true
			continue
		}

		if avail == blockSize {
			// At EOF with exactly one unmatched window left.
			e.lit = append(e.lit, window...)
			e.start = e.filled
			break
		}

		e.lit = append(e.lit, window[0])
		if len(e.lit) >= blockSize {
			if err := e.flushLiteral(); err != nil {
				return stats.FileStats{}, err
			}
		}
		rc.Roll(e.buf[e.start], e.buf[e.start+blockSize])
		e.start++
	}

	// The end-of-source branches above can leave more than one block of
	// literal bytes; emit them in block-sized pieces.
	for len(e.lit) > blockSize {
		rest := append([]byte(nil), e.lit[blockSize:]...)
		e.lit = e.lit[:blockSize]
		if err := e.flushLiteral(); err != nil {
			return stats.FileStats{}, err
		}
		e.lit = append(e.lit, rest...)
	}
	if err := e.flushLiteral(); err != nil {
		return stats.FileStats{}, err
	}

	return stats.FileStats{
		TotalBytes:       e.literalBytes + e.matchedBytes,
		BytesTransferred: e.literalBytes,
		LiteralBytes:     e.literalBytes,
		MatchedBytes:     e.matchedBytes,
	}, nil
}

// fill compacts the window to the buffer front and reads until the buffer
// is full or the source is exhausted.
func (e *encoder) fill() error {
	if e.start > 0 {
		copy(e.buf, e.buf[e.start:e.filled])
		e.filled -= e.start
		e.start = 0
	}
	for e.filled < len(e.buf) {
		n, err := e.src.Read(e.buf[e.filled:])
		e.filled += n
		if err == io.EOF {
			e.eof = true
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// flushLiteral hands the accumulated literal bytes to the consumer. The
// buffer is surrendered with the op, so a fresh one is allocated.
func (e *encoder) flushLiteral() error {
	if len(e.lit) == 0 {
		return nil
	}
	op := Op{BlockIdx: -1, Literal: e.lit, Length: len(e.lit)}
	e.literalBytes += int64(len(e.lit))
	e.lit = make([]byte, 0, e.sig.BlockSize)
	return e.emit(op)
}

// encodeAllLiteral streams the whole source out as literal instructions.
func encodeAllLiteral(src io.Reader, chunkSize int, emit func(Op) error) (stats.FileStats, error) {
	var total int64
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			lit := make([]byte, n)
			copy(lit, buf[:n])
			if emitErr := emit(Op{BlockIdx: -1, Literal: lit, Length: n}); emitErr != nil {
				return stats.FileStats{}, emitErr
			}
			total += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return stats.FileStats{}, fmt.Errorf("read source: %w", err)
		}
	}
	return stats.FileStats{
		TotalBytes:       total,
		BytesTransferred: total,
		LiteralBytes:     total,
	}, nil
}
