package engine

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewBWLimiter creates a rate.Limiter that caps destination write
// throughput to bytesPerSec. The burst is set to 1 MB so natural
// write-size chunks pass without unnecessary blocking.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// rateLimitedWriter wraps an io.Writer and enforces a shared rate limit.
type rateLimitedWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

func (rw *rateLimitedWriter) Write(p []byte) (int, error) {
	// Large writes are split so they never exceed the limiter burst.
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > rw.limiter.Burst() {
			n = rw.limiter.Burst()
		}
		if err := rw.limiter.WaitN(rw.ctx, n); err != nil {
			return written, err
		}
		n, err := rw.w.Write(p[:n])
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}

// limitWriter wraps w with the limiter when one is configured.
func limitWriter(ctx context.Context, w io.Writer, limiter *rate.Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &rateLimitedWriter{w: w, limiter: limiter, ctx: ctx}
}
