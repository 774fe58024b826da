// Package stats tracks per-file transfer accounting for delta
// synchronization runs.
package stats

import (
	"fmt"
	"sync"
)

// FileStats records how one destination file was brought up to date.
//
// MatchedBytes + LiteralBytes == TotalBytes always holds for a completed
// encode; BytesTransferred counts literal payload only (instruction
// overhead is excluded).
type FileStats struct {
	TotalBytes       int64
	BytesTransferred int64
	LiteralBytes     int64
	MatchedBytes     int64
}

// BytesSaved reports how much of the file was served from blocks already
// present at the destination.
func (s FileStats) BytesSaved() int64 {
	saved := s.TotalBytes - s.BytesTransferred
	if saved < 0 {
		return 0
	}
	return saved
}

func (s FileStats) String() string {
	return fmt.Sprintf("total=%d transferred=%d matched=%d literal=%d",
		s.TotalBytes, s.BytesTransferred, s.MatchedBytes, s.LiteralBytes)
}

// Registry maps destination paths to their FileStats. It is owned by a
// delta strategy instance and lives as long as the strategy; readers get
// snapshots, never live views.
type Registry struct {
	mu      sync.Mutex
	entries map[string]FileStats
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]FileStats)}
}

// Record stores the stats for path, replacing any prior record.
func (r *Registry) Record(path string, fs FileStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[path] = fs
}

// Get returns the stats recorded for path, if any.
func (r *Registry) Get(path string) (FileStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs, ok := r.entries[path]
	return fs, ok
}

// All returns a snapshot of every recorded entry.
func (r *Registry) All() map[string]FileStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]FileStats, len(r.entries))
	for path, fs := range r.entries {
		out[path] = fs
	}
	return out
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
