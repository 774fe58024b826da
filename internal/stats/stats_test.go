package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileStatsBytesSaved(t *testing.T) {
	fs := FileStats{TotalBytes: 1000, BytesTransferred: 100, LiteralBytes: 100, MatchedBytes: 900}
	assert.Equal(t, int64(900), fs.BytesSaved())

	// Never negative, even on inconsistent inputs.
	fs = FileStats{TotalBytes: 10, BytesTransferred: 20}
	assert.Equal(t, int64(0), fs.BytesSaved())
}

func TestRegistrySnapshots(t *testing.T) {
	r := NewRegistry()
	r.Record("/dst/a", FileStats{TotalBytes: 10})
	r.Record("/dst/b", FileStats{TotalBytes: 20})

	fs, ok := r.Get("/dst/a")
	assert.True(t, ok)
	assert.Equal(t, int64(10), fs.TotalBytes)

	_, ok = r.Get("/dst/missing")
	assert.False(t, ok)

	all := r.All()
	assert.Len(t, all, 2)
	delete(all, "/dst/a")
	assert.Len(t, r.All(), 2, "All returns a copy")
}

func TestRegistryRecordReplaces(t *testing.T) {
	r := NewRegistry()
	r.Record("/dst/a", FileStats{TotalBytes: 10})
	r.Record("/dst/a", FileStats{TotalBytes: 30})

	fs, _ := r.Get("/dst/a")
	assert.Equal(t, int64(30), fs.TotalBytes)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(3<<20/2))
	assert.Equal(t, "2.0 GiB", FormatBytes(2<<30))
}
