package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomicReplacesDestination(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "out.txt")
	require.NoError(t, os.WriteFile(dst, []byte("before"), 0o644))

	srcInfo := statFixture(t, tmp, []byte("after"))
	err := writeAtomic(dst, srcInfo, func(f *os.File) error {
		_, werr := f.Write([]byte("after"))
		return werr
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "after", string(data))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".dsync-tmp")
	}
}

func TestWriteAtomicFailureLeavesDestinationUntouched(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "out.txt")
	require.NoError(t, os.WriteFile(dst, []byte("original"), 0o644))

	injected := errors.New("mid-write failure")
	srcInfo := statFixture(t, tmp, []byte("partial"))
	err := writeAtomic(dst, srcInfo, func(f *os.File) error {
		// Write some bytes, then fail: the destination must not see them.
		_, _ = f.Write([]byte("part"))
		return injected
	})
	require.ErrorIs(t, err, injected)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".dsync-tmp")
	}
}

// statFixture creates a throwaway file and returns its FileInfo, giving
// writeAtomic a realistic metadata source.
func statFixture(t *testing.T, dir string, data []byte) os.FileInfo {
	t.Helper()
	path := filepath.Join(dir, "fixture")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info
}
