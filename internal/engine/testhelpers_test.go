package engine_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/terror/dsync/internal/engine"
)

// createTestTree populates root with a standard test tree:
//
//	a.txt             (13 bytes)
//	big.bin           (320KB)
//	sub/b.txt         (19 bytes)
//	sub/deep/leaf.txt (17 bytes)
func createTestTree(t *testing.T, root string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "a.txt"),
		[]byte("alpha content"),
		0o644,
	))

	bigData := bytes.Repeat([]byte("ABCDEFGHIJKLMNOP"), 20000) // 320KB
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "big.bin"),
		bigData,
		0o644,
	))

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "sub", "b.txt"),
		[]byte("middle file content"),
		0o644,
	))

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "sub", "deep", "leaf.txt"),
		[]byte("leaf file content"),
		0o644,
	))
}

// modifyTestTree changes a.txt wholesale and flips a few bytes inside
// big.bin. Modified files get an mtime one hour ahead so the planner's
// size+mtime skip check cannot suppress them within the same clock tick.
func modifyTestTree(t *testing.T, root string) {
	t.Helper()
	future := time.Now().Add(time.Hour)

	aPath := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(aPath, []byte("alpha content, revised"), 0o644))
	require.NoError(t, os.Chtimes(aPath, future, future))

	bigPath := filepath.Join(root, "big.bin")
	data, err := os.ReadFile(bigPath)
	require.NoError(t, err)
	copy(data[100:116], []byte("MODIFIED_BLOCK!!"))
	require.NoError(t, os.WriteFile(bigPath, data, 0o644))
	require.NoError(t, os.Chtimes(bigPath, future, future))
}

// verifyTreeCopy checks that dstRoot holds byte-identical copies of the
// regular files under srcRoot.
func verifyTreeCopy(t *testing.T, srcRoot, dstRoot string) {
	t.Helper()
	err := filepath.WalkDir(srcRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		require.NoError(t, err)

		srcData, err := os.ReadFile(path)
		require.NoError(t, err, "read src %s", rel)
		dstData, err := os.ReadFile(filepath.Join(dstRoot, rel))
		require.NoError(t, err, "read dst %s", rel)
		require.Equal(t, srcData, dstData, "content mismatch: %s", rel)
		return nil
	})
	require.NoError(t, err)
}

// collectActions returns a reporter that appends every action to the
// returned slice pointer.
func collectActions() (engine.Reporter, *[]engine.Action) {
	var actions []engine.Action
	return func(a engine.Action) { actions = append(actions, a) }, &actions
}

// actionKinds extracts the kind sequence from collected actions.
func actionKinds(actions []engine.Action) []engine.Kind {
	kinds := make([]engine.Kind, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind
	}
	return kinds
}

// findTmpFiles returns any .dsync-tmp files found under root.
func findTmpFiles(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasSuffix(d.Name(), ".dsync-tmp") {
			found = append(found, path)
		}
		return nil
	})
	require.NoError(t, err)
	return found
}
