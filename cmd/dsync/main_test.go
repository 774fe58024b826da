package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terror/dsync/internal/engine"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1024", 1024},
		{"4k", 4096},
		{"4K", 4096},
		{"10M", 10 << 20},
		{"1G", 1 << 30},
		{" 512 ", 512},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}

	for _, bad := range []string{"", "abc", "-1", "0", "1T"} {
		_, err := parseSize(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestBuildStrategyCopy(t *testing.T) {
	strategy, deltaStrategy, err := buildStrategy("copy", 0, false, nil)
	require.NoError(t, err)
	assert.NotNil(t, strategy)
	assert.Nil(t, deltaStrategy)
}

func TestBuildStrategyCopyRejectsBlockSize(t *testing.T) {
	_, _, err := buildStrategy("copy", 4096, true, nil)
	require.Error(t, err)

	var syncErr *engine.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, engine.ErrArgument, syncErr.Kind)
}

func TestBuildStrategyDeltaDefaultsBlockSize(t *testing.T) {
	strategy, deltaStrategy, err := buildStrategy("delta", 0, false, nil)
	require.NoError(t, err)
	assert.NotNil(t, strategy)
	require.NotNil(t, deltaStrategy)
}

func TestBuildStrategyDeltaRejectsExplicitZeroBlockSize(t *testing.T) {
	// --block-size 0 is an argument error, not a request for the default.
	for _, blockSize := range []int{0, -1} {
		_, _, err := buildStrategy("delta", blockSize, true, nil)
		require.Error(t, err, "block size %d", blockSize)

		var syncErr *engine.SyncError
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, engine.ErrArgument, syncErr.Kind)
	}
}

func TestBuildStrategyUnknownName(t *testing.T) {
	_, _, err := buildStrategy("rsync", 0, false, nil)
	require.Error(t, err)

	var syncErr *engine.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, engine.ErrArgument, syncErr.Kind)
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, 1, exitCode(&engine.SyncError{Kind: engine.ErrArgument, Err: errors.New("bad flag")}))
	assert.Equal(t, 2, exitCode(&engine.SyncError{Kind: engine.ErrSourceIO, Err: errors.New("unreadable")}))
	assert.Equal(t, 2, exitCode(&engine.SyncError{Kind: engine.ErrDestinationIO, Err: errors.New("unwritable")}))
	assert.Equal(t, 2, exitCode(&engine.SyncError{Kind: engine.ErrStrategy, Err: errors.New("index too large")}))
	assert.Equal(t, 2, exitCode(&engine.SyncError{Kind: engine.ErrInternal, Err: errors.New("mismatch")}))
	assert.Equal(t, 1, exitCode(errors.New("usage problem")))
}
