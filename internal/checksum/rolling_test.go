package checksum

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceSum recomputes the weak checksum from its definition:
// a = sum(bytes) mod 2^16, b = sum((L-k)*bytes[k]) mod 2^16.
func referenceSum(block []byte) uint32 {
	const mod = 1 << 16
	size := len(block)
	var a, b int
	for k, c := range block {
		a += int(c)
		b += (size - k) * int(c)
	}
	return uint32(b%mod)<<16 | uint32(a%mod)
}

func TestSumMatchesReference(t *testing.T) {
	blocks := [][]byte{
		{1, 2, 3, 4},
		{0},
		{255, 255, 255, 255, 255},
		[]byte("hello world"),
	}
	for _, block := range blocks {
		assert.Equal(t, referenceSum(block), Sum(block))
	}
}

func TestRollMatchesRecomputation(t *testing.T) {
	data := make([]byte, 512)
	_, err := rand.Read(data)
	require.NoError(t, err)

	const window = 16
	r := NewRolling(data[:window])
	for start := 1; start+window <= len(data); start++ {
		r.Roll(data[start-1], data[start+window-1])
		assert.Equal(t, Sum(data[start:start+window]), r.Sum(), "window at %d", start)
	}
}

func TestRollHandlesModuloWraparound(t *testing.T) {
	// A window of 300 bytes of 255 pushes both component sums past the
	// 16-bit modulus (a = 76500), and rolling a 0 in drives b's update
	// below zero before reduction.
	const window = 300
	data := make([]byte, window+1)
	for i := range window {
		data[i] = 255
	}

	r := NewRolling(data[:window])
	r.Roll(data[0], data[window])
	assert.Equal(t, Sum(data[1:1+window]), r.Sum())
}

func TestStrongIsDeterministic(t *testing.T) {
	block := []byte("the quick brown fox")
	assert.Equal(t, Strong(block), Strong(block))
	assert.NotEqual(t, Strong(block), Strong([]byte("the quick brown fix")))
}
