package chunkpool

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarve(t *testing.T) {
	const chunkSize, n = 16, 5
	mem, err := HeapBackend{}.Acquire(chunkSize * n)
	require.NoError(t, err)

	head := carve(mem, chunkSize, n, nil)
	require.Equal(t, unsafe.Pointer(&mem[0]), head)

	// Walk the list: chunks in address order, terminated by nil.
	var visited int
	for c := head; c != nil; c = loadLink(c) {
		assert.Equal(t, unsafe.Pointer(&mem[visited*chunkSize]), c)
		visited++
		require.LessOrEqual(t, visited, n, "free list does not terminate")
	}
	assert.Equal(t, n, visited)
}

func TestCarveLinksTail(t *testing.T) {
	var tail [2]uintptr
	mem, err := HeapBackend{}.Acquire(3 * ptrSize)
	require.NoError(t, err)

	head := carve(mem, ptrSize, 3, unsafe.Pointer(&tail))
	c := loadLink(loadLink(head))
	assert.Equal(t, unsafe.Pointer(&tail), loadLink(c))
}

func TestCarveSingleChunk(t *testing.T) {
	mem, err := HeapBackend{}.Acquire(ptrSize)
	require.NoError(t, err)

	head := carve(mem, ptrSize, 1, nil)
	assert.Nil(t, loadLink(head))
}

func TestLinkUnalignedRoundTrip(t *testing.T) {
	buf := make([]byte, 4*ptrSize)
	target := make([]byte, 1)
	for off := 0; off < ptrSize; off++ {
		c := unsafe.Pointer(&buf[off+1])
		storeLink(c, unsafe.Pointer(&target[0]))
		assert.Equal(t, unsafe.Pointer(&target[0]), loadLink(c), "offset %d", off+1)
		storeLink(c, nil)
		assert.Nil(t, loadLink(c))
	}
}

func TestArenaContains(t *testing.T) {
	mem, err := HeapBackend{}.Acquire(64)
	require.NoError(t, err)
	a := arena{mem: mem, chunks: 4}

	assert.True(t, a.contains(unsafe.Pointer(&mem[0])))
	assert.True(t, a.contains(unsafe.Pointer(&mem[63])))

	other := make([]byte, 8)
	assert.False(t, a.contains(unsafe.Pointer(&other[0])))
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uintptr
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{13, 4, 16},
		{100, 64, 128},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, alignUp(tt.n, tt.align), "alignUp(%d, %d)", tt.n, tt.align)
	}
}

func TestMulInt(t *testing.T) {
	v, ok := mulInt(1000, 64)
	assert.True(t, ok)
	assert.Equal(t, 64000, v)

	_, ok = mulInt(math.MaxInt, 2)
	assert.False(t, ok)

	v, ok = mulInt(math.MaxInt, 1)
	assert.True(t, ok)
	assert.Equal(t, math.MaxInt, v)
}
