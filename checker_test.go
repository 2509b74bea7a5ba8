package chunkpool

import (
	"bytes"
	"log/slog"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCheckedPool(t *testing.T, count, size int, opts ...CheckerOption) (*Pool, *Checker) {
	t.Helper()
	c := NewChecker(opts...)
	p, err := New(count, size, WithDebugger(c))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, c
}

func kinds(vs []Violation) []ViolationKind {
	out := make([]ViolationKind, len(vs))
	for i, v := range vs {
		out[i] = v.Kind
	}
	return out
}

func TestCheckerCleanRun(t *testing.T) {
	p, c := newCheckedPool(t, 8, 32)

	var held [][]byte
	for i := 0; i < 5; i++ {
		b := p.AllocBytes()
		require.NotNil(t, b)
		for j := range b {
			b[j] = byte(i)
		}
		held = append(held, b)
	}
	assert.Equal(t, 5, c.Live(p.ID()))

	for _, b := range held {
		p.FreeBytes(b)
	}
	for i := 0; i < 8; i++ {
		require.NotNil(t, p.Alloc())
	}
	assert.Empty(t, c.Violations())
	assert.Equal(t, 8, c.Live(p.ID()))
}

func TestCheckerPoisonsFreeChunks(t *testing.T) {
	p, _ := newCheckedPool(t, 2, 32)

	b := p.AllocBytes()
	require.NotNil(t, b)
	for _, x := range b[ptrSize:] {
		require.Equal(t, byte(poisonByte), x)
	}
	for i := range b {
		b[i] = 0
	}
	p.FreeBytes(b)
	for _, x := range b[ptrSize:] {
		require.Equal(t, byte(poisonByte), x)
	}
}

func TestCheckerDoubleFree(t *testing.T) {
	p, c := newCheckedPool(t, 2, 16)

	a := p.Alloc()
	p.Free(a)
	p.Free(a)

	vs := c.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, DoubleFree, vs[0].Kind)
	assert.Equal(t, uintptr(a), vs[0].Addr)
	assert.Equal(t, p.ID(), vs[0].Pool)

	// The corrupted list now hands out a twice.
	p.Alloc()
	p.Alloc()
	assert.Equal(t, []ViolationKind{DoubleFree, DuplicateAlloc}, kinds(c.Violations()))
}

func TestCheckerForeignFree(t *testing.T) {
	p, c := newCheckedPool(t, 2, 32)
	b := p.AllocBytes()
	require.NotNil(t, b)

	// Inside an arena but not on a chunk boundary.
	p.Free(unsafe.Pointer(&b[ptrSize]))

	foreign := make([]byte, 64)
	p.Free(unsafe.Pointer(&foreign[0]))

	assert.Equal(t, []ViolationKind{ForeignFree, ForeignFree}, kinds(c.Violations()))
	assert.Equal(t, 1, c.Live(p.ID()))
}

func TestCheckerWriteAfterFree(t *testing.T) {
	p, c := newCheckedPool(t, 1, 32)

	b := p.AllocBytes()
	p.FreeBytes(b)
	b[20] = 1 // stale write

	again := p.AllocBytes()
	require.NotNil(t, again)
	vs := c.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, WriteAfterFree, vs[0].Kind)
	assert.Contains(t, vs[0].Error(), "write after free")
}

func TestCheckerWithoutPoison(t *testing.T) {
	p, c := newCheckedPool(t, 1, 32, WithoutPoison())

	b := p.AllocBytes()
	for i := range b {
		b[i] = 7
	}
	p.FreeBytes(b)
	b[20] = 1

	again := p.AllocBytes()
	require.NotNil(t, again)
	assert.Empty(t, c.Violations())
	assert.Equal(t, byte(7), again[ptrSize], "contents are left alone without poisoning")
}

func TestCheckerCallbackAndLogger(t *testing.T) {
	var got []Violation
	var buf bytes.Buffer
	p, _ := newCheckedPool(t, 2, 16,
		OnViolation(func(v Violation) { got = append(got, v) }),
		WithCheckerLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)

	a := p.Alloc()
	p.Free(a)
	p.Free(a)

	require.Len(t, got, 1)
	assert.Equal(t, DoubleFree, got[0].Kind)
	assert.Contains(t, buf.String(), "kind=\"double free\"")
}

func TestCheckerSharedAcrossPools(t *testing.T) {
	c := NewChecker()
	p1, err := New(2, 16, WithDebugger(c))
	require.NoError(t, err)
	p2, err := New(2, 16, WithDebugger(c))
	require.NoError(t, err)
	defer p2.Close()

	a := p1.Alloc()
	p2.Alloc()
	assert.Equal(t, 1, c.Live(p1.ID()))
	assert.Equal(t, 1, c.Live(p2.ID()))

	// A chunk of p1 freed into p2 is foreign to p2.
	p2.Free(a)
	vs := c.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, ForeignFree, vs[0].Kind)
	assert.Equal(t, p2.ID(), vs[0].Pool)

	require.NoError(t, p1.Close())
	assert.Zero(t, c.Live(p1.ID()))
}

func TestCheckerTracksExpansion(t *testing.T) {
	p, c := newCheckedPool(t, 1, 16)
	require.NotNil(t, p.Alloc())
	require.NoError(t, p.Expand(2))

	b := p.AllocBytes()
	require.NotNil(t, b)
	for _, x := range b[ptrSize:] {
		require.Equal(t, byte(poisonByte), x)
	}
	p.FreeBytes(b)
	assert.Empty(t, c.Violations())
}

func TestCheckerOnSafePool(t *testing.T) {
	c := NewChecker()
	s, err := NewSafe(4, 16, WithDebugger(c))
	require.NoError(t, err)
	defer s.Close()

	a := s.Alloc()
	s.Free(a)
	s.Free(a)
	assert.Equal(t, []ViolationKind{DoubleFree}, kinds(c.Violations()))
}

func TestViolationKindString(t *testing.T) {
	assert.Equal(t, "double free", DoubleFree.String())
	assert.Equal(t, "foreign free", ForeignFree.String())
	assert.Equal(t, "write after free", WriteAfterFree.String())
	assert.Equal(t, "duplicate allocation", DuplicateAlloc.String())
	assert.Equal(t, "ViolationKind(42)", ViolationKind(42).String())
}
