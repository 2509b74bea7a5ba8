package chunkpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolMetrics(t *testing.T) {
	p, err := New(4, 24)
	require.NoError(t, err)
	defer p.Close()

	// Initial state
	assert.Equal(t, 24, p.ChunkSize())
	assert.Equal(t, 4, p.Capacity())
	assert.Zero(t, p.InUse())
	assert.Equal(t, 4, p.Available())
	assert.Equal(t, 1, p.NumArenas())
	assert.Equal(t, 96, p.BytesReserved())
	assert.Zero(t, p.Utilization())

	a := p.Alloc()
	p.Alloc()
	assert.Equal(t, 2, p.InUse())
	assert.InDelta(t, 0.5, p.Utilization(), 1e-9)

	p.Free(a)
	require.NoError(t, p.Expand(4))
	for p.Alloc() != nil {
	}

	want := Stats{
		ChunkSize:     24,
		Capacity:      8,
		InUse:         8,
		Available:     0,
		Arenas:        2,
		BytesReserved: 192,
		Utilization:   1,
		Allocs:        9,
		Frees:         1,
		Misses:        1,
		Expansions:    1,
	}
	assert.Equal(t, want, p.Stats())
}

func TestPoolMetricsAfterClose(t *testing.T) {
	p, err := New(4, 8)
	require.NoError(t, err)
	p.Alloc()
	require.NoError(t, p.Close())

	s := p.Stats()
	assert.Zero(t, s.Capacity)
	assert.Zero(t, s.InUse)
	assert.Zero(t, s.Arenas)
	assert.Zero(t, s.BytesReserved)
	assert.Zero(t, s.Utilization)
	assert.EqualValues(t, 1, s.Allocs)
}

func TestPoolMetricsNil(t *testing.T) {
	var p *Pool
	assert.Zero(t, p.ID())
	assert.Zero(t, p.ChunkSize())
	assert.Zero(t, p.Capacity())
	assert.Zero(t, p.InUse())
	assert.Zero(t, p.Available())
	assert.Zero(t, p.NumArenas())
	assert.Zero(t, p.BytesReserved())
	assert.Zero(t, p.Utilization())
	assert.Equal(t, Stats{}, p.Stats())
}

func TestSafePoolMetrics(t *testing.T) {
	s, err := NewSafe(8, 16)
	require.NoError(t, err)
	defer s.Close()

	c := s.Alloc()
	s.Alloc()
	s.Free(c)

	assert.Equal(t, 16, s.ChunkSize())
	assert.Equal(t, 8, s.Capacity())
	assert.Equal(t, 1, s.InUse())
	assert.Equal(t, 7, s.Available())
	assert.Equal(t, 1, s.NumArenas())
	assert.InDelta(t, 0.125, s.Utilization(), 1e-9)
	assert.Equal(t, s.p.Stats(), s.Stats())
}
