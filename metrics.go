package chunkpool

// Accessors treat a nil *Pool like a closed pool and return zero values.

// ChunkSize returns the size of every chunk, after alignment.
func (p *Pool) ChunkSize() int {
	if p == nil {
		return 0
	}
	return p.chunkSize
}

// Capacity returns the total number of chunks across all arenas.
func (p *Pool) Capacity() int {
	if p == nil {
		return 0
	}
	return p.capacity
}

// InUse returns the number of chunks currently held by callers.
func (p *Pool) InUse() int {
	if p == nil {
		return 0
	}
	return p.inUse
}

// Available returns the number of chunks on the free list.
func (p *Pool) Available() int {
	if p == nil {
		return 0
	}
	return p.capacity - p.inUse
}

// NumArenas returns the number of arenas acquired so far.
func (p *Pool) NumArenas() int {
	if p == nil {
		return 0
	}
	return len(p.arenas)
}

// BytesReserved returns the total arena bytes obtained from the backend.
func (p *Pool) BytesReserved() int {
	if p == nil {
		return 0
	}
	sum := 0
	for _, a := range p.arenas {
		sum += len(a.mem)
	}
	return sum
}

// Utilization returns the ratio of chunks in use to capacity (0.0 to 1.0).
// Returns 0.0 for a closed pool.
func (p *Pool) Utilization() float64 {
	if p == nil || p.capacity == 0 {
		return 0
	}
	return float64(p.inUse) / float64(p.capacity)
}

// Stats returns a snapshot of pool statistics.
func (p *Pool) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	return Stats{
		ChunkSize:     p.chunkSize,
		Capacity:      p.capacity,
		InUse:         p.inUse,
		Available:     p.Available(),
		Arenas:        len(p.arenas),
		BytesReserved: p.BytesReserved(),
		Utilization:   p.Utilization(),
		Allocs:        p.allocs,
		Frees:         p.frees,
		Misses:        p.misses,
		Expansions:    p.expansions,
	}
}

// Stats contains statistical information about a pool.
type Stats struct {
	ChunkSize     int     // Bytes per chunk
	Capacity      int     // Total chunks
	InUse         int     // Chunks held by callers
	Available     int     // Chunks on the free list
	Arenas        int     // Arenas acquired
	BytesReserved int     // Arena bytes obtained from the backend
	Utilization   float64 // InUse / Capacity (0.0-1.0)

	Allocs     uint64 // Successful allocations
	Frees      uint64 // Frees
	Misses     uint64 // Allocations that found the pool exhausted
	Expansions uint64 // Successful Expand calls
}

// Thread-safe statistics for SafePool. A lock failure yields zero values.

// ChunkSize returns the chunk size; it never changes, so no lock is taken.
func (s *SafePool) ChunkSize() int {
	if s == nil {
		return 0
	}
	return s.p.chunkSize
}

// Capacity thread-safely returns the total number of chunks.
func (s *SafePool) Capacity() int {
	if s.lock() != nil {
		return 0
	}
	defer s.unlock()
	return s.p.Capacity()
}

// InUse thread-safely returns the number of chunks held by callers.
func (s *SafePool) InUse() int {
	if s.lock() != nil {
		return 0
	}
	defer s.unlock()
	return s.p.InUse()
}

// Available thread-safely returns the number of free chunks.
func (s *SafePool) Available() int {
	if s.lock() != nil {
		return 0
	}
	defer s.unlock()
	return s.p.Available()
}

// NumArenas thread-safely returns the number of arenas.
func (s *SafePool) NumArenas() int {
	if s.lock() != nil {
		return 0
	}
	defer s.unlock()
	return s.p.NumArenas()
}

// Utilization thread-safely returns the ratio of chunks in use to capacity.
func (s *SafePool) Utilization() float64 {
	if s.lock() != nil {
		return 0
	}
	defer s.unlock()
	return s.p.Utilization()
}

// Stats thread-safely returns a snapshot of pool statistics.
func (s *SafePool) Stats() Stats {
	if s.lock() != nil {
		return Stats{}
	}
	defer s.unlock()
	return s.p.Stats()
}
