package chunkpool

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/bits"
	"sync/atomic"
	"unsafe"
)

var poolIDs atomic.Uint64

// Pool hands out fixed-size chunks from one or more arenas in O(1).
// Not goroutine-safe. Use SafePool for concurrent access.
//
// Free chunks form a singly linked list threaded through their first
// pointer-width bytes; allocated chunks carry no bookkeeping at all.
// Consequently the pool cannot detect double frees, frees of foreign
// pointers or use after Close. Those are caller obligations.
type Pool struct {
	id        uint64
	chunkSize int
	head      unsafe.Pointer // first free chunk, nil when exhausted
	arenas    []arena
	capacity  int
	inUse     int
	closed    bool

	allocs     uint64
	frees      uint64
	misses     uint64
	expansions uint64

	backend Backend
	locks   LockProvider
	dbg     Debugger
	log     *slog.Logger
}

// New creates a pool of count chunks of at least chunkSize bytes each.
//
// Unless WithoutAlignment is given, chunkSize is rounded up to a multiple of
// pointer width. On error no memory stays acquired.
func New(count, chunkSize int, opts ...Option) (*Pool, error) {
	return NewFromConfig(count, chunkSize, buildConfig(opts))
}

// NewFromConfig is New with an explicit Config.
func NewFromConfig(count, chunkSize int, cfg Config) (*Pool, error) {
	if count < 1 {
		return nil, ErrInvalidChunkCount
	}
	size, err := alignChunkSize(chunkSize, cfg.Unaligned)
	if err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()
	p := &Pool{
		id:        poolIDs.Add(1),
		chunkSize: size,
		backend:   cfg.Backend,
		locks:     cfg.Locks,
		dbg:       cfg.Debugger,
	}
	p.log = cfg.Logger.With("pool", p.id)

	a, err := p.acquireArena(count)
	if err != nil {
		return nil, err
	}
	p.head = carve(a.mem, size, count, nil)
	p.arenas = append(p.arenas, a)
	p.capacity = count

	if p.dbg != nil {
		p.dbg.RegisterPool(p.id, size)
		p.dbg.MarkArena(p.id, a.mem)
	}
	p.log.Debug("pool created", "chunks", count, "chunk_size", size, "bytes", len(a.mem))
	return p, nil
}

// Alloc returns an uninitialized chunk, or nil when the pool is exhausted.
// Exhaustion is not an error: free a chunk or Expand and try again.
func (p *Pool) Alloc() unsafe.Pointer {
	if p == nil {
		return nil
	}
	c := p.head
	if c == nil {
		p.misses++
		return nil
	}
	p.head = loadLink(c)
	p.inUse++
	p.allocs++
	if p.dbg != nil {
		p.dbg.MarkAllocated(p.id, chunkBytes(c, p.chunkSize))
	}
	return c
}

// AllocBytes is Alloc returning the chunk as a ChunkSize-byte slice.
func (p *Pool) AllocBytes() []byte {
	c := p.Alloc()
	if c == nil {
		return nil
	}
	return chunkBytes(c, p.chunkSize)
}

// Free returns a chunk to the pool. Chunks may be freed in any order.
// A nil pool, nil ptr or closed pool is a no-op.
//
// ptr must have been returned by Alloc on this pool and not freed since;
// anything else corrupts the free list.
func (p *Pool) Free(ptr unsafe.Pointer) {
	if p == nil || ptr == nil || p.closed {
		return
	}
	storeLink(ptr, p.head)
	p.head = ptr
	p.inUse--
	p.frees++
	if p.dbg != nil {
		p.dbg.MarkFreed(p.id, chunkBytes(ptr, p.chunkSize))
	}
}

// FreeBytes frees the chunk starting at the first byte of b.
// b must be a slice returned by AllocBytes, not a reslice of one.
func (p *Pool) FreeBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	p.Free(unsafe.Pointer(unsafe.SliceData(b)))
}

// Expand adds n chunks in a new arena and puts them in front of the free list.
//
// Chunks already handed out keep their addresses and contents. On error the
// pool is left exactly as it was.
func (p *Pool) Expand(n int) error {
	if p == nil || p.closed {
		return ErrClosed
	}
	if n < 1 {
		return ErrInvalidChunkCount
	}
	a, err := p.acquireArena(n)
	if err != nil {
		return err
	}
	p.head = carve(a.mem, p.chunkSize, n, p.head)
	p.arenas = append(p.arenas, a)
	p.capacity += n
	p.expansions++

	if p.dbg != nil {
		p.dbg.MarkArena(p.id, a.mem)
	}
	p.log.Debug("pool expanded", "chunks", n, "capacity", p.capacity, "arenas", len(p.arenas))
	return nil
}

// Close releases every arena back to the backend. All chunks ever returned
// by Alloc become invalid. Closing a nil or closed pool is a no-op.
//
// Arenas are released newest first. Every arena is released even if some
// releases fail; the failures are joined into the returned error.
func (p *Pool) Close() error {
	if p == nil || p.closed {
		return nil
	}
	var (
		errs   []error
		chunks int
	)
	for i := len(p.arenas) - 1; i >= 0; i-- {
		chunks += p.arenas[i].chunks
		if err := p.backend.Release(p.arenas[i].mem); err != nil {
			errs = append(errs, err)
		}
	}
	arenas := len(p.arenas)
	p.arenas = nil
	p.head = nil
	p.capacity = 0
	p.inUse = 0
	p.closed = true

	if p.dbg != nil {
		p.dbg.DeregisterPool(p.id)
	}
	err := errors.Join(errs...)
	if err != nil {
		p.log.Warn("pool closed with release errors", "arenas", arenas, "error", err)
		return err
	}
	p.log.Debug("pool closed", "arenas", arenas, "chunks", chunks)
	return nil
}

// Owns reports whether ptr lies inside one of the pool's arenas.
// It is linear in the number of arenas and meant for assertions, not the
// allocation path.
func (p *Pool) Owns(ptr unsafe.Pointer) bool {
	if p == nil || ptr == nil {
		return false
	}
	for _, a := range p.arenas {
		if a.contains(ptr) {
			return true
		}
	}
	return false
}

// ID returns the process-unique identifier passed to Debugger hooks.
func (p *Pool) ID() uint64 {
	if p == nil {
		return 0
	}
	return p.id
}

func (p *Pool) acquireArena(n int) (arena, error) {
	size, ok := mulInt(n, p.chunkSize)
	if !ok {
		return arena{}, fmt.Errorf("%w: %d chunks of %d bytes", ErrTooLarge, n, p.chunkSize)
	}
	mem, err := p.backend.Acquire(size)
	if err != nil {
		p.log.Warn("arena acquisition failed", "bytes", size, "error", err)
		return arena{}, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	if len(mem) != size {
		_ = p.backend.Release(mem)
		return arena{}, fmt.Errorf("%w: got %d bytes, want %d", ErrBackend, len(mem), size)
	}
	return arena{mem: mem, chunks: n}, nil
}

func alignChunkSize(size int, unaligned bool) (int, error) {
	if unaligned {
		if size < ptrSize {
			return 0, fmt.Errorf("%w: %d bytes, need at least %d without alignment", ErrInvalidChunkSize, size, ptrSize)
		}
		return size, nil
	}
	if size < 1 {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidChunkSize, size)
	}
	if size > math.MaxInt-ptrSize {
		return 0, fmt.Errorf("%w: chunk size %d", ErrTooLarge, size)
	}
	return int(alignUp(uintptr(size), uintptr(ptrSize))), nil
}

// mulInt returns a*b for non-negative a and b, and false on overflow.
func mulInt(a, b int) (int, bool) {
	hi, lo := bits.Mul(uint(a), uint(b))
	if hi != 0 || lo > math.MaxInt {
		return 0, false
	}
	return int(lo), true
}
