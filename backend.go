package chunkpool

import (
	"fmt"
	"math"
	"sync"
	"unsafe"
)

// Backend supplies the raw memory arenas are carved from.
//
// Acquire must return a slice of exactly size bytes whose first byte is
// aligned to at least pointer width. Release receives the exact slice
// returned by Acquire, once, when the owning pool is closed.
type Backend interface {
	Acquire(size int) ([]byte, error)
	Release(mem []byte) error
}

// Mutex is a lock whose operations may fail.
// sync.Mutex never fails; other providers (process-shared or instrumented
// locks) might.
type Mutex interface {
	Lock() error
	Unlock() error
}

// LockProvider creates and destroys the mutex guarding a SafePool.
type LockProvider interface {
	NewMutex() (Mutex, error)
	DestroyMutex(m Mutex) error
}

// HeapBackend acquires arenas from the Go heap. It is the default backend.
//
// Arena memory holds no Go pointers the collector needs to trace: free-list
// links only ever point back into arenas the pool itself keeps reachable.
type HeapBackend struct{}

// Acquire allocates size bytes with make. Sizes beyond what the runtime can
// allocate are reported as errors.
func (HeapBackend) Acquire(size int) (mem []byte, err error) {
	if size <= 0 || size > math.MaxInt-ptrSize {
		return nil, fmt.Errorf("heap backend: invalid size %d", size)
	}
	defer func() {
		if r := recover(); r != nil {
			mem, err = nil, fmt.Errorf("heap backend: allocate %d bytes: %v", size, r)
		}
	}()
	// A []uintptr backing array guarantees pointer alignment for any size.
	words := (size + ptrSize - 1) / ptrSize
	buf := make([]uintptr, words)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(buf))), size), nil
}

// Release drops the reference; the collector reclaims the memory.
func (HeapBackend) Release([]byte) error { return nil }

// StaticBackend serves arenas out of a caller-supplied buffer and never
// allocates. It suits environments where every byte is budgeted up front.
//
// Blocks are bump-allocated. Release only reclaims a block when it is the most
// recently acquired one still outstanding; other releases are accepted and the
// space stays consumed until the buffer is discarded.
type StaticBackend struct {
	mu     sync.Mutex
	buf    []byte
	offset int
	starts []int
}

// NewStaticBackend returns a backend that carves arenas from buf.
func NewStaticBackend(buf []byte) *StaticBackend {
	return &StaticBackend{buf: buf}
}

// Acquire returns the next pointer-aligned block of size bytes.
func (s *StaticBackend) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("static backend: invalid size %d", size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.offset
	if start < len(s.buf) {
		addr := uintptr(unsafe.Pointer(&s.buf[start]))
		start += int(alignUp(addr, uintptr(ptrSize)) - addr)
	}
	if start > len(s.buf) || size > len(s.buf)-start {
		return nil, ErrBackendExhausted
	}
	s.offset = start + size
	s.starts = append(s.starts, start)
	return s.buf[start : start+size : start+size], nil
}

// Release rewinds the buffer if mem is the latest outstanding block.
func (s *StaticBackend) Release(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.starts)
	if n == 0 {
		return nil
	}
	last := s.starts[n-1]
	if unsafe.SliceData(mem) == &s.buf[last] {
		s.offset = last
		s.starts = s.starts[:n-1]
	}
	return nil
}

// Remaining reports how many bytes are left, ignoring alignment padding.
func (s *StaticBackend) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) - s.offset
}

// SyncLocks hands out sync.Mutex based locks. It is the default LockProvider.
type SyncLocks struct{}

type syncMutex struct {
	mu sync.Mutex
}

func (m *syncMutex) Lock() error {
	m.mu.Lock()
	return nil
}

func (m *syncMutex) Unlock() error {
	m.mu.Unlock()
	return nil
}

// NewMutex returns an unlocked sync.Mutex.
func (SyncLocks) NewMutex() (Mutex, error) { return &syncMutex{}, nil }

// DestroyMutex is a no-op; sync.Mutex holds no resources.
func (SyncLocks) DestroyMutex(Mutex) error { return nil }
