package chunkpool

import (
	"errors"
	"fmt"
	"unsafe"
)

// SafePool is a mutex-protected wrapper around Pool for concurrent access.
// Every operation holds the single lock for its whole body, so concurrent
// callers observe Alloc, Free and Expand as totally ordered.
//
// The lock guards the free list and arena registry only. The contents of an
// allocated chunk belong to whichever goroutine holds it.
type SafePool struct {
	mu Mutex
	p  *Pool
}

// NewSafe creates a thread-safe pool of count chunks of chunkSize bytes.
// The mutex comes from the configured LockProvider (sync.Mutex by default).
func NewSafe(count, chunkSize int, opts ...Option) (*SafePool, error) {
	p, err := New(count, chunkSize, opts...)
	if err != nil {
		return nil, err
	}
	s, err := Synchronize(p)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// Synchronize wraps an existing pool. The caller must stop using p directly.
func Synchronize(p *Pool) (*SafePool, error) {
	if p == nil || p.closed {
		return nil, ErrClosed
	}
	mu, err := p.locks.NewMutex()
	if err != nil {
		p.log.Warn("mutex creation failed", "error", err)
		return nil, fmt.Errorf("%w: create: %w", ErrLock, err)
	}
	return &SafePool{mu: mu, p: p}, nil
}

// Alloc thread-safely returns a chunk, or nil when exhausted or when the
// lock cannot be taken.
func (s *SafePool) Alloc() unsafe.Pointer {
	if s == nil {
		return nil
	}
	if err := s.lock(); err != nil {
		return nil
	}
	defer s.unlock()
	return s.p.Alloc()
}

// AllocBytes thread-safely returns a chunk as a byte slice, or nil.
func (s *SafePool) AllocBytes() []byte {
	if s == nil {
		return nil
	}
	if err := s.lock(); err != nil {
		return nil
	}
	defer s.unlock()
	return s.p.AllocBytes()
}

// Free thread-safely returns a chunk. If the lock cannot be taken the chunk
// stays with the caller and the failure is logged.
func (s *SafePool) Free(ptr unsafe.Pointer) {
	if s == nil || ptr == nil {
		return
	}
	if err := s.lock(); err != nil {
		return
	}
	defer s.unlock()
	s.p.Free(ptr)
}

// FreeBytes thread-safely frees a slice returned by AllocBytes.
func (s *SafePool) FreeBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	s.Free(unsafe.Pointer(unsafe.SliceData(b)))
}

// Expand thread-safely adds n chunks.
func (s *SafePool) Expand(n int) error {
	if s == nil {
		return ErrClosed
	}
	if err := s.lock(); err != nil {
		return lockError(err)
	}
	defer s.unlock()
	return s.p.Expand(n)
}

// Close thread-safely releases all arenas, then destroys the mutex.
// No other goroutine may use the pool once Close has been called; later
// calls on the closed SafePool behave as on a closed Pool and never touch
// the destroyed mutex.
func (s *SafePool) Close() error {
	if s == nil || s.mu == nil {
		return nil
	}
	if err := s.lock(); err != nil {
		return lockError(err)
	}
	if s.p.closed {
		s.unlock()
		return nil
	}
	err := s.p.Close()
	s.unlock()

	derr := s.p.locks.DestroyMutex(s.mu)
	s.mu = nil
	if derr != nil {
		s.p.log.Warn("mutex destruction failed", "error", derr)
		err = errors.Join(err, fmt.Errorf("%w: destroy: %w", ErrLock, derr))
	}
	return err
}

// Owns thread-safely reports whether ptr lies inside the pool's arenas.
func (s *SafePool) Owns(ptr unsafe.Pointer) bool {
	if s == nil {
		return false
	}
	if err := s.lock(); err != nil {
		return false
	}
	defer s.unlock()
	return s.p.Owns(ptr)
}

// ID returns the identifier of the wrapped pool, or 0 for a nil SafePool.
func (s *SafePool) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.p.id
}

// lock returns ErrClosed once the mutex has been destroyed.
func (s *SafePool) lock() error {
	if s == nil || s.mu == nil {
		return ErrClosed
	}
	if err := s.mu.Lock(); err != nil {
		s.p.log.Warn("lock failed", "error", err)
		return err
	}
	return nil
}

func (s *SafePool) unlock() {
	if err := s.mu.Unlock(); err != nil {
		s.p.log.Warn("unlock failed", "error", err)
	}
}

func lockError(err error) error {
	if errors.Is(err, ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrLock, err)
}
