package chunkpool

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	errAcquireRefused = errors.New("acquire refused")
	errLockBroken     = errors.New("lock broken")
)

// recordingBackend counts backend traffic and can refuse the n-th Acquire.
type recordingBackend struct {
	mu       sync.Mutex
	inner    Backend
	failAt   int // 1-based Acquire call to refuse, 0 never
	short    bool
	calls    int
	live     map[*byte]int
	released int
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{inner: HeapBackend{}, live: make(map[*byte]int)}
}

func (r *recordingBackend) Acquire(size int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAt != 0 && r.calls == r.failAt {
		return nil, errAcquireRefused
	}
	mem, err := r.inner.Acquire(size)
	if err != nil {
		return nil, err
	}
	if r.short {
		mem = mem[:size-1]
	}
	r.live[&mem[0]] = len(mem)
	return mem, nil
}

func (r *recordingBackend) Release(mem []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, &mem[0])
	r.released++
	return r.inner.Release(mem)
}

func (r *recordingBackend) outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// flakyLocks hands out mutexes that can be told to fail.
type flakyLocks struct {
	failCreate bool
	created    []*flakyMutex
	destroyed  atomic.Int32
}

type flakyMutex struct {
	mu   sync.Mutex
	fail atomic.Bool

	destroyed  atomic.Bool
	staleLocks atomic.Int32 // Lock calls after DestroyMutex
}

func (m *flakyMutex) Lock() error {
	if m.destroyed.Load() {
		m.staleLocks.Add(1)
		return errLockBroken
	}
	if m.fail.Load() {
		return errLockBroken
	}
	m.mu.Lock()
	return nil
}

func (m *flakyMutex) Unlock() error {
	m.mu.Unlock()
	return nil
}

func (l *flakyLocks) NewMutex() (Mutex, error) {
	if l.failCreate {
		return nil, errLockBroken
	}
	m := &flakyMutex{}
	l.created = append(l.created, m)
	return m, nil
}

func (l *flakyLocks) DestroyMutex(m Mutex) error {
	if fm, ok := m.(*flakyMutex); ok {
		fm.destroyed.Store(true)
	}
	l.destroyed.Add(1)
	return nil
}
