//go:build unix

package chunkpool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapBackend acquires arenas as private anonymous mappings outside the Go
// heap, so large pools add nothing to the collector's heap goal.
type MmapBackend struct{}

// Acquire maps size bytes of zeroed, read-write memory.
func (MmapBackend) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap backend: invalid size %d", size)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap backend: map %d bytes: %w", size, err)
	}
	return mem, nil
}

// Release unmaps a block returned by Acquire.
func (MmapBackend) Release(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("mmap backend: unmap: %w", err)
	}
	return nil
}
