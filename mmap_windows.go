//go:build windows

package chunkpool

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MmapBackend acquires arenas with VirtualAlloc outside the Go heap.
// Pages are committed up front and backed on first touch.
type MmapBackend struct{}

// Acquire reserves and commits size bytes of zeroed, read-write memory.
func (MmapBackend) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap backend: invalid size %d", size)
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("mmap backend: VirtualAlloc %d bytes: %w", size, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil //nolint:govet // addr is outside the Go heap
}

// Release frees a block returned by Acquire.
func (MmapBackend) Release(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("mmap backend: VirtualFree: %w", err)
	}
	return nil
}
