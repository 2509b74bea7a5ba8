//go:build !unix && !windows

package chunkpool

// MmapBackend falls back to the Go heap on platforms without anonymous
// mappings (js/wasm, plan9, wasip1).
type MmapBackend struct{}

// Acquire allocates size bytes on the Go heap.
func (MmapBackend) Acquire(size int) ([]byte, error) { return HeapBackend{}.Acquire(size) }

// Release is a no-op.
func (MmapBackend) Release(mem []byte) error { return HeapBackend{}.Release(mem) }
