package chunkpool

import "unsafe"

// ptrSize is the width of a free-list link and the default chunk alignment.
const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// arena is one contiguous block of chunks acquired from the backend in a
// single call. Arenas are never moved, merged or split.
type arena struct {
	mem    []byte // exactly as returned by Backend.Acquire
	chunks int
}

// base returns the address of the arena's first chunk.
func (a arena) base() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(a.mem))
}

// contains reports whether p lies inside the arena.
func (a arena) contains(p unsafe.Pointer) bool {
	start := uintptr(a.base())
	addr := uintptr(p)
	return addr >= start && addr < start+uintptr(len(a.mem))
}

// carve threads every chunk of mem into a free list ending at tail and
// returns its head. This is the only place chunks are visited in bulk.
func carve(mem []byte, chunkSize, n int, tail unsafe.Pointer) unsafe.Pointer {
	for i := 0; i < n-1; i++ {
		storeLink(unsafe.Pointer(&mem[i*chunkSize]), unsafe.Pointer(&mem[(i+1)*chunkSize]))
	}
	storeLink(unsafe.Pointer(&mem[(n-1)*chunkSize]), tail)
	return unsafe.Pointer(&mem[0])
}

// loadLink reads the next-free link from the first word of a free chunk.
//
// The word may be unaligned when alignment is disabled and arena memory is
// opaque to the collector, so links are copied bytewise and never stored
// through a typed pointer.
func loadLink(c unsafe.Pointer) unsafe.Pointer {
	var next unsafe.Pointer
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&next)), ptrSize), unsafe.Slice((*byte)(c), ptrSize))
	return next
}

// storeLink writes next into the first word of chunk c.
func storeLink(c, next unsafe.Pointer) {
	copy(unsafe.Slice((*byte)(c), ptrSize), unsafe.Slice((*byte)(unsafe.Pointer(&next)), ptrSize))
}

// chunkBytes views a chunk as a byte slice.
func chunkBytes(c unsafe.Pointer, chunkSize int) []byte {
	return unsafe.Slice((*byte)(c), chunkSize)
}

// alignUp rounds n up to a multiple of align, which must be a power of two.
func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
