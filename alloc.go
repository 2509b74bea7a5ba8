package chunkpool

import "unsafe"

// Allocator is the contract shared by Pool and SafePool.
type Allocator interface {
	Alloc() unsafe.Pointer
	AllocBytes() []byte
	Free(ptr unsafe.Pointer)
	FreeBytes(b []byte)
	Expand(n int) error
	Close() error
	ChunkSize() int
	Stats() Stats
}

var (
	_ Allocator = (*Pool)(nil)
	_ Allocator = (*SafePool)(nil)
)

// NewValue returns a zeroed *T stored in a chunk of a, or nil when a is exhausted
// or T does not fit a chunk.
//
// The collector does not scan pool memory, so T must not contain Go pointers
// (pointers, slices, strings, maps, channels, funcs, interfaces) that are the
// only reference to their target.
func NewValue[T any](a Allocator) *T {
	v := NewUninitialized[T](a)
	if v != nil {
		clear(unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v)))
	}
	return v
}

// NewUninitialized is NewValue without zeroing. The contents are whatever
// the chunk last held.
//
// In pools built WithoutAlignment some chunks may be misaligned for T. Those
// are skipped and returned to the free list in their original order once a
// suitable chunk is found or the pool runs dry.
func NewUninitialized[T any](a Allocator) *T {
	var zero T
	if int(unsafe.Sizeof(zero)) > a.ChunkSize() {
		return nil
	}
	align := unsafe.Alignof(zero)
	var skipped []unsafe.Pointer
	defer func() {
		for i := len(skipped) - 1; i >= 0; i-- {
			a.Free(skipped[i])
		}
	}()
	for {
		p := a.Alloc()
		if p == nil {
			return nil
		}
		if uintptr(p)%align == 0 {
			return (*T)(p)
		}
		skipped = append(skipped, p)
	}
}

// Delete returns the chunk holding v to a. v must come from NewValue or
// NewUninitialized on the same allocator.
func Delete[T any](a Allocator, v *T) {
	if v == nil {
		return
	}
	a.Free(unsafe.Pointer(v))
}

// Fits reports whether a T can be stored in a chunk of a.
func Fits[T any](a Allocator) bool {
	var zero T
	return int(unsafe.Sizeof(zero)) <= a.ChunkSize()
}
