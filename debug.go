package chunkpool

// Debugger receives memory-debugging events from a pool. Hooks run inside
// the pool operation (under the SafePool lock when there is one) and must not
// call back into the pool. They never influence what the pool does.
//
// A free chunk belongs to the pool and should be treated as no-access except
// for its first pointer-width bytes, which the pool owns as the free-list
// link. An allocated chunk belongs entirely to the caller.
type Debugger interface {
	// RegisterPool is called once, before any other hook for the pool.
	RegisterPool(pool uint64, chunkSize int)
	// DeregisterPool is called once when a pool is closed.
	DeregisterPool(pool uint64)
	// MarkArena is called for every arena the pool acquires, after carving.
	MarkArena(pool uint64, mem []byte)
	// MarkAllocated is called with each chunk handed to a caller.
	MarkAllocated(pool uint64, chunk []byte)
	// MarkFreed is called with each chunk returned by a caller, after the
	// pool has written its link.
	MarkFreed(pool uint64, chunk []byte)
}
