// Package chunkpool implements a fixed-chunk-size pool allocator for Go.
//
// # Overview
//
// A pool hands out equally sized chunks of memory in constant time and takes
// them back in constant time, without calling into the Go allocator per
// object. This is useful for:
//
//   - Connection, session or entity structs created and destroyed at a high rate
//   - Parser nodes and other same-sized temporaries
//   - Keeping large object populations off the Go heap (see MmapBackend)
//   - Predictable memory use: capacity is fixed until the caller expands it
//
// # Basic Usage
//
//	pool, err := chunkpool.New(1024, 64) // 1024 chunks of 64 bytes
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	buf := pool.AllocBytes() // nil when exhausted
//	// ... use buf ...
//	pool.FreeBytes(buf)
//
//	// Typed values (T must not contain Go pointers)
//	conn := chunkpool.NewValue[connState](pool)
//	chunkpool.Delete(pool, conn)
//
//	// Grow without moving chunks already handed out
//	if err := pool.Expand(512); err != nil {
//		return err
//	}
//
// # Thread Safety
//
// Pool is not thread-safe. For concurrent access, use SafePool:
//
//	pool, err := chunkpool.NewSafe(1024, 64)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
// Both types implement Allocator.
//
// # Memory Layout
//
// Each arena is one contiguous block obtained from the Backend in a single
// call. Free chunks are linked through their first pointer-width bytes, so
// the pool stores nothing per chunk. Growth adds a new arena in front of the
// free list; existing arenas are never moved, so pointers stay valid until
// Close. There is no resize, shrink or compaction.
//
// # Caller Obligations
//
//   - Allocated memory is not zeroed (NewValue zeroes, Alloc does not)
//   - Free only what Alloc returned from the same pool, exactly once
//   - Do not touch a chunk after freeing it or after Close
//   - The garbage collector does not scan pool memory: never keep the only
//     reference to a Go object inside a chunk
//
// A Checker installed with WithDebugger detects the first three at run time.
//
// # Backends
//
// HeapBackend (default) carves arenas from the Go heap, MmapBackend from
// anonymous mappings, StaticBackend from a caller-supplied buffer. Locks for
// SafePool come from a LockProvider; SyncLocks wraps sync.Mutex.
//
// # Metrics and Monitoring
//
//	s := pool.Stats()
//	fmt.Printf("In use: %d/%d chunks (%.0f%%)\n", s.InUse, s.Capacity, s.Utilization*100)
//
// Package poolmetrics exports the same statistics to Prometheus.
package chunkpool
