package chunkpool

import "errors"

var (
	// ErrInvalidChunkCount is returned by New and Expand when asked for fewer than one chunk.
	ErrInvalidChunkCount = errors.New("chunkpool: chunk count must be at least 1")
	// ErrInvalidChunkSize is returned by New when the chunk size cannot hold a free-list link.
	ErrInvalidChunkSize = errors.New("chunkpool: chunk size too small")
	// ErrTooLarge is returned when count*chunkSize does not fit in an int.
	ErrTooLarge = errors.New("chunkpool: arena size overflows int")
	// ErrBackend wraps failures reported by a Backend.
	ErrBackend = errors.New("chunkpool: backend acquisition failed")
	// ErrBackendExhausted is returned by StaticBackend when its buffer is used up.
	ErrBackendExhausted = errors.New("chunkpool: static buffer exhausted")
	// ErrLock wraps failures reported by a LockProvider or Mutex.
	ErrLock = errors.New("chunkpool: lock failure")
	// ErrClosed is returned by operations on a pool after Close.
	ErrClosed = errors.New("chunkpool: pool is closed")
)
