package chunkpool

import "log/slog"

// Config collects the collaborators and policies of one pool.
// The zero value is valid: Go heap arenas, sync.Mutex locks, pointer-aligned
// chunks, no instrumentation, no logging.
type Config struct {
	// Backend supplies arena memory. Nil means HeapBackend.
	Backend Backend
	// Locks creates the mutex of a SafePool. Nil means SyncLocks.
	Locks LockProvider
	// Unaligned disables rounding the chunk size up to pointer width.
	// Chunk sizes below pointer width are then rejected.
	Unaligned bool
	// Debugger receives memory-debugging events. Nil disables them.
	Debugger Debugger
	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Option configures a pool at construction time.
type Option func(*Config)

// WithBackend sets the memory backend.
func WithBackend(b Backend) Option {
	return func(c *Config) {
		c.Backend = b
	}
}

// WithLockProvider sets the lock provider used by NewSafe.
func WithLockProvider(l LockProvider) Option {
	return func(c *Config) {
		c.Locks = l
	}
}

// WithoutAlignment keeps chunk sizes exactly as requested.
func WithoutAlignment() Option {
	return func(c *Config) {
		c.Unaligned = true
	}
}

// WithDebugger installs memory-debugging hooks.
func WithDebugger(d Debugger) Option {
	return func(c *Config) {
		c.Debugger = d
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func (c Config) withDefaults() Config {
	if c.Backend == nil {
		c.Backend = HeapBackend{}
	}
	if c.Locks == nil {
		c.Locks = SyncLocks{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

func buildConfig(opts []Option) Config {
	var c Config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
