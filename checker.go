package chunkpool

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"
)

// poisonByte fills the caller-visible part of free chunks while a Checker
// is installed.
const poisonByte = 0xdd

// ViolationKind classifies a contract violation found by a Checker.
type ViolationKind int

const (
	// DoubleFree is a Free of a chunk that is already free.
	DoubleFree ViolationKind = iota + 1
	// ForeignFree is a Free of an address outside the pool's arenas.
	ForeignFree
	// WriteAfterFree is a modification of a free chunk, noticed when the
	// chunk is allocated again.
	WriteAfterFree
	// DuplicateAlloc is a chunk handed out while still live, the usual
	// aftermath of an undetected double free.
	DuplicateAlloc
)

func (k ViolationKind) String() string {
	switch k {
	case DoubleFree:
		return "double free"
	case ForeignFree:
		return "foreign free"
	case WriteAfterFree:
		return "write after free"
	case DuplicateAlloc:
		return "duplicate allocation"
	default:
		return fmt.Sprintf("ViolationKind(%d)", int(k))
	}
}

// Violation describes one detected misuse.
type Violation struct {
	Kind ViolationKind
	Pool uint64
	Addr uintptr
}

func (v Violation) Error() string {
	return fmt.Sprintf("chunkpool: %s of chunk %#x in pool %d", v.Kind, v.Addr, v.Pool)
}

// Checker is a Debugger that tracks live chunks and reports misuse by
// callers. It poisons free chunks (everything past the free-list link) and
// verifies the poison when the chunk is handed out again.
//
// A Checker may be shared by any number of pools. It costs a map operation
// per Alloc and Free plus a scan of the chunk, so it is meant for tests and
// debug builds.
type Checker struct {
	mu          sync.Mutex
	pools       map[uint64]*trackedPool
	violations  []Violation
	poison      bool
	onViolation func(Violation)
	log         *slog.Logger
}

type trackedPool struct {
	chunkSize int
	arenas    [][2]uintptr // [start, end)
	live      map[uintptr]struct{}
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithoutPoison disables poisoning and write-after-free detection.
func WithoutPoison() CheckerOption {
	return func(c *Checker) {
		c.poison = false
	}
}

// OnViolation registers fn to be called for every violation, outside the
// checker's lock but inside the pool operation that triggered it.
func OnViolation(fn func(Violation)) CheckerOption {
	return func(c *Checker) {
		c.onViolation = fn
	}
}

// WithCheckerLogger logs every violation at error level.
func WithCheckerLogger(l *slog.Logger) CheckerOption {
	return func(c *Checker) {
		c.log = l
	}
}

// NewChecker returns a Checker with poisoning enabled.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{
		pools:  make(map[uint64]*trackedPool),
		poison: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterPool starts tracking a pool.
func (c *Checker) RegisterPool(pool uint64, chunkSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools[pool] = &trackedPool{
		chunkSize: chunkSize,
		live:      make(map[uintptr]struct{}),
	}
}

// DeregisterPool stops tracking a pool. Chunks still live are forgotten.
func (c *Checker) DeregisterPool(pool uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pools, pool)
}

// MarkArena records the arena bounds and poisons its chunks.
func (c *Checker) MarkArena(pool uint64, mem []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tp, ok := c.pools[pool]
	if !ok || len(mem) == 0 {
		return
	}
	start := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	tp.arenas = append(tp.arenas, [2]uintptr{start, start + uintptr(len(mem))})
	if !c.poison {
		return
	}
	for off := 0; off+tp.chunkSize <= len(mem); off += tp.chunkSize {
		fill(mem[off+ptrSize : off+tp.chunkSize])
	}
}

// MarkAllocated marks a chunk live and checks its poison.
func (c *Checker) MarkAllocated(pool uint64, chunk []byte) {
	v, found := c.markAllocated(pool, chunk)
	if found {
		c.report(v)
	}
}

func (c *Checker) markAllocated(pool uint64, chunk []byte) (Violation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tp, ok := c.pools[pool]
	if !ok {
		return Violation{}, false
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(chunk)))
	if _, live := tp.live[addr]; live {
		return Violation{Kind: DuplicateAlloc, Pool: pool, Addr: addr}, true
	}
	tp.live[addr] = struct{}{}
	if c.poison && !poisoned(chunk[ptrSize:]) {
		return Violation{Kind: WriteAfterFree, Pool: pool, Addr: addr}, true
	}
	return Violation{}, false
}

// MarkFreed marks a chunk free and poisons it.
func (c *Checker) MarkFreed(pool uint64, chunk []byte) {
	v, found := c.markFreed(pool, chunk)
	if found {
		c.report(v)
	}
}

func (c *Checker) markFreed(pool uint64, chunk []byte) (Violation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tp, ok := c.pools[pool]
	if !ok {
		return Violation{}, false
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(chunk)))
	if !tp.owns(addr) {
		return Violation{Kind: ForeignFree, Pool: pool, Addr: addr}, true
	}
	if _, live := tp.live[addr]; !live {
		return Violation{Kind: DoubleFree, Pool: pool, Addr: addr}, true
	}
	delete(tp.live, addr)
	if c.poison {
		fill(chunk[ptrSize:])
	}
	return Violation{}, false
}

// Violations returns every violation seen so far.
func (c *Checker) Violations() []Violation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Violation, len(c.violations))
	copy(out, c.violations)
	return out
}

// Live returns the number of chunks of pool currently held by callers.
func (c *Checker) Live(pool uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tp, ok := c.pools[pool]; ok {
		return len(tp.live)
	}
	return 0
}

func (c *Checker) report(v Violation) {
	c.mu.Lock()
	c.violations = append(c.violations, v)
	c.mu.Unlock()

	if c.log != nil {
		c.log.Error("chunk pool violation", "kind", v.Kind.String(), "pool", v.Pool, "addr", fmt.Sprintf("%#x", v.Addr))
	}
	if c.onViolation != nil {
		c.onViolation(v)
	}
}

func (tp *trackedPool) owns(addr uintptr) bool {
	for _, r := range tp.arenas {
		if addr >= r[0] && addr < r[1] && (addr-r[0])%uintptr(tp.chunkSize) == 0 {
			return true
		}
	}
	return false
}

func fill(b []byte) {
	for i := range b {
		b[i] = poisonByte
	}
}

func poisoned(b []byte) bool {
	for _, x := range b {
		if x != poisonByte {
			return false
		}
	}
	return true
}
