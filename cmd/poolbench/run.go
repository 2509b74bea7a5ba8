package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pavanmanishd/chunkpool"
	"github.com/pavanmanishd/chunkpool/poolmetrics"
)

var (
	errUnknownMode = errors.New("the first argument must be 'pool' or 'builtin'")
	errInvalidArgs = errors.New("invalid NMEMB or SIZE arguments")
	errExhausted   = errors.New("pool exhausted")
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pool|builtin> NMEMB SIZE",
		Short: "Time NMEMB allocations of SIZE bytes",
		Long: `The run command performs NMEMB allocations of SIZE bytes, either from a
chunk pool or with the Go allocator. Allocations are held in batches and the
whole batch is freed, newest first, whenever it fills up.

Example:
  poolbench run pool 10000000 64
  poolbench run builtin 10000000 64
  poolbench run pool 1000000 128 --threads 4 --initial 1000 --expand 1000 --metrics`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := parseBenchArgs(args)
			if err != nil {
				return err
			}
			_, err = runBench(cmd.Context(), cmd.OutOrStdout(), &cfg, b)
			return err
		},
	}
	cmd.Flags().Int("batch", 1000, "Allocations held before the batch is freed")
	cmd.Flags().Int("threads", 1, "Goroutines sharing one SafePool")
	cmd.Flags().String("backend", "heap", "Arena backend: heap or mmap")
	cmd.Flags().Int("initial", 0, "Initial pool size in chunks (0 means NMEMB)")
	cmd.Flags().Int("expand", 0, "Chunks to add when the pool runs dry (0 fails instead)")
	cmd.Flags().Bool("metrics", false, "Print pool metrics in Prometheus text format")
	cmd.Flags().Bool("check", false, "Track every chunk with a Checker")
	return cmd
}

type benchArgs struct {
	mode  string
	nmemb int
	size  int
}

func parseBenchArgs(args []string) (benchArgs, error) {
	b := benchArgs{mode: args[0]}
	if b.mode != "pool" && b.mode != "builtin" {
		return b, errUnknownMode
	}
	var err1, err2 error
	b.nmemb, err1 = strconv.Atoi(args[1])
	b.size, err2 = strconv.Atoi(args[2])
	if err1 != nil || err2 != nil || b.nmemb <= 0 || b.size <= 0 {
		return b, errInvalidArgs
	}
	return b, nil
}

// Result summarises one benchmark run.
type Result struct {
	Mode       string
	Allocs     int
	Size       int
	Threads    int
	Elapsed    time.Duration
	Stats      chunkpool.Stats // zero for builtin runs
	Violations int
}

func runBench(ctx context.Context, w io.Writer, c *Config, b benchArgs) (Result, error) {
	var (
		res Result
		err error
	)
	switch b.mode {
	case "pool":
		res, err = benchPool(ctx, w, c, b)
	case "builtin":
		res, err = benchBuiltin(ctx, c, b)
	default:
		return Result{}, errUnknownMode
	}
	if err != nil {
		return res, err
	}

	perAlloc := res.Elapsed / time.Duration(res.Allocs)
	fmt.Fprintf(w, "%s: %d allocations of %d bytes on %d goroutine(s) in %v (%v/alloc)\n",
		res.Mode, res.Allocs, res.Size, res.Threads, res.Elapsed, perAlloc)
	if res.Mode == "pool" {
		s := res.Stats
		fmt.Fprintf(w, "pool: chunk=%dB capacity=%d arenas=%d expansions=%d misses=%d reserved=%dB\n",
			s.ChunkSize, s.Capacity, s.Arenas, s.Expansions, s.Misses, s.BytesReserved)
	}
	if c.Check && res.Mode == "pool" {
		fmt.Fprintf(w, "checker: %d violation(s)\n", res.Violations)
	}
	return res, nil
}

func benchPool(ctx context.Context, w io.Writer, c *Config, b benchArgs) (res Result, err error) {
	initial := c.Initial
	if initial == 0 {
		initial = b.nmemb
	}
	opts := []chunkpool.Option{
		chunkpool.WithBackend(c.PoolBackend()),
		chunkpool.WithLogger(logger),
	}
	var checker *chunkpool.Checker
	if c.Check {
		checker = chunkpool.NewChecker(chunkpool.WithCheckerLogger(logger))
		opts = append(opts, chunkpool.WithDebugger(checker))
	}

	var pool chunkpool.Allocator
	if c.Threads > 1 {
		pool, err = chunkpool.NewSafe(initial, b.size, opts...)
	} else {
		pool, err = chunkpool.New(initial, b.size, opts...)
	}
	if err != nil {
		return Result{}, fmt.Errorf("create pool: %w", err)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close pool: %w", cerr)
		}
	}()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range shares(b.nmemb, c.Threads) {
		g.Go(func() error {
			return poolWorker(gctx, pool, n, c.Batch, c.Expand)
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	res = Result{
		Mode:    "pool",
		Allocs:  b.nmemb,
		Size:    b.size,
		Threads: c.Threads,
		Elapsed: time.Since(start),
		Stats:   pool.Stats(),
	}
	if checker != nil {
		res.Violations = len(checker.Violations())
	}
	logger.Info("pool run finished", "allocs", res.Allocs, "elapsed", res.Elapsed, "capacity", res.Stats.Capacity)

	if c.Metrics {
		if err := writeMetrics(w, pool); err != nil {
			return res, err
		}
	}
	return res, nil
}

// poolWorker allocates n chunks, freeing the held batch newest first each
// time it reaches batch entries.
func poolWorker(ctx context.Context, a chunkpool.Allocator, n, batch, step int) error {
	held := make([]unsafe.Pointer, 0, batch)
	flush := func() {
		for len(held) > 0 {
			last := len(held) - 1
			a.Free(held[last])
			held = held[:last]
		}
	}
	defer flush()

	for i := 0; i < n; i++ {
		c := a.Alloc()
		for c == nil {
			if step == 0 {
				return fmt.Errorf("%w after %d allocations", errExhausted, i)
			}
			if err := a.Expand(step); err != nil {
				return fmt.Errorf("expand by %d: %w", step, err)
			}
			c = a.Alloc()
		}
		held = append(held, c)
		if len(held) == batch {
			flush()
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func benchBuiltin(ctx context.Context, c *Config, b benchArgs) (Result, error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range shares(b.nmemb, c.Threads) {
		g.Go(func() error {
			held := make([][]byte, 0, c.Batch)
			for i := 0; i < n; i++ {
				held = append(held, make([]byte, b.size))
				if len(held) == c.Batch {
					clear(held)
					held = held[:0]
					if err := gctx.Err(); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{
		Mode:    "builtin",
		Allocs:  b.nmemb,
		Size:    b.size,
		Threads: c.Threads,
		Elapsed: time.Since(start),
	}, nil
}

// shares splits n into parts as even as possible, dropping empty parts.
func shares(n, parts int) []int {
	out := make([]int, 0, parts)
	for i := 0; i < parts; i++ {
		s := n / parts
		if i < n%parts {
			s++
		}
		if s > 0 {
			out = append(out, s)
		}
	}
	return out
}

func writeMetrics(w io.Writer, src poolmetrics.Source) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(poolmetrics.NewCollector("", "poolbench", src)); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
