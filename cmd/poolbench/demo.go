package main

import (
	"errors"
	"fmt"
	"io"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/pavanmanishd/chunkpool"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Walk through allocation, exhaustion and growth on two pools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.OutOrStdout(), chunkpool.WithLogger(logger))
		},
	})
}

// demoObject is stored in pool chunks; it holds no Go pointers.
type demoObject struct {
	N uint64
	F float64
}

// demoRounds is how many extra allocations each pass attempts.
const demoRounds = 35

func runDemo(w io.Writer, opts ...chunkpool.Option) error {
	const (
		pool1Size, pool1Chunk = 50, 64
		pool2Size, pool2Chunk = 30, 100
	)
	pool1, err := chunkpool.New(pool1Size, pool1Chunk, opts...)
	if err != nil {
		return fmt.Errorf("could not create a new pool: %w", err)
	}
	defer pool1.Close()
	pool2, err := chunkpool.New(pool2Size, pool2Chunk, opts...)
	if err != nil {
		return fmt.Errorf("could not create a new pool: %w", err)
	}
	defer pool2.Close()

	fmt.Fprintf(w, "Testing first pool, of size %d:\n", pool1Size)
	if err := demoPass(w, pool1); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTesting second pool, of size %d:\n", pool2Size)
	if err := demoPass(w, pool2); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nExpanding first pool by 10 (total %d) and testing:\n", pool1Size+10)
	if err := pool1.Expand(10); err != nil {
		return err
	}
	return demoPass(w, pool1)
}

func demoPass(w io.Writer, p *chunkpool.Pool) error {
	obj := chunkpool.NewValue[demoObject](p)
	if obj == nil {
		return errors.New("could not allocate a new chunk from pool")
	}
	obj.N, obj.F = 123, 5.0
	fmt.Fprintf(w, "Data of allocated object: %d, %f\n", obj.N, obj.F)
	chunkpool.Delete(p, obj)

	// Chunks may be freed in any order.
	a, b, c := p.Alloc(), p.Alloc(), p.Alloc()
	for _, ptr := range []unsafe.Pointer{a, c, b} {
		p.Free(ptr)
	}

	// Allocate until the pool runs dry. The chunks are reclaimed by Close.
	i := 0
	for ; i < demoRounds; i++ {
		if p.Alloc() == nil {
			fmt.Fprintf(w, "Failed to allocate chunk at iteration: %d\n", i)
			return nil
		}
	}
	fmt.Fprintf(w, "Successfully allocated %d chunks.\n", i)
	return nil
}
