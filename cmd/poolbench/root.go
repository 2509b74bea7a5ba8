package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfg    Config
	logger = slog.New(slog.DiscardHandler)
)

var rootCmd = &cobra.Command{
	Use:   "poolbench",
	Short: "Benchmark and demonstrate fixed-size chunk pools",
	Long: `poolbench exercises chunkpool pools. The run command times batched
allocation against the Go allocator; the demo command walks through
allocation, out-of-order frees, exhaustion and growth.

Settings are read from POOLBENCH_* environment variables (a .env file in
the working directory is loaded first) and overridden by flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := LoadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd.Flags(), &loaded); err != nil {
		return err
	}
	if err := ValidateConfig(&loaded); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded
	logger = NewLogger(cmd.ErrOrStderr(), &cfg)
	logger.Debug("configuration loaded", "backend", cfg.Backend, "threads", cfg.Threads, "batch", cfg.Batch)
	return nil
}

// applyFlags copies every explicitly set flag over the environment value.
func applyFlags(fs *pflag.FlagSet, c *Config) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "log-level":
			c.LogLevel = f.Value.String()
		case "log-format":
			c.LogFormat = f.Value.String()
		case "backend":
			c.Backend = f.Value.String()
		case "batch":
			c.Batch, err = fs.GetInt(f.Name)
		case "threads":
			c.Threads, err = fs.GetInt(f.Name)
		case "initial":
			c.Initial, err = fs.GetInt(f.Name)
		case "expand":
			c.Expand, err = fs.GetInt(f.Name)
		case "metrics":
			c.Metrics, err = fs.GetBool(f.Name)
		case "check":
			c.Check, err = fs.GetBool(f.Name)
		}
	})
	return err
}
