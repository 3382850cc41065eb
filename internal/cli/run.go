package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fencecheck/internal/config"
	"github.com/roach88/fencecheck/internal/executor"
	"github.com/roach88/fencecheck/internal/harness"
	"github.com/roach88/fencecheck/internal/report"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Timeout  time.Duration
	Kernels  []string
	Tool     string
	FailFast bool

	// IDs allows overriding the session ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs harness.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run the confirmation pass",
		Long: `Run the target program once per test input for every kernel in the
config, and print the advisories every input agreed on.

A line is printed whenever an input removes fences from a kernel's confirmed
set. A kernel that hits a fatal error produces no report.

Example:
  fencecheck run ./bfs.yaml
  fencecheck run --kernel relax_kernel --timeout 5m ./bfs.yaml
  fencecheck run --format json ./bfs.toml > advisories.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-run timeout, overriding the config")
	cmd.Flags().StringSliceVar(&opts.Kernels, "kernel", nil, "run only this kernel (repeatable)")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "instrumentation module path, overriding the config")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first failed kernel")

	return cmd
}

func runPass(opts *RunOptions, path string, cmd *cobra.Command) error {
	log := opts.newLogger(cmd)
	slog.SetDefault(log)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	kernels, err := opts.apply(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	inputs, err := cfg.LoadInputs()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load tests", err)
	}
	log.Info("config loaded",
		"path", cfg.Path,
		"mode", cfg.Mode(),
		"kernels", len(kernels),
		"inputs", len(inputs),
	)

	execCfg := cfg.ExecutorConfig()
	execCfg.Stderr = cmd.ErrOrStderr()
	runner, err := executor.New(execCfg, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up executor", err)
	}

	policy, err := harness.ParseExitPolicy(cfg.ExitPolicy)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	ids := opts.IDs
	if ids == nil {
		ids = harness.UUIDv7Generator{}
	}

	h, err := harness.New(harness.Config{
		Runner:   runner,
		IDs:      ids,
		Policy:   policy,
		FailFast: opts.FailFast,
		OnDrop: func(ev harness.DropEvent) {
			formatter.Diagnostic("%s", ev.Message())
		},
		OnReport: func(r report.Report) error {
			if formatter.Format == "json" {
				return nil
			}
			return report.WriteText(formatter.Writer, r, report.TextOptions{Trail: opts.Verbose})
		},
	}, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up harness", err)
	}
	defer func() {
		if closeErr := h.Close(); closeErr != nil {
			log.Error("error closing ledger", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	reports, runErr := h.Run(ctx, kernels, inputs)

	if formatter.Format == "json" {
		if err := report.WriteJSON(formatter.Writer, reports); err != nil {
			return WrapExitError(ExitFailure, "failed to write report", err)
		}
	}

	if runErr != nil {
		failed := failedKernels(runErr)
		if formatter.Format != "json" {
			for _, re := range failed {
				formatter.Check(false, "%s", re.Error())
			}
		}
		if harness.IsCanceled(runErr) || errors.Is(runErr, context.Canceled) {
			return WrapExitError(ExitFailure, "interrupted", runErr)
		}
		return WrapExitError(ExitFailure,
			fmt.Sprintf("%d of %d kernel(s) failed", len(failed), len(kernels)), runErr)
	}

	log.Debug("pass complete", "kernels", len(reports))
	return nil
}

// apply folds the command-line overrides into cfg and returns the kernels to
// run, in config order.
func (o *RunOptions) apply(cfg *config.Config) ([]string, error) {
	if o.Timeout != 0 {
		if err := cfg.SetRunTimeout(o.Timeout); err != nil {
			return nil, err
		}
	}
	if o.Tool != "" {
		cfg.ToolPath = o.Tool
	}
	if len(o.Kernels) == 0 {
		return cfg.Kernels, nil
	}

	for _, k := range o.Kernels {
		if !slices.Contains(cfg.Kernels, k) {
			return nil, fmt.Errorf("kernel %q is not in %s", k, cfg.Path)
		}
	}
	var kernels []string
	for _, k := range cfg.Kernels {
		if slices.Contains(o.Kernels, k) {
			kernels = append(kernels, k)
		}
	}
	return kernels, nil
}

// failedKernels unpacks the per-kernel errors joined by harness.Run.
func failedKernels(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
