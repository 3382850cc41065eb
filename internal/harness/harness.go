package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fencecheck/internal/advisory"
	"github.com/roach88/fencecheck/internal/executor"
	"github.com/roach88/fencecheck/internal/ledger"
	"github.com/roach88/fencecheck/internal/reconcile"
	"github.com/roach88/fencecheck/internal/report"
)

// Runner executes one instrumented run. *executor.Executor implements it.
type Runner interface {
	Run(ctx context.Context, inv executor.Invocation) (*executor.Output, error)
}

// DropEvent describes fences one input removed from a kernel's confirmed
// set.
type DropEvent struct {
	SessionID string
	Kernel    string
	Input     executor.Input
	Fences    []int64
}

// Message returns the human-readable drop diagnostic.
func (e DropEvent) Message() string {
	return report.DropMessage(e.Kernel, e.Input.Index, e.Fences)
}

// Config configures a Harness.
type Config struct {
	// Runner executes the target program. Required.
	Runner Runner

	// IDs generates session IDs. Defaults to UUIDv7Generator.
	IDs IDGenerator

	// Policy decides what a non-zero target exit means. Defaults to ExitWarn.
	Policy ExitPolicy

	// FailFast stops the pass at the first failed kernel.
	FailFast bool

	// OnDrop is called whenever an input shrinks the confirmed set.
	OnDrop func(DropEvent)

	// OnReport is called with each kernel's report as soon as the kernel
	// finishes. An error from OnReport aborts the pass.
	OnReport func(report.Report) error
}

// Harness runs confirmation passes. It is not safe for concurrent use.
type Harness struct {
	cfg    Config
	ledger *ledger.Ledger
	log    *slog.Logger
}

// New creates a Harness with its own in-memory ledger.
func New(cfg Config, log *slog.Logger) (*Harness, error) {
	if cfg.Runner == nil {
		return nil, errors.New("harness: runner is required")
	}
	if cfg.IDs == nil {
		cfg.IDs = UUIDv7Generator{}
	}
	policy, err := ParseExitPolicy(string(cfg.Policy))
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	cfg.Policy = policy
	if log == nil {
		log = slog.Default()
	}

	l, err := ledger.Open()
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	return &Harness{cfg: cfg, ledger: l, log: log}, nil
}

// Close releases the ledger.
func (h *Harness) Close() error {
	return h.ledger.Close()
}

// Run processes every kernel against every input, in order.
//
// It returns the reports of the kernels that completed, and the errors of
// those that did not, joined. A CANCELED error ends the pass at once, as
// does any error when FailFast is set.
func (h *Harness) Run(ctx context.Context, kernels []string, inputs []executor.Input) ([]report.Report, error) {
	var (
		reports []report.Report
		errs    []error
	)
	for _, kernel := range kernels {
		r, err := h.RunKernel(ctx, kernel, inputs)
		if err != nil {
			h.log.Error("kernel aborted", "kernel", kernel, "error", err)
			errs = append(errs, err)
			if h.cfg.FailFast || IsCanceled(err) {
				break
			}
			continue
		}
		reports = append(reports, r)

		if h.cfg.OnReport != nil {
			if err := h.cfg.OnReport(r); err != nil {
				errs = append(errs, fmt.Errorf("emit report for %s: %w", kernel, err))
				break
			}
		}
	}
	return reports, errors.Join(errs...)
}

// RunKernel runs one kernel session and returns its report. The session is
// discarded before RunKernel returns, whether it succeeded or not.
func (h *Harness) RunKernel(ctx context.Context, kernel string, inputs []executor.Input) (report.Report, error) {
	if len(inputs) == 0 {
		return report.Report{}, &RunError{Code: CodeConfig, Kernel: kernel, InputIndex: -1, Err: ErrNoInputs}
	}
	if err := ctx.Err(); err != nil {
		return report.Report{}, &RunError{Code: CodeCanceled, Kernel: kernel, InputIndex: -1, Err: err}
	}

	id := h.cfg.IDs.Generate()
	log := h.log.With("kernel", kernel, "session", id)

	// Ledger bookkeeping must survive cancellation of the pass.
	bg := context.WithoutCancel(ctx)
	if err := h.ledger.OpenSession(bg, id, kernel); err != nil {
		return report.Report{}, fmt.Errorf("kernel %s: %w", kernel, err)
	}
	defer func() {
		if err := h.ledger.Discard(bg, id); err != nil {
			log.Warn("discard session", "error", err)
		}
	}()

	log.Info("kernel started", "inputs", len(inputs))
	start := time.Now()

	s := reconcile.NewSession(kernel)
	for _, in := range inputs {
		if err := h.fold(ctx, id, s, in, log); err != nil {
			if cerr := h.ledger.CloseSession(bg, id, ledger.StatusAborted); cerr != nil {
				log.Warn("close aborted session", "error", cerr)
			}
			return report.Report{}, err
		}
	}

	r := report.FromSession(id, s)
	runs, err := h.ledger.Runs(bg, id)
	if err != nil {
		return report.Report{}, fmt.Errorf("kernel %s: %w", kernel, err)
	}
	drops, err := h.ledger.Drops(bg, id)
	if err != nil {
		return report.Report{}, fmt.Errorf("kernel %s: %w", kernel, err)
	}
	r.AttachTrail(runs, drops)

	if err := h.ledger.CloseSession(bg, id, ledger.StatusReported); err != nil {
		return report.Report{}, fmt.Errorf("kernel %s: %w", kernel, err)
	}
	log.Info("kernel finished",
		"confirmed", len(r.Advisories),
		"duration", time.Since(start),
	)
	return r, nil
}

// fold runs one input and folds its advisories into s.
func (h *Harness) fold(ctx context.Context, id string, s *reconcile.Session, in executor.Input, log *slog.Logger) error {
	kernel := s.Kernel()

	out, err := h.cfg.Runner.Run(ctx, executor.Invocation{Kernel: kernel, Input: in})
	if err != nil {
		return newRunError(kernel, in, err)
	}

	if out.ExitCode != 0 {
		switch h.cfg.Policy {
		case ExitFail:
			return &RunError{
				Code:       CodeExec,
				Kernel:     kernel,
				InputIndex: in.Index,
				Input:      in.String(),
				Err:        fmt.Errorf("target exited with code %d", out.ExitCode),
			}
		case ExitWarn:
			log.Warn("target exited non-zero", "input", in.String(), "exit_code", out.ExitCode)
		}
	}

	advs, err := advisory.ParseRun(out.Lines)
	if err != nil {
		return newRunError(kernel, in, err)
	}

	run := reconcile.NewRunResult(advs)
	outcome := s.Fold(run)

	bg := context.WithoutCancel(ctx)
	if err := h.ledger.RecordRun(bg, ledger.RunRecord{
		SessionID:  id,
		InputIndex: in.Index,
		Input:      in.String(),
		Observed:   run.Len(),
		Confirmed:  outcome.Confirmed,
		ExitCode:   out.ExitCode,
		Duration:   out.Duration,
	}); err != nil {
		return fmt.Errorf("kernel %s: %w", kernel, err)
	}
	if err := h.ledger.RecordDrops(bg, id, in.Index, outcome.Dropped); err != nil {
		return fmt.Errorf("kernel %s: %w", kernel, err)
	}

	log.Debug("run folded",
		"input", in.String(),
		"observed", run.Len(),
		"confirmed", outcome.Confirmed,
	)

	if len(outcome.Dropped) > 0 {
		ev := DropEvent{SessionID: id, Kernel: kernel, Input: in, Fences: outcome.Dropped}
		log.Debug(ev.Message(), "input", in.String(), "fences", outcome.Dropped)
		if h.cfg.OnDrop != nil {
			h.cfg.OnDrop(ev)
		}
	}
	return nil
}
