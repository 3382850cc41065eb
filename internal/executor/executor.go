package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultTimeout      = 30 * time.Minute
	DefaultWaitDelay    = 5 * time.Second
	DefaultPrologShell  = "bash"
	DefaultPrologScript = "./prolog.sh"

	stderrLimit = 8 << 10 // 8 KiB
)

// Config describes the target program and how to instrument it.
type Config struct {
	// Command is the target program.
	Command string

	// Args are input-independent arguments placed before the input's own.
	Args []string

	// Dir is the working directory of every child. Relative redirect paths
	// and the prolog script are resolved against it.
	Dir string

	// ToolPath is the instrumentation module named by ToolEnv.
	ToolPath string

	ToolEnv   string
	KernelEnv string

	PrologShell  string
	PrologScript string

	// Timeout bounds one invocation, prolog included.
	Timeout time.Duration

	// WaitDelay bounds how long to wait for output pipes after the child
	// exits or is killed.
	WaitDelay time.Duration

	// BaseEnv is the environment every child starts from. Nil means the
	// process environment at New time.
	BaseEnv []string

	// Stderr receives the target program's stderr. Nil discards it.
	Stderr io.Writer
}

// Output is the complete stdout of one instrumented run.
type Output struct {
	Lines    []string
	ExitCode int
	Duration time.Duration
}

// Executor spawns instrumented runs. It holds no per-run state.
type Executor struct {
	cfg     Config
	baseEnv []string
	log     *slog.Logger
}

// New validates cfg, applies defaults, and snapshots the base environment.
func New(cfg Config, log *slog.Logger) (*Executor, error) {
	if cfg.Command == "" {
		return nil, errors.New("executor: command is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("executor: timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.WaitDelay == 0 {
		cfg.WaitDelay = DefaultWaitDelay
	}
	if cfg.ToolEnv == "" {
		cfg.ToolEnv = DefaultToolEnv
	}
	if cfg.KernelEnv == "" {
		cfg.KernelEnv = DefaultKernelEnv
	}
	if cfg.PrologShell == "" {
		cfg.PrologShell = DefaultPrologShell
	}
	if cfg.PrologScript == "" {
		cfg.PrologScript = DefaultPrologScript
	}
	if log == nil {
		log = slog.Default()
	}

	base := cfg.BaseEnv
	if base == nil {
		base = os.Environ()
	}

	return &Executor{
		cfg:     cfg,
		baseEnv: NewEnvironment(base, nil).Environ(),
		log:     log,
	}, nil
}

// Environment returns the snapshot a child instrumenting kernel receives.
func (e *Executor) Environment(kernel string) Environment {
	return NewEnvironment(e.baseEnv, map[string]string{
		e.cfg.ToolEnv:   e.cfg.ToolPath,
		e.cfg.KernelEnv: kernel,
	})
}

// Run executes one instrumented run and blocks until the child exits.
//
// A non-zero exit of the target program is not an error; it is reported in
// Output.ExitCode. On timeout or cancellation the child is killed and no
// Output is returned.
func (e *Executor) Run(ctx context.Context, inv Invocation) (*Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	in := inv.Input
	var stdin io.Reader
	switch in.Mode {
	case ModeProlog:
		if err := e.prolog(ctx, runCtx, in); err != nil {
			return nil, err
		}
	case ModeRedirect:
		f, err := os.Open(e.resolve(in.Path))
		if err != nil {
			return nil, &InputError{Input: in, Err: err}
		}
		defer f.Close()
		stdin = f
	case ModeArgs, "":
	default:
		return nil, &InputError{Input: in, Err: fmt.Errorf("unknown input mode %q", in.Mode)}
	}

	argv := append([]string(nil), e.cfg.Args...)
	if in.Mode == ModeArgs || in.Mode == "" {
		argv = append(argv, in.Args...)
	}

	cmd := exec.CommandContext(runCtx, e.cfg.Command, argv...)
	cmd.Dir = e.cfg.Dir
	cmd.Env = e.Environment(inv.Kernel).Environ()
	cmd.Stdin = stdin
	lines := &lineCollector{}
	cmd.Stdout = lines
	cmd.Stderr = e.cfg.Stderr
	cmd.WaitDelay = e.cfg.WaitDelay
	setupProcessGroup(cmd)

	e.log.Debug("spawning instrumented run",
		"kernel", inv.Kernel,
		"input", in.String(),
		"cmd", cmd.String(),
	)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run %s: %w", in, ctxErr)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			e.log.Warn("instrumented run killed", "kernel", inv.Kernel, "input", in.String(), "timeout", e.cfg.Timeout)
			return nil, &TimeoutError{Stage: "run", Timeout: e.cfg.Timeout}
		}
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
		case errors.Is(err, exec.ErrWaitDelay):
			// The target exited but a descendant kept stdout open.
			e.log.Warn("output pipe held open after exit", "kernel", inv.Kernel, "input", in.String())
		default:
			return nil, &LaunchError{Command: e.cfg.Command, Err: err}
		}
	}

	out := &Output{
		Lines:    lines.Lines(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: elapsed,
	}
	e.log.Debug("instrumented run finished",
		"kernel", inv.Kernel,
		"input", in.String(),
		"exit_code", out.ExitCode,
		"lines", len(out.Lines),
		"duration", elapsed,
	)
	return out, nil
}

// prolog runs the setup script for in with the uninstrumented environment.
func (e *Executor) prolog(ctx, runCtx context.Context, in Input) error {
	argv := append([]string{e.cfg.PrologScript}, in.Args...)
	cmd := exec.CommandContext(runCtx, e.cfg.PrologShell, argv...)
	cmd.Dir = e.cfg.Dir
	cmd.Env = append([]string(nil), e.baseEnv...)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, max: stderrLimit}
	cmd.WaitDelay = e.cfg.WaitDelay
	setupProcessGroup(cmd)

	e.log.Debug("running prolog", "input", in.String(), "cmd", cmd.String())

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("prolog %s: %w", in, ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Stage: "prolog", Timeout: e.cfg.Timeout}
	}

	pe := &PrologError{
		Script: e.cfg.PrologScript,
		Args:   in.Args,
		Stderr: strings.TrimSpace(stderr.String()),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		pe.ExitCode = exitErr.ExitCode()
	} else {
		pe.Err = err
	}
	return pe
}

func (e *Executor) resolve(path string) string {
	if filepath.IsAbs(path) || e.cfg.Dir == "" {
		return path
	}
	return filepath.Join(e.cfg.Dir, path)
}

// lineCollector splits written bytes into lines, preserving order. exec.Cmd
// writes to it from a single goroutine and Run returns only after that
// goroutine is done.
type lineCollector struct {
	lines   []string
	partial []byte
}

func (c *lineCollector) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			c.partial = append(c.partial, p...)
			break
		}
		c.partial = append(c.partial, p[:i]...)
		c.lines = append(c.lines, string(c.partial))
		c.partial = c.partial[:0]
		p = p[i+1:]
	}
	return n, nil
}

// Lines returns every complete line plus a final unterminated one.
func (c *lineCollector) Lines() []string {
	if len(c.partial) > 0 {
		return append(c.lines, string(c.partial))
	}
	return c.lines
}

// limitedWriter keeps the first max bytes and discards the rest.
type limitedWriter struct {
	w         io.Writer
	max       int
	written   int
	truncated bool
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	remaining := l.max - l.written
	if remaining <= 0 {
		l.truncated = true
		return n, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
		l.truncated = true
	}
	written, err := l.w.Write(p)
	l.written += written
	if err != nil {
		return written, err
	}
	return n, nil
}
