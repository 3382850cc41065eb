package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// InputError reports an input that cannot be prepared, such as a redirect
// file that cannot be opened.
type InputError struct {
	Input Input
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Input, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// PrologError reports a setup script that failed. The instrumented run was
// not launched.
type PrologError struct {
	Script   string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *PrologError) Error() string {
	msg := fmt.Sprintf("prolog %s %s failed", e.Script, strings.Join(e.Args, " "))
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s with exit code %d", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s (stderr: %s)", msg, e.Stderr)
	}
	return msg
}

func (e *PrologError) Unwrap() error { return e.Err }

// LaunchError reports a target program that could not be started.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TimeoutError reports a child killed because the per-run deadline passed.
type TimeoutError struct {
	Stage   string // "prolog" or "run"
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s killed after %s timeout", e.Stage, e.Timeout)
}

// IsPrologError reports whether err is, or wraps, a *PrologError.
func IsPrologError(err error) bool {
	var pe *PrologError
	return errors.As(err, &pe)
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
