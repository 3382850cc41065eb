package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/fencecheck/internal/advisory"
	"github.com/roach88/fencecheck/internal/executor"
)

// ErrorCode categorizes a RunError.
type ErrorCode string

const (
	// CodeConfig covers inputs that cannot be prepared, such as a missing
	// redirect file or a failing prolog script.
	CodeConfig ErrorCode = "CONFIG"

	// CodeFormat means the instrumentation tool's output format changed.
	CodeFormat ErrorCode = "FORMAT"

	// CodeExec means the target could not be run, or failed under the fail
	// exit policy.
	CodeExec ErrorCode = "EXEC"

	// CodeTimeout means a prolog or run was killed after the timeout.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeCanceled means the pass was interrupted.
	CodeCanceled ErrorCode = "CANCELED"
)

// RunError is a fatal error for one kernel.
//
// InputIndex is -1 when the error is not tied to a single input.
type RunError struct {
	Code       ErrorCode
	Kernel     string
	InputIndex int
	Input      string
	Err        error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s: kernel %s, input %s: %v", e.Code, e.Kernel, e.Input, e.Err)
	}
	return fmt.Sprintf("%s: kernel %s: %v", e.Code, e.Kernel, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// ErrNoInputs is wrapped by the CONFIG error of a kernel without inputs.
var ErrNoInputs = errors.New("no inputs to run")

// newRunError classifies err, returned while running in for kernel.
func newRunError(kernel string, in executor.Input, err error) *RunError {
	return &RunError{
		Code:       classify(err),
		Kernel:     kernel,
		InputIndex: in.Index,
		Input:      in.String(),
		Err:        err,
	}
}

func classify(err error) ErrorCode {
	var (
		inputErr  *executor.InputError
		prologErr *executor.PrologError
	)
	switch {
	case executor.IsTimeout(err):
		return CodeTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	case errors.As(err, &inputErr), errors.As(err, &prologErr), errors.Is(err, ErrNoInputs):
		return CodeConfig
	case advisory.IsFormatError(err):
		return CodeFormat
	default:
		// Launch failures and exit-policy failures.
		return CodeExec
	}
}

// CodeOf returns the code of the RunError in err's chain, or "" if there is
// none.
func CodeOf(err error) ErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsCanceled returns true if err is, or wraps, a CANCELED RunError.
func IsCanceled(err error) bool {
	return CodeOf(err) == CodeCanceled
}

// IsConfigError returns true if err is, or wraps, a CONFIG RunError.
func IsConfigError(err error) bool {
	return CodeOf(err) == CodeConfig
}
