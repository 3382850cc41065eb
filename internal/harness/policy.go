package harness

import "fmt"

// ExitPolicy decides what a non-zero exit of the target program means.
type ExitPolicy string

const (
	// ExitIgnore folds the run as if it had exited zero.
	ExitIgnore ExitPolicy = "ignore"

	// ExitWarn folds the run and logs a warning.
	ExitWarn ExitPolicy = "warn"

	// ExitFail aborts the kernel with an EXEC error.
	ExitFail ExitPolicy = "fail"
)

// ParseExitPolicy parses s. The empty string means ExitWarn.
func ParseExitPolicy(s string) (ExitPolicy, error) {
	switch p := ExitPolicy(s); p {
	case "":
		return ExitWarn, nil
	case ExitIgnore, ExitWarn, ExitFail:
		return p, nil
	default:
		return "", fmt.Errorf("unknown exit policy %q (want ignore, warn, or fail)", s)
	}
}
