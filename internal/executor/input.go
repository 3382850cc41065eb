package executor

import (
	"fmt"
	"strings"
)

// Mode selects how an input reaches the target program.
type Mode string

const (
	ModeArgs     Mode = "args"
	ModeRedirect Mode = "redirect"
	ModeProlog   Mode = "prolog"
)

// Input is one entry of the test specification.
type Input struct {
	// Index is the zero-based position of the input in the test specification.
	Index int

	Mode Mode

	// Args are program arguments (ModeArgs) or prolog script arguments (ModeProlog).
	Args []string

	// Path is the stdin file for ModeRedirect.
	Path string
}

// String describes the input for logs and error messages.
func (in Input) String() string {
	switch in.Mode {
	case ModeRedirect:
		return fmt.Sprintf("#%d < %s", in.Index, in.Path)
	case ModeProlog:
		return fmt.Sprintf("#%d prolog %s", in.Index, strings.Join(in.Args, " "))
	default:
		return fmt.Sprintf("#%d %s", in.Index, strings.Join(in.Args, " "))
	}
}

// Invocation pairs a kernel selector with one input.
type Invocation struct {
	Kernel string
	Input  Input
}
