package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fencecheck/internal/advisory"
)

// ParsedAdvisory is one advisory found by the parse command.
type ParsedAdvisory struct {
	Line  int    `json:"line"`
	Fence int64  `json:"fence"`
	Kind  string `json:"kind"`
	Text  string `json:"text"`
}

// ParseResult holds the outcome of classifying a log.
type ParseResult struct {
	Lines      int              `json:"lines"`
	Advisories []ParsedAdvisory `json:"advisories"`
	Errors     []string         `json:"errors,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [log-file]",
		Short: "Classify captured tool output",
		Long: `Read the standard output of an instrumented run (from a file, or stdin
when no file is given) and list the fence advisories it contains.

Use it to check that an instrumentation tool still prints advisories in the
format the harness expects. Malformed advisory lines are reported with their
line numbers.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runParse(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	in := cmd.InOrStdin()
	name := "stdin"
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open log", err)
		}
		defer f.Close()
		in, name = f, args[0]
	}

	result, err := classifyLog(in)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read %s", name), err)
	}
	formatter.VerboseLog("Read %d line(s) from %s", result.Lines, name)

	if formatter.Format == "json" {
		if len(result.Errors) > 0 {
			if err := formatter.Error(ErrCodeFormat, result.Errors[0], result); err != nil {
				return err
			}
		} else if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, a := range result.Advisories {
			fmt.Fprintf(formatter.Writer, "%d\tfence %d\tkind %s\t%s\n", a.Line, a.Fence, a.Kind, a.Text)
		}
		for _, e := range result.Errors {
			formatter.Check(false, "%s", e)
		}
		if len(result.Errors) == 0 {
			formatter.Check(true, "%d advisory line(s) in %d line(s)", len(result.Advisories), result.Lines)
		}
	}

	if len(result.Errors) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d malformed advisory line(s)", len(result.Errors)))
	}
	return nil
}

// classifyLog classifies every line of r. Malformed advisories are collected
// rather than stopping the scan.
func classifyLog(r io.Reader) (ParseResult, error) {
	result := ParseResult{Advisories: []ParsedAdvisory{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		result.Lines++
		line, err := advisory.Classify(scanner.Text())
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", result.Lines, err))
			continue
		}
		switch l := line.(type) {
		case advisory.Advisory:
			result.Advisories = append(result.Advisories, ParsedAdvisory{
				Line:  result.Lines,
				Fence: l.Fence,
				Kind:  l.Kind,
				Text:  l.Text,
			})
		case advisory.NotAdvisory:
		}
	}
	if err := scanner.Err(); err != nil {
		return ParseResult{}, err
	}
	return result, nil
}
