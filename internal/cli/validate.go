package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/fencecheck/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Config  string   `json:"config,omitempty"`
	Mode    string   `json:"mode,omitempty"`
	Kernels []string `json:"kernels,omitempty"`
	Inputs  int      `json:"inputs"`
	Errors  []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a config and its tests without running anything",
		Long: `Load a harness config, check it against the schema, and read its test
specification.

Redirect files and the prolog script are checked for presence. No process is
spawned.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %v", ErrCodeNotFound, err))
		}
		var schemaErr *config.SchemaError
		if errors.As(err, &schemaErr) {
			return outputValidationErrors(formatter, ValidationResult{Errors: schemaErr.Violations})
		}
		return outputValidationErrors(formatter, ValidationResult{Errors: []string{err.Error()}})
	}

	result := ValidationResult{
		Config:  cfg.Path,
		Mode:    string(cfg.Mode()),
		Kernels: cfg.Kernels,
	}
	formatter.VerboseLog("Loaded %s (timeout %s, exit policy %s)", cfg.Path, cfg.RunTimeout(), cfg.ExitPolicy)

	inputs, err := cfg.LoadInputs()
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return outputValidationErrors(formatter, result)
	}
	result.Inputs = len(inputs)

	for _, err := range cfg.CheckInputs(inputs) {
		result.Errors = append(result.Errors, err.Error())
	}
	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	formatter.Check(true, "Config valid: %d kernel(s), %d input(s), %s mode",
		len(result.Kernels), result.Inputs, result.Mode)
	return nil
}

// outputValidationErrors outputs every problem found.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		if err := formatter.Error(ErrCodeConfig, result.Errors[0], result); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	formatter.Check(false, "Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  %s\n", e)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
