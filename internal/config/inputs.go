package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/fencecheck/internal/executor"
)

// LoadInputs reads the test specification: one test per non-blank line.
// Lines are split on whitespace into arguments, except in redirect mode where
// the whole trimmed line is a file path. When Tests is set only the first
// Tests inputs are returned.
func (c *Config) LoadInputs() ([]executor.Input, error) {
	path := c.InputPath()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	mode := c.Mode()
	var inputs []executor.Input

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		in := executor.Input{Index: len(inputs), Mode: mode}
		if mode == executor.ModeRedirect {
			in.Path = line
		} else {
			in.Args = strings.Fields(line)
		}
		inputs = append(inputs, in)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("input file %s has no tests", path)
	}
	if c.Tests > len(inputs) {
		return nil, fmt.Errorf("config asks for %d tests but %s has %d", c.Tests, path, len(inputs))
	}
	if c.Tests > 0 {
		inputs = inputs[:c.Tests]
	}
	return inputs, nil
}

// CheckInputs reports inputs that would fail before the target program is
// launched: missing redirect files and a missing prolog script.
func (c *Config) CheckInputs(inputs []executor.Input) []error {
	var errs []error

	if c.Mode() == executor.ModeProlog {
		if _, err := os.Stat(c.resolve(c.PrologScript)); err != nil {
			errs = append(errs, fmt.Errorf("prolog script: %w", err))
		}
	}

	for _, in := range inputs {
		if in.Mode != executor.ModeRedirect {
			continue
		}
		info, err := os.Stat(c.resolve(in.Path))
		if err != nil {
			errs = append(errs, fmt.Errorf("input %s: %w", in, err))
			continue
		}
		if info.IsDir() {
			errs = append(errs, fmt.Errorf("input %s: is a directory", in))
		}
	}
	return errs
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.WorkDir, path)
}
