package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidConfig(t *testing.T) {
	f := newFixture(t)
	f.write("tests.txt", "a.txt\nb.txt\n", 0o644)
	cfg := f.config(
		"cmd: ./target.sh",
		"input_file: tests.txt",
		"kernels: [K1, K2]",
	)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), cfg)
	require.NoError(t, err)
	assert.Equal(t, "✓ Config valid: 2 kernel(s), 2 input(s), args mode\n", stdout)
	assert.Empty(t, f.launches(), "validate never spawns the target")
}

func TestValidateValidConfigJSON(t *testing.T) {
	f := newFixture(t)
	f.write("tests.txt", "a.txt\nb.txt\n", 0o644)
	cfg := f.write("config.toml", `cmd = "./target.sh"
input_file = "tests.txt"
kernels = ["K1"]
redirect = true
`, 0o644)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), cfg)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "redirect", resp.Data.Mode)
	assert.Equal(t, 2, resp.Data.Inputs)
	assert.Equal(t, []string{"K1"}, resp.Data.Kernels)
}

func TestValidateMissingConfig(t *testing.T) {
	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, stdout, "Error [E005]")
}

func TestValidateSchemaViolations(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(
		"cmd: ./target.sh",
		"input_file: tests.txt",
		"kernels: []",
		"exit_policy: sometimes",
	)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Validation failed")
	assert.Contains(t, stdout, "kernels")
	assert.Contains(t, stdout, "exit_policy")
}

func TestValidateMissingRedirectFiles(t *testing.T) {
	f := newFixture(t)
	f.write("tests.txt", "a.txt\nmissing.txt\n", 0o644)
	cfg := f.config(
		"cmd: ./target.sh",
		"input_file: tests.txt",
		"kernels: [K1]",
		"redirect: true",
	)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "missing.txt")
}

func TestValidateMissingPrologScript(t *testing.T) {
	f := newFixture(t)
	f.write("tests.txt", "a\n", 0o644)
	cfg := f.config(
		"cmd: ./target.sh",
		"input_file: tests.txt",
		"kernels: [K1]",
		"prolog: true",
	)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), cfg)
	require.Error(t, err)
	assert.Contains(t, stdout, "prolog script")
}

func TestValidateTooFewTests(t *testing.T) {
	f := newFixture(t)
	f.write("tests.txt", "a.txt\n", 0o644)
	cfg := f.config(
		"cmd: ./target.sh",
		"input_file: tests.txt",
		"tests: 3",
		"kernels: [K1]",
	)

	stdout, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), cfg)
	require.Error(t, err)
	assert.Contains(t, stdout, "asks for 3 tests")
}
