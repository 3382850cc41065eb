//go:build !windows

package cli

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fencecheck/internal/harness"
)

func argsModeConfig(f *fixture, kernels string) string {
	f.write("tests.txt", "a.txt\n\nb.txt\n", 0o644)
	return f.config(
		"cmd: ./target.sh",
		"input_file: tests.txt",
		"kernels: "+kernels,
		"tool_path: /opt/scope-advice.so",
	)
}

func TestRunK1Text(t *testing.T) {
	f := newFixture(t)
	cfg := argsModeConfig(f, "[K1]")

	stdout, stderr, err := execute(NewRunCommand(&RootOptions{Format: "text"}), cfg)
	require.NoError(t, err, stderr)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "run_k1", []byte(stdout))

	assert.Equal(t, []string{"K1", "K1"}, f.launches(), "one process per input")
	assert.Contains(t, stderr, "kernel started")
}

func TestRunK1JSON(t *testing.T) {
	f := newFixture(t)
	cfg := argsModeConfig(f, "[K1, K2]")

	cmd := newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		IDs:         harness.NewFixedGenerator("s-1", "s-2"),
	})
	stdout, stderr, err := execute(cmd, cfg)
	require.NoError(t, err, stderr)

	var doc struct {
		Kernels []struct {
			Kernel     string `json:"kernel"`
			SessionID  string `json:"session_id"`
			Inputs     int    `json:"inputs"`
			Advisories []struct {
				Fence int64  `json:"fence"`
				Kind  string `json:"kind"`
				Text  string `json:"text"`
			} `json:"advisories"`
			Dropped []struct {
				Input  int     `json:"input"`
				Fences []int64 `json:"fences"`
			} `json:"dropped"`
		} `json:"kernels"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc), stdout)
	require.Len(t, doc.Kernels, 2)

	k1 := doc.Kernels[0]
	assert.Equal(t, "K1", k1.Kernel)
	assert.Equal(t, "s-1", k1.SessionID)
	assert.Equal(t, 2, k1.Inputs)
	require.Len(t, k1.Advisories, 2)
	assert.Equal(t, int64(2), k1.Advisories[0].Fence)
	assert.Equal(t, int64(3), k1.Advisories[1].Fence)
	assert.Equal(t, "1", k1.Advisories[0].Kind)
	require.Len(t, k1.Dropped, 1)
	assert.Equal(t, []int64{1}, k1.Dropped[0].Fences)

	assert.Contains(t, doc.Kernels[1].Advisories[0].Text, "kernel=K2", "each kernel gets its own selector")
	assert.Contains(t, stderr, "Removing {1} fence IDs", "drop lines stay off stdout in JSON mode")
}

func TestRunRedirectMode(t *testing.T) {
	f := newFixture(t)
	f.write("tests.txt", "a.txt\nb.txt\n", 0o644)
	cfg := f.config(
		"cmd: ./target.sh",
		"input_file: tests.txt",
		"kernels: [K1]",
		"redirect: true",
	)

	stdout, stderr, err := execute(NewRunCommand(&RootOptions{Format: "text"}), cfg)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Fence@0x2 | Epoch: 2")
	assert.NotContains(t, stdout, "Epoch: 1 ")
	assert.Contains(t, stdout, "tool=../scope-advice.so", "default tool path")
}

func TestRunRedirectMissingFileAbortsKernel(t *testing.T) {
	f := newFixture(t)
	f.write("tests.txt", "a.txt\nmissing.txt\n", 0o644)
	cfg := f.config(
		"cmd: ./target.sh",
		"input_file: tests.txt",
		"kernels: [K1]",
		"redirect: true",
	)

	stdout, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, harness.IsConfigError(err))
	assert.NotContains(t, stdout, "Suggestions after iterating")
	assert.Contains(t, stdout, "CONFIG: kernel K1, input #1 < missing.txt")
	assert.Equal(t, []string{"K1"}, f.launches())
}

func TestRunPrologFailureNeverLaunchesTarget(t *testing.T) {
	f := newFixture(t)
	f.write("tests.txt", "a\nb\n", 0o644)
	f.write("prolog.sh", "#!/bin/sh\n[ \"$1\" = b ] && exit 3\ncp \"$1.txt\" current.txt\n", 0o755)
	cfg := f.config(
		"cmd: ./target.sh",
		"args: current.txt",
		"input_file: tests.txt",
		"kernels: [K1, K2]",
		"prolog: true",
	)

	stdout, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 of 2 kernel(s) failed")
	assert.Contains(t, err.Error(), "exit code 3")
	assert.NotContains(t, stdout, "Suggestions after iterating")
	assert.Equal(t, []string{"K1", "K2"}, f.launches(), "input b never reached the target")
}

func TestRunPrologFailureFailFast(t *testing.T) {
	f := newFixture(t)
	f.write("tests.txt", "a\nb\n", 0o644)
	f.write("prolog.sh", "#!/bin/sh\n[ \"$1\" = b ] && exit 3\ncp \"$1.txt\" current.txt\n", 0o755)
	cfg := f.config(
		"cmd: ./target.sh",
		"args: current.txt",
		"input_file: tests.txt",
		"kernels: [K1, K2]",
		"prolog: true",
	)

	_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--fail-fast", cfg)
	require.Error(t, err)
	assert.Equal(t, []string{"K1"}, f.launches())
}

func TestRunFlagOverrides(t *testing.T) {
	f := newFixture(t)
	cfg := argsModeConfig(f, "[K1, K2, K3]")

	stdout, stderr, err := execute(NewRunCommand(&RootOptions{Format: "text"}),
		"--kernel", "K3", "--kernel", "K1", "--tool", "/other/tool.so", cfg)
	require.NoError(t, err, stderr)

	assert.Equal(t, []string{"K1", "K1", "K3", "K3"}, f.launches(), "config order is kept")
	assert.Contains(t, stdout, "tool=/other/tool.so")
	assert.NotContains(t, stdout, "K2 kernel")
}

func TestRunUnknownKernelFlag(t *testing.T) {
	f := newFixture(t)
	cfg := argsModeConfig(f, "[K1]")

	_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--kernel", "K9", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `kernel "K9"`)
	assert.Empty(t, f.launches())
}

func TestRunTimeoutFlag(t *testing.T) {
	f := newFixture(t)
	f.write("slow.sh", "#!/bin/sh\nsleep 10\n", 0o755)
	f.write("tests.txt", "a.txt\n", 0o644)
	cfg := f.config(
		"cmd: ./slow.sh",
		"input_file: tests.txt",
		"kernels: [K1]",
		"timeout: 1h",
	)

	stdout, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--timeout", "300ms", cfg)
	require.Error(t, err)
	assert.Equal(t, harness.CodeTimeout, harness.CodeOf(err))
	assert.Contains(t, stdout, "TIMEOUT")
}

func TestRunTrailInVerboseMode(t *testing.T) {
	f := newFixture(t)
	cfg := argsModeConfig(f, "[K1]")

	stdout, _, err := execute(NewRunCommand(&RootOptions{Format: "text", Verbose: true}), cfg)
	require.NoError(t, err)
	assert.Contains(t, stdout, "  run #0 a.txt: observed 3, confirmed 3")
	assert.Contains(t, stdout, "  run #1 b.txt: observed 3, confirmed 2, dropped {1}")
}

func TestRunMissingConfig(t *testing.T) {
	_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
