//go:build windows

package executor

import "os/exec"

// setupProcessGroup keeps the default exec.Cmd cancellation, which kills the
// child process only.
func setupProcessGroup(cmd *exec.Cmd) {}
