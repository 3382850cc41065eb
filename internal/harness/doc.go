// Package harness drives the cross-run confirmation pass.
//
// For every kernel selector the harness opens a fresh session, runs the
// target program once per input, parses the advisories each run printed,
// and folds them into the session's confirmed set. Once every input has been
// tried the session is turned into a report and discarded.
//
// Kernels and inputs are processed strictly one after the other. The
// instrumentation tool keeps measurement state per target process, and two
// instrumented runs of the same program would corrupt it.
//
// # Errors
//
// Failures are reported as *RunError values carrying the kernel and the
// input that caused them:
//
//   - CONFIG: a redirect file cannot be opened, the prolog script exits
//     non-zero, or a kernel has no inputs.
//   - FORMAT: an advisory line carries a malformed fence or kind field.
//   - EXEC: the target program cannot be launched, or it exited non-zero
//     under the fail exit policy.
//   - TIMEOUT: a prolog or run exceeded the per-run timeout.
//   - CANCELED: the pass was interrupted.
//
// Any of them aborts the kernel without a report. CANCELED also ends the
// pass; the others move on to the next kernel unless FailFast is set.
//
// A fence that drops out of the confirmed set is not an error. It is logged
// and passed to Config.OnDrop.
package harness
