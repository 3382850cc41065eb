// Package executor launches one instrumented execution of the target program.
//
// Every (kernel, input) pair gets its own child process. The instrumentation
// tool is activated through an environment hook (CUDA_INJECTION64_PATH by
// default) and learns which kernel to instrument from a second variable
// (KERNELID by default). Both are written into a fresh Environment built for
// that one child; the executor never mutates a shared environment, so runs
// for independent kernels could be spawned from separate goroutines.
//
// # Input modes
//
//   - ModeArgs: the input's arguments follow the fixed command arguments.
//   - ModeRedirect: the input names a file opened read-only as the child's stdin.
//   - ModeProlog: the input's arguments go to a setup script that runs first,
//     without instrumentation. A non-zero exit aborts before the target
//     program is launched.
//
// # Timeouts and cancellation
//
// Each invocation runs under Config.Timeout, covering the prolog step and the
// instrumented run. When the deadline passes or the caller's context is
// canceled, the child's whole process group is killed and its partial output
// is discarded.
package executor
