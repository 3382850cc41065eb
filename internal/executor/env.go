package executor

import (
	"slices"
	"strings"
)

// Default environment variable names understood by the instrumentation tool.
const (
	DefaultToolEnv   = "CUDA_INJECTION64_PATH"
	DefaultKernelEnv = "KERNELID"
)

// Environment is an immutable KEY=VALUE snapshot handed to one child process.
type Environment struct {
	vars []string
}

// NewEnvironment copies base and applies overrides. Entries of base whose key
// is overridden are dropped, so the override is the only definition.
func NewEnvironment(base []string, overrides map[string]string) Environment {
	vars := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		vars = append(vars, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		vars = append(vars, k+"="+overrides[k])
	}

	return Environment{vars: vars}
}

// Environ returns a copy of the snapshot suitable for exec.Cmd.Env.
func (e Environment) Environ() []string {
	return slices.Clone(e.vars)
}

// Lookup returns the value of key, if set.
func (e Environment) Lookup(key string) (string, bool) {
	for i := len(e.vars) - 1; i >= 0; i-- {
		k, v, _ := strings.Cut(e.vars[i], "=")
		if k == key {
			return v, true
		}
	}
	return "", false
}
