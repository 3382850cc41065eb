// Package config loads the harness configuration and the test specification
// it points at.
//
// A configuration is a YAML or TOML document (chosen by file extension):
//
//	cmd: ./bfs
//	args: "-v"
//	input_file: inputs.txt
//	tests: 3
//	kernels: [bfs_kernel, relax_kernel]
//	redirect: false
//	prolog: false
//	timeout: 10m
//
// Documents are checked against an embedded CUE schema before being decoded,
// then validated for combinations the schema does not express.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fencecheck/internal/executor"
)

// Defaults for keys the document leaves out.
const (
	DefaultToolPath     = "../scope-advice.so"
	DefaultPrologScript = executor.DefaultPrologScript
	DefaultTimeout      = executor.DefaultTimeout
	DefaultExitPolicy   = "warn"
)

// Config is a decoded harness configuration.
type Config struct {
	Cmd       string   `yaml:"cmd" toml:"cmd"`
	Args      string   `yaml:"args" toml:"args"`
	Tests     int      `yaml:"tests" toml:"tests"`
	InputFile string   `yaml:"input_file" toml:"input_file"`
	Kernels   []string `yaml:"kernels" toml:"kernels"`

	Prolog       bool   `yaml:"prolog" toml:"prolog"`
	Redirect     bool   `yaml:"redirect" toml:"redirect"`
	PrologScript string `yaml:"prolog_script" toml:"prolog_script"`

	ToolPath  string `yaml:"tool_path" toml:"tool_path"`
	ToolEnv   string `yaml:"tool_env" toml:"tool_env"`
	KernelEnv string `yaml:"kernel_env" toml:"kernel_env"`

	Timeout    string `yaml:"timeout" toml:"timeout"`
	ExitPolicy string `yaml:"exit_policy" toml:"exit_policy"`
	WorkDir    string `yaml:"work_dir" toml:"work_dir"`

	// Path is the file the config was loaded from.
	Path string `yaml:"-" toml:"-"`

	timeout time.Duration
}

// Load reads, schema-checks, decodes, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var (
		raw map[string]any
		cfg Config
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if err := validateSchema(raw); err != nil {
			return nil, err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if err := validateSchema(raw); err != nil {
			return nil, err
		}
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown TOML keys: %v", undecoded)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.Path = abs

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.ToolPath == "" {
		c.ToolPath = DefaultToolPath
	}
	if c.PrologScript == "" {
		c.PrologScript = DefaultPrologScript
	}
	if c.ExitPolicy == "" {
		c.ExitPolicy = DefaultExitPolicy
	}
	if c.ToolEnv == "" {
		c.ToolEnv = executor.DefaultToolEnv
	}
	if c.KernelEnv == "" {
		c.KernelEnv = executor.DefaultKernelEnv
	}

	base := filepath.Dir(c.Path)
	switch {
	case c.WorkDir == "":
		c.WorkDir = base
	case !filepath.IsAbs(c.WorkDir):
		c.WorkDir = filepath.Join(base, c.WorkDir)
	}

	c.timeout = DefaultTimeout
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid config: timeout: %w", err)
		}
		c.timeout = d
	}
	return nil
}

func (c *Config) validate() error {
	if c.Prolog && c.Redirect {
		return errors.New("prolog and redirect are mutually exclusive")
	}
	if c.timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.timeout)
	}
	seen := make(map[string]bool, len(c.Kernels))
	for _, k := range c.Kernels {
		if seen[k] {
			return fmt.Errorf("kernel %q listed twice", k)
		}
		seen[k] = true
	}
	return nil
}

// Mode returns how inputs reach the target program.
func (c *Config) Mode() executor.Mode {
	switch {
	case c.Prolog:
		return executor.ModeProlog
	case c.Redirect:
		return executor.ModeRedirect
	default:
		return executor.ModeArgs
	}
}

// RunTimeout returns the per-run timeout.
func (c *Config) RunTimeout() time.Duration {
	return c.timeout
}

// SetRunTimeout overrides the per-run timeout.
func (c *Config) SetRunTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", d)
	}
	c.timeout = d
	c.Timeout = d.String()
	return nil
}

// InputPath returns the test specification path, resolved against the
// config file's directory.
func (c *Config) InputPath() string {
	if filepath.IsAbs(c.InputFile) {
		return c.InputFile
	}
	return filepath.Join(filepath.Dir(c.Path), c.InputFile)
}

// ExecutorConfig maps the config onto the executor's.
func (c *Config) ExecutorConfig() executor.Config {
	return executor.Config{
		Command:      c.command(),
		Args:         strings.Fields(c.Args),
		Dir:          c.WorkDir,
		ToolPath:     c.ToolPath,
		ToolEnv:      c.ToolEnv,
		KernelEnv:    c.KernelEnv,
		PrologScript: c.PrologScript,
		Timeout:      c.timeout,
	}
}

// command resolves a relative command containing a path separator against
// the working directory. Bare names are left for PATH lookup.
func (c *Config) command() string {
	if filepath.IsAbs(c.Cmd) || !strings.ContainsRune(c.Cmd, filepath.Separator) {
		return c.Cmd
	}
	return filepath.Join(c.WorkDir, c.Cmd)
}
