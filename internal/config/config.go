package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Report formats.
const (
	ReportText = "text"
	ReportJSON = "json"
)

// DefaultExtensions are the source file extensions migrated by default.
var DefaultExtensions = []string{".cu", ".cuh", ".cpp", ".cc", ".cxx", ".h", ".hpp"}

// Config holds all configuration for c2s
type Config struct {
	// InRoot is the directory holding the CUDA sources.
	InRoot string `yaml:"in_root" env:"C2S_IN_ROOT"`

	// OutRoot receives the migrated tree.
	OutRoot string `yaml:"out_root" env:"C2S_OUT_ROOT"`

	// USM selects unified shared memory. False selects the buffer model.
	USM bool `yaml:"usm" env:"C2S_USM"`

	// AssumeNdRangeDim is the nd_item dimension used for kernels whose
	// dimensionality cannot be narrowed: 1 or 3.
	AssumeNdRangeDim int `yaml:"assume_nd_range_dim" env:"C2S_ASSUME_ND_RANGE_DIM"`

	// RuleFiles are user rule files loaded after the built-in rules.
	RuleFiles []string `yaml:"rule_files" env:"C2S_RULE_FILES"`

	// Analysis limits
	MaxRounds        int `yaml:"max_rounds" env:"C2S_MAX_ROUNDS"`
	KernelParamLimit int `yaml:"kernel_param_limit" env:"C2S_KERNEL_PARAM_LIMIT"`

	// Extensions selects which files under InRoot are migrated.
	Extensions []string `yaml:"extensions" env:"C2S_EXTENSIONS"`

	// Jobs bounds parallel parsing. 0 uses one worker per CPU.
	Jobs int `yaml:"jobs" env:"C2S_JOBS"`

	// Result cache
	CacheDir string `yaml:"cache_dir" env:"C2S_CACHE_DIR"`
	UseCache bool   `yaml:"use_cache" env:"C2S_USE_CACHE"`

	// Reporting
	ReportFile         string `yaml:"report_file" env:"C2S_REPORT_FILE"`
	ReportFormat       string `yaml:"report_format" env:"C2S_REPORT_FORMAT"`
	ExportReplacements bool   `yaml:"export_replacements" env:"C2S_EXPORT_REPLACEMENTS"`
	InlineDiagnostics  bool   `yaml:"inline_diagnostics" env:"C2S_INLINE_DIAGNOSTICS"`

	// Logging
	Verbose bool `yaml:"verbose" env:"C2S_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		InRoot:            ".",
		OutRoot:           "c2s_out",
		USM:               true,
		AssumeNdRangeDim:  3,
		MaxRounds:         3,
		KernelParamLimit:  1024,
		Extensions:        append([]string(nil), DefaultExtensions...),
		CacheDir:          filepath.Join(".c2s", "cache"),
		UseCache:          true,
		ReportFormat:      ReportText,
		InlineDiagnostics: true,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.c2s/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".c2s", "config.yaml")
	}
	return filepath.Join(home, ".c2s", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.c2s/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".c2s", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.c2s/config.yaml)
// 3. Global config (~/.c2s/config.yaml)
// 4. Defaults
//
// Command-line flags are applied by the caller on top of the result.
func Load() (*Config, error) {
	return LoadFrom(GlobalConfigFilePath(), ProjectConfigFilePath())
}

// LoadFrom is Load with explicit file locations. Missing files are skipped.
// The result is not validated, so that flags can still fix it.
func LoadFrom(paths ...string) (*Config, error) {
	cfg := DefaultConfig()
	for _, p := range paths {
		if err := mergeFile(cfg, p, false); err != nil {
			return nil, err
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := mergeFile(cfg, path, true); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: failed to parse config file %s: %v", ErrInvalid, path, err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("C2S_IN_ROOT"); v != "" {
		cfg.InRoot = v
	}
	if v := os.Getenv("C2S_OUT_ROOT"); v != "" {
		cfg.OutRoot = v
	}
	if v := os.Getenv("C2S_RULE_FILES"); v != "" {
		cfg.RuleFiles = splitList(v)
	}
	if v := os.Getenv("C2S_EXTENSIONS"); v != "" {
		cfg.Extensions = splitList(v)
	}
	if v := os.Getenv("C2S_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("C2S_REPORT_FILE"); v != "" {
		cfg.ReportFile = v
	}
	if v := os.Getenv("C2S_REPORT_FORMAT"); v != "" {
		cfg.ReportFormat = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"C2S_ASSUME_ND_RANGE_DIM", &cfg.AssumeNdRangeDim},
		{"C2S_MAX_ROUNDS", &cfg.MaxRounds},
		{"C2S_KERNEL_PARAM_LIMIT", &cfg.KernelParamLimit},
		{"C2S_JOBS", &cfg.Jobs},
	}
	for _, e := range ints {
		if v := os.Getenv(e.env); v != "" {
			i, err := parseInt(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, e.env, err)
			}
			*e.dst = i
		}
	}

	bools := []struct {
		env string
		dst *bool
	}{
		{"C2S_USM", &cfg.USM},
		{"C2S_USE_CACHE", &cfg.UseCache},
		{"C2S_EXPORT_REPLACEMENTS", &cfg.ExportReplacements},
		{"C2S_INLINE_DIAGNOSTICS", &cfg.InlineDiagnostics},
		{"C2S_VERBOSE", &cfg.Verbose},
	}
	for _, e := range bools {
		if v := os.Getenv(e.env); v != "" {
			*e.dst = parseBool(v)
		}
	}
	return nil
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.AssumeNdRangeDim != 1 && c.AssumeNdRangeDim != 3 {
		return fmt.Errorf("%w: assume_nd_range_dim must be 1 or 3, got %d", ErrInvalid, c.AssumeNdRangeDim)
	}
	if c.MaxRounds <= 0 {
		return fmt.Errorf("%w: max_rounds must be positive", ErrInvalid)
	}
	if c.KernelParamLimit <= 0 {
		return fmt.Errorf("%w: kernel_param_limit must be positive", ErrInvalid)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("%w: jobs must be non-negative", ErrInvalid)
	}
	switch c.ReportFormat {
	case ReportText, ReportJSON:
	default:
		return fmt.Errorf("%w: report_format must be 'text' or 'json', got %q", ErrInvalid, c.ReportFormat)
	}
	if c.InRoot == "" {
		return fmt.Errorf("%w: in_root is required", ErrInvalid)
	}
	if c.OutRoot == "" {
		return fmt.Errorf("%w: out_root is required", ErrInvalid)
	}
	if filepath.Clean(c.InRoot) == filepath.Clean(c.OutRoot) {
		return fmt.Errorf("%w: out_root must differ from in_root", ErrInvalid)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: extension %q must start with a dot", ErrInvalid, ext)
		}
	}
	if c.UseCache && c.CacheDir == "" {
		return fmt.Errorf("%w: cache_dir is required when use_cache is set", ErrInvalid)
	}
	return nil
}

// splitList splits a comma-separated environment value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// parseInt attempts to parse a string as int
func parseInt(s string) (int, error) {
	var i int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &i); err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return i, nil
}
