package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"InRoot", cfg.InRoot, "."},
		{"OutRoot", cfg.OutRoot, "c2s_out"},
		{"USM", cfg.USM, true},
		{"AssumeNdRangeDim", cfg.AssumeNdRangeDim, 3},
		{"MaxRounds", cfg.MaxRounds, 3},
		{"KernelParamLimit", cfg.KernelParamLimit, 1024},
		{"UseCache", cfg.UseCache, true},
		{"ReportFormat", cfg.ReportFormat, ReportText},
		{"ExportReplacements", cfg.ExportReplacements, false},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"one dimensional items", func(c *Config) { c.AssumeNdRangeDim = 1 }, ""},
		{"json report", func(c *Config) { c.ReportFormat = ReportJSON }, ""},
		{"dim 2", func(c *Config) { c.AssumeNdRangeDim = 2 }, "assume_nd_range_dim"},
		{"zero rounds", func(c *Config) { c.MaxRounds = 0 }, "max_rounds"},
		{"negative param limit", func(c *Config) { c.KernelParamLimit = -1 }, "kernel_param_limit"},
		{"negative jobs", func(c *Config) { c.Jobs = -2 }, "jobs"},
		{"xml report", func(c *Config) { c.ReportFormat = "xml" }, "report_format"},
		{"missing out root", func(c *Config) { c.OutRoot = "" }, "out_root is required"},
		{"out root equals in root", func(c *Config) { c.InRoot, c.OutRoot = "src", "./src" }, "must differ"},
		{"extension without dot", func(c *Config) { c.Extensions = []string{"cu"} }, "must start with a dot"},
		{"cache without dir", func(c *Config) { c.CacheDir = "" }, "cache_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.errContains)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error %v does not wrap ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() = %q, should contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFromPrecedence(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "home", ".c2s", "config.yaml")
	project := filepath.Join(dir, "proj", ".c2s", "config.yaml")
	writeFile(t, global, "max_rounds: 5\nusm: false\nout_root: global_out\n")
	writeFile(t, project, "out_root: project_out\nrule_files:\n  - rules/a.yaml\n")
	t.Setenv("C2S_MAX_ROUNDS", "7")

	cfg, err := LoadFrom(global, project, filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.MaxRounds != 7 {
		t.Errorf("MaxRounds = %d, want 7 (from env)", cfg.MaxRounds)
	}
	if cfg.USM {
		t.Errorf("USM = true, want false (from global file)")
	}
	if cfg.OutRoot != "project_out" {
		t.Errorf("OutRoot = %q, want project_out (project overrides global)", cfg.OutRoot)
	}
	if !reflect.DeepEqual(cfg.RuleFiles, []string{"rules/a.yaml"}) {
		t.Errorf("RuleFiles = %v", cfg.RuleFiles)
	}
	if cfg.KernelParamLimit != 1024 {
		t.Errorf("KernelParamLimit = %d, want default 1024", cfg.KernelParamLimit)
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		errContains string
	}{
		{"valid", "assume_nd_range_dim: 1\nreport_format: json\n", ""},
		{"invalid yaml", "usm: [unclosed\n", "failed to parse"},
		{"invalid dim", "assume_nd_range_dim: 4\n", "assume_nd_range_dim"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.configYAML)

			cfg, err := LoadFromFile(path)
			if tt.errContains != "" {
				if err == nil {
					t.Fatalf("Expected error containing %q, got nil", tt.errContains)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Error = %q, should contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if cfg.AssumeNdRangeDim != 1 || cfg.ReportFormat != ReportJSON {
				t.Errorf("cfg = %+v", cfg)
			}
		})
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFromFile() on a missing file should fail")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("C2S_IN_ROOT", "cuda")
	t.Setenv("C2S_EXTENSIONS", ".cu, .cuh,")
	t.Setenv("C2S_USE_CACHE", "no")
	t.Setenv("C2S_EXPORT_REPLACEMENTS", "1")
	t.Setenv("C2S_ASSUME_ND_RANGE_DIM", "1")

	cfg := DefaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}
	if cfg.InRoot != "cuda" {
		t.Errorf("InRoot = %q", cfg.InRoot)
	}
	if !reflect.DeepEqual(cfg.Extensions, []string{".cu", ".cuh"}) {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if cfg.UseCache {
		t.Error("UseCache should be false")
	}
	if !cfg.ExportReplacements {
		t.Error("ExportReplacements should be true")
	}
	if cfg.AssumeNdRangeDim != 1 {
		t.Errorf("AssumeNdRangeDim = %d", cfg.AssumeNdRangeDim)
	}
}

func TestApplyEnvOverridesRejectsBadInt(t *testing.T) {
	t.Setenv("C2S_MAX_ROUNDS", "many")
	err := applyEnvOverrides(DefaultConfig())
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("applyEnvOverrides() = %v, want ErrInvalid", err)
	}
}

func TestConfigSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".c2s", "config.yaml")
	cfg := DefaultConfig()
	cfg.RuleFiles = []string{"extra.yaml"}
	cfg.ReportFile = "report.txt"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
}
