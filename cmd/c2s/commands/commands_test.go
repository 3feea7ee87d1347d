package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cuda2sycl/internal/config"
	"github.com/l3aro/cuda2sycl/pkg/rules"
)

const kernelSource = `#include <cuda_runtime.h>

__device__ float scale[4];

__global__ void kernel(float *data, int n) {
  int i = blockIdx.x * blockDim.x + threadIdx.x;
  if (i < n) data[i] = data[i] * scale[0];
}

int main() {
  float *d;
  cudaMalloc(&d, 16 * sizeof(float));
  kernel<<<4, 4>>>(d, 16);
  cudaFree(d);
  return 0;
}
`

const validRules = `
- Rule: rule_malloc
  Kind: API
  Priority: Takeover
  In: cudaMalloc
  Out: $deref($1) = my_alloc($2)
`

// resetFlags restores every flag of the command tree to its default, since
// the command variables outlive a single Execute.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			var def []string
			if inner := strings.Trim(f.DefValue, "[]"); inner != "" {
				def = strings.Split(inner, ",")
			}
			sv.Replace(def)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// sandbox isolates the configuration lookup and returns a fresh directory.
func sandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(RootCmd)
	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitFailure},
		{"invalid config", fmt.Errorf("loading: %w", config.ErrInvalid), ExitConfig},
		{"usage", &usageError{errors.New("unknown flag")}, ExitConfig},
		{"rule file", fmt.Errorf("wrapped: %w", &rules.LoadError{Path: "r.yaml", Msg: "bad"}), ExitRuleFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestMigrateCommandWritesTree(t *testing.T) {
	dir := sandbox(t)
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	writeFile(t, filepath.Join(in, "main.cu"), kernelSource)
	writeFile(t, filepath.Join(in, "notes.txt"), "ignored")
	report := filepath.Join(dir, "report.json")

	stdout, _, err := execute(t, "migrate", in, "-o", out, "--use-cache=false",
		"--report-file", report, "--report-format", "json", "--export-replacements")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Migrated 1 files into "+out)

	b, err := os.ReadFile(filepath.Join(out, "main.dp.cpp"))
	require.NoError(t, err)
	got := string(b)
	assert.Contains(t, got, "#include <sycl/sycl.hpp>")
	assert.Contains(t, got, "const sycl::nd_item<3> &item_ct1")
	assert.NotContains(t, got, "<<<")

	_, err = os.Stat(filepath.Join(out, "notes.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(out, "main.cu.yaml"))
	assert.NoError(t, err)

	rep, err := os.ReadFile(report)
	require.NoError(t, err)
	var items []map[string]interface{}
	assert.NoError(t, json.Unmarshal(rep, &items))
}

func TestMigrateCommandReusesCache(t *testing.T) {
	dir := sandbox(t)
	in := filepath.Join(dir, "in")
	writeFile(t, filepath.Join(in, "main.cu"), kernelSource)
	args := []string{"migrate", in, "-o", filepath.Join(dir, "out"), "--cache-dir", filepath.Join(dir, "cache")}

	first, _, err := execute(t, args...)
	require.NoError(t, err)
	assert.NotContains(t, first, "cached")
	firstOut, err := os.ReadFile(filepath.Join(dir, "out", "main.dp.cpp"))
	require.NoError(t, err)

	second, _, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, second, ", cached)")
	secondOut, err := os.ReadFile(filepath.Join(dir, "out", "main.dp.cpp"))
	require.NoError(t, err)
	assert.Equal(t, string(firstOut), string(secondOut))

	// Changing an option misses the cache.
	third, _, err := execute(t, append(args, "--usm=false")...)
	require.NoError(t, err)
	assert.NotContains(t, third, "cached")
}

func TestMigrateCommandRuleFileFailsFirst(t *testing.T) {
	dir := sandbox(t)
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	writeFile(t, filepath.Join(in, "main.cu"), kernelSource)
	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "- Rule: x\n  Out: y\n")

	_, _, err := execute(t, "migrate", in, "-o", out, "--rule-file", bad)
	require.Error(t, err)
	assert.Equal(t, ExitRuleFile, ExitCode(err))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "nothing may be written after a rule file failure")
}

func TestMigrateCommandRejectsInvalidOptions(t *testing.T) {
	dir := sandbox(t)
	in := filepath.Join(dir, "in")
	writeFile(t, filepath.Join(in, "main.cu"), kernelSource)

	_, _, err := execute(t, "migrate", in, "-o", filepath.Join(dir, "out"), "--assume-nd-range-dim", "2")
	assert.Equal(t, ExitConfig, ExitCode(err))

	_, _, err = execute(t, "migrate", in, "--no-such-flag")
	assert.Equal(t, ExitConfig, ExitCode(err))
}

func TestMigrateCommandEmptyTree(t *testing.T) {
	dir := sandbox(t)
	in := filepath.Join(dir, "in")
	writeFile(t, filepath.Join(in, "README.md"), "# nothing")

	_, _, err := execute(t, "migrate", in, "-o", filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestGraphCommandJSON(t *testing.T) {
	dir := sandbox(t)
	in := filepath.Join(dir, "in")
	writeFile(t, filepath.Join(in, "main.cu"), kernelSource)

	stdout, _, err := execute(t, "graph", in, "--json")
	require.NoError(t, err)

	var nodes []FunctionNode
	require.NoError(t, json.Unmarshal([]byte(stdout), &nodes))
	var kernel *FunctionNode
	for i := range nodes {
		if nodes[i].Name == "kernel" {
			kernel = &nodes[i]
		}
	}
	require.NotNil(t, kernel)
	assert.True(t, kernel.Kernel)
	assert.Equal(t, 3, kernel.Dim)
	require.Len(t, kernel.Vars, 1)
	assert.Equal(t, "scale", kernel.Vars[0].Name)
	assert.Equal(t, "global", kernel.Vars[0].Kind)
}

func TestGraphCommandText(t *testing.T) {
	var buf bytes.Buffer
	nodes := []FunctionNode{
		{Name: "k", Key: "a.cu:10", Kernel: true, Dim: 1, Vars: []VarNode{{Name: "tile", Kind: "shared", Type: "float"}}, Calls: []string{"helper"}},
		{Name: "helper", Key: "a.cu:2", Dim: 1},
	}
	require.NoError(t, outputGraphText(&buf, nodes))
	assert.Equal(t, "kernel k  nd_item<1>  a.cu:10\n    uses shared float tile\n    calls helper\n"+
		"device helper  nd_item<1>  a.cu:2\n", buf.String())
}

func TestRulesCommands(t *testing.T) {
	dir := sandbox(t)
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, good, validRules)
	writeFile(t, bad, "[unclosed")

	stdout, _, err := execute(t, "rules", "check", good)
	require.NoError(t, err)
	assert.Equal(t, good+": 1 rules OK\n", stdout)

	_, _, err = execute(t, "rules", "check", bad)
	assert.Equal(t, ExitRuleFile, ExitCode(err))

	stdout, _, err = execute(t, "rules", "list", "--rule-file", good)
	require.NoError(t, err)
	assert.Contains(t, stdout, "KIND")
	assert.Regexp(t, `API\s+cudaMalloc\s+Takeover\s+`+regexpQuote(good)+`:2`, stdout)
	assert.Regexp(t, `API\s+cudaFree\s+Default\s+builtin`, stdout)
}

func regexpQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `.`, `\.`, `+`, `\+`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func TestSaveInitConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".c2s", "config.yaml")
	cfg := config.DefaultConfig()
	cfg.USM = false
	cfg.RuleFiles = []string{"rules.yaml"}

	var buf bytes.Buffer
	require.NoError(t, saveInitConfig(&buf, cfg, path))
	assert.Contains(t, buf.String(), "Memory model: buffer")
	assert.Contains(t, buf.String(), "Rule files: rules.yaml")

	loaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.False(t, loaded.USM)

	cfg.AssumeNdRangeDim = 2
	assert.Error(t, saveInitConfig(&buf, cfg, path))
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3", "")
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "c2s version 1.2.3\n", stdout)
}
