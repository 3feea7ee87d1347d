package migrate

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cuda2sycl/internal/log"
	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/replace"
	"github.com/l3aro/cuda2sycl/pkg/rules"
	"github.com/l3aro/cuda2sycl/pkg/session"
)

type input struct {
	path string
	src  string
}

func quietLogger() log.Logger {
	return log.New(log.LoggerConfig{Level: log.ErrorLevel, Stdout: io.Discard, Stderr: io.Discard})
}

// run migrates inputs and returns the rewritten content of each file.
func run(t *testing.T, m *Migrator, inputs ...input) (map[string]string, *Result) {
	t.Helper()
	for _, in := range inputs {
		require.NoError(t, m.AddSource(in.path, []byte(in.src)))
	}
	res, err := m.Run(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(inputs))
	for _, in := range inputs {
		b, err := replace.Apply([]byte(in.src), m.S.Store.For(in.path))
		require.NoError(t, err)
		out[in.path] = string(b)
	}
	return out, res
}

func newMigrator(usm bool) *Migrator {
	opts := session.DefaultOptions()
	opts.USM = usm
	return New(session.New(opts, nil), quietLogger())
}

const vectorScale = `#include <cuda_runtime.h>

__device__ float scale[4];

__device__ float twice(float x) { return x * 2; }

__global__ void kernel(float *data, int n) {
  int i = blockIdx.x * blockDim.x + threadIdx.x;
  if (i < n) data[i] = twice(data[i]) * scale[0];
}

int main() {
  float *d;
  cudaMalloc(&d, 16 * sizeof(float));
  kernel<<<4, 4>>>(d, 16);
  cudaFree(d);
  return 0;
}
`

func TestMigrateKernelProgram(t *testing.T) {
	out, res := run(t, newMigrator(true), input{"main.cu", vectorScale})
	got := out["main.cu"]

	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, []string{"main.cu"}, res.Files)
	assert.Contains(t, got, "#include <sycl/sycl.hpp>\n#include <dpct/dpct.hpp>\n")
	assert.Contains(t, got, "static dpct::global_memory<float, 1> scale(4);")
	assert.Contains(t, got, "\nfloat twice(float x) { return x * 2; }")
	assert.Contains(t, got, "void kernel(float *data, int n, const sycl::nd_item<3> &item_ct1, float *scale) {")
	assert.Contains(t, got, "item_ct1.get_group(2) * item_ct1.get_local_range(2) + item_ct1.get_local_id(2)")
	assert.Contains(t, got, "sycl::malloc_device(16 * sizeof(float), ")
	assert.Contains(t, got, "auto scale_ptr_ct1 = scale.get_ptr();")
	assert.Contains(t, got, "parallel_for(")
	assert.Contains(t, got, "kernel(d, 16, item_ct1, scale_ptr_ct1);")
	assert.NotContains(t, got, "__global__")
	assert.NotContains(t, got, "__device__")
	assert.NotContains(t, got, "<<<")
	assert.NotContains(t, got, "cuda_runtime.h")
}

func TestMigrateIsRepeatable(t *testing.T) {
	m := newMigrator(true)
	first, _ := run(t, m, input{"main.cu", vectorScale})

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	again, err := replace.Apply([]byte(vectorScale), m.S.Store.For("main.cu"))
	require.NoError(t, err)
	assert.Equal(t, first["main.cu"], string(again))
	assert.Equal(t, 1, res.Rounds)
}

func TestMigrateSharedMemoryAcrossUnits(t *testing.T) {
	header := input{"src/step.cuh", "__global__ void step(float *p);\n"}
	kernels := input{"src/kernels.cu", `#include "step.cuh"

__global__ void step(float *p) {
  __shared__ float tile[16];
  tile[threadIdx.x] = p[threadIdx.x];
  p[threadIdx.x] = tile[0];
}
`}
	main := input{"src/main.cu", `#include "step.cuh"

void run(float *d) {
  step<<<1, 16>>>(d);
}
`}
	out, _ := run(t, newMigrator(true), header, kernels, main)

	assert.Equal(t, "#include <sycl/sycl.hpp>\n#include <dpct/dpct.hpp>\n"+
		"void step(float *p, const sycl::nd_item<3> &item_ct1, float *tile);\n", out[header.path])

	k := out[kernels.path]
	assert.Contains(t, k, `#include "step.dp.hpp"`)
	assert.Contains(t, k, "void step(float *p, const sycl::nd_item<3> &item_ct1, float *tile) {")
	assert.Contains(t, k, "tile[item_ct1.get_local_id(2)] = p[item_ct1.get_local_id(2)];")
	assert.NotContains(t, k, "__shared__")

	h := out[main.path]
	assert.Contains(t, h, `#include "step.dp.hpp"`)
	assert.Contains(t, h, "#include <sycl/sycl.hpp>\n#include <dpct/dpct.hpp>\n")
	assert.Contains(t, h, "sycl::local_accessor<float, 1> tile_acc_ct1(sycl::range<1>(16), cgh);")
	assert.Contains(t, h, "step(d, item_ct1, tile_acc_ct1.get_multi_ptr<sycl::access::decorated::no>().get());")
}

const templates = `template <typename T>
__global__ void fill(T *p, T v) {}

template <typename T>
__global__ void zero(int n) {}

void host(float *d) {
  fill<<<1, 1>>>(d, 2.0f);
  zero<<<1, 1>>>(4);
}
`

func TestMigrateReportsUndeducibleTemplateArguments(t *testing.T) {
	_, res := run(t, newMigrator(true), input{"t.cu", templates})

	var found []diag.Diagnostic
	for _, d := range res.Diagnostics {
		if d.Code == diag.TemplateArgNotDeducible {
			found = append(found, d)
		}
	}
	require.Len(t, found, 1)
	assert.Equal(t, []string{"T", "zero"}, found[0].Args)
	assert.Equal(t, uint32(9), found[0].Pos.Line)
}

func TestMigrateInlineDiagnostics(t *testing.T) {
	m := newMigrator(true)
	m.InlineDiagnostics = true
	out, _ := run(t, m, input{"t.cu", templates})

	assert.Contains(t, out["t.cu"],
		"  /*\n  C2S1020:Template argument T of zero could not be deduced. Fix the type manually.\n  */\n")
}

func TestMigrateDeviceVariables(t *testing.T) {
	src := `__constant__ float coeff[3] = {1, 2, 3};
__device__ int counter = 5;
__managed__ int flag;
texture<float, 2, cudaReadModeElementType> tex;
`
	out, _ := run(t, newMigrator(true), input{"vars.cu", src})
	got := out["vars.cu"]

	assert.Contains(t, got, "static dpct::constant_memory<float, 1> coeff(sycl::range<1>(3), {1, 2, 3});")
	assert.Contains(t, got, "static dpct::global_memory<int, 0> counter(5);")
	assert.Contains(t, got, "static dpct::shared_memory<int, 0> flag;")
	assert.Contains(t, got, "static dpct::image_wrapper<float, 2> tex;")
}

func TestMigrateFFTPlanFromLaterUnit(t *testing.T) {
	exec := input{"exec.cu", `extern cufftHandle plan;

void forward(float2 *d) {
  cufftExecC2C(plan, d, d, CUFFT_FORWARD);
}
`}
	setup := input{"setup.cu", `cufftHandle plan;

void setup(int n) {
  cufftPlan1d(&plan, n, CUFFT_C2C, 1);
}
`}
	out, res := run(t, newMigrator(true), exec, setup)

	assert.Equal(t, 1, res.Rounds)
	for _, d := range res.Diagnostics {
		assert.NotEqual(t, diag.FFTPrecisionUndeducible, d.Code, d.Message)
	}
	desc := "oneapi::mkl::dft::descriptor<oneapi::mkl::dft::precision::SINGLE, oneapi::mkl::dft::domain::COMPLEX>"
	assert.Contains(t, out[exec.path], "std::shared_ptr<"+desc+"> plan;")
	assert.Contains(t, out[exec.path], "oneapi::mkl::dft::compute_forward(*plan")
	assert.Contains(t, out[setup.path], "std::shared_ptr<"+desc+"> plan;")
	assert.Contains(t, out[setup.path], "plan = std::make_shared<"+desc+">(n);")
}

const macroRules = `
- Rule: pi
  Kind: Macro
  Priority: Takeover
  In: MY_CUDA_PI
  Out: MY_SYCL_PI
- Rule: block
  Kind: Macro
  In: MY_CUDA_BLOCK
  Out: MY_SYCL_BLOCK
- Rule: max
  Kind: Macro
  In: CUDA_MAX
  Out: SYCL_MAX
`

func TestMigrateUserMacroRules(t *testing.T) {
	src := `#define MY_CUDA_PI 3.14159f
#define MY_CUDA_BLOCK 256
#define CUDA_MAX(a, b) ((a) > (b) ? (a) : (b))

__global__ void k(float *o) {
  o[0] = MY_CUDA_PI;
}

int main() {
  float h = MY_CUDA_PI;
  int b = MY_CUDA_BLOCK;
  float m = CUDA_MAX(h, 1.0f);
  return 0;
}
`
	reg := rules.NewDefaultRegistry()
	rf, err := rules.ParseRules("rules.yaml", []byte(macroRules))
	require.NoError(t, err)
	require.Equal(t, 3, rf.Apply(reg))

	m := New(session.New(session.DefaultOptions(), reg), quietLogger())
	out, _ := run(t, m, input{"pi.cu", src})
	got := out["pi.cu"]

	assert.Contains(t, got, "  o[0] = MY_SYCL_PI;\n")
	assert.Contains(t, got, "  float h = MY_SYCL_PI;\n")
	assert.Contains(t, got, "  int b = MY_SYCL_BLOCK;\n")
	assert.Contains(t, got, "  float m = SYCL_MAX(h, 1.0f);\n")
	// definitions keep their names; only uses are renamed
	assert.Contains(t, got, "#define MY_CUDA_PI 3.14159f\n")
	assert.Contains(t, got, "#define MY_CUDA_BLOCK 256\n")
}

func TestMigrateParseErrorOnMissingFile(t *testing.T) {
	m := newMigrator(true)
	m.paths = append(m.paths, "missing.cu")
	_, err := m.Run(context.Background())
	assert.Error(t, err)
}

func TestDeclGroups(t *testing.T) {
	src := "__device__ int a, b;\nint c;\n"
	m := newMigrator(true)
	require.NoError(t, m.AddSource("g.cu", []byte(src)))
	require.NoError(t, m.Parse(context.Background()))

	groups := declGroups(m.Units()[0].Decls)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
}
