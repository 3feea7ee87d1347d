package rules

import (
	"strings"
)

const builtinOrigin = "builtin"

var mathRenames = map[string][2]string{
	"sqrtf":  {"sycl::sqrt", "float"},
	"sqrt":   {"sycl::sqrt", "double"},
	"rsqrtf": {"sycl::rsqrt", "float"},
	"rsqrt":  {"sycl::rsqrt", "double"},
	"expf":   {"sycl::exp", "float"},
	"exp":    {"sycl::exp", "double"},
	"exp2f":  {"sycl::exp2", "float"},
	"logf":   {"sycl::log", "float"},
	"log":    {"sycl::log", "double"},
	"log2f":  {"sycl::log2", "float"},
	"log10f": {"sycl::log10", "float"},
	"sinf":   {"sycl::sin", "float"},
	"sin":    {"sycl::sin", "double"},
	"cosf":   {"sycl::cos", "float"},
	"cos":    {"sycl::cos", "double"},
	"tanf":   {"sycl::tan", "float"},
	"tanhf":  {"sycl::tanh", "float"},
	"powf":   {"sycl::pow", "float"},
	"pow":    {"sycl::pow", "double"},
	"fabsf":  {"sycl::fabs", "float"},
	"fabs":   {"sycl::fabs", "double"},
	"fminf":  {"sycl::fmin", "float"},
	"fmaxf":  {"sycl::fmax", "float"},
	"floorf": {"sycl::floor", "float"},
	"floor":  {"sycl::floor", "double"},
	"ceilf":  {"sycl::ceil", "float"},
	"ceil":   {"sycl::ceil", "double"},
	"fmaf":   {"sycl::fma", "float"},
	"erff":   {"sycl::erf", "float"},
	"__expf": {"sycl::native::exp", "float"},
	"__logf": {"sycl::native::log", "float"},
	"__sinf": {"sycl::native::sin", "float"},
	"__cosf": {"sycl::native::cos", "float"},
}

var plainRenames = map[string]string{
	"min":          "sycl::min",
	"max":          "sycl::max",
	"abs":          "sycl::abs",
	"make_float2":  "sycl::float2",
	"make_float3":  "sycl::float3",
	"make_float4":  "sycl::float4",
	"make_double2": "sycl::double2",
	"make_int2":    "sycl::int2",
	"make_int3":    "sycl::int3",
	"make_int4":    "sycl::int4",
	"make_uint2":   "sycl::uint2",
	"make_uint4":   "sycl::uint4",
	"make_uchar4":  "sycl::uchar4",
}

var atomics = map[string]string{
	"atomicAdd":  "dpct::atomic_fetch_add",
	"atomicSub":  "dpct::atomic_fetch_sub",
	"atomicMin":  "dpct::atomic_fetch_min",
	"atomicMax":  "dpct::atomic_fetch_max",
	"atomicAnd":  "dpct::atomic_fetch_and",
	"atomicOr":   "dpct::atomic_fetch_or",
	"atomicXor":  "dpct::atomic_fetch_xor",
	"atomicExch": "dpct::atomic_exchange",
	"atomicCAS":  "dpct::atomic_compare_exchange_strong",
	"atomicInc":  "dpct::atomic_fetch_compare_inc",
}

// BuiltinTypes maps CUDA type names to their target spelling.
var BuiltinTypes = map[string]string{
	"char1":   "int8_t",
	"uchar1":  "uint8_t",
	"char2":   "sycl::char2",
	"uchar2":  "sycl::uchar2",
	"char4":   "sycl::char4",
	"uchar4":  "sycl::uchar4",
	"short2":  "sycl::short2",
	"ushort2": "sycl::ushort2",
	"short4":  "sycl::short4",
	"ushort4": "sycl::ushort4",
	"int2":    "sycl::int2",
	"uint2":   "sycl::uint2",
	"int3":    "sycl::int3",
	"uint3":   "sycl::uint3",
	"int4":    "sycl::int4",
	"uint4":   "sycl::uint4",
	"float2":  "sycl::float2",
	"float3":  "sycl::float3",
	"float4":  "sycl::float4",
	"double2": "sycl::double2",
	"double3": "sycl::double3",
	"double4": "sycl::double4",

	"dim3":                  "sycl::range<3>",
	"cudaStream_t":          "dpct::queue_ptr",
	"cudaEvent_t":           "dpct::event_ptr",
	"cudaError_t":           "dpct::err0",
	"cudaError":             "dpct::err0",
	"cudaDeviceProp":        "dpct::device_info",
	"cudaTextureObject_t":   "dpct::image_wrapper_base_p",
	"cudaMemcpyKind":        "dpct::memcpy_direction",
	"cudaChannelFormatDesc": "dpct::image_channel",
	"cudaArray_t":           "dpct::image_matrix_p",
	"cudaTextureDesc":       "dpct::sampling_info",
	"cudaResourceDesc":      "dpct::image_data",

	"cufftResult":        "int",
	"cufftResult_t":      "int",
	"cufftType":          "int",
	"cufftType_t":        "int",
	"cufftComplex":       "sycl::float2",
	"cufftDoubleComplex": "sycl::double2",
	"cufftReal":          "float",
	"cufftDoubleReal":    "double",
	"curandStatus_t":     "int",
	"curandGenerator_t":  "dpct::rng::host_rng_ptr",
	"curandRngType_t":    "dpct::rng::random_engine_type",
}

// BuiltinEnums maps CUDA enumerators to their target spelling.
var BuiltinEnums = map[string]string{
	"cudaSuccess":               "0",
	"cudaErrorInvalidValue":     "1",
	"cudaErrorMemoryAllocation": "2",
	"cudaMemcpyHostToHost":      "dpct::host_to_host",
	"cudaMemcpyHostToDevice":    "dpct::host_to_device",
	"cudaMemcpyDeviceToHost":    "dpct::device_to_host",
	"cudaMemcpyDeviceToDevice":  "dpct::device_to_device",
	"cudaMemcpyDefault":         "dpct::automatic",
	"cudaAddressModeClamp":      "sycl::addressing_mode::clamp_to_edge",
	"cudaAddressModeWrap":       "sycl::addressing_mode::repeat",
	"cudaAddressModeMirror":     "sycl::addressing_mode::mirrored_repeat",
	"cudaAddressModeBorder":     "sycl::addressing_mode::clamp",
	"cudaFilterModePoint":       "sycl::filtering_mode::nearest",
	"cudaFilterModeLinear":      "sycl::filtering_mode::linear",

	"CUFFT_SUCCESS":                   "0",
	"CUFFT_FORWARD":                   "-1",
	"CUFFT_INVERSE":                   "1",
	"CURAND_STATUS_SUCCESS":           "0",
	"CURAND_RNG_PSEUDO_DEFAULT":       "dpct::rng::random_engine_type::mcg59",
	"CURAND_RNG_PSEUDO_XORWOW":        "dpct::rng::random_engine_type::mcg59",
	"CURAND_RNG_PSEUDO_MRG32K3A":      "dpct::rng::random_engine_type::mrg32k3a",
	"CURAND_RNG_PSEUDO_PHILOX4_32_10": "dpct::rng::random_engine_type::philox4x32x10",
	"CURAND_RNG_PSEUDO_MT19937":       "dpct::rng::random_engine_type::mt19937",
	"CURAND_RNG_PSEUDO_MTGP32":        "dpct::rng::random_engine_type::mt2203",
	"CURAND_RNG_QUASI_SOBOL32":        "dpct::rng::random_engine_type::sobol",
}

// RegisterBuiltins installs the built-in rule set at Default priority.
func RegisterBuiltins(r *Registry) {
	reg := func(name string, f Factory) { r.Register(name, Default, builtinOrigin, f) }
	regItem := func(name string, f Factory) { r.RegisterItem(name, Default, builtinOrigin, f) }
	status := func(name string, f Factory) { reg(name, WithAssignable(f)) }

	for name, m := range mathRenames {
		reg(name, RenameCast(m[0], m[1]))
	}
	for name, to := range plainRenames {
		reg(name, RenameTo(to))
	}
	reg("__fdividef", Output("($1 / $2)"))
	reg("__saturatef", Output("sycl::clamp<float>($1, 0.0f, 1.0f)"))

	for name, to := range atomics {
		reg(name, atomicFactory(to))
	}

	// memory management
	status("cudaMalloc", Conditional(IsUSM,
		Output("$deref($1) = ($deref_type($1))sycl::malloc_device($2, $queue)"),
		Output("$deref($1) = ($deref_type($1))dpct::dpct_malloc($2)")))
	status("cudaMallocHost", Output("$deref($1) = ($deref_type($1))sycl::malloc_host($2, $queue)"))
	status("cudaHostAlloc", Output("$deref($1) = ($deref_type($1))sycl::malloc_host($2, $queue)"))
	status("cudaMallocManaged", Output("$deref($1) = ($deref_type($1))sycl::malloc_shared($2, $queue)"))
	status("cudaFree", Conditional(IsUSM, Output("sycl::free($1, $queue)"), Output("dpct::dpct_free($1)")))
	status("cudaFreeHost", Output("sycl::free($1, $queue)"))
	status("cudaMemcpy", Conditional(IsUSM,
		Output("$queue.memcpy($1, $2, $3).wait()"),
		Output("dpct::dpct_memcpy($1, $2, $3, $4)")))
	status("cudaMemcpyAsync", Conditional(IsUSM, streamCall(4, "memcpy($1, $2, $3)"),
		Output("dpct::async_dpct_memcpy($1, $2, $3, $4)")))
	status("cudaMemset", Conditional(IsUSM,
		Output("$queue.memset($1, $2, $3).wait()"),
		Output("dpct::dpct_memset($1, $2, $3)")))
	status("cudaMemsetAsync", Conditional(IsUSM, streamCall(3, "memset($1, $2, $3)"),
		Output("dpct::async_dpct_memset($1, $2, $3)")))
	status("cudaMemcpyToSymbol", Conditional(IsUSM,
		Output("$queue.memcpy($1.get_ptr(), $2, $3).wait()"),
		Output("dpct::dpct_memcpy($1.get_ptr(), $2, $3)")))
	status("cudaMemcpyFromSymbol", Conditional(IsUSM,
		Output("$queue.memcpy($1, $2.get_ptr(), $3).wait()"),
		Output("dpct::dpct_memcpy($1, $2.get_ptr(), $3)")))
	status("cudaMemGetInfo", Output("$device.get_memory_info($deref($1), $deref($2))"))

	// synchronization
	status("cudaDeviceSynchronize", Output("$device.queues_wait_and_throw()"))
	status("cudaThreadSynchronize", Output("$device.queues_wait_and_throw()"))
	status("cudaStreamSynchronize", streamCall(0, "wait()"))
	regItem("__syncthreads", Output("item_ct1.barrier()"))
	regItem("__syncwarp", Output("item_ct1.get_sub_group().barrier()"))
	reg("__threadfence", Output("sycl::atomic_fence(sycl::memory_order::acq_rel, sycl::memory_scope::device)"))
	reg("__threadfence_block", Output("sycl::atomic_fence(sycl::memory_order::acq_rel, sycl::memory_scope::work_group)"))
	regItem("__shfl_sync", Output("dpct::select_from_sub_group(item_ct1.get_sub_group(), $2, $3)"))
	regItem("__shfl_down_sync", Output("dpct::shift_sub_group_left(item_ct1.get_sub_group(), $2, $3)"))
	regItem("__shfl_up_sync", Output("dpct::shift_sub_group_right(item_ct1.get_sub_group(), $2, $3)"))
	regItem("__shfl_xor_sync", Output("dpct::permute_sub_group_by_xor(item_ct1.get_sub_group(), $2, $3)"))

	// streams and events
	status("cudaStreamCreate", Output("$deref($1) = $device.create_queue()"))
	status("cudaStreamDestroy", Output("$device.destroy_queue($1)"))
	status("cudaEventCreate", Output("$deref($1) = new sycl::event()"))
	status("cudaEventDestroy", Output("dpct::destroy_event($1)"))
	status("cudaEventRecord", func(ctx *CallContext) Rewriter {
		return Func(func() (string, bool) {
			if ctx.NumArgs() < 1 {
				return "", false
			}
			return "*" + paren(ctx.Arg(0)) + " = " + ctx.QueueMember(1) + "ext_oneapi_submit_barrier()", true
		})
	})
	status("cudaEventSynchronize", Output("$1->wait_and_throw()"))
	status("cudaEventElapsedTime", Output("$deref($1) = ($3->get_profiling_info<sycl::info::event_profiling::command_end>() - $2->get_profiling_info<sycl::info::event_profiling::command_start>()) / 1000000.0f"))

	// error handling
	reg("cudaGetLastError", Output("0"))
	reg("cudaPeekAtLastError", Output("0"))
	reg("cudaGetErrorString", Output("dpct::get_error_string_dummy($1)"))
	reg("cudaGetErrorName", Output("dpct::get_error_string_dummy($1)"))

	// device management
	status("cudaSetDevice", Output("dpct::select_device($1)"))
	status("cudaGetDevice", AssignTo(0, "dpct::get_current_device_id()"))
	status("cudaGetDeviceCount", AssignTo(0, "dpct::device_count()"))
	status("cudaGetDeviceProperties", Output("dpct::get_device($2).get_device_info($deref($1))"))
	status("cudaDeviceReset", Output("$device.reset()"))
	reg("cudaSetDeviceFlags", Removed())
	reg("cudaDeviceSetCacheConfig", UnsupportedAPI())
	reg("cudaFuncSetCacheConfig", UnsupportedAPI())
	reg("cudaDeviceSetLimit", UnsupportedAPI())
	reg("cudaProfilerStart", Removed())
	reg("cudaProfilerStop", Removed())

	// textures
	for _, name := range []string{"tex1D", "tex2D", "tex3D", "tex1Dfetch", "tex2DLayered"} {
		reg(name, textureFetch())
	}
	status("cudaDestroyTextureObject", Output("delete $1"))

	// device printf
	reg("printf", Conditional(InDevice, devicePrintf(), nil))

	for name, to := range BuiltinTypes {
		r.RegisterName(KindType, name, to, Default, builtinOrigin)
	}
	for name, to := range BuiltinEnums {
		r.RegisterName(KindEnum, name, to, Default, builtinOrigin)
	}
}

// atomicFactory builds name<generic_space>(ptr, args...) keeping any
// explicitly written type argument.
func atomicFactory(callee string) Factory {
	return func(ctx *CallContext) Rewriter {
		targs := []string{"sycl::access::address_space::generic_space"}
		for _, a := range ctx.TemplateArgs() {
			targs = append(targs, a.String())
		}
		return &Templated{Ctx: ctx, Callee: callee, TemplateArgs: targs}
	}
}

// streamCall calls a queue method on the stream passed in argument idx.
func streamCall(idx int, method string) Factory {
	t := MustParseTemplate(method)
	return func(ctx *CallContext) Rewriter {
		return Func(func() (string, bool) {
			body, ok := t.Eval(ctx)
			if !ok {
				return "", false
			}
			return ctx.QueueMember(idx) + body, true
		})
	}
}

// textureFetch turns texND(obj, coords...) into obj.read(coords...).
func textureFetch() Factory {
	return func(ctx *CallContext) Rewriter {
		if ctx.NumArgs() < 2 {
			return nil
		}
		return Func(func() (string, bool) {
			return paren(ctx.Arg(0)) + ".read(" + ctx.JoinArgs(1) + ")", true
		})
	}
}

// devicePrintf streams a literal-only printf and forwards formatted ones to
// the experimental printf extension.
func devicePrintf() Factory {
	return func(ctx *CallContext) Rewriter {
		return Func(func() (string, bool) {
			if ctx.NumArgs() == 1 && strings.HasPrefix(strings.TrimSpace(ctx.Arg(0)), "\"") {
				return "stream_ct1 << " + ctx.Arg(0), true
			}
			return "sycl::ext::oneapi::experimental::printf(" + ctx.JoinArgs(0) + ")", true
		})
	}
}

// PrintfUsesStream reports whether a device printf with these arguments is
// rewritten onto the kernel stream.
func PrintfUsesStream(args []string) bool {
	return len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "\"")
}
