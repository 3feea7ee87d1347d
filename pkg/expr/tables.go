package expr

// builtinIndex maps CUDA built-in index variables to nd_item getters.
var builtinIndex = map[string]string{
	"threadIdx": "get_local_id",
	"blockIdx":  "get_group",
	"blockDim":  "get_local_range",
	"gridDim":   "get_group_range",
}

// dimIndex maps a component to its position in a 3-D range, where x is the
// fastest varying and therefore last.
var dimIndex = map[string]int{"x": 2, "y": 1, "z": 0}

var vectorTypes = map[string]bool{
	"char1": true, "uchar1": true, "char2": true, "uchar2": true, "char3": true, "uchar3": true,
	"char4": true, "uchar4": true, "short2": true, "ushort2": true, "short4": true, "ushort4": true,
	"int2": true, "uint2": true, "int3": true, "uint3": true, "int4": true, "uint4": true,
	"long2": true, "ulong2": true, "float2": true, "float3": true, "float4": true,
	"double2": true, "double3": true, "double4": true,
	"cufftComplex": true, "cufftDoubleComplex": true,
}

var vectorFields = map[string]bool{"x": true, "y": true, "z": true, "w": true}

// deviceProps maps cudaDeviceProp fields to dpct::device_info getters.
var deviceProps = map[string]string{
	"name":                "get_name",
	"totalGlobalMem":      "get_global_mem_size",
	"sharedMemPerBlock":   "get_local_mem_size",
	"maxThreadsPerBlock":  "get_max_work_group_size",
	"multiProcessorCount": "get_max_compute_units",
	"clockRate":           "get_max_clock_frequency",
	"major":               "get_major_version",
	"minor":               "get_minor_version",
	"warpSize":            "get_max_sub_group_size",
	"maxThreadsDim":       "get_max_work_item_sizes",
	"maxGridSize":         "get_max_nd_range_size",
	"integrated":          "get_integrated",
	"memoryClockRate":     "get_memory_clock_rate",
	"memoryBusWidth":      "get_memory_bus_width",
	"totalConstMem":       "get_global_mem_size",
}

// textureFields maps texture reference and descriptor fields to setters.
var textureFields = map[string]string{
	"addressMode":      "set",
	"filterMode":       "set",
	"normalized":       "set_coordinate_normalization_mode",
	"normalizedCoords": "set_coordinate_normalization_mode",
	"channelDesc":      "set_channel",
}

var textureTypes = map[string]bool{
	"texture":          true,
	"textureReference": true,
	"cudaTextureDesc":  true,
}

// Names of warp-level built-ins.
const warpSizeExpr = "item_ct1.get_sub_group().get_local_range().get(0)"
