package fft

import (
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
)

type direction int8

const (
	dirUnknown  direction = 0
	dirForward  direction = -1
	dirBackward direction = 1
)

type transform struct {
	kind Kind
	// element types of the input and output buffers
	in, out string
	// fixed direction of real transforms; complex ones take it from the call
	dir direction
}

func (t transform) real() bool { return t.kind.Domain == "REAL" }

var (
	singleReal    = Kind{Precision: "SINGLE", Domain: "REAL"}
	singleComplex = Kind{Precision: "SINGLE", Domain: "COMPLEX"}
	doubleReal    = Kind{Precision: "DOUBLE", Domain: "REAL"}
	doubleComplex = Kind{Precision: "DOUBLE", Domain: "COMPLEX"}
)

var transforms = map[string]transform{
	"CUFFT_R2C": {kind: singleReal, in: "float", out: "std::complex<float>", dir: dirForward},
	"CUFFT_C2R": {kind: singleReal, in: "std::complex<float>", out: "float", dir: dirBackward},
	"CUFFT_C2C": {kind: singleComplex, in: "std::complex<float>", out: "std::complex<float>"},
	"CUFFT_D2Z": {kind: doubleReal, in: "double", out: "std::complex<double>", dir: dirForward},
	"CUFFT_Z2D": {kind: doubleReal, in: "std::complex<double>", out: "double", dir: dirBackward},
	"CUFFT_Z2Z": {kind: doubleComplex, in: "std::complex<double>", out: "std::complex<double>"},
}

// cufftType enumerator values.
var transformValues = map[int64]string{
	0x2a: "CUFFT_R2C",
	0x2c: "CUFFT_C2R",
	0x29: "CUFFT_C2C",
	0x6a: "CUFFT_D2Z",
	0x6c: "CUFFT_Z2D",
	0x69: "CUFFT_Z2Z",
}

var execs = map[string]string{
	"cufftExecR2C": "CUFFT_R2C",
	"cufftExecC2R": "CUFFT_C2R",
	"cufftExecC2C": "CUFFT_C2C",
	"cufftExecD2Z": "CUFFT_D2Z",
	"cufftExecZ2D": "CUFFT_Z2D",
	"cufftExecZ2Z": "CUFFT_Z2Z",
}

// planShape describes where a plan call keeps its arguments. dims lists
// the extent argument indexes; many marks cufftPlanMany style calls.
type planShape struct {
	byValue bool // cufftMakePlan* take the handle by value
	dims    []int
	typ     int
	batch   int // -1 when the call has no batch argument
	many    bool
}

var plans = map[string]planShape{
	"cufftPlan1d":       {dims: []int{1}, typ: 2, batch: 3},
	"cufftPlan2d":       {dims: []int{1, 2}, typ: 3, batch: -1},
	"cufftPlan3d":       {dims: []int{1, 2, 3}, typ: 4, batch: -1},
	"cufftPlanMany":     {typ: 9, batch: 10, many: true},
	"cufftMakePlan1d":   {byValue: true, dims: []int{1}, typ: 2, batch: 3},
	"cufftMakePlan2d":   {byValue: true, dims: []int{1, 2}, typ: 3, batch: -1},
	"cufftMakePlan3d":   {byValue: true, dims: []int{1, 2, 3}, typ: 4, batch: -1},
	"cufftMakePlanMany": {byValue: true, typ: 9, batch: 10, many: true},
}

// transformOf names the cufftType spelled by e, accepting enumerators and
// their integer values.
func transformOf(e ast.Expr) (string, bool) {
	if e == nil {
		return "", false
	}
	if r, ok := ast.StripCasts(e).(*ast.DeclRef); ok {
		if _, ok := transforms[r.Name]; ok {
			return r.Name, true
		}
	}
	if v, ok := ast.IntValue(e); ok {
		name, ok := transformValues[v]
		return name, ok
	}
	return "", false
}

// directionOf reads CUFFT_FORWARD and CUFFT_INVERSE, in either spelling.
func directionOf(e ast.Expr, migrated string) direction {
	if r, ok := ast.StripCasts(e).(*ast.DeclRef); ok {
		switch r.Name {
		case "CUFFT_FORWARD":
			return dirForward
		case "CUFFT_INVERSE":
			return dirBackward
		}
	}
	if v, ok := ast.IntValue(e); ok {
		switch v {
		case -1:
			return dirForward
		case 1:
			return dirBackward
		}
	}
	switch strings.TrimSpace(migrated) {
	case "-1":
		return dirForward
	case "1":
		return dirBackward
	}
	return dirUnknown
}
