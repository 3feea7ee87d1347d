package scanner

import (
	"strings"
)

// Kind classifies a source file for migration.
type Kind string

const (
	KindCUDA       Kind = "cuda"        // .cu
	KindCUDAHeader Kind = "cuda-header" // .cuh
	KindCXX        Kind = "cxx"         // host C/C++ sources
	KindHeader     Kind = "header"      // host C/C++ headers
)

var kindMap = map[string]Kind{
	".cu":  KindCUDA,
	".cuh": KindCUDAHeader,
	".c":   KindCXX,
	".cc":  KindCXX,
	".cpp": KindCXX,
	".cxx": KindCXX,
	".h":   KindHeader,
	".hh":  KindHeader,
	".hpp": KindHeader,
	".hxx": KindHeader,
	".inc": KindHeader,
}

// DetectKind returns the kind of a file with the given extension, or "" when
// it is not C, C++ or CUDA.
func DetectKind(ext string) Kind {
	return kindMap[strings.ToLower(ext)]
}

// IsHeader reports whether k is only reached through #include.
func (k Kind) IsHeader() bool {
	return k == KindCUDAHeader || k == KindHeader
}
