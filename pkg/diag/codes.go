package diag

import (
	"fmt"
	"strconv"
	"strings"
)

// Code identifies a migration diagnostic.
type Code uint16

const (
	UnknownCode Code = 0

	// API and rule level
	UnsupportedAPI    Code = 1000
	ErrorCodeReplaced Code = 1003
	UnsupportedMacro  Code = 1004
	UserRuleApplied   Code = 1005

	// Kernel launch
	KernelParamSizeExceeded Code = 1010
	DimensionExceedsMax     Code = 1011
	DoublePointerInBuffer   Code = 1012
	LaunchInDeviceCode      Code = 1013
	FlowControlRestructured Code = 1014
	TextureTypeUnresolved   Code = 1015

	// Templates
	TemplateArgNotDeducible Code = 1020

	// Libraries
	RNGVecSizeUndeducible    Code = 1030
	FFTPrecisionUndeducible  Code = 1031
	FFTInPlaceHeuristic      Code = 1032
	FFTDirectionUnknown      Code = 1033
	FFTPlanManyRankUnknown   Code = 1034
	RNGEngineTypeUnsupported Code = 1035

	// Source coordinates
	MacroStraddlesExpansion Code = 1040
)

type entry struct {
	sev    Severity
	format string
}

var catalog = map[Code]entry{
	UnsupportedAPI:           {SevWarning, "{0} is not supported in the target API and was not migrated."},
	ErrorCodeReplaced:        {SevInfo, "The call was replaced with 0 because {0} has no error code in the target API."},
	UnsupportedMacro:         {SevWarning, "Macro {0} could not be migrated."},
	UserRuleApplied:          {SevInfo, "Rule {0} from {1} was applied."},
	KernelParamSizeExceeded:  {SevWarning, "Kernel {0} passes {1} bytes of arguments, which exceeds the {2}-byte limit."},
	DimensionExceedsMax:      {SevWarning, "{0} has {1} dimensions; at most {2} are supported."},
	DoublePointerInBuffer:    {SevWarning, "Argument {0} of kernel {1} is a pointer to pointer and cannot be wrapped as a buffer accessor."},
	LaunchInDeviceCode:       {SevWarning, "Kernel launch of {0} inside device code is not supported."},
	FlowControlRestructured:  {SevInfo, "Code around {0} was restructured; verify that control flow is preserved."},
	TextureTypeUnresolved:    {SevWarning, "The element type of texture object {0} could not be determined. Fix the type manually."},
	TemplateArgNotDeducible:  {SevWarning, "Template argument {0} of {1} could not be deduced. Fix the type manually."},
	RNGVecSizeUndeducible:    {SevWarning, "The vector size of the {0} engine could not be deduced; observed sizes: {1}. Fix the vec_size manually."},
	FFTPrecisionUndeducible:  {SevWarning, "The precision and domain of FFT plan {0} could not be deduced. Fix them manually."},
	FFTInPlaceHeuristic:      {SevInfo, "{0} was treated as in-place because the input and output expressions are textually equal."},
	FFTDirectionUnknown:      {SevInfo, "The direction of {0} is only known at run time; both directions were emitted."},
	FFTPlanManyRankUnknown:   {SevWarning, "The rank of {0} is not a constant. Fix the dimensions manually."},
	RNGEngineTypeUnsupported: {SevWarning, "Engine type {0} is not supported."},
	MacroStraddlesExpansion:  {SevInfo, "The rewritten expression straddles a macro expansion boundary; the macro invocation {0} was rewritten instead of its body."},
}

// ID renders the code as it appears in reports and inline comments.
func (c Code) ID() string {
	return "C2S" + strconv.Itoa(int(c))
}

func (c Code) String() string {
	return c.ID()
}

// DefaultSeverity returns the catalog severity of c.
func (c Code) DefaultSeverity() Severity {
	if e, ok := catalog[c]; ok {
		return e.sev
	}
	return SevWarning
}

// Format fills the catalog message for c with positional arguments.
func Format(c Code, args ...string) string {
	e, ok := catalog[c]
	if !ok {
		return fmt.Sprintf("%s: %s", c.ID(), strings.Join(args, ", "))
	}
	msg := e.format
	for i, a := range args {
		msg = strings.ReplaceAll(msg, "{"+strconv.Itoa(i)+"}", a)
	}
	return msg
}

// Codes returns all catalog codes.
func Codes() []Code {
	out := make([]Code, 0, len(catalog))
	for c := range catalog {
		out = append(out, c)
	}
	return out
}
