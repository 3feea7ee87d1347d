// Package usage tracks which device variables every device function touches
// and propagates that set up the call graph to kernel launch sites.
package usage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reserved names of parameters injected into every migrated kernel.
const (
	ItemName   = "item_ct1"
	StreamName = "stream_ct1"
	LocalName  = "dpct_local"
)

var reserved = map[string]bool{ItemName: true, StreamName: true, LocalName: true}

// Key identifies a declaration by its spelling position.
type Key struct {
	Path   string
	Offset uint32
}

func (k Key) String() string { return k.Path + ":" + strconv.FormatUint(uint64(k.Offset), 10) }

func (k Key) less(o Key) bool {
	if k.Path != o.Path {
		return k.Path < o.Path
	}
	return k.Offset < o.Offset
}

// VarKind is the memory kind of a device variable.
type VarKind uint8

const (
	Global VarKind = iota
	Constant
	Managed
	Shared
	ExternShared
	Texture
)

func (k VarKind) String() string {
	switch k {
	case Global:
		return "global"
	case Constant:
		return "constant"
	case Managed:
		return "managed"
	case Shared:
		return "shared"
	case ExternShared:
		return "extern_shared"
	case Texture:
		return "texture"
	}
	return "unknown"
}

// Category is one of the four partitions of a usage set.
type Category uint8

const (
	GlobalVars Category = iota
	LocalVars
	ExternVars
	TextureVars
	numCategories
)

// Category returns the partition variables of kind k live in.
func (k VarKind) Category() Category {
	switch k {
	case Shared:
		return LocalVars
	case ExternShared:
		return ExternVars
	case Texture:
		return TextureVars
	}
	return GlobalVars
}

// VarInfo describes one device variable.
type VarInfo struct {
	Key  Key
	Name string
	Kind VarKind
	// Type is the migrated element type spelling.
	Type string
	// Sizes holds the spelled extent of every array dimension.
	Sizes []string
	// TexDim is the dimensionality of a texture reference.
	TexDim int

	display string
}

// Dims returns the number of array dimensions; 0 for scalars.
func (v *VarInfo) Dims() int { return len(v.Sizes) }

// DisplayName is the name after de-duplication.
func (v *VarInfo) DisplayName() string {
	if v.display != "" {
		return v.display
	}
	return v.Name
}

func (v *VarInfo) space() string {
	switch v.Kind {
	case Constant:
		return "dpct::constant"
	case Shared:
		return "dpct::local"
	}
	return "dpct::global"
}

// Param returns the declaration of the kernel parameter carrying v.
func (v *VarInfo) Param() string {
	name := v.DisplayName()
	switch {
	case v.Kind == Texture:
		return fmt.Sprintf("dpct::image_accessor_ext<%s, %d> %s", v.Type, v.TexDim, name)
	case v.Dims() >= 2:
		return fmt.Sprintf("dpct::accessor<%s, %s, %d> %s", v.Type, v.space(), v.Dims(), name)
	}
	return v.Type + " *" + name
}

// Decl returns the statements declaring v's accessor inside a command
// group. usm selects pointer access for global memory.
func (v *VarInfo) Decl(usm bool) []string {
	name := v.DisplayName()
	switch v.Kind {
	case Texture:
		return []string{
			fmt.Sprintf("auto %s_acc = %s.get_access(cgh);", name, v.Name),
			fmt.Sprintf("auto %s_smpl = %s.get_sampler();", name, v.Name),
		}
	case Shared:
		if v.Dims() == 0 {
			return []string{fmt.Sprintf("sycl::local_accessor<%s, 0> %s_acc_ct1(cgh);", v.Type, name)}
		}
		return []string{fmt.Sprintf("sycl::local_accessor<%s, %d> %s_acc_ct1(sycl::range<%d>(%s), cgh);",
			v.Type, v.Dims(), name, v.Dims(), strings.Join(v.Sizes, ", "))}
	}
	if usm && v.Dims() < 2 {
		return []string{fmt.Sprintf("auto %s_ptr_ct1 = %s.get_ptr();", name, v.Name)}
	}
	return []string{fmt.Sprintf("auto %s_acc_ct1 = %s.get_access(cgh);", name, v.Name)}
}

// Arg returns the expression passed for v at a kernel dispatch.
func (v *VarInfo) Arg(usm bool) string {
	name := v.DisplayName()
	switch {
	case v.Kind == Texture:
		return fmt.Sprintf("dpct::image_accessor_ext<%s, %d>(%s_smpl, %s_acc)", v.Type, v.TexDim, name, name)
	case v.Dims() >= 2:
		return name + "_acc_ct1"
	case v.Kind == Shared:
		return name + "_acc_ct1.get_multi_ptr<sycl::access::decorated::no>().get()"
	case usm:
		return name + "_ptr_ct1"
	}
	return name + "_acc_ct1.get_multi_ptr<sycl::access::decorated::no>().get()"
}

// MemVarMap is the usage set of one device function: four partitions keyed
// by declaration, plus flags for the injected work-item and stream.
type MemVarMap struct {
	vars [numCategories]map[Key]*VarInfo
	// Item is set when the work-item object is needed.
	Item bool
	// Stream is set when device printf streams to a sycl::stream.
	Stream bool
}

// NewMemVarMap creates an empty usage set.
func NewMemVarMap() *MemVarMap {
	m := &MemVarMap{}
	for i := range m.vars {
		m.vars[i] = make(map[Key]*VarInfo)
	}
	return m
}

// Add records v. The first record of a key wins.
func (m *MemVarMap) Add(v VarInfo) *VarInfo {
	part := m.vars[v.Kind.Category()]
	if cur, ok := part[v.Key]; ok {
		return cur
	}
	v.display = ""
	part[v.Key] = &v
	return &v
}

// Lookup returns the entry for key in any partition.
func (m *MemVarMap) Lookup(key Key) *VarInfo {
	for _, part := range m.vars {
		if v, ok := part[key]; ok {
			return v
		}
	}
	return nil
}

// Len returns the number of variables over all partitions.
func (m *MemVarMap) Len() int {
	n := 0
	for _, part := range m.vars {
		n += len(part)
	}
	return n
}

// Empty reports whether the function needs no injected parameter.
func (m *MemVarMap) Empty() bool {
	return !m.Item && !m.Stream && m.Len() == 0
}

// Merge adds every variable of o that m lacks. Merging a map into itself
// does nothing.
func (m *MemVarMap) Merge(o *MemVarMap) {
	if o == nil || o == m {
		return
	}
	m.Item = m.Item || o.Item
	m.Stream = m.Stream || o.Stream
	for c, part := range o.vars {
		for k, v := range part {
			if _, ok := m.vars[c][k]; ok {
				continue
			}
			cp := *v
			cp.display = ""
			cp.Sizes = append([]string(nil), v.Sizes...)
			m.vars[c][k] = &cp
		}
	}
}

// Vars returns one partition sorted by key.
func (m *MemVarMap) Vars(c Category) []*VarInfo {
	out := make([]*VarInfo, 0, len(m.vars[c]))
	for _, v := range m.vars[c] {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// ordered lists variables in parameter order: globals, locals, textures.
// Extern shared variables share the single dpct_local parameter.
func (m *MemVarMap) ordered() []*VarInfo {
	var out []*VarInfo
	out = append(out, m.Vars(GlobalVars)...)
	out = append(out, m.Vars(LocalVars)...)
	out = append(out, m.Vars(TextureVars)...)
	return out
}

// RemoveDuplicateVar gives every variable a display name unique across all
// partitions and distinct from the reserved injected names.
func (m *MemVarMap) RemoveDuplicateVar() {
	used := make(map[string]bool, len(reserved)+m.Len())
	for n := range reserved {
		used[n] = true
	}
	var all []*VarInfo
	for c := Category(0); c < numCategories; c++ {
		all = append(all, m.Vars(c)...)
	}
	for _, v := range all {
		name := v.Name
		for i := 1; used[name]; i++ {
			name = fmt.Sprintf("%s_ct%d", v.Name, i)
		}
		used[name] = true
		v.display = name
	}
}

// ExtraParams lists the parameters a migrated device function gains.
func (m *MemVarMap) ExtraParams(dim int) []string {
	var out []string
	if m.Item {
		out = append(out, fmt.Sprintf("const sycl::nd_item<%d> &%s", dim, ItemName))
	}
	if m.Stream {
		out = append(out, "const sycl::stream &"+StreamName)
	}
	if len(m.vars[ExternVars]) > 0 {
		out = append(out, "uint8_t *"+LocalName)
	}
	for _, v := range m.ordered() {
		out = append(out, v.Param())
	}
	return out
}

// CallArgs lists the extra arguments m's function passes when it calls a
// device function whose usage set is callee. m must already hold callee's
// variables.
func (m *MemVarMap) CallArgs(callee *MemVarMap) []string {
	var out []string
	if callee.Item {
		out = append(out, ItemName)
	}
	if callee.Stream {
		out = append(out, StreamName)
	}
	if len(callee.vars[ExternVars]) > 0 {
		out = append(out, LocalName)
	}
	for _, v := range callee.ordered() {
		name := v.Name
		if own := m.Lookup(v.Key); own != nil {
			name = own.DisplayName()
		}
		out = append(out, name)
	}
	return out
}

// LaunchDecls lists the command-group declarations a kernel dispatch needs.
// localSize is the dynamic shared memory byte count expression.
func (m *MemVarMap) LaunchDecls(usm bool, localSize string) []string {
	var out []string
	if m.Stream {
		out = append(out, "sycl::stream "+StreamName+"(64 * 1024, 80, cgh);")
	}
	if len(m.vars[ExternVars]) > 0 {
		if localSize == "" {
			localSize = "0"
		}
		out = append(out, fmt.Sprintf("sycl::local_accessor<uint8_t, 1> %s_acc_ct1(sycl::range<1>(%s), cgh);", LocalName, localSize))
	}
	for _, v := range m.ordered() {
		out = append(out, v.Decl(usm)...)
	}
	return out
}

// LaunchArgs lists the extra arguments of the kernel call inside the
// dispatch lambda.
func (m *MemVarMap) LaunchArgs(usm bool) []string {
	var out []string
	if m.Item {
		out = append(out, ItemName)
	}
	if m.Stream {
		out = append(out, StreamName)
	}
	if len(m.vars[ExternVars]) > 0 {
		out = append(out, LocalName+"_acc_ct1.get_multi_ptr<sycl::access::decorated::no>().get()")
	}
	for _, v := range m.ordered() {
		out = append(out, v.Arg(usm))
	}
	return out
}

// NeedsCommandGroup reports whether the dispatch has to be wrapped in a
// submit block.
func (m *MemVarMap) NeedsCommandGroup(usm bool) bool {
	return len(m.LaunchDecls(usm, "")) > 0
}
