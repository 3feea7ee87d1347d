package usage

import (
	"sort"

	"github.com/l3aro/cuda2sycl/pkg/ast"
)

// CallSite is one call from a device function to another.
type CallSite struct {
	Key    Key
	Callee *DeviceFunctionInfo
	// ArgParams maps each callee parameter to the caller parameter passed
	// to it unchanged, or -1.
	ArgParams []int
}

// DeviceFunctionInfo is the usage record of one logical device function.
type DeviceFunctionInfo struct {
	Key                Key
	Name               string
	ParamsNum          int
	NonDefaultParamNum int
	IsKernel           bool
	// HighDimItem is set when the body reads a y or z work-item index.
	HighDimItem bool

	Vars *MemVarMap
	// TexTypes holds, per parameter, the element type a texture object
	// parameter is read as. Nil slots are unknown.
	TexTypes []*ast.Type
	// TexDims holds the fetch dimensionality per texture parameter; 0 is
	// unknown.
	TexDims []int

	calls map[Key]*CallSite
	node  int
	built bool
}

func newFunctionInfo(key Key, name string, node int) *DeviceFunctionInfo {
	return &DeviceFunctionInfo{
		Key:   key,
		Name:  name,
		Vars:  NewMemVarMap(),
		calls: make(map[Key]*CallSite),
		node:  node,
	}
}

// Built reports whether BuildInfo has run.
func (f *DeviceFunctionInfo) Built() bool { return f.built }

// Calls returns the call sites sorted by position.
func (f *DeviceFunctionInfo) Calls() []*CallSite {
	out := make([]*CallSite, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// SetTexType records the element type of texture parameter i unless one is
// already known.
func (f *DeviceFunctionInfo) SetTexType(i int, t *ast.Type) {
	if i < 0 || t == nil {
		return
	}
	for len(f.TexTypes) <= i {
		f.TexTypes = append(f.TexTypes, nil)
	}
	if f.TexTypes[i] == nil {
		f.TexTypes[i] = t
	}
}

// TexType returns the element type of texture parameter i, or nil.
func (f *DeviceFunctionInfo) TexType(i int) *ast.Type {
	if i < 0 || i >= len(f.TexTypes) {
		return nil
	}
	return f.TexTypes[i]
}

// SetTexDim records the dimensionality texture parameter i is fetched with
// unless one is already known.
func (f *DeviceFunctionInfo) SetTexDim(i, d int) {
	if i < 0 || d <= 0 {
		return
	}
	for len(f.TexDims) <= i {
		f.TexDims = append(f.TexDims, 0)
	}
	if f.TexDims[i] == 0 {
		f.TexDims[i] = d
	}
}

// TexDim returns the fetch dimensionality of texture parameter i, or 0.
func (f *DeviceFunctionInfo) TexDim(i int) int {
	if i < 0 || i >= len(f.TexDims) {
		return 0
	}
	return f.TexDims[i]
}

// Merge folds another record of the same logical function into f. Variable
// sets are unioned, call sites merged by key and texture types filled only
// where f has none. Merging f into itself does nothing.
func (f *DeviceFunctionInfo) Merge(o *DeviceFunctionInfo) {
	if o == nil || o == f {
		return
	}
	f.Vars.Merge(o.Vars)
	for k, c := range o.calls {
		if _, ok := f.calls[k]; !ok {
			f.calls[k] = c
		}
	}
	for i, t := range o.TexTypes {
		f.SetTexType(i, t)
	}
	for i, d := range o.TexDims {
		f.SetTexDim(i, d)
	}
	if o.ParamsNum > f.ParamsNum {
		f.ParamsNum = o.ParamsNum
	}
	if o.NonDefaultParamNum > f.NonDefaultParamNum {
		f.NonDefaultParamNum = o.NonDefaultParamNum
	}
	f.IsKernel = f.IsKernel || o.IsKernel
	f.HighDimItem = f.HighDimItem || o.HighDimItem
}

type launch struct {
	kernel *DeviceFunctionInfo
	oneDim bool
}

// Graph owns every DeviceFunctionInfo of a migration run.
type Graph struct {
	funcs    map[Key]*DeviceFunctionInfo
	list     []*DeviceFunctionInfo
	launches []launch

	// union-find arena, indexed by DeviceFunctionInfo.node
	parent []int
	dim    []int
	sets   bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{funcs: make(map[Key]*DeviceFunctionInfo)}
}

// Function returns the record for key, creating it on first use.
func (g *Graph) Function(key Key, name string) *DeviceFunctionInfo {
	if f, ok := g.funcs[key]; ok {
		return f
	}
	f := newFunctionInfo(key, name, len(g.list))
	g.funcs[key] = f
	g.list = append(g.list, f)
	g.parent = append(g.parent, f.node)
	g.dim = append(g.dim, 0)
	g.sets = false
	return f
}

// Lookup returns the record for key, or nil.
func (g *Graph) Lookup(key Key) *DeviceFunctionInfo { return g.funcs[key] }

// Functions returns every record in creation order.
func (g *Graph) Functions() []*DeviceFunctionInfo { return g.list }

// Register creates or updates the record of a function declaration.
// Redeclarations that share a key are merged into one record.
func (g *Graph) Register(key Key, fn *ast.FunctionDecl) *DeviceFunctionInfo {
	f := g.Function(key, fn.Name)
	if n := len(fn.Params); n > f.ParamsNum {
		f.ParamsNum = n
	}
	if n := fn.NonDefaultParams(); n > f.NonDefaultParamNum {
		f.NonDefaultParamNum = n
	}
	f.IsKernel = f.IsKernel || fn.IsKernel()
	return f
}

// AddVar records that f references v directly.
func (g *Graph) AddVar(f *DeviceFunctionInfo, v VarInfo) *VarInfo {
	return f.Vars.Add(v)
}

// AddCall records a call from caller to callee at site.
func (g *Graph) AddCall(caller, callee *DeviceFunctionInfo, site Key, argParams []int) {
	if c, ok := caller.calls[site]; ok {
		if c.ArgParams == nil {
			c.ArgParams = argParams
		}
		return
	}
	caller.calls[site] = &CallSite{Key: site, Callee: callee, ArgParams: argParams}
	g.sets = false
}

// AddLaunch records a kernel launch. oneDim is set when both the grid and
// block configuration are literally one-dimensional.
func (g *Graph) AddLaunch(kernel *DeviceFunctionInfo, oneDim bool) {
	g.launches = append(g.launches, launch{kernel: kernel, oneDim: oneDim})
	g.sets = false
}

func (g *Graph) find(i int) int {
	root := i
	for g.parent[root] != root {
		root = g.parent[root]
	}
	for g.parent[i] != root {
		next := g.parent[i]
		g.parent[i] = root
		i = next
	}
	return root
}

func (g *Graph) union(a, b int) {
	ra, rb := g.find(a), g.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	g.parent[rb] = ra
	if g.dim[rb] > g.dim[ra] {
		g.dim[ra] = g.dim[rb]
	}
}

// BuildUnionFindSet groups functions connected by calls and decides the
// work-item dimensionality of every group: 1 when every launch reaching
// the group is one-dimensional and nothing reads a y or z index, else 3.
func (g *Graph) BuildUnionFindSet() {
	for i := range g.parent {
		g.parent[i] = i
		g.dim[i] = 0
	}
	for _, f := range g.list {
		for _, c := range f.calls {
			g.union(f.node, c.Callee.node)
		}
	}
	raise := func(node, d int) {
		r := g.find(node)
		if d > g.dim[r] {
			g.dim[r] = d
		}
	}
	for _, l := range g.launches {
		d := 3
		if l.oneDim {
			d = 1
		}
		raise(l.kernel.node, d)
	}
	for _, f := range g.list {
		if f.HighDimItem {
			raise(f.node, 3)
		}
	}
	g.sets = true
}

// Dim returns the work-item dimensionality of f's group.
func (g *Graph) Dim(f *DeviceFunctionInfo) int {
	if !g.sets {
		g.BuildUnionFindSet()
	}
	if d := g.dim[g.find(f.node)]; d > 0 {
		return d
	}
	return 3
}

// SameSet reports whether a and b ended up in one group.
func (g *Graph) SameSet(a, b *DeviceFunctionInfo) bool {
	if !g.sets {
		g.BuildUnionFindSet()
	}
	return g.find(a.node) == g.find(b.node)
}

// BuildInfo finalizes f: every callee is built first, then its usage set and
// texture bindings are pulled into f. The built flag is set before
// recursing, so a cycle stops at the first function seen twice. emit, when
// not nil, runs once per function after it is complete.
func (g *Graph) BuildInfo(f *DeviceFunctionInfo, emit func(*DeviceFunctionInfo)) {
	if f == nil || f.built {
		return
	}
	f.built = true
	for _, c := range f.Calls() {
		g.BuildInfo(c.Callee, emit)
		f.Vars.Merge(c.Callee.Vars)
		for i, p := range c.ArgParams {
			if p >= 0 {
				f.SetTexType(p, c.Callee.TexType(i))
				f.SetTexDim(p, c.Callee.TexDim(i))
			}
		}
	}
	f.Vars.RemoveDuplicateVar()
	if emit != nil {
		emit(f)
	}
}

// BuildAll finalizes every function in creation order.
func (g *Graph) BuildAll(emit func(*DeviceFunctionInfo)) {
	for _, f := range g.list {
		g.BuildInfo(f, emit)
	}
}

// ResetBuilt clears the built flags so a new round can finalize again.
func (g *Graph) ResetBuilt() {
	for _, f := range g.list {
		f.built = false
	}
}

// Reset drops every record.
func (g *Graph) Reset() {
	*g = *NewGraph()
}
