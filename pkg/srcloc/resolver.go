// Package srcloc turns front-end ranges, which may sit inside one or more
// macro expansions, into stable file regions that replacements can anchor to.
package srcloc

import (
	"github.com/l3aro/cuda2sycl/pkg/source"
)

// Sentinel is the offset of a region that could not be resolved.
const Sentinel = ^uint32(0)

// Region is a resolved, rewritable byte region.
type Region struct {
	File   source.FileID
	Path   string
	Offset uint32
	Length uint32
	// Prefix and Postfix hold text of adjoining empty macros folded into the
	// region. A rewrite of the region must re-emit them around the new core.
	Prefix  string
	Postfix string
	// Straddled is set when the range crossed a macro expansion boundary and
	// the region falls back to the invocation of the outermost expansion.
	Straddled bool
	Valid     bool
}

// End returns the first offset after the region.
func (r Region) End() uint32 { return r.Offset + r.Length }

// CoreStart returns the start of the region without the folded prefix.
func (r Region) CoreStart() uint32 { return r.Offset + uint32(len(r.Prefix)) }

// CoreEnd returns the end of the region without the folded postfix.
func (r Region) CoreEnd() uint32 { return r.End() - uint32(len(r.Postfix)) }

// Contains reports whether o lies within r.
func (r Region) Contains(o Region) bool {
	return r.Valid && o.Valid && r.File == o.File && r.Offset <= o.Offset && o.End() <= r.End()
}

// Invalid is the region returned for ranges that cannot be anchored.
var Invalid = Region{Offset: Sentinel}

// Resolver is the single place where macro-relative coordinates are computed.
type Resolver struct {
	files *source.FileSet
}

// New creates a Resolver over fs.
func New(fs *source.FileSet) *Resolver {
	return &Resolver{files: fs}
}

// Files returns the underlying FileSet.
func (r *Resolver) Files() *source.FileSet {
	return r.files
}

// Resolve maps rng to a region.
//
// Ranges outside macros map directly. Ranges whose ends share one expansion
// and are both in macro arguments, or both in the macro body, map to spelling
// coordinates. Anything else straddles an expansion boundary and maps to the
// invocation of the outermost expansion. Empty macros adjoining the region
// are folded into Prefix and Postfix.
func (r *Resolver) Resolve(rng source.Range) Region {
	if !rng.IsValid() {
		return Invalid
	}
	begin, end := rng.Begin, rng.End
	macros := r.files.Macros()

	var reg Region
	switch {
	case !begin.InMacro() && !end.InMacro():
		reg = r.direct(begin.File, begin.Offset, end.File, end.Offset)
	case begin.Macro == end.Macro && macros.IsMacroArg(begin) == macros.IsMacroArg(end):
		reg = r.direct(begin.File, begin.Offset, end.File, end.Offset)
	default:
		reg = r.expansion(begin, end)
	}
	if !reg.Valid {
		return Invalid
	}
	if !reg.Straddled {
		r.foldEmptyMacros(&reg)
	}
	return reg
}

func (r *Resolver) direct(bf source.FileID, bo uint32, ef source.FileID, eo uint32) Region {
	if bf != ef || eo < bo {
		return Invalid
	}
	f := r.files.Get(bf)
	if f == nil || int(eo) > len(f.Content) {
		return Invalid
	}
	return Region{File: bf, Path: f.Path, Offset: bo, Length: eo - bo, Valid: true}
}

func (r *Resolver) expansion(begin, end source.Loc) Region {
	bf, bo := begin.File, begin.Offset
	ef, eo := end.File, end.Offset
	macros := r.files.Macros()
	if begin.InMacro() {
		if e := macros.Outermost(begin.Macro); e != nil {
			bf, bo = e.Invocation.File, e.Invocation.Start
		}
	}
	if end.InMacro() {
		if e := macros.Outermost(end.Macro); e != nil {
			ef, eo = e.Invocation.File, e.Invocation.End
		}
	}
	reg := r.direct(bf, bo, ef, eo)
	reg.Straddled = reg.Valid
	return reg
}

// foldEmptyMacros absorbs empty-macro uses separated from the region only by
// blanks. A use before the region is always folded. A use after it is folded
// unless it is followed by an identifier, in which case it belongs to what
// comes next.
func (r *Resolver) foldEmptyMacros(reg *Region) {
	uses := r.files.Macros().EmptyUses(reg.File)
	if len(uses) == 0 {
		return
	}
	content := r.files.Get(reg.File).Content

	start := reg.Offset
	for i := len(uses) - 1; i >= 0; i-- {
		u := uses[i]
		if u.End > start {
			continue
		}
		if !onlyBlanks(content[u.End:start]) {
			break
		}
		start = u.Start
	}

	end := reg.End()
	for _, u := range uses {
		if u.Start < end {
			continue
		}
		if !onlyBlanks(content[end:u.Start]) {
			break
		}
		if next := nextNonBlank(content, u.End); next >= 0 && isIdentStart(content[next]) {
			break
		}
		end = u.End
	}

	reg.Prefix = string(content[start:reg.Offset])
	reg.Postfix = string(content[reg.End():end])
	reg.Length = end - start
	reg.Offset = start
}

func onlyBlanks(b []byte) bool {
	for _, c := range b {
		if c != ' ' && c != '\t' {
			return false
		}
	}
	return true
}

func nextNonBlank(content []byte, from uint32) int {
	for i := int(from); i < len(content); i++ {
		switch content[i] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return i
	}
	return -1
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Text returns the current content of reg, including prefix and postfix.
func (r *Resolver) Text(reg Region) string {
	if !reg.Valid {
		return ""
	}
	return r.files.Get(reg.File).Text(reg.Offset, reg.End())
}

// CoreText returns the content of reg without prefix and postfix.
func (r *Resolver) CoreText(reg Region) string {
	if !reg.Valid {
		return ""
	}
	return r.files.Get(reg.File).Text(reg.CoreStart(), reg.CoreEnd())
}

// SourceText resolves rng and returns its core text.
func (r *Resolver) SourceText(rng source.Range) string {
	return r.CoreText(r.Resolve(rng))
}

// Indent returns the leading whitespace of the line holding the start of rng.
func (r *Resolver) Indent(rng source.Range) string {
	reg := r.Resolve(rng)
	if !reg.Valid {
		return ""
	}
	return r.files.Get(reg.File).Indent(reg.Offset)
}

// Locate implements diag.Locator.
func (r *Resolver) Locate(rng source.Range) (string, source.Span, source.LineCol) {
	reg := r.Resolve(rng)
	if !reg.Valid {
		if f := r.files.Get(rng.Begin.File); f != nil {
			return f.Path, source.Span{File: f.ID}, source.LineCol{Line: 1, Col: 1}
		}
		return "", source.Span{}, source.LineCol{}
	}
	f := r.files.Get(reg.File)
	span := source.Span{File: reg.File, Start: reg.CoreStart(), End: reg.CoreEnd()}
	return f.Path, span, f.LineCol(span.Start)
}
