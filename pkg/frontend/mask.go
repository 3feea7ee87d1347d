package frontend

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/source"
)

// qualifiers are the CUDA declaration specifiers the C++ grammar does not
// know. Zero attributes are blanked without being recorded on the decl.
var qualifiers = map[string]ast.Attr{
	"__global__":      ast.AttrGlobal,
	"__device__":      ast.AttrDevice,
	"__host__":        ast.AttrHost,
	"__shared__":      ast.AttrShared,
	"__constant__":    ast.AttrConstant,
	"__managed__":     ast.AttrManaged,
	"__forceinline__": ast.AttrForceInline,
	"__noinline__":    0,
	"__restrict__":    0,
	"__restrict":      0,
}

// withArgs are qualifiers followed by a parenthesized argument list that is
// blanked along with them.
var withArgs = map[string]bool{
	"__launch_bounds__": true,
	"__align__":         true,
}

type qualifier struct {
	attr  ast.Attr
	start uint32
	end   uint32
}

// masked is a copy of a file's content the C++ grammar accepts. Every byte
// keeps its offset, so ranges of the parsed tree address the original text.
type masked struct {
	src []byte
	// launches holds the offsets of the "(" written over each "<<<".
	launches map[uint32]bool
	quals    []qualifier
	// defines holds integer-valued object-like macros.
	defines map[string]int64
	defs    []source.Definition
	empty   []source.Span
}

// mask rewrites CUDA-only syntax in content: "<<<" becomes "  (" and ">>>"
// becomes ")  " so a launch parses as a call of a call; CUDA qualifiers and
// uses of empty object-like macros are overwritten with blanks.
func mask(file source.FileID, content []byte) *masked {
	m := &masked{
		src:      bytes.Clone(content),
		launches: make(map[uint32]bool),
		defines:  make(map[string]int64),
	}
	emptyMacros := m.scanDefines(file, content)

	s := m.src
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			i = lineEnd(s, i)
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			if j := bytes.Index(s[i+2:], []byte("*/")); j >= 0 {
				i += j + 4
			} else {
				i = len(s)
			}
		case c == '"' || c == '\'':
			i = skipQuoted(s, i)
		case c == '#' && atLineStart(s, i):
			i = skipDirective(s, i)
		case c == '<' && bytes.HasPrefix(s[i:], []byte("<<<")):
			copy(s[i:], "  (")
			m.launches[uint32(i+2)] = true
			i += 3
		case c == '>' && bytes.HasPrefix(s[i:], []byte(">>>")):
			copy(s[i:], ")  ")
			i += 3
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			word := string(s[i:j])
			if i > 0 && isIdentPart(s[i-1]) {
				i = j
				continue
			}
			if attr, ok := qualifiers[word]; ok {
				blank(s, i, j)
				m.quals = append(m.quals, qualifier{attr: attr, start: uint32(i), end: uint32(j)})
			} else if withArgs[word] {
				end := skipArgs(s, j)
				blank(s, i, end)
				j = end
			} else if emptyMacros[word] {
				blank(s, i, j)
				m.empty = append(m.empty, source.Span{File: file, Start: uint32(i), End: uint32(j)})
			}
			i = j
		default:
			i++
		}
	}
	return m
}

// scanDefines records every #define and returns the names of empty
// object-like macros.
func (m *masked) scanDefines(file source.FileID, content []byte) map[string]bool {
	empty := make(map[string]bool)
	for off := 0; off < len(content); {
		end := lineEnd(content, off)
		line := content[off:end]
		trimmed := bytes.TrimLeft(line, " \t")
		if bytes.HasPrefix(trimmed, []byte("#")) {
			rest := bytes.TrimLeft(trimmed[1:], " \t")
			if bytes.HasPrefix(rest, []byte("define")) && len(rest) > 6 && (rest[6] == ' ' || rest[6] == '\t') {
				bodyStart := off + (len(line) - len(rest)) + 6
				m.define(file, content, off, end, bodyStart, empty)
			}
		}
		off = end + 1
	}
	return empty
}

func (m *masked) define(file source.FileID, content []byte, start, end, at int, empty map[string]bool) {
	for at < end && (content[at] == ' ' || content[at] == '\t') {
		at++
	}
	nameStart := at
	for at < end && isIdentPart(content[at]) {
		at++
	}
	if at == nameStart {
		return
	}
	d := source.Definition{
		Name: string(content[nameStart:at]),
		Span: source.Span{File: file, Start: uint32(start), End: uint32(end)},
	}
	if at < end && content[at] == '(' {
		d.FuncLike = true
		rp := bytes.IndexByte(content[at:end], ')')
		if rp < 0 {
			return
		}
		for _, p := range strings.Split(string(content[at+1:at+rp]), ",") {
			if p = strings.TrimSpace(p); p != "" {
				d.Params = append(d.Params, p)
			}
		}
		at += rp + 1
	}
	body := strings.TrimSpace(string(content[at:end]))
	d.Body = source.Span{File: file, Start: uint32(at), End: uint32(end)}
	d.Definition = body
	d.IsEmpty = body == ""
	m.defs = append(m.defs, d)
	if d.FuncLike {
		return
	}
	if d.IsEmpty {
		empty[d.Name] = true
		return
	}
	if v, ok := parseInt(body); ok {
		m.defines[d.Name] = v
	}
}

// claim returns the qualifiers spelled in [from, to) and removes them from
// later claims.
func (m *masked) claim(from, to uint32) []qualifier {
	i := sort.Search(len(m.quals), func(i int) bool { return m.quals[i].start >= from })
	j := i
	for j < len(m.quals) && m.quals[j].start < to {
		j++
	}
	out := append([]qualifier(nil), m.quals[i:j]...)
	m.quals = append(m.quals[:i], m.quals[j:]...)
	return out
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	for len(s) > 2 && s[0] == '(' && s[len(s)-1] == ')' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimRight(s, "uUlL")
	v, err := strconv.ParseInt(s, 0, 64)
	return v, err == nil
}

func blank(s []byte, from, to int) {
	for k := from; k < to; k++ {
		if s[k] != '\n' {
			s[k] = ' '
		}
	}
}

func skipArgs(s []byte, i int) int {
	j := i
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	if j >= len(s) || s[j] != '(' {
		return i
	}
	depth := 0
	for ; j < len(s); j++ {
		switch s[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return len(s)
}

func skipQuoted(s []byte, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q, '\n':
			return j + 1
		}
	}
	return len(s)
}

// skipDirective skips a preprocessor line including continuations.
func skipDirective(s []byte, i int) int {
	for {
		end := lineEnd(s, i)
		if end < len(s) && end > i && s[end-1] == '\\' {
			i = end + 1
			continue
		}
		return end
	}
}

func lineEnd(s []byte, i int) int {
	if j := bytes.IndexByte(s[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(s)
}

func atLineStart(s []byte, i int) bool {
	for k := i - 1; k >= 0; k-- {
		switch s[k] {
		case ' ', '\t':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
