package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
)

type partKind uint8

const (
	litPart partKind = iota
	argPart
	queuePart
	contextPart
	devicePart
	typeNameOfPart
	addrOfPart
	derefPart
	derefTypePart
)

var funcParts = map[string]partKind{
	"type_name_of": typeNameOfPart,
	"addr_of":      addrOfPart,
	"deref":        derefPart,
	"deref_type":   derefTypePart,
}

type part struct {
	kind partKind
	lit  string
	arg  int // 0-based
}

// Template is a parsed output template.
//
//	\c                 literal c
//	$queue $context $device
//	$type_name_of($n) $addr_of($n) $deref($n) $deref_type($n)
//	$n                 migrated text of argument n (1-based)
type Template struct {
	src   string
	parts []part
}

// TemplateError reports a malformed template.
type TemplateError struct {
	Src string
	Pos int
	Msg string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q at %d: %s", e.Src, e.Pos, e.Msg)
}

// ParseTemplate parses src.
func ParseTemplate(src string) (*Template, error) {
	t := &Template{src: src}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{kind: litPart, lit: lit.String()})
			lit.Reset()
		}
	}
	fail := func(pos int, format string, args ...interface{}) (*Template, error) {
		return nil, &TemplateError{Src: src, Pos: pos, Msg: fmt.Sprintf(format, args...)}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '\\':
			if i+1 >= len(src) {
				return fail(i, "dangling escape")
			}
			i++
			lit.WriteByte(src[i])
		case '$':
			flush()
			start := i
			i++
			if i >= len(src) {
				return fail(start, "dangling $")
			}
			if isDigit(src[i]) {
				n, next := readInt(src, i)
				if n < 1 {
					return fail(start, "argument index must start at 1")
				}
				t.parts = append(t.parts, part{kind: argPart, arg: n - 1})
				i = next - 1
				continue
			}
			name, next := readIdent(src, i)
			switch name {
			case "queue":
				t.parts = append(t.parts, part{kind: queuePart})
			case "context":
				t.parts = append(t.parts, part{kind: contextPart})
			case "device":
				t.parts = append(t.parts, part{kind: devicePart})
			default:
				kind, ok := funcParts[name]
				if !ok {
					return fail(start, "unknown substitution $%s", name)
				}
				if !strings.HasPrefix(src[next:], "($") {
					return fail(next, "$%s expects ($n)", name)
				}
				n, after := readInt(src, next+2)
				if after == next+2 || after >= len(src) || src[after] != ')' {
					return fail(next, "$%s expects ($n)", name)
				}
				if n < 1 {
					return fail(next, "argument index must start at 1")
				}
				t.parts = append(t.parts, part{kind: kind, arg: n - 1})
				next = after + 1
			}
			i = next - 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// MustParseTemplate parses src and panics on error. It is meant for
// built-in rules only.
func MustParseTemplate(src string) *Template {
	t, err := ParseTemplate(src)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template source.
func (t *Template) String() string { return t.src }

// MaxArg returns the highest 1-based argument index the template refers to.
func (t *Template) MaxArg() int {
	max := 0
	for _, p := range t.parts {
		if p.kind != litPart && p.kind != queuePart && p.kind != contextPart && p.kind != devicePart && p.arg+1 > max {
			max = p.arg + 1
		}
	}
	return max
}

// Eval renders the template for a call. It fails when an argument is
// missing or a type it needs is unknown.
func (t *Template) Eval(ctx *CallContext) (string, bool) {
	var b strings.Builder
	for _, p := range t.parts {
		switch p.kind {
		case litPart:
			b.WriteString(p.lit)
			continue
		case queuePart:
			b.WriteString(ctx.Queue)
			continue
		case contextPart:
			b.WriteString(ctx.Context)
			continue
		case devicePart:
			b.WriteString(ctx.Device)
			continue
		}
		if p.arg >= ctx.NumArgs() {
			return "", false
		}
		switch p.kind {
		case argPart:
			b.WriteString(ctx.Arg(p.arg))
		case addrOfPart:
			b.WriteString(addrOf(ctx, p.arg))
		case derefPart:
			b.WriteString(deref(ctx, p.arg))
		case typeNameOfPart:
			typ := argValueType(ctx, p.arg)
			if typ == nil {
				return "", false
			}
			b.WriteString(typ.String())
		case derefTypePart:
			typ := argValueType(ctx, p.arg).Pointee()
			if typ == nil {
				return "", false
			}
			b.WriteString(typ.String())
		}
	}
	return b.String(), true
}

// argValueType is the type of argument i with explicit casts removed, so
// (void **)&p reports float ** for float *p.
func argValueType(ctx *CallContext, i int) *ast.Type {
	e := ctx.ArgExpr(i)
	if e == nil {
		return nil
	}
	if s := ast.StripCasts(e); s.Type() != nil {
		return s.Type()
	}
	return e.Type()
}

func deref(ctx *CallContext, i int) string {
	if e := ctx.ArgExpr(i); e != nil && ctx.ExprText != nil {
		if u, ok := ast.StripCasts(e).(*ast.Unary); ok && u.Op == "&" {
			return ctx.ExprText(u.X)
		}
	}
	a := strings.TrimSpace(ctx.Arg(i))
	if strings.HasPrefix(a, "&") && isSimple(a[1:]) {
		return a[1:]
	}
	return "*" + paren(a)
}

func addrOf(ctx *CallContext, i int) string {
	if e := ctx.ArgExpr(i); e != nil && ctx.ExprText != nil {
		if u, ok := ast.StripCasts(e).(*ast.Unary); ok && u.Op == "*" {
			return ctx.ExprText(u.X)
		}
	}
	a := strings.TrimSpace(ctx.Arg(i))
	if strings.HasPrefix(a, "*") && isSimple(a[1:]) {
		return a[1:]
	}
	return "&" + paren(a)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func readInt(s string, i int) (int, int) {
	j := i
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	n, err := strconv.Atoi(s[i:j])
	if err != nil {
		return -1, j
	}
	return n, j
}

func readIdent(s string, i int) (string, int) {
	j := i
	for j < len(s) && (s[j] == '_' || (s[j] >= 'a' && s[j] <= 'z') || (s[j] >= 'A' && s[j] <= 'Z') || isDigit(s[j])) {
		j++
	}
	return s[i:j], j
}
