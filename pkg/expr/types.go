package expr

import (
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/ast"
	"github.com/l3aro/cuda2sycl/pkg/rules"
)

// MigrateTypeText rewrites every known type name in a spelled type.
// Legacy texture references become image wrappers.
func (a *Analyzer) MigrateTypeText(text string) (string, bool) {
	if out, ok := a.textureWrapper(text); ok {
		return out, true
	}
	var b strings.Builder
	changed := false
	for i := 0; i < len(text); {
		c := text[i]
		if !isIdentStart(c) {
			b.WriteByte(c)
			i++
			continue
		}
		j := i
		for j < len(text) && isIdentPart(text[j]) {
			j++
		}
		word := text[i:j]
		qualified := i >= 2 && text[i-2:i] == "::"
		if to, ok := a.typeName(word); ok && !qualified {
			b.WriteString(to)
			changed = true
		} else {
			b.WriteString(word)
		}
		i = j
	}
	if !changed {
		return text, false
	}
	return b.String(), true
}

func (a *Analyzer) typeName(name string) (string, bool) {
	if a.Hooks.TypeName != nil {
		if to, ok := a.Hooks.TypeName(name); ok {
			return to, true
		}
	}
	if a.Rules == nil {
		return "", false
	}
	if to, ok := a.Rules.Name(rules.KindType, name); ok {
		return to, true
	}
	return a.Rules.Name(rules.KindMacro, name)
}

// textureWrapper maps texture<T, D, mode> to dpct::image_wrapper<T, D>.
func (a *Analyzer) textureWrapper(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "texture") {
		return "", false
	}
	rest := strings.TrimSpace(t[len("texture"):])
	if !strings.HasPrefix(rest, "<") || !strings.HasSuffix(rest, ">") {
		return "", false
	}
	args := splitTemplateArgs(rest[1 : len(rest)-1])
	elem := "float"
	dim := "1"
	if len(args) > 0 {
		elem = args[0]
		if to, ok := a.MigrateTypeText(elem); ok {
			elem = to
		}
	}
	if len(args) > 1 {
		dim = args[1]
	}
	return "dpct::image_wrapper<" + elem + ", " + dim + ">", true
}

func splitTemplateArgs(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// MigrateDeclType returns the new spelling of a declaration's type. Library
// builders get the first say through Hooks.DeclType.
func (a *Analyzer) MigrateDeclType(d ast.Decl, t *ast.Type, spelled string) (string, bool) {
	if a.Hooks.DeclType != nil {
		if to, ok := a.Hooks.DeclType(d, t); ok {
			return to, true
		}
	}
	return a.MigrateTypeText(spelled)
}

// TypeString spells t with known type names migrated.
func (a *Analyzer) TypeString(t *ast.Type) string {
	if t == nil {
		return ""
	}
	s := t.String()
	if out, ok := a.MigrateTypeText(s); ok {
		return out
	}
	return s
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
