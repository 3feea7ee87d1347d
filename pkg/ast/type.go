package ast

import (
	"strconv"
	"strings"
)

// TypeKind classifies a Type.
type TypeKind uint8

const (
	BuiltinType TypeKind = iota
	PointerType
	ReferenceType
	ArrayType
	RecordType
	SpecializationType
	TemplateParamType
	NamedType
)

// Type is the front end's canonicalized view of a C++ type.
type Type struct {
	Kind  TypeKind
	Name  string // builtin, record, typedef or template name
	Const bool

	Elem *Type // pointee, referee or array element

	Len     int64 // array length, -1 when dependent or unknown
	LenExpr Expr  // spelled length for dependent arrays

	Args  []TemplateArg // specialization arguments
	Index int           // template parameter index

	Record     *RecordDecl
	Underlying *Type // typedef target
}

var builtinSizes = map[string]int64{
	"bool": 1, "char": 1, "signed char": 1, "unsigned char": 1,
	"short": 2, "unsigned short": 2,
	"int": 4, "unsigned": 4, "unsigned int": 4, "float": 4,
	"long": 8, "unsigned long": 8, "long long": 8, "unsigned long long": 8,
	"double": 8, "size_t": 8, "int8_t": 1, "uint8_t": 1, "int16_t": 2, "uint16_t": 2,
	"int32_t": 4, "uint32_t": 4, "int64_t": 8, "uint64_t": 8,
	"char1": 1, "uchar1": 1, "char2": 2, "uchar2": 2, "char4": 4, "uchar4": 4,
	"short2": 4, "ushort2": 4, "short4": 8, "ushort4": 8,
	"int2": 8, "uint2": 8, "int3": 12, "uint3": 12, "int4": 16, "uint4": 16,
	"float2": 8, "float3": 12, "float4": 16, "double2": 16, "double3": 24, "double4": 32,
	"dim3": 12,
}

// Builtin returns a builtin type by name.
func Builtin(name string) *Type { return &Type{Kind: BuiltinType, Name: name} }

// PointerTo returns a pointer to t.
func PointerTo(t *Type) *Type { return &Type{Kind: PointerType, Elem: t} }

// ReferenceTo returns an lvalue reference to t.
func ReferenceTo(t *Type) *Type { return &Type{Kind: ReferenceType, Elem: t} }

// ArrayOf returns t[n]. Use n < 0 for a dependent length.
func ArrayOf(t *Type, n int64) *Type { return &Type{Kind: ArrayType, Elem: t, Len: n} }

// Named returns a typedef-name type.
func Named(name string, underlying *Type) *Type {
	return &Type{Kind: NamedType, Name: name, Underlying: underlying}
}

// Canonical strips typedef sugar.
func (t *Type) Canonical() *Type {
	for t != nil && t.Kind == NamedType && t.Underlying != nil {
		t = t.Underlying
	}
	return t
}

// IsPointer reports whether t is a pointer after stripping typedefs.
func (t *Type) IsPointer() bool {
	c := t.Canonical()
	return c != nil && c.Kind == PointerType
}

// IsReference reports whether t is a reference.
func (t *Type) IsReference() bool {
	c := t.Canonical()
	return c != nil && c.Kind == ReferenceType
}

// Pointee returns the element of a pointer, reference or array, or nil.
func (t *Type) Pointee() *Type {
	c := t.Canonical()
	if c == nil {
		return nil
	}
	switch c.Kind {
	case PointerType, ReferenceType, ArrayType:
		return c.Elem
	}
	return nil
}

// BaseName returns the innermost named component, e.g. "float" for "const float *[4]".
func (t *Type) BaseName() string {
	for t != nil {
		switch t.Kind {
		case PointerType, ReferenceType, ArrayType:
			t = t.Elem
		default:
			return t.Name
		}
	}
	return ""
}

// Is reports whether the spelled name or the canonical name equals name.
func (t *Type) Is(name string) bool {
	if t == nil {
		return false
	}
	if t.Name == name {
		return true
	}
	c := t.Canonical()
	return c != nil && c.Name == name
}

// Size returns the size in bytes, or -1 when unknown.
func (t *Type) Size() int64 {
	if t == nil {
		return -1
	}
	if t.Kind == NamedType {
		if n, ok := builtinSizes[t.Name]; ok {
			return n
		}
		return t.Underlying.Size()
	}
	switch t.Kind {
	case BuiltinType:
		if n, ok := builtinSizes[t.Name]; ok {
			return n
		}
		return -1
	case PointerType, ReferenceType:
		return 8
	case ArrayType:
		es := t.Elem.Size()
		if es < 0 || t.Len < 0 {
			return -1
		}
		return es * t.Len
	case RecordType:
		if n, ok := builtinSizes[t.Name]; ok {
			return n
		}
		if t.Record == nil {
			return -1
		}
		var total int64
		for _, f := range t.Record.Fields {
			s := f.Type.Size()
			if s < 0 {
				return -1
			}
			total += s
		}
		return total
	}
	return -1
}

// String spells the type the way it would be written in a declaration
// without a declarator name.
func (t *Type) String() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Type) write(b *strings.Builder) {
	switch t.Kind {
	case PointerType:
		t.Elem.write(b)
		if strings.HasSuffix(b.String(), "*") {
			b.WriteString("*")
		} else {
			b.WriteString(" *")
		}
		if t.Const {
			b.WriteString("const")
		}
		return
	case ReferenceType:
		t.Elem.write(b)
		b.WriteString(" &")
		return
	case ArrayType:
		t.Elem.write(b)
		b.WriteString("[")
		if t.Len >= 0 {
			b.WriteString(strconv.FormatInt(t.Len, 10))
		}
		b.WriteString("]")
		return
	}
	if t.Const {
		b.WriteString("const ")
	}
	b.WriteString(t.Name)
	if t.Kind == SpecializationType {
		b.WriteString("<")
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteString(">")
	}
}

// TemplateArgKind classifies a TemplateArg.
type TemplateArgKind uint8

const (
	NullArg TemplateArgKind = iota
	TypeArg
	ValueArg
)

// TemplateArg is a written or deduced template argument.
type TemplateArg struct {
	Kind  TemplateArgKind
	Type  *Type
	Expr  Expr
	Value int64
	// Known is set when Value holds a folded constant.
	Known bool
	// Text is the spelled form when the argument came from source.
	Text string
}

// IsNull reports whether the slot is still empty.
func (a TemplateArg) IsNull() bool { return a.Kind == NullArg }

func (a TemplateArg) String() string {
	switch a.Kind {
	case TypeArg:
		if a.Text != "" {
			return a.Text
		}
		return a.Type.String()
	case ValueArg:
		if a.Known {
			return strconv.FormatInt(a.Value, 10)
		}
		return a.Text
	}
	return ""
}

// TypeArgOf wraps t as a type template argument.
func TypeArgOf(t *Type) TemplateArg { return TemplateArg{Kind: TypeArg, Type: t} }

// ValueArgOf wraps a constant as a non-type template argument.
func ValueArgOf(v int64) TemplateArg { return TemplateArg{Kind: ValueArg, Value: v, Known: true} }
