package ast

import (
	"strconv"
	"strings"
)

// IntValue folds e to an integer constant. It understands integer literals,
// enumerators, const-initialized variables, known template arguments and the
// usual arithmetic operators.
func IntValue(e Expr) (int64, bool) {
	return intValue(e, 0)
}

func intValue(e Expr, depth int) (int64, bool) {
	if e == nil || depth > 32 {
		return 0, false
	}
	switch x := e.(type) {
	case *Literal:
		switch x.Kind {
		case IntLit:
			if x.Text == "" {
				return x.Value, true
			}
			return parseIntLiteral(x.Text)
		case BoolLit:
			if x.Text == "true" {
				return 1, true
			}
			return 0, true
		case CharLit:
			return x.Value, true
		}
	case *Paren:
		return intValue(x.X, depth+1)
	case *Cast:
		return intValue(x.X, depth+1)
	case *DeclRef:
		switch d := x.Decl.(type) {
		case *EnumConstant:
			return d.Value, true
		case *VarDecl:
			if d.Type != nil && d.Type.Const && d.Init != nil {
				return intValue(d.Init, depth+1)
			}
		}
	case *Unary:
		v, ok := intValue(x.X, depth+1)
		if !ok {
			return 0, false
		}
		switch x.Op {
		case "-":
			return -v, true
		case "+":
			return v, true
		case "~":
			return ^v, true
		case "!":
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
	case *Binary:
		l, ok := intValue(x.X, depth+1)
		if !ok {
			return 0, false
		}
		r, ok := intValue(x.Y, depth+1)
		if !ok {
			return 0, false
		}
		return foldBinary(x.Op, l, r)
	case *Conditional:
		c, ok := intValue(x.Cond, depth+1)
		if !ok {
			return 0, false
		}
		if c != 0 {
			return intValue(x.Then, depth+1)
		}
		return intValue(x.Else, depth+1)
	case *SizeOf:
		if x.Op == "sizeof" {
			if x.Arg != nil {
				if s := x.Arg.Size(); s >= 0 {
					return s, true
				}
			} else if x.X != nil {
				if s := x.X.Type().Size(); s >= 0 {
					return s, true
				}
			}
		}
	}
	return 0, false
}

func foldBinary(op string, l, r int64) (int64, bool) {
	b := func(v bool) (int64, bool) {
		if v {
			return 1, true
		}
		return 0, true
	}
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case "%":
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case "<<":
		return l << uint64(r), true
	case ">>":
		return l >> uint64(r), true
	case "&":
		return l & r, true
	case "|":
		return l | r, true
	case "^":
		return l ^ r, true
	case "==":
		return b(l == r)
	case "!=":
		return b(l != r)
	case "<":
		return b(l < r)
	case "<=":
		return b(l <= r)
	case ">":
		return b(l > r)
	case ">=":
		return b(l >= r)
	case "&&":
		return b(l != 0 && r != 0)
	case "||":
		return b(l != 0 || r != 0)
	}
	return 0, false
}

func parseIntLiteral(text string) (int64, bool) {
	t := strings.TrimRight(strings.ReplaceAll(text, "'", ""), "uUlL")
	v, err := strconv.ParseInt(t, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(t, 0, 64)
		if uerr != nil {
			return 0, false
		}
		return int64(u), true
	}
	return v, true
}
