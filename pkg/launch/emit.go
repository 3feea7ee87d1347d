package launch

import (
	"fmt"
	"strings"

	"github.com/l3aro/cuda2sycl/pkg/rules"
	"github.com/l3aro/cuda2sycl/pkg/usage"
)

const indentUnit = "  "

// lines accumulates output statements with relative indentation.
type lines struct {
	out   []string
	depth int
}

func (l *lines) add(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if s != "" {
		s = strings.Repeat(indentUnit, l.depth) + s
	}
	l.out = append(l.out, s)
}

func (l *lines) addAll(ss []string) {
	for _, s := range ss {
		l.add("%s", s)
	}
}

func (l *lines) join(indent string) string {
	return strings.Join(l.out, "\n"+indent)
}

// Emit renders the submission. The dispatch is a command-group submit when
// any declaration is needed and a direct parallel_for otherwise.
func (s *Site) Emit(braces, exprCtx bool, indent string) (string, error) {
	if s.State != ArgsResolved {
		return "", &StateError{Step: "emit", Have: s.State}
	}
	usm := s.b.A.USM
	dim := s.Dim()

	var decls []string
	if s.Info != nil {
		decls = append(decls, s.Info.Vars.LaunchDecls(usm, s.Config.LocalMem)...)
	}
	decls = append(decls, s.Decls...)

	args := make([]string, 0, len(s.Args))
	for _, a := range s.Args {
		args = append(args, a.Text)
	}
	if s.Info != nil {
		args = append(args, s.Info.Vars.LaunchArgs(usm)...)
	}
	call := fmt.Sprintf("%s(%s);", s.b.A.Text(s.Launch.Call.Fun), strings.Join(args, ", "))

	ctx := rules.NewCallContext(nil, "", []string{s.Config.Stream})
	queue := ctx.QueueMember(0)

	var body lines
	wrap := exprCtx || (braces && len(s.Pre) > 0)
	if wrap {
		body.depth = 1
	}
	body.addAll(s.Pre)
	if len(decls) > 0 {
		body.add("%ssubmit(", queue)
		body.depth++
		body.add("[&](sycl::handler &cgh) {")
		body.depth++
		body.addAll(decls)
		body.add("")
		s.dispatch(&body, "cgh.", dim, call)
		body.depth--
		body.add("});")
		body.depth--
	} else {
		s.dispatch(&body, queue, dim, call)
	}

	var text string
	switch {
	case exprCtx:
		text = "[&]() {\n" + indent + body.join(indent) + "\n" + indent + "}()"
	case wrap:
		text = "{\n" + indent + body.join(indent) + "\n" + indent + "}"
	default:
		text = body.join(indent)
	}
	s.Text = strings.ReplaceAll(text, "\n"+indent+"\n", "\n\n")
	s.State = ReplacementEmitted
	return s.Text, nil
}

func (s *Site) dispatch(l *lines, recv string, dim int, call string) {
	l.add("%sparallel_for(", recv)
	l.depth++
	l.add("%s,", s.ndRange(dim))
	l.add("[=](sycl::nd_item<%d> %s) {", dim, usage.ItemName)
	l.depth++
	l.add("%s", call)
	l.depth--
	l.add("});")
	l.depth--
}

func (s *Site) ndRange(dim int) string {
	c := s.Config
	if dim == 1 {
		g := "sycl::range<1>(" + c.Grid1 + ")"
		b := "sycl::range<1>(" + c.Block1 + ")"
		return fmt.Sprintf("sycl::nd_range<1>(%s * %s, %s)", g, b, b)
	}
	return fmt.Sprintf("sycl::nd_range<3>(%s * %s, %s)", c.Grid, c.Block, c.Block)
}
