package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadError reports an unreadable or malformed rule file.
type LoadError struct {
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UserRule is one entry of a rule file.
//
//	- Rule: rule_cudaMalloc
//	  Kind: API
//	  Priority: Takeover
//	  In: cudaMalloc
//	  Out: $deref($1) = my_alloc($2)
type UserRule struct {
	Rule     string `yaml:"Rule"`
	Kind     string `yaml:"Kind"`
	Priority string `yaml:"Priority"`
	In       string `yaml:"In"`
	Out      string `yaml:"Out"`

	line     int
	kind     Kind
	priority Priority
	tmpl     *Template
}

// RuleFile is a parsed, validated rule file.
type RuleFile struct {
	Path  string
	Rules []UserRule
}

// ParseRules validates rule file content. Every output template is parsed
// here so a bad template fails the load instead of a later rewrite.
func ParseRules(path string, data []byte) (*RuleFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Path: path, Msg: "invalid YAML: " + err.Error(), Err: err}
	}
	rf := &RuleFile{Path: path}
	if len(doc.Content) == 0 {
		return rf, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, &LoadError{Path: path, Line: root.Line, Msg: "rule file must be a list of rules"}
	}

	for _, n := range root.Content {
		var r UserRule
		if err := n.Decode(&r); err != nil {
			return nil, &LoadError{Path: path, Line: n.Line, Msg: err.Error(), Err: err}
		}
		r.line = n.Line
		if err := r.validate(); err != nil {
			return nil, &LoadError{Path: path, Line: n.Line, Msg: err.Error(), Err: err}
		}
		rf.Rules = append(rf.Rules, r)
	}
	return rf, nil
}

func (r *UserRule) validate() error {
	if strings.TrimSpace(r.In) == "" {
		return errors.New("rule has no In")
	}
	kind, ok := parseKind(r.Kind)
	if !ok {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	prio, ok := ParsePriority(r.Priority)
	if !ok {
		return fmt.Errorf("unknown priority %q", r.Priority)
	}
	r.kind, r.priority = kind, prio
	if kind == KindAPI {
		t, err := ParseTemplate(r.Out)
		if err != nil {
			return err
		}
		r.tmpl = t
	}
	return nil
}

func parseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "api":
		return KindAPI, true
	case "macro":
		return KindMacro, true
	case "type":
		return KindType, true
	case "enum":
		return KindEnum, true
	}
	return KindAPI, false
}

// LoadFile reads and parses a rule file.
func LoadFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Msg: "cannot read rule file", Err: err}
	}
	return ParseRules(path, data)
}

// Apply installs the file's rules into r and returns how many took effect.
// Rules that lose on priority are skipped.
func (f *RuleFile) Apply(r *Registry) int {
	n := 0
	for i := range f.Rules {
		u := &f.Rules[i]
		origin := fmt.Sprintf("%s:%d", f.Path, u.line)
		var ok bool
		if u.kind == KindAPI {
			t := u.tmpl
			factory := func(ctx *CallContext) Rewriter { return &FromTemplate{Ctx: ctx, T: t} }
			if strings.Contains(u.Out, "item_ct1") {
				ok = r.RegisterItem(u.In, u.priority, origin, factory)
			} else {
				ok = r.Register(u.In, u.priority, origin, factory)
			}
		} else {
			ok = r.RegisterName(u.kind, u.In, u.Out, u.priority, origin)
		}
		if ok {
			n++
		}
	}
	return n
}

// LoadInto loads every file in order and applies it. Loading stops at the
// first failure so no rule of a broken file is installed.
func LoadInto(r *Registry, paths ...string) (int, error) {
	files := make([]*RuleFile, 0, len(paths))
	for _, p := range paths {
		f, err := LoadFile(p)
		if err != nil {
			return 0, err
		}
		files = append(files, f)
	}
	total := 0
	for _, f := range files {
		total += f.Apply(r)
	}
	return total, nil
}
