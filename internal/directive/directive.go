// Package directive reads //kiln: directives from Go source and
// generates the code they ask for.
//
// Three directives mark declarations:
//
//	//kiln:component        a func returning templ.Component
//	//kiln:default p expr   a default for parameter p of that component
//	//kiln:schema [type=T]  a struct serialized as JSON-LD
//	//kiln:action [path]    a func served as an HTTP action
package directive

import (
	goast "go/ast"
	"go/token"
	"strings"

	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/registry"
)

// Prefix starts every directive comment.
const Prefix = "//kiln:"

// Kind is a directive name.
type Kind string

const (
	KindComponent Kind = "component"
	KindDefault   Kind = "default"
	KindSchema    Kind = "schema"
	KindAction    Kind = "action"
)

// Directive is one //kiln: comment line.
type Directive struct {
	Kind Kind
	Args string
	Span diag.Span
}

// Decls are the marked declarations of one file.
type Decls struct {
	Components []*registry.Component
	Schemas    []*Schema
	Actions    []*Action
}

// Empty reports whether the file has no marked declarations.
func (d *Decls) Empty() bool {
	return len(d.Components) == 0 && len(d.Schemas) == 0 && len(d.Actions) == 0
}

type scanner struct {
	fset  *token.FileSet
	src   []byte
	diags diag.List
}

func (s *scanner) span(from, to token.Pos) diag.Span {
	f := s.fset.File(from)
	if f == nil {
		return diag.Span{}
	}
	return diag.Span{Start: f.Offset(from), End: f.Offset(to)}
}

func (s *scanner) nodeSpan(n goast.Node) diag.Span {
	return s.span(n.Pos(), n.End())
}

// text returns the source of a node.
func (s *scanner) text(n goast.Node) string {
	sp := s.nodeSpan(n)
	if sp.End > len(s.src) || sp.Start > sp.End {
		return ""
	}
	return string(s.src[sp.Start:sp.End])
}

func (s *scanner) errorf(rule string, span diag.Span, summary, help string) {
	s.diags = append(s.diags, diag.New(rule, span, summary, help))
}

// parse returns the directives of a comment group.
func (s *scanner) parse(doc *goast.CommentGroup) []Directive {
	if doc == nil {
		return nil
	}
	var out []Directive
	for _, c := range doc.List {
		if d, ok := s.parseComment(c); ok {
			out = append(out, d)
		}
	}
	return out
}

func (s *scanner) parseComment(c *goast.Comment) (Directive, bool) {
	rest, ok := strings.CutPrefix(c.Text, Prefix)
	if !ok {
		return Directive{}, false
	}
	name, args, _ := strings.Cut(rest, " ")
	return Directive{
		Kind: Kind(strings.TrimSpace(name)),
		Args: strings.TrimSpace(args),
		Span: s.span(c.Slash, c.End()),
	}, true
}

// Scan finds the declarations of f marked with directives. src is the
// text f was parsed from; fset must hold f.
func Scan(fset *token.FileSet, f *goast.File, src []byte) (*Decls, diag.List) {
	s := &scanner{fset: fset, src: src}
	decls := &Decls{}
	attached := make(map[*goast.Comment]bool)

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *goast.FuncDecl:
			dirs := s.parse(d.Doc)
			markAttached(attached, d.Doc)
			s.funcDirectives(decls, f.Name.Name, d, dirs)
		case *goast.GenDecl:
			markAttached(attached, d.Doc)
			if d.Tok != token.TYPE {
				s.misplaced(s.parse(d.Doc), "a declaration")
				continue
			}
			if len(d.Specs) != 1 {
				s.misplaced(s.parse(d.Doc), "a type group")
			}
			for _, spec := range d.Specs {
				ts := spec.(*goast.TypeSpec)
				dirs := s.parse(ts.Doc)
				markAttached(attached, ts.Doc)
				if len(d.Specs) == 1 {
					dirs = append(s.parse(d.Doc), dirs...)
				}
				s.typeDirectives(decls, ts, dirs)
			}
		}
	}

	for _, cg := range f.Comments {
		for _, c := range cg.List {
			if attached[c] {
				continue
			}
			if d, ok := s.parseComment(c); ok {
				s.errorf("directive/misplaced", d.Span,
					"//kiln:"+string(d.Kind)+" is not attached to a declaration",
					"put the directive directly above a func or type, with no blank line")
			}
		}
	}

	s.diags.Sort()
	return decls, s.diags
}

func markAttached(m map[*goast.Comment]bool, cg *goast.CommentGroup) {
	if cg == nil {
		return
	}
	for _, c := range cg.List {
		m[c] = true
	}
}

func (s *scanner) funcDirectives(decls *Decls, pkg string, fd *goast.FuncDecl, dirs []Directive) {
	var main *Directive
	var defaults []Directive
	for i, d := range dirs {
		switch d.Kind {
		case KindComponent, KindAction:
			if main != nil {
				s.errorf("directive/conflict", d.Span,
					"//kiln:"+string(d.Kind)+" after //kiln:"+string(main.Kind),
					"a func is either a component or an action")
				continue
			}
			main = &dirs[i]
		case KindDefault:
			defaults = append(defaults, d)
		case KindSchema:
			s.errorf("directive/misplaced", d.Span, "//kiln:schema on a func",
				"//kiln:schema marks a struct type")
		default:
			s.unknown(d)
		}
	}

	switch {
	case main == nil:
		for _, d := range defaults {
			s.errorf("directive/misplaced", d.Span, "//kiln:default without //kiln:component",
				"defaults belong to component parameters")
		}
	case main.Kind == KindComponent:
		if c, ok := s.component(pkg, fd, *main, defaults); ok {
			decls.Components = append(decls.Components, c)
		}
	case main.Kind == KindAction:
		for _, d := range defaults {
			s.errorf("directive/misplaced", d.Span, "//kiln:default on an action",
				"defaults belong to component parameters")
		}
		if a, ok := s.action(fd, *main); ok {
			decls.Actions = append(decls.Actions, a)
		}
	}
}

func (s *scanner) typeDirectives(decls *Decls, ts *goast.TypeSpec, dirs []Directive) {
	for _, d := range dirs {
		switch d.Kind {
		case KindSchema:
			if sc, ok := s.schema(ts, d); ok {
				decls.Schemas = append(decls.Schemas, sc)
			}
		case KindComponent, KindAction, KindDefault:
			s.errorf("directive/misplaced", d.Span, "//kiln:"+string(d.Kind)+" on a type",
				"//kiln:"+string(d.Kind)+" marks a func")
		default:
			s.unknown(d)
		}
	}
}

func (s *scanner) misplaced(dirs []Directive, what string) {
	for _, d := range dirs {
		s.errorf("directive/misplaced", d.Span, "//kiln:"+string(d.Kind)+" on "+what,
			"directives mark funcs and types")
	}
}

func (s *scanner) unknown(d Directive) {
	s.errorf("directive/unknown", d.Span, "unknown directive //kiln:"+string(d.Kind),
		"known directives: component, default, schema, action")
}

// isSelector reports whether expr is pkg.name.
func isSelector(expr goast.Expr, pkg, name string) bool {
	sel, ok := expr.(*goast.SelectorExpr)
	if !ok {
		return false
	}
	x, ok := sel.X.(*goast.Ident)
	return ok && x.Name == pkg && sel.Sel.Name == name
}
