package directive

import (
	goast "go/ast"
	"strings"
)

// Action is a func served over HTTP by generated code.
type Action struct {
	Name string
	Path string
	// Input is the source of the decoded request type.
	Input string
}

// HandlerFunc returns the name of the generated handler constructor.
func (a *Action) HandlerFunc() string { return a.Name + "Handler" }

// RouteFunc returns the name of the generated route constructor.
func (a *Action) RouteFunc() string { return a.Name + "Action" }

func (s *scanner) action(fd *goast.FuncDecl, d Directive) (*Action, bool) {
	name := fd.Name.Name
	want := "func " + name + "(ctx context.Context, in T) (templ.Component, error)"
	bad := func(summary string) (*Action, bool) {
		s.errorf("directive/action-signature", s.nodeSpan(fd.Type), summary, "write "+want)
		return nil, false
	}

	if fd.Recv != nil {
		return bad("action " + name + " is a method")
	}
	params := flatten(fd.Type.Params)
	if len(params) != 2 || !isSelector(params[0], "context", "Context") {
		return bad("action " + name + " must take a context.Context and one input")
	}
	results := flatten(fd.Type.Results)
	if len(results) != 2 || !isSelector(results[0], "templ", "Component") {
		return bad("action " + name + " must return (templ.Component, error)")
	}
	if id, ok := results[1].(*goast.Ident); !ok || id.Name != "error" {
		return bad("action " + name + " must return (templ.Component, error)")
	}

	path := d.Args
	switch {
	case path == "":
		path = "/actions/" + KebabName(name)
	case !strings.HasPrefix(path, "/") || strings.ContainsAny(path, " \t"):
		s.errorf("directive/syntax", d.Span, "action path "+path+" must be an absolute URL path",
			"write //kiln:action /actions/"+KebabName(name))
		return nil, false
	}
	return &Action{Name: name, Path: path, Input: s.text(params[1])}, true
}

// flatten returns one type per declared parameter or result.
func flatten(fl *goast.FieldList) []goast.Expr {
	if fl == nil {
		return nil
	}
	var out []goast.Expr
	for _, f := range fl.List {
		n := len(f.Names)
		if n == 0 {
			n = 1
		}
		for range n {
			out = append(out, f.Type)
		}
	}
	return out
}
