package bind

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conneroisu/kiln/internal/ast"
	"github.com/conneroisu/kiln/internal/diag"
)

// BindAttr is the attribute that binds a form to a type.
const BindAttr = "bind"

// inputTags are the elements whose name attribute is submitted.
var inputTags = map[string]bool{
	"input":    true,
	"select":   true,
	"textarea": true,
}

// BoundType returns the type expression of a <form bind={T}>.
func BoundType(form *ast.Element) (ast.HostExpr, bool) {
	if form.Tag != "form" {
		return ast.HostExpr{}, false
	}
	a, ok := form.Attr(BindAttr)
	if !ok || (a.Kind != ast.ValueDynamic && a.Kind != ast.ValueBoolean) {
		return ast.HostExpr{}, false
	}
	return a.Expr, true
}

// Check verifies the name attributes under a bound form. It reports
// nothing for forms without a binding.
func Check(form *ast.Element, r Resolver) diag.List {
	var diags diag.List
	if form.Tag != "form" {
		return nil
	}
	a, ok := form.Attr(BindAttr)
	if !ok {
		return nil
	}
	if a.Kind != ast.ValueDynamic && a.Kind != ast.ValueBoolean {
		return diag.List{diag.New("form/bind", a.Pos,
			"form binding must be a type in braces",
			"write <form bind={User}>")}
	}
	if r == nil {
		return diag.List{diag.New("form/bind", a.Pos,
			fmt.Sprintf("cannot resolve bound type %s", a.Expr.Src),
			"form bindings need the Go source of the bound type")}
	}

	st, err := r.Resolve(a.Expr.Src)
	if err != nil {
		return diag.List{diag.New("form/bind", a.Expr.Pos, err.Error(),
			"bind to a struct type declared in this package or an imported one")}
	}

	ast.Inspect(form.Children, func(n ast.Node, _ []ast.Node) bool {
		el, ok := n.(*ast.Element)
		if !ok {
			return true
		}
		if el.Tag == "form" {
			// A nested form is reported by its own rule and carries its
			// own binding.
			return false
		}
		if !inputTags[el.Tag] {
			return true
		}
		name, ok := el.Attr("name")
		if !ok {
			return true
		}
		if d, bad := checkName(name, st); bad {
			diags = append(diags, d)
		}
		return true
	})
	return diags
}

func checkName(name *ast.Attribute, st *Struct) (diag.Diagnostic, bool) {
	switch name.Kind {
	case ast.ValueStatic:
	case ast.ValueNone:
		return diag.New("form/bind", name.Pos,
			"name attribute without a value inside a bound form",
			fmt.Sprintf("name the field of %s this input fills", st.Name)), true
	default:
		return diag.New("form/bind", name.Pos,
			"dynamic name inside a bound form cannot be checked",
			fmt.Sprintf("use a literal field path of %s, e.g. name=%q", st.Name, first(st.Paths()))), true
	}

	err := st.Lookup(name.Static)
	if err == nil {
		return diag.Diagnostic{}, false
	}
	var pe *PathError
	if !errors.As(err, &pe) {
		return diag.New("form/bind", name.Pos, err.Error(), ""), true
	}

	help := fmt.Sprintf("fields of %s: %s", pe.Within, strings.Join(pe.Keys, ", "))
	switch {
	case pe.Suggestion != "":
		help = fmt.Sprintf("did you mean %q?", pe.Suggestion)
	case pe.NotStruct:
		help = "only struct fields can be followed by '.'"
	}
	return diag.New("form/bind", name.Pos,
		fmt.Sprintf("name %q is not a field of %s", name.Static, st.Name), help), true
}

func first(s []string) string {
	if len(s) == 0 {
		return "field"
	}
	return s[0]
}
