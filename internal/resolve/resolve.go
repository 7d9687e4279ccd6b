// Package resolve lowers component calls onto the generated props
// builders of their targets.
//
// A call @Button(text="Go") in package ui resolves to
// RenderButton(ButtonProps{Text: "Go", Color: "blue"}): every prop the
// call omits is filled with the default expression registered for it,
// copied verbatim so it is evaluated at each call site.
package resolve

import (
	"fmt"
	"strings"

	"github.com/conneroisu/kiln/internal/ast"
	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/registry"
	"github.com/conneroisu/kiln/internal/suggest"
)

// Components is the view of the registry the resolver needs.
type Components interface {
	Get(dir, name string) (*registry.Component, bool)
	Lookup(pkg, name string) (*registry.Component, bool)
	Names(dir string) []string
}

// Resolver resolves the calls written in one package.
type Resolver struct {
	// Dir is the directory of the package being compiled.
	Dir        string
	Components Components
	// Imports maps import names of the file being compiled to import
	// paths. When set, @pkg.Name calls must name an imported package.
	Imports map[string]string
}

// Result is the outcome of resolving one template.
type Result struct {
	// Calls are the components the template calls, in source order,
	// one entry per call site.
	Calls []registry.Key
	Diags diag.List
}

// Resolve fills Resolved on every component call in nodes.
func (r *Resolver) Resolve(nodes []ast.Node) Result {
	var res Result
	ast.Inspect(nodes, func(n ast.Node, _ []ast.Node) bool {
		call, ok := n.(*ast.ComponentCall)
		if !ok {
			return true
		}
		c, diags := r.resolveCall(call)
		res.Diags = append(res.Diags, diags...)
		if c != nil {
			res.Calls = append(res.Calls, registry.Key{Dir: c.Dir, Name: c.Name})
		}
		return true
	})
	res.Diags.Sort()
	return res
}

// Params returns the argument names the called component accepts. It
// has the shape of validate.Options.Params.
func (r *Resolver) Params(call *ast.ComponentCall) ([]string, bool) {
	c, err := r.target(call)
	if err != nil {
		return nil, false
	}
	return c.ParamNames(), true
}

// Target returns the component a call refers to.
func (r *Resolver) Target(call *ast.ComponentCall) (*registry.Component, bool) {
	c, err := r.target(call)
	return c, err == nil
}

func (r *Resolver) target(call *ast.ComponentCall) (*registry.Component, *diag.Diagnostic) {
	unknown := func(help string) *diag.Diagnostic {
		d := diag.New("component/unknown", call.NamePos,
			fmt.Sprintf("unknown component %s", call.QualifiedName()), help)
		return &d
	}
	if r.Components == nil {
		return nil, unknown("components are functions marked //kiln:component")
	}

	if call.Package == "" {
		if c, ok := r.Components.Get(r.Dir, call.Name); ok {
			return c, nil
		}
		return nil, unknown(r.unknownHelp(call))
	}

	if r.Imports != nil {
		if _, ok := r.Imports[call.Package]; !ok {
			return nil, unknown(fmt.Sprintf("package %s is not imported", call.Package))
		}
	}
	c, ok := r.Components.Lookup(call.Package, call.Name)
	if !ok {
		return nil, unknown(r.unknownHelp(call))
	}
	if !c.Exported() {
		return nil, unknown(fmt.Sprintf("%s is not exported by package %s", call.Name, call.Package))
	}
	return c, nil
}

func (r *Resolver) unknownHelp(call *ast.ComponentCall) string {
	if best, ok := suggest.Closest(call.QualifiedName(), r.Components.Names(r.Dir)); ok {
		return fmt.Sprintf("did you mean @%s?", best)
	}
	return "components are functions marked //kiln:component"
}

func (r *Resolver) resolveCall(call *ast.ComponentCall) (*registry.Component, diag.List) {
	c, d := r.target(call)
	if d != nil {
		return nil, diag.List{*d}
	}

	var diags diag.List
	passed := make(map[string]ast.Arg, len(call.Args))
	for _, a := range call.Args {
		if _, dup := passed[a.Name]; dup {
			diags = append(diags, diag.New("args/unknown-prop", a.NamePos,
				fmt.Sprintf("argument %s passed twice to %s", a.Name, call.QualifiedName()),
				"pass each prop once"))
			continue
		}
		if _, ok := c.Prop(a.Name); ok || (c.HasChildren() && a.Name == c.ChildrenParam) {
			passed[a.Name] = a
			continue
		}
		diags = append(diags, unknownProp(call, c, a))
	}

	children, hasChildren := passed[c.ChildrenParam]
	switch {
	case call.HasBlock && !c.HasChildren():
		diags = append(diags, diag.New("args/no-children-slot", call.Pos,
			fmt.Sprintf("%s does not take children", call.QualifiedName()),
			"add a children templ.Component parameter to the component, or remove the block"))
	case call.HasBlock && hasChildren:
		diags = append(diags, diag.New("args/children-conflict", children.NamePos,
			fmt.Sprintf("%s gets children both as %s= and as a block", call.QualifiedName(), c.ChildrenParam),
			fmt.Sprintf("remove %s= or the block", c.ChildrenParam)))
	}

	// Positional arguments are reported by the validator; missing props
	// would only repeat them.
	if len(call.Positional) == 0 {
		var missing []string
		for _, p := range c.Props {
			if _, ok := passed[p.Param]; !ok && p.Required() {
				missing = append(missing, p.Param)
			}
		}
		if len(missing) > 0 {
			diags = append(diags, diag.New("args/missing-prop", call.NamePos,
				fmt.Sprintf("%s is missing required %s %s", call.QualifiedName(), plural(len(missing), "prop", "props"), strings.Join(missing, ", ")),
				fmt.Sprintf("write @%s(%s)", call.QualifiedName(), example(c, passed))))
		}
	}

	if diags.HasErrors() {
		return c, diags
	}

	call.Resolved = lower(call, c, passed)
	return c, diags
}

func unknownProp(call *ast.ComponentCall, c *registry.Component, a ast.Arg) diag.Diagnostic {
	names := c.ParamNames()
	help := fmt.Sprintf("%s takes %s", call.QualifiedName(), strings.Join(names, ", "))
	if len(names) == 0 {
		help = fmt.Sprintf("%s takes no arguments", call.QualifiedName())
	}
	if best, ok := suggest.Closest(a.Name, names); ok {
		help = fmt.Sprintf("did you mean %s?", best)
	}
	return diag.New("args/unknown-prop", a.NamePos,
		fmt.Sprintf("%s has no prop %s", call.QualifiedName(), a.Name), help)
}

// example renders the argument list a correct call would have.
func example(c *registry.Component, passed map[string]ast.Arg) string {
	var parts []string
	for _, p := range c.Props {
		if a, ok := passed[p.Param]; ok {
			parts = append(parts, p.Param+"="+a.Value.Src)
			continue
		}
		if p.Required() {
			parts = append(parts, p.Param+"=…")
		}
	}
	return strings.Join(parts, ", ")
}

func lower(call *ast.ComponentCall, c *registry.Component, passed map[string]ast.Arg) *ast.Resolution {
	qual := ""
	if call.Package != "" {
		qual = call.Package + "."
	}
	res := &ast.Resolution{
		Func:      qual + c.RenderFunc(),
		PropsType: qual + c.PropsType(),
	}
	for _, p := range c.Props {
		if a, ok := passed[p.Param]; ok {
			res.Fields = append(res.Fields, ast.FieldInit{Field: p.Field, Expr: a.Value.Src})
			continue
		}
		if p.HasDefault {
			res.Fields = append(res.Fields, ast.FieldInit{Field: p.Field, Expr: p.Default, Default: true})
		}
	}
	if !c.HasChildren() {
		return res
	}
	if a, ok := passed[c.ChildrenParam]; ok {
		res.Fields = append(res.Fields, ast.FieldInit{Field: c.ChildrenField(), Expr: a.Value.Src})
	} else if call.HasBlock {
		res.ChildrenField = c.ChildrenField()
	}
	return res
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
