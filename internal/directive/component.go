package directive

import (
	"fmt"
	goast "go/ast"
	"go/parser"
	"strings"

	"github.com/conneroisu/kiln/internal/registry"
)

// ChildrenParam is the parameter name of a component's children slot.
const ChildrenParam = "children"

func (s *scanner) component(pkg string, fd *goast.FuncDecl, d Directive, defaults []Directive) (*registry.Component, bool) {
	name := fd.Name.Name
	ok := true
	if d.Args != "" {
		s.errorf("directive/syntax", d.Span, "//kiln:component takes no arguments", "")
		ok = false
	}
	if fd.Recv != nil {
		s.errorf("directive/component-signature", s.nodeSpan(fd.Name),
			"component "+name+" is a method", "components are package-level funcs")
		return nil, false
	}
	if fd.Type.TypeParams != nil && len(fd.Type.TypeParams.List) > 0 {
		s.errorf("directive/component-signature", s.nodeSpan(fd.Type.TypeParams),
			"component "+name+" has type parameters", "generic components cannot be called from templates")
		return nil, false
	}
	res := fd.Type.Results
	if res == nil || res.NumFields() != 1 || !isSelector(res.List[0].Type, "templ", "Component") {
		sp := s.nodeSpan(fd.Name)
		if res != nil {
			sp = s.nodeSpan(res)
		}
		s.errorf("directive/component-signature", sp,
			"component "+name+" must return templ.Component", "write func "+name+"(...) templ.Component")
		return nil, false
	}

	c := &registry.Component{Name: name, Package: pkg, Span: s.nodeSpan(fd.Name)}
	fields := make(map[string]string)
	for _, field := range fd.Type.Params.List {
		if len(field.Names) == 0 {
			s.errorf("directive/component-signature", s.nodeSpan(field),
				"component "+name+" has an unnamed parameter", "call sites pass props by parameter name")
			ok = false
			continue
		}
		if _, variadic := field.Type.(*goast.Ellipsis); variadic {
			s.errorf("directive/component-signature", s.nodeSpan(field),
				"component "+name+" has a variadic parameter", "take a slice instead")
			ok = false
			continue
		}
		typ := s.text(field.Type)
		for _, n := range field.Names {
			if n.Name == "_" {
				s.errorf("directive/component-signature", s.nodeSpan(n),
					"component "+name+" has a blank parameter", "")
				ok = false
				continue
			}
			if n.Name == ChildrenParam && isSelector(field.Type, "templ", "Component") {
				c.ChildrenParam = n.Name
				continue
			}
			if c.ChildrenParam != "" {
				s.errorf("directive/component-signature", s.nodeSpan(n),
					"parameter "+n.Name+" follows the children slot", "make children the last parameter")
				ok = false
				continue
			}
			f := registry.ExportName(n.Name)
			if prev, dup := fields[f]; dup {
				s.errorf("directive/component-signature", s.nodeSpan(n),
					fmt.Sprintf("parameters %s and %s both become field %s", prev, n.Name, f), "rename one of them")
				ok = false
				continue
			}
			if f == "Build" {
				s.errorf("directive/component-signature", s.nodeSpan(n),
					"parameter "+n.Name+" collides with the builder's Build method", "rename the parameter")
				ok = false
				continue
			}
			fields[f] = n.Name
			c.Props = append(c.Props, registry.Prop{Param: n.Name, Field: f, Type: typ})
		}
	}

	for _, d := range defaults {
		param, expr, _ := strings.Cut(d.Args, " ")
		expr = strings.TrimSpace(expr)
		if param == "" || expr == "" {
			s.errorf("directive/syntax", d.Span, "//kiln:default needs a parameter and an expression",
				`write //kiln:default color "blue"`)
			ok = false
			continue
		}
		if _, err := parser.ParseExpr(expr); err != nil {
			s.errorf("directive/syntax", d.Span, fmt.Sprintf("default for %s is not a Go expression", param), err.Error())
			ok = false
			continue
		}
		if param == c.ChildrenParam && param != "" {
			s.errorf("directive/default", d.Span, "the children slot cannot have a default", "")
			ok = false
			continue
		}
		i := propIndex(c.Props, param)
		if i < 0 {
			s.errorf("directive/default", d.Span,
				fmt.Sprintf("%s has no parameter %s", name, param),
				"parameters: "+strings.Join(c.ParamNames(), ", "))
			ok = false
			continue
		}
		if c.Props[i].HasDefault {
			s.errorf("directive/default", d.Span, "second default for "+param, "")
			ok = false
			continue
		}
		c.Props[i].Default = expr
		c.Props[i].HasDefault = true
	}
	return c, ok
}

func propIndex(props []registry.Prop, param string) int {
	for i, p := range props {
		if p.Param == param {
			return i
		}
	}
	return -1
}
