package validate

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/conneroisu/kiln/internal/ast"
	"github.com/conneroisu/kiln/internal/bind"
	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/suggest"
)

// Rules is the default rule table.
var Rules = []Rule{
	{
		ID:       "html/unknown-tag",
		Severity: diag.SeverityError,
		Doc:      "element names must be HTML, SVG or custom elements",
		Help:     "custom elements need a hyphen, e.g. <my-widget>; components are called with @Name(...)",
		Check:    checkUnknownTag,
	},
	{
		ID:       "html/nested-form",
		Severity: diag.SeverityError,
		Doc:      "<form> may not contain another <form>",
		Help:     "browsers drop the inner form and its fields submit with the outer one; move it outside",
		Check:    checkNestedForm,
	},
	{
		ID:       "html/button-interactive",
		Severity: diag.SeverityError,
		Doc:      "<button> may not contain interactive elements",
		Help:     "a, button, input, label, select and textarea inside a button make click behaviour undefined",
		Check:    checkButtonInteractive,
	},
	{
		ID:       "html/list-children",
		Severity: diag.SeverityError,
		Doc:      "<ul>, <ol> and <menu> contain only <li>",
		Help:     "wrap the content in <li>; screen readers count list items",
		Check:    checkListChildren,
	},
	{
		ID:       "html/p-block",
		Severity: diag.SeverityError,
		Doc:      "<p> may not contain block-level elements",
		Help:     "browsers close the paragraph before a block element; use a <div> or <span>",
		Check:    checkParagraphBlock,
	},
	{
		ID:       "html/table-children",
		Severity: diag.SeverityError,
		Doc:      "<table> contains only table sections and rows",
		Help:     "tables accept caption, colgroup, thead, tbody, tfoot and tr; browsers hoist anything else out",
		Check:    checkTableChildren,
	},
	{
		ID:       "html/inline-style",
		Severity: diag.SeverityError,
		Doc:      "stylesheets go through the scoper",
		Help:     `use <style src="component.css"/> or <style scoped>"..."</style>; put unscoped rules in global.css`,
		Check:    checkInlineStyle,
	},
	{
		ID:       "html/duplicate-attr",
		Severity: diag.SeverityError,
		Doc:      "attributes appear once per element",
		Help:     "browsers keep the first occurrence and ignore the rest",
		Check:    checkDuplicateAttr,
	},
	{
		ID:       "a11y/img-alt",
		Severity: diag.SeverityError,
		Doc:      "<img> needs alt text",
		Help:     `describe the image, or use alt="" if it is decorative`,
		Check:    checkImgAlt,
	},
	{
		ID:       "a11y/input-type",
		Severity: diag.SeverityError,
		Doc:      "<input type> must be a valid input type",
		Check:    checkInputType,
	},
	{
		ID:       "a11y/button-type",
		Severity: diag.SeverityError,
		Doc:      "<button type> must be button, submit or reset",
		Help:     "valid button types: button, reset, submit",
		Check:    checkButtonType,
	},
	{
		ID:       "a11y/aria-role",
		Severity: diag.SeverityError,
		Doc:      "role must be a WAI-ARIA role",
		Check:    checkAriaRole,
	},
	{
		ID:       "a11y/button-content",
		Severity: diag.SeverityError,
		Doc:      "<button> needs content",
		Help:     `give the button text, or an aria-label for icon buttons`,
		Check:    checkButtonContent,
	},
	{
		ID:       "args/positional",
		Severity: diag.SeverityError,
		Doc:      "component calls use named arguments",
		Check:    checkPositional,
	},
	{
		ID:       "form/bind",
		Severity: diag.SeverityError,
		Doc:      "names inside <form bind={T}> are field paths of T",
		Check:    checkFormBind,
	},
}

func element(n ast.Node, tags ...string) (*ast.Element, bool) {
	el, ok := n.(*ast.Element)
	if !ok {
		return nil, false
	}
	if len(tags) == 0 {
		return el, true
	}
	for _, t := range tags {
		if el.Tag == t {
			return el, true
		}
	}
	return nil, false
}

// insideElement reports whether any ancestor is an element with tag.
func insideElement(ancestors []ast.Node, tag string) bool {
	for _, a := range ancestors {
		if el, ok := a.(*ast.Element); ok && el.Tag == tag {
			return true
		}
	}
	return false
}

func staticAttr(el *ast.Element, name string) (*ast.Attribute, bool) {
	a, ok := el.Attr(name)
	if !ok || a.Kind != ast.ValueStatic {
		return nil, false
	}
	return a, true
}

func isBlank(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.Text:
		return strings.TrimSpace(n.Value) == ""
	case *ast.Comment, *ast.Let:
		return true
	}
	return false
}

// IsKnownTag reports whether tag is an HTML element, an SVG or MathML
// element, or a custom element.
func IsKnownTag(tag string) bool {
	if strings.Contains(tag, "-") || svgElements[tag] {
		return true
	}
	return htmlElements[atom.Lookup([]byte(tag))]
}

func checkUnknownTag(c *Check, n ast.Node, _ []ast.Node) {
	el, ok := element(n)
	if !ok || IsKnownTag(el.Tag) {
		return
	}
	summary := fmt.Sprintf("unknown element <%s>", el.Tag)
	switch lower := strings.ToLower(el.Tag); {
	case lower != el.Tag && IsKnownTag(lower):
		c.ReportHelp(el.OpenTag, summary, fmt.Sprintf("HTML element names are lower case: <%s>", lower))
	case el.Tag[0] >= 'A' && el.Tag[0] <= 'Z':
		c.ReportHelp(el.OpenTag, summary, fmt.Sprintf("to call a component write @%s(...)", el.Tag))
	default:
		c.Report(el.OpenTag, summary)
	}
}

func checkNestedForm(c *Check, n ast.Node, ancestors []ast.Node) {
	if el, ok := element(n, "form"); ok && insideElement(ancestors, "form") {
		c.Report(el.OpenTag, "nested <form> is not allowed")
	}
}

func checkButtonInteractive(c *Check, n ast.Node, ancestors []ast.Node) {
	el, ok := element(n)
	if !ok || !interactiveElements[el.Tag] || !insideElement(ancestors, "button") {
		return
	}
	c.Report(el.OpenTag, fmt.Sprintf("<%s> inside <button>", el.Tag))
}

// checkChildren reports direct children of el that allowed rejects.
// Interpolations and component calls are opaque and pass.
func checkChildren(c *Check, el *ast.Element, allowed map[string]bool) {
	for _, child := range ast.Flatten(el.Children) {
		if isBlank(child) {
			continue
		}
		switch child := child.(type) {
		case *ast.Element:
			if !allowed[child.Tag] {
				c.Report(child.OpenTag, fmt.Sprintf("<%s> is not allowed directly inside <%s>", child.Tag, el.Tag))
			}
		case *ast.Text:
			c.Report(child.Pos, fmt.Sprintf("text is not allowed directly inside <%s>", el.Tag))
		case *ast.Style:
			c.Report(child.Pos, fmt.Sprintf("<style> is not allowed directly inside <%s>", el.Tag))
		}
	}
}

func checkListChildren(c *Check, n ast.Node, _ []ast.Node) {
	if el, ok := element(n, "ul", "ol", "menu"); ok {
		checkChildren(c, el, listChildren)
	}
}

func checkTableChildren(c *Check, n ast.Node, _ []ast.Node) {
	if el, ok := element(n, "table"); ok {
		checkChildren(c, el, tableChildren)
	}
}

func checkParagraphBlock(c *Check, n ast.Node, _ []ast.Node) {
	p, ok := element(n, "p")
	if !ok {
		return
	}
	ast.Inspect(p.Children, func(n ast.Node, _ []ast.Node) bool {
		if el, ok := n.(*ast.Element); ok && blockElements[el.Tag] {
			c.Report(el.OpenTag, fmt.Sprintf("block element <%s> inside <p>", el.Tag))
			return false
		}
		return true
	})
}

func checkInlineStyle(c *Check, n ast.Node, _ []ast.Node) {
	switch n := n.(type) {
	case *ast.Style:
		if n.Source == ast.StyleInline && !n.Scoped {
			c.Report(n.Pos, "inline <style> without scoped")
		}
	case *ast.Element:
		if n.Tag != "link" {
			return
		}
		rel, ok := staticAttr(n, "rel")
		if !ok || !hasToken(rel.Static, "stylesheet") {
			return
		}
		href, ok := staticAttr(n, "href")
		if !ok || isRemote(href.Static) {
			return
		}
		c.Report(n.OpenTag, fmt.Sprintf("local stylesheet %q linked with <link>", href.Static))
	}
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}

func isRemote(href string) bool {
	return strings.HasPrefix(href, "https://") || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "//")
}

func checkDuplicateAttr(c *Check, n ast.Node, _ []ast.Node) {
	el, ok := element(n)
	if !ok {
		return
	}
	seen := make(map[string]bool, len(el.Attrs))
	for _, a := range el.Attrs {
		if seen[a.Name] {
			c.Report(a.Pos, fmt.Sprintf("duplicate attribute %q on <%s>", a.Name, el.Tag))
		}
		seen[a.Name] = true
	}
}

func checkImgAlt(c *Check, n ast.Node, _ []ast.Node) {
	if el, ok := element(n, "img"); ok {
		if _, has := el.Attr("alt"); !has {
			c.Report(el.OpenTag, "<img> is missing an alt attribute")
		}
	}
}

// vocabularyHelp suggests a correction for value from vocabulary.
func vocabularyHelp(value string, vocabulary map[string]bool, what string) string {
	if fix, ok := typeTypos[strings.ToLower(value)]; ok && vocabulary[fix] {
		return fmt.Sprintf("did you mean %q?", fix)
	}
	if best, ok := suggest.Closest(strings.ToLower(value), keys(vocabulary)); ok {
		return fmt.Sprintf("did you mean %q?", best)
	}
	valid := keys(vocabulary)
	sort.Strings(valid)
	return fmt.Sprintf("valid %s: %s", what, strings.Join(valid, ", "))
}

func checkInputType(c *Check, n ast.Node, _ []ast.Node) {
	el, ok := element(n, "input")
	if !ok {
		return
	}
	if a, ok := staticAttr(el, "type"); ok && !inputTypes[a.Static] {
		c.ReportHelp(a.Pos, fmt.Sprintf("invalid input type %q", a.Static),
			vocabularyHelp(a.Static, inputTypes, "input types"))
	}
}

func checkButtonType(c *Check, n ast.Node, _ []ast.Node) {
	el, ok := element(n, "button")
	if !ok {
		return
	}
	if a, ok := staticAttr(el, "type"); ok && !buttonTypes[a.Static] {
		c.ReportHelp(a.Pos, fmt.Sprintf("invalid button type %q", a.Static),
			vocabularyHelp(a.Static, buttonTypes, "button types"))
	}
}

func checkAriaRole(c *Check, n ast.Node, _ []ast.Node) {
	el, ok := element(n)
	if !ok {
		return
	}
	a, ok := staticAttr(el, "role")
	if !ok {
		return
	}
	roles := strings.Fields(a.Static)
	if len(roles) == 0 {
		c.ReportHelp(a.Pos, "empty role attribute", "remove the attribute or name a WAI-ARIA role")
		return
	}
	for _, r := range roles {
		if !ariaRoles[r] {
			c.ReportHelp(a.Pos, fmt.Sprintf("invalid ARIA role %q", r),
				vocabularyHelp(r, ariaRoles, "roles"))
		}
	}
}

func checkButtonContent(c *Check, n ast.Node, _ []ast.Node) {
	el, ok := element(n, "button")
	if !ok {
		return
	}
	for _, label := range []string{"aria-label", "aria-labelledby", "title"} {
		if _, has := el.Attr(label); has {
			return
		}
	}
	for _, child := range ast.Flatten(el.Children) {
		if !isBlank(child) {
			return
		}
	}
	c.Report(el.OpenTag, "<button> has no content")
}

func checkPositional(c *Check, n ast.Node, _ []ast.Node) {
	call, ok := n.(*ast.ComponentCall)
	if !ok || len(call.Positional) == 0 {
		return
	}
	help := "write name=value for every argument"
	if c.Options.Params != nil {
		if names, ok := c.Options.Params(call); ok && len(names) > 0 {
			help = fmt.Sprintf("%s takes %s", call.QualifiedName(), strings.Join(names, ", "))
			if len(call.Positional) <= len(names) {
				parts := make([]string, len(call.Positional))
				for i, p := range call.Positional {
					parts[i] = names[i] + "=" + p.Src
				}
				help += "; write " + strings.Join(parts, ", ")
			}
		}
	}
	for _, p := range call.Positional {
		c.ReportHelp(p.Pos, fmt.Sprintf("positional argument %s in call to %s", p.Src, call.QualifiedName()), help)
	}
}

func checkFormBind(c *Check, n ast.Node, _ []ast.Node) {
	el, ok := element(n, "form")
	if !ok {
		return
	}
	if _, bound := el.Attr(bind.BindAttr); !bound {
		return
	}
	c.Add(bind.Check(el, c.Options.Binder)...)
}
