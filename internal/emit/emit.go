// Package emit generates the Go code for a template region.
//
// A region becomes a templ.Component literal whose body writes the
// template through a kiln.Writer:
//
//	templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
//		kw := kiln.NewWriter(w)
//		kw.Writef(ctx, "<p data-s1a2b3c4d>Hello, %v</p>", name)
//		return kw.Err()
//	})
//
// Adjacent literal output is merged at generation time. Interpolated
// values become %v verbs of a single Writef call that escapes each one.
package emit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/conneroisu/kiln/internal/ast"
)

// Default import names used by generated code.
const (
	RuntimeName = "kiln"
	TemplName   = "templ"
)

// ErrUnresolved is returned for a component call the resolver has not
// lowered.
var ErrUnresolved = errors.New("unresolved component call")

// Options configure generation of one region.
type Options struct {
	// Scope is stamped on every element as data-<Scope>. Empty for
	// templates without a scoped stylesheet.
	Scope string
	// Runtime and Templ are the import names of the kiln runtime and of
	// templ in the generated file.
	Runtime string
	Templ   string
}

func (o Options) runtime() string {
	if o.Runtime == "" {
		return RuntimeName
	}
	return o.Runtime
}

func (o Options) templ() string {
	if o.Templ == "" {
		return TemplName
	}
	return o.Templ
}

// Component returns a Go expression of type templ.Component that renders
// nodes. Style nodes must already carry their final CSS text.
func Component(nodes []ast.Node, opts Options) (string, error) {
	g := &generator{opts: opts}
	g.component(nodes)
	if g.err != nil {
		return "", g.err
	}
	return g.b.String(), nil
}

type generator struct {
	opts  Options
	b     strings.Builder
	depth int
	// format is the pending Writef format; args its %v operands.
	format strings.Builder
	args   []string
	err    error
}

func (g *generator) indent() {
	for range g.depth {
		g.b.WriteByte('\t')
	}
}

func (g *generator) line(format string, args ...any) {
	g.indent()
	fmt.Fprintf(&g.b, format, args...)
	g.b.WriteByte('\n')
}

// literal queues bytes written verbatim.
func (g *generator) literal(s string) {
	g.format.WriteString(strings.ReplaceAll(s, "%", "%%"))
}

// value queues an escaped Go expression.
func (g *generator) value(expr string) {
	g.format.WriteString("%v")
	g.args = append(g.args, expr)
}

// flush writes the pending output as one call.
func (g *generator) flush() {
	if g.format.Len() == 0 {
		return
	}
	format := g.format.String()
	g.format.Reset()
	if len(g.args) == 0 {
		g.line("kw.Literal(%s)", strconv.Quote(strings.ReplaceAll(format, "%%", "%")))
		return
	}
	g.line("kw.Writef(ctx, %s, %s)", strconv.Quote(format), strings.Join(g.args, ", "))
	g.args = g.args[:0]
}

func (g *generator) component(nodes []ast.Node) {
	fmt.Fprintf(&g.b, "%s.ComponentFunc(func(ctx context.Context, w io.Writer) error {\n", g.opts.templ())
	g.depth++
	g.line("kw := %s.NewWriter(w)", g.opts.runtime())
	g.nodes(nodes)
	g.flush()
	g.line("return kw.Err()")
	g.depth--
	g.indent()
	g.b.WriteString("})")
}

func (g *generator) nodes(nodes []ast.Node) {
	for _, n := range nodes {
		g.node(n)
	}
}

func (g *generator) node(n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		g.literal(n.Value)
	case *ast.Interpolation:
		g.value(n.Expr.Src)
	case *ast.Element:
		g.element(n)
	case *ast.Fragment:
		g.nodes(n.Children)
	case *ast.Doctype:
		g.literal("<!DOCTYPE " + n.Value + ">")
	case *ast.Comment:
	case *ast.Style:
		g.style(n)
	case *ast.Script:
		g.script(n)
	case *ast.ComponentCall:
		g.call(n)
	case *ast.If:
		g.ifNode(n)
	case *ast.For:
		g.forNode(n)
	case *ast.Match:
		g.match(n)
	case *ast.Let:
		g.let(n)
	default:
		g.fail(fmt.Errorf("emit: unexpected node %T", n))
	}
}

func (g *generator) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

func (g *generator) element(el *ast.Element) {
	g.literal("<" + el.Tag)
	if g.opts.Scope != "" {
		g.literal(" data-" + g.opts.Scope)
	}
	for _, a := range el.Attrs {
		if el.Tag == "form" && a.Name == "bind" {
			continue
		}
		g.attr(a)
	}
	if ast.IsVoid(el.Tag) {
		g.literal("/>")
		return
	}
	g.literal(">")
	g.nodes(el.Children)
	g.literal("</" + el.Tag + ">")
}

func (g *generator) attrs(attrs []*ast.Attribute, skip ...string) {
outer:
	for _, a := range attrs {
		for _, s := range skip {
			if a.Name == s {
				continue outer
			}
		}
		g.attr(a)
	}
}

func (g *generator) attr(a *ast.Attribute) {
	switch a.Kind {
	case ast.ValueNone:
		g.literal(" " + a.Name)
	case ast.ValueStatic:
		g.literal(" " + a.Name + `="` + quoteAttr(a.Static) + `"`)
	case ast.ValueDynamic:
		g.literal(" " + a.Name + `="`)
		g.value(a.Expr.Src)
		g.literal(`"`)
	case ast.ValueBoolean:
		g.flush()
		g.line("if %s {", a.Expr.Src)
		g.depth++
		g.line("kw.Literal(%s)", strconv.Quote(" "+a.Name))
		g.depth--
		g.line("}")
	}
}

// quoteAttr escapes the quote of a literal attribute value. Entities the
// author wrote are kept.
func quoteAttr(s string) string {
	return strings.ReplaceAll(s, `"`, "&quot;")
}

func (g *generator) style(st *ast.Style) {
	g.literal("<style")
	g.attrs(st.Attrs, "src", "scoped", "global")
	g.literal(">" + st.CSS + "</style>")
}

func (g *generator) script(sc *ast.Script) {
	g.literal("<script")
	g.attrs(sc.Attrs)
	g.literal(">")
	switch sc.Kind {
	case ast.ScriptInline:
		g.literal(sc.Text)
	case ast.ScriptJSONLD:
		g.value(g.opts.runtime() + ".JSON(" + sc.Expr.Src + ")")
	}
	g.literal("</script>")
}

func (g *generator) call(c *ast.ComponentCall) {
	res := c.Resolved
	if res == nil {
		g.fail(fmt.Errorf("%w %s", ErrUnresolved, c.QualifiedName()))
		return
	}
	g.flush()
	g.indent()
	fmt.Fprintf(&g.b, "kw.Component(ctx, %s(%s{", res.Func, res.PropsType)
	for i, f := range res.Fields {
		if i > 0 {
			g.b.WriteString(", ")
		}
		fmt.Fprintf(&g.b, "%s: %s", f.Field, f.Expr)
	}
	if res.ChildrenField != "" {
		if len(res.Fields) > 0 {
			g.b.WriteString(", ")
		}
		fmt.Fprintf(&g.b, "%s: ", res.ChildrenField)
		// The child block renders with the caller's scope.
		g.component(c.Children)
	}
	g.b.WriteString("}))\n")
}

func (g *generator) ifNode(n *ast.If) {
	g.flush()
	g.line("if %s {", n.Cond.Src)
	g.block(n.Then)
	for _, ei := range n.ElseIfs {
		g.line("} else if %s {", ei.Cond.Src)
		g.block(ei.Body)
	}
	if n.HasElse {
		g.line("} else {")
		g.block(n.Else)
	}
	g.line("}")
}

func (g *generator) forNode(n *ast.For) {
	g.flush()
	if n.Pattern.IsEmpty() {
		g.line("for range %s {", n.Iter.Src)
	} else {
		g.line("for %s := range %s {", n.Pattern.Src, n.Iter.Src)
	}
	g.block(n.Body)
	g.line("}")
}

func (g *generator) match(n *ast.Match) {
	g.flush()
	g.line("switch %s {", n.Scrutinee.Src)
	for _, arm := range n.Arms {
		if arm.IsDefault() {
			g.line("default:")
		} else {
			g.line("case %s:", arm.Pattern.Src)
		}
		g.block(arm.Body)
	}
	g.line("}")
}

func (g *generator) let(n *ast.Let) {
	g.flush()
	g.line("%s := %s", n.Pattern.Src, n.Value.Src)
	names := strings.Split(n.Pattern.Src, ",")
	blanks := make([]string, len(names))
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
		blanks[i] = "_"
	}
	g.line("%s = %s", strings.Join(blanks, ", "), strings.Join(names, ", "))
}

// block emits a control-flow body. Pending output never crosses the
// braces.
func (g *generator) block(nodes []ast.Node) {
	g.depth++
	g.nodes(nodes)
	g.flush()
	g.depth--
}
