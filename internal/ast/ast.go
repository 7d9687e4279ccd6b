// Package ast defines the template tree produced by the parser and
// consumed by the validator, scoper, resolver and emitter.
package ast

import (
	"github.com/conneroisu/kiln/internal/diag"
)

// Node is any template node. Every node carries the span of source it was
// parsed from.
type Node interface {
	Span() diag.Span
	node()
}

// HostExpr is a verbatim slice of Go source. The compiler never looks
// inside it.
type HostExpr struct {
	Src string
	Pos diag.Span
}

// IsEmpty reports whether the expression has no source text.
func (h HostExpr) IsEmpty() bool { return h.Src == "" }

// ValueKind is the kind of an attribute value.
type ValueKind int

const (
	// ValueNone is a valueless attribute such as <input required>.
	ValueNone ValueKind = iota
	// ValueStatic is a quoted literal value.
	ValueStatic
	// ValueDynamic is a {expr} value rendered with escaping.
	ValueDynamic
	// ValueBoolean renders the bare name when the expression is true.
	ValueBoolean
)

// String returns the name of the value kind.
func (k ValueKind) String() string {
	switch k {
	case ValueNone:
		return "none"
	case ValueStatic:
		return "static"
	case ValueDynamic:
		return "dynamic"
	case ValueBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Attribute is a name/value pair on an element.
type Attribute struct {
	Name    string
	Kind    ValueKind
	Static  string
	Expr    HostExpr
	NamePos diag.Span
	Pos     diag.Span
}

// Element is an HTML element.
type Element struct {
	Tag         string
	Attrs       []*Attribute
	Children    []Node
	SelfClosing bool
	// OpenTag covers "<tag ...>".
	OpenTag diag.Span
	Pos     diag.Span
}

// Attr returns the first attribute with the given name.
func (e *Element) Attr(name string) (*Attribute, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// RemoveAttr drops every attribute with the given name.
func (e *Element) RemoveAttr(name string) {
	kept := e.Attrs[:0]
	for _, a := range e.Attrs {
		if a.Name != name {
			kept = append(kept, a)
		}
	}
	e.Attrs = kept
}

// Text is a quoted static string.
type Text struct {
	Value string
	Pos   diag.Span
}

// Interpolation is a {expr} in child position.
type Interpolation struct {
	Expr HostExpr
	Pos  diag.Span
}

// Arg is a named component-call argument.
type Arg struct {
	Name    string
	NamePos diag.Span
	Value   HostExpr
}

// ComponentCall is @Name(args){children}.
type ComponentCall struct {
	// Package is the qualifier of @pkg.Name calls.
	Package string
	Name    string
	NamePos diag.Span
	Args    []Arg
	// Positional holds arguments written without name=, kept so the
	// validator can point at them.
	Positional []HostExpr
	Children   []Node
	HasBlock   bool
	Pos        diag.Span
	// Resolved is filled in by the resolver.
	Resolved *Resolution
}

// QualifiedName returns pkg.Name or Name.
func (c *ComponentCall) QualifiedName() string {
	if c.Package != "" {
		return c.Package + "." + c.Name
	}
	return c.Name
}

// Arg returns the argument with the given name.
func (c *ComponentCall) Arg(name string) (Arg, bool) {
	for _, a := range c.Args {
		if a.Name == name {
			return a, true
		}
	}
	return Arg{}, false
}

// Resolution is the lowered form of a component call.
type Resolution struct {
	// Func is the generated render entry point, e.g. RenderButton or
	// ui.RenderButton.
	Func string
	// PropsType is the generated props struct, e.g. ButtonProps.
	PropsType string
	Fields    []FieldInit
	// ChildrenField receives the call's child block when set.
	ChildrenField string
}

// FieldInit is one field of the props literal.
type FieldInit struct {
	Field   string
	Expr    string
	Default bool
}

// ElseIf is one @else if branch.
type ElseIf struct {
	Cond HostExpr
	Body []Node
}

// If is @if / @else if / @else.
type If struct {
	Cond    HostExpr
	Then    []Node
	ElseIfs []ElseIf
	Else    []Node
	HasElse bool
	Pos     diag.Span
}

// For is @for pattern := range iter.
type For struct {
	Pattern HostExpr
	Iter    HostExpr
	Body    []Node
	Pos     diag.Span
}

// MatchArm is one pattern => { body } arm. A pattern of "_" is the
// default arm.
type MatchArm struct {
	Pattern HostExpr
	Body    []Node
}

// IsDefault reports whether the arm matches anything.
func (a MatchArm) IsDefault() bool { return a.Pattern.Src == "_" }

// Match is @match scrutinee { arms }.
type Match struct {
	Scrutinee HostExpr
	Arms      []MatchArm
	Pos       diag.Span
}

// Let is @let pattern := value.
type Let struct {
	Pattern HostExpr
	Value   HostExpr
	Pos     diag.Span
}

// Fragment groups siblings without an enclosing element.
type Fragment struct {
	Children []Node
	Pos      diag.Span
}

// StyleSource says where a stylesheet comes from.
type StyleSource int

const (
	StyleInline StyleSource = iota
	StyleFile
)

// Style is a <style> element. File-backed sheets are read at build time.
type Style struct {
	Source StyleSource
	// Path is the src attribute of file-backed sheets.
	Path string
	// CSS is the inline text, or the file contents once loaded.
	CSS    string
	Scoped bool
	Global bool
	Attrs  []*Attribute
	Pos    diag.Span
}

// ScriptKind says what a <script> carries.
type ScriptKind int

const (
	ScriptInline ScriptKind = iota
	ScriptFile
	ScriptJSONLD
)

// Script is a <script> element. Its contents are never executed at
// build time.
type Script struct {
	Kind  ScriptKind
	Text  string
	Src   string
	Expr  HostExpr
	Attrs []*Attribute
	Pos   diag.Span
}

// Comment is a template comment. It is not rendered.
type Comment struct {
	Text string
	Pos  diag.Span
}

// Doctype is <!DOCTYPE ...>.
type Doctype struct {
	Value string
	Pos   diag.Span
}

func (n *Element) Span() diag.Span       { return n.Pos }
func (n *Text) Span() diag.Span          { return n.Pos }
func (n *Interpolation) Span() diag.Span { return n.Pos }
func (n *ComponentCall) Span() diag.Span { return n.Pos }
func (n *If) Span() diag.Span            { return n.Pos }
func (n *For) Span() diag.Span           { return n.Pos }
func (n *Match) Span() diag.Span         { return n.Pos }
func (n *Let) Span() diag.Span           { return n.Pos }
func (n *Fragment) Span() diag.Span      { return n.Pos }
func (n *Style) Span() diag.Span         { return n.Pos }
func (n *Script) Span() diag.Span        { return n.Pos }
func (n *Comment) Span() diag.Span       { return n.Pos }
func (n *Doctype) Span() diag.Span       { return n.Pos }

func (*Element) node()       {}
func (*Text) node()          {}
func (*Interpolation) node() {}
func (*ComponentCall) node() {}
func (*If) node()            {}
func (*For) node()           {}
func (*Match) node()         {}
func (*Let) node()           {}
func (*Fragment) node()      {}
func (*Style) node()         {}
func (*Script) node()        {}
func (*Comment) node()       {}
func (*Doctype) node()       {}
