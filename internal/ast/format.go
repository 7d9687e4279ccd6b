package ast

import (
	"strconv"
	"strings"
)

// Format prints nodes back as template source in a canonical layout.
// Parsing the result yields the same tree, spans aside.
func Format(nodes []Node) string {
	var b strings.Builder
	for i, n := range nodes {
		if i > 0 {
			b.WriteByte(' ')
		}
		formatNode(&b, n)
	}
	return b.String()
}

func formatNodes(b *strings.Builder, nodes []Node) {
	for _, n := range nodes {
		b.WriteByte(' ')
		formatNode(b, n)
	}
	b.WriteByte(' ')
}

func formatBlock(b *strings.Builder, nodes []Node) {
	b.WriteByte('{')
	formatNodes(b, nodes)
	b.WriteByte('}')
}

func formatAttrs(b *strings.Builder, attrs []*Attribute) {
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		switch a.Kind {
		case ValueStatic:
			b.WriteString("=" + strconv.Quote(a.Static))
		case ValueDynamic:
			b.WriteString("={" + a.Expr.Src + "}")
		case ValueBoolean:
			b.WriteString("?={" + a.Expr.Src + "}")
		}
	}
}

func formatNode(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Element:
		b.WriteString("<" + n.Tag)
		formatAttrs(b, n.Attrs)
		if n.SelfClosing {
			b.WriteString("/>")
			return
		}
		b.WriteByte('>')
		if IsVoid(n.Tag) {
			return
		}
		formatNodes(b, n.Children)
		b.WriteString("</" + n.Tag + ">")
	case *Text:
		b.WriteString(strconv.Quote(n.Value))
	case *Interpolation:
		b.WriteString("{" + n.Expr.Src + "}")
	case *ComponentCall:
		b.WriteString("@" + n.QualifiedName() + "(")
		parts := make([]string, 0, len(n.Args)+len(n.Positional))
		for _, a := range n.Args {
			parts = append(parts, a.Name+"={"+a.Value.Src+"}")
		}
		for _, p := range n.Positional {
			parts = append(parts, p.Src)
		}
		b.WriteString(strings.Join(parts, ", ") + ")")
		if n.HasBlock {
			b.WriteByte(' ')
			formatBlock(b, n.Children)
		}
	case *If:
		b.WriteString("@if " + n.Cond.Src + " ")
		formatBlock(b, n.Then)
		for _, ei := range n.ElseIfs {
			b.WriteString(" @else if " + ei.Cond.Src + " ")
			formatBlock(b, ei.Body)
		}
		if n.HasElse {
			b.WriteString(" @else ")
			formatBlock(b, n.Else)
		}
	case *For:
		b.WriteString("@for ")
		if !n.Pattern.IsEmpty() {
			b.WriteString(n.Pattern.Src + " := ")
		}
		b.WriteString("range " + n.Iter.Src + " ")
		formatBlock(b, n.Body)
	case *Match:
		b.WriteString("@match " + n.Scrutinee.Src + " {")
		for _, a := range n.Arms {
			b.WriteString(" " + a.Pattern.Src + " => ")
			formatBlock(b, a.Body)
		}
		b.WriteString(" }")
	case *Let:
		b.WriteString("@let " + n.Pattern.Src + " := " + n.Value.Src + ";")
	case *Fragment:
		b.WriteString("<>")
		formatNodes(b, n.Children)
		b.WriteString("</>")
	case *Style:
		b.WriteString("<style")
		formatAttrs(b, n.Attrs)
		if n.Source == StyleFile {
			b.WriteString("/>")
			return
		}
		b.WriteString("> " + strconv.Quote(n.CSS) + " </style>")
	case *Script:
		b.WriteString("<script")
		formatAttrs(b, n.Attrs)
		b.WriteByte('>')
		switch n.Kind {
		case ScriptInline:
			if n.Text != "" {
				b.WriteString(" " + strconv.Quote(n.Text) + " ")
			}
		case ScriptJSONLD:
			b.WriteString(" {" + n.Expr.Src + "} ")
		}
		b.WriteString("</script>")
	case *Comment:
		b.WriteString(n.Text)
		if strings.HasPrefix(n.Text, "//") {
			b.WriteByte('\n')
		}
	case *Doctype:
		b.WriteString("<!DOCTYPE " + n.Value + ">")
	}
}
