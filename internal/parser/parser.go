// Package parser builds the template tree from lexer tokens.
//
// The parser is recursive descent with one token of lookahead (two when
// telling a closing tag from an opening one). Braced blocks that hold
// markup, such as the bodies of @if or of a component call, arrive from
// the lexer as opaque Brace tokens and are re-lexed on demand, so the
// same parser handles every nesting level.
package parser

import (
	"fmt"
	"strings"

	"github.com/conneroisu/kiln/internal/ast"
	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/lexer"
)

// Parse parses the template held in src[region].
func Parse(src []byte, region diag.Span) ([]ast.Node, diag.List) {
	toks, diags := lexer.Lex(src, region)
	p := &parser{src: src, toks: toks, end: region.End, diags: &diags}
	nodes, _ := p.parseNodes()
	if !p.atEOF() && !p.failed {
		t := p.peek()
		p.errorf("parse/unexpected-close", t.Span, "unexpected closing tag",
			"remove the closing tag or add the element it closes")
	}
	return nodes, diags
}

type parser struct {
	src    []byte
	toks   []lexer.Token
	pos    int
	end    int
	diags  *diag.List
	failed bool
}

func (p *parser) sub(block lexer.Token) *parser {
	toks, diags := lexer.Lex(p.src, block.Inner)
	*p.diags = append(*p.diags, diags...)
	return &parser{src: p.src, toks: toks, end: block.Inner.End, diags: p.diags}
}

func (p *parser) atEOF() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() lexer.Token { return p.peekAt(0) }

func (p *parser) peekAt(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF, Span: diag.Span{Start: p.end, End: p.end}}
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() lexer.Token {
	t := p.peek()
	if !p.atEOF() {
		p.pos++
	}
	return t
}

func (p *parser) prevEnd() int {
	if p.pos == 0 || len(p.toks) == 0 {
		return p.end
	}
	return p.toks[p.pos-1].Span.End
}

func (p *parser) errorf(rule string, span diag.Span, summary, help string) {
	p.failed = true
	*p.diags = append(*p.diags, diag.New(rule, span, summary, help))
}

func (p *parser) expect(kind lexer.Kind, what string) (lexer.Token, bool) {
	t := p.peek()
	if t.Kind != kind {
		p.errorf("parse/unexpected-token", t.Span,
			fmt.Sprintf("expected %s %s, found %s", kind, what, describe(t)), "")
		return t, false
	}
	return p.next(), true
}

func describe(t lexer.Token) string {
	switch t.Kind {
	case lexer.EOF:
		return t.Kind.String()
	case lexer.Brace:
		return "'{...}'"
	}
	return fmt.Sprintf("%q", t.Text)
}

func (p *parser) atCloseTag() bool {
	return p.peek().Kind == lexer.LAngle && p.peekAt(1).Kind == lexer.Slash
}

// parseNodes parses siblings until a closing tag or the end of input.
func (p *parser) parseNodes() ([]ast.Node, bool) {
	var nodes []ast.Node
	for !p.atEOF() && !p.atCloseTag() {
		n, ok := p.parseNode()
		if !ok {
			return nodes, false
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, true
}

func (p *parser) parseNode() (ast.Node, bool) {
	t := p.peek()
	switch t.Kind {
	case lexer.Semicolon:
		p.next()
		return nil, true
	case lexer.Comment:
		p.next()
		return &ast.Comment{Text: t.Text, Pos: t.Span}, true
	case lexer.String:
		p.next()
		return &ast.Text{Value: t.Value, Pos: t.Span}, true
	case lexer.Brace:
		p.next()
		expr := hostExpr(t)
		if expr.IsEmpty() {
			p.errorf("parse/empty-expression", t.Span, "empty interpolation",
				"put a Go expression between the braces or remove them")
			return nil, false
		}
		return &ast.Interpolation{Expr: expr, Pos: t.Span}, true
	case lexer.LAngle:
		return p.parseAngle()
	case lexer.At:
		return p.parseDirective()
	}

	p.errorf("lex/unquoted-text", t.Span,
		fmt.Sprintf("unquoted text %s", describe(t)),
		`static text must be a quoted string literal, e.g. "Hello"`)
	return nil, false
}

func hostExpr(brace lexer.Token) ast.HostExpr {
	return ast.HostExpr{Src: strings.TrimSpace(brace.Text), Pos: brace.Inner}
}

func (p *parser) hostFrom(toks []lexer.Token) ast.HostExpr {
	if len(toks) == 0 {
		return ast.HostExpr{}
	}
	span := diag.Span{Start: toks[0].Span.Start, End: toks[len(toks)-1].Span.End}
	return ast.HostExpr{Src: string(p.src[span.Start:span.End]), Pos: span}
}

func (p *parser) parseAngle() (ast.Node, bool) {
	switch p.peekAt(1).Kind {
	case lexer.RAngle:
		return p.parseFragment()
	case lexer.Bang:
		return p.parseDoctype()
	case lexer.Ident:
		return p.parseElement()
	}
	t := p.peekAt(1)
	p.errorf("parse/expected-tag", t.Span,
		fmt.Sprintf("expected a tag name after '<', found %s", describe(t)), "")
	return nil, false
}

func (p *parser) parseFragment() (ast.Node, bool) {
	open := p.next()
	p.next()
	children, ok := p.parseNodes()
	if !ok {
		return nil, false
	}
	if p.atEOF() {
		p.errorf("parse/unclosed-element", diag.Span{Start: open.Span.Start, End: open.Span.Start + 2},
			"unclosed fragment <>", "add </> after the fragment's children")
		return nil, false
	}
	p.next()
	p.next()
	if t := p.peek(); t.Kind != lexer.RAngle {
		p.errorf("parse/mismatched-tag", t.Span,
			fmt.Sprintf("mismatched closing tag: expected </>, found </%s>", t.Text),
			"fragments opened with <> close with </>")
		return nil, false
	}
	end := p.next()
	return &ast.Fragment{Children: children, Pos: diag.Span{Start: open.Span.Start, End: end.Span.End}}, true
}

func (p *parser) parseDoctype() (ast.Node, bool) {
	open := p.next()
	p.next()
	kw := p.peek()
	if kw.Kind != lexer.Ident || !strings.EqualFold(kw.Text, "doctype") {
		p.errorf("parse/expected-tag", kw.Span, "expected DOCTYPE after '<!'",
			"template comments use // or /* */")
		return nil, false
	}
	p.next()
	var words []string
	for p.peek().Kind == lexer.Ident {
		words = append(words, p.next().Text)
	}
	end, ok := p.expect(lexer.RAngle, "to close <!DOCTYPE")
	if !ok {
		return nil, false
	}
	return &ast.Doctype{
		Value: strings.Join(words, " "),
		Pos:   diag.Span{Start: open.Span.Start, End: end.Span.End},
	}, true
}

func (p *parser) parseElement() (ast.Node, bool) {
	open := p.next()
	name := p.next()
	tag := name.Text

	attrs, selfClosing, ok := p.parseAttrs(tag)
	if !ok {
		return nil, false
	}
	openTag := diag.Span{Start: open.Span.Start, End: p.prevEnd()}

	switch tag {
	case "style":
		return p.parseStyle(attrs, selfClosing, openTag)
	case "script":
		return p.parseScript(attrs, selfClosing, openTag)
	}

	el := &ast.Element{Tag: tag, Attrs: attrs, SelfClosing: selfClosing, OpenTag: openTag, Pos: openTag}
	if selfClosing || ast.IsVoid(tag) {
		return el, true
	}

	children, ok := p.parseNodes()
	if !ok {
		return nil, false
	}
	el.Children = children

	end, ok := p.closeTag(tag, openTag)
	if !ok {
		return nil, false
	}
	el.Pos.End = end
	return el, true
}

// closeTag consumes </tag> and returns the offset just past it.
func (p *parser) closeTag(tag string, openTag diag.Span) (int, bool) {
	if p.atEOF() {
		p.errorf("parse/unclosed-element", openTag,
			fmt.Sprintf("unclosed element <%s>", tag),
			fmt.Sprintf("add </%s> after the element's children", tag))
		return 0, false
	}
	start := p.next()
	p.next()
	name := p.peek()
	if name.Kind != lexer.Ident || name.Text != tag {
		found := "</>"
		if name.Kind == lexer.Ident {
			found = "</" + name.Text + ">"
		}
		p.errorf("parse/mismatched-tag", diag.Span{Start: start.Span.Start, End: name.Span.End},
			fmt.Sprintf("mismatched closing tag: expected </%s>, found %s", tag, found),
			fmt.Sprintf("the element opened here as <%s> must be closed before its parent", tag))
		return 0, false
	}
	p.next()
	end, ok := p.expect(lexer.RAngle, "to close </"+tag)
	if !ok {
		return 0, false
	}
	return end.Span.End, true
}

// parseAttrs reads attributes up to and including '>' or '/>'.
func (p *parser) parseAttrs(tag string) ([]*ast.Attribute, bool, bool) {
	var attrs []*ast.Attribute
	for {
		t := p.peek()
		switch t.Kind {
		case lexer.RAngle:
			p.next()
			return attrs, false, true
		case lexer.Slash:
			p.next()
			if _, ok := p.expect(lexer.RAngle, "after '/' in <"+tag); !ok {
				return nil, false, false
			}
			return attrs, true, true
		case lexer.Semicolon, lexer.Comment:
			p.next()
		case lexer.Ident:
			a, ok := p.parseAttr()
			if !ok {
				return nil, false, false
			}
			attrs = append(attrs, a)
		case lexer.EOF:
			p.errorf("parse/unclosed-tag", t.Span,
				fmt.Sprintf("unterminated <%s> tag", tag), "close the tag with '>' or '/>'")
			return nil, false, false
		default:
			p.errorf("parse/unexpected-token", t.Span,
				fmt.Sprintf("unexpected %s in <%s> tag", describe(t), tag),
				`attributes are written name="value", name={expr} or name`)
			return nil, false, false
		}
	}
}

func (p *parser) parseAttr() (*ast.Attribute, bool) {
	name := p.next()
	a := &ast.Attribute{Name: name.Text, NamePos: name.Span, Pos: name.Span}

	forceBool := false
	switch t := p.peek(); t.Kind {
	case lexer.String, lexer.Brace:
		p.errorf("parse/missing-equals", diag.Span{Start: name.Span.End, End: t.Span.Start + 1},
			fmt.Sprintf("missing '=' after attribute %q", name.Text),
			fmt.Sprintf("write %s=%s", name.Text, describe(t)))
		return nil, false
	case lexer.Question:
		p.next()
		forceBool = true
		if p.peek().Kind != lexer.Equals {
			p.errorf("parse/unexpected-token", p.peek().Span,
				"expected '=' after '?'", fmt.Sprintf("boolean attributes are written %s?={cond}", name.Text))
			return nil, false
		}
	case lexer.Equals:
	default:
		a.Kind = ast.ValueNone
		return a, true
	}

	p.next()
	v := p.peek()
	switch {
	case v.Kind == lexer.String && !forceBool:
		p.next()
		a.Kind = ast.ValueStatic
		a.Static = v.Value
	case v.Kind == lexer.Brace:
		p.next()
		a.Expr = hostExpr(v)
		if a.Expr.IsEmpty() {
			p.errorf("parse/empty-expression", v.Span, "empty attribute expression",
				"put a Go expression between the braces")
			return nil, false
		}
		a.Kind = ast.ValueDynamic
		if forceBool || ast.IsBooleanAttribute(a.Name) {
			a.Kind = ast.ValueBoolean
		}
	case v.Kind == lexer.Ident || v.Kind == lexer.Other:
		p.errorf("lex/unquoted-text", v.Span,
			fmt.Sprintf("unquoted value %s for attribute %q", describe(v), name.Text),
			fmt.Sprintf(`quote the value: %s="%s"`, name.Text, v.Text))
		return nil, false
	default:
		p.errorf("parse/missing-value", v.Span,
			fmt.Sprintf("missing value for attribute %q", name.Text),
			`use name="value", name={expr}, or drop the '='`)
		return nil, false
	}
	a.Pos.End = v.Span.End
	return a, true
}

func (p *parser) parseStyle(attrs []*ast.Attribute, selfClosing bool, openTag diag.Span) (ast.Node, bool) {
	st := &ast.Style{Attrs: attrs, Pos: openTag}
	for _, a := range attrs {
		switch a.Name {
		case "src":
			if a.Kind != ast.ValueStatic {
				p.errorf("parse/style-src", a.Pos, "<style src> must be a string literal",
					"stylesheets are read at build time, so their path must be static")
				return nil, false
			}
			st.Source = ast.StyleFile
			st.Path = a.Static
		case "scoped":
			st.Scoped = true
		case "global":
			st.Global = true
		}
	}
	if st.Source == ast.StyleFile && !st.Global {
		st.Scoped = true
	}

	if selfClosing {
		if st.Source != ast.StyleFile {
			p.errorf("parse/style-src", openTag, "self-closing <style/> needs a src attribute",
				`write <style src="component.css"/>`)
			return nil, false
		}
		return st, true
	}

	children, ok := p.parseNodes()
	if !ok {
		return nil, false
	}
	var css strings.Builder
	for _, c := range children {
		switch c := c.(type) {
		case *ast.Text:
			css.WriteString(c.Value)
		case *ast.Comment:
		default:
			p.errorf("parse/style-content", c.Span(), "<style> content must be string literals",
				"stylesheets are static; move dynamic values into attributes")
			return nil, false
		}
	}
	if st.Source == ast.StyleFile && css.Len() > 0 {
		p.errorf("parse/style-content", openTag, "<style> has both src and inline content",
			"use either src or inline content")
		return nil, false
	}
	st.CSS = css.String()

	end, ok := p.closeTag("style", openTag)
	if !ok {
		return nil, false
	}
	st.Pos.End = end
	return st, true
}

func (p *parser) parseScript(attrs []*ast.Attribute, selfClosing bool, openTag diag.Span) (ast.Node, bool) {
	sc := &ast.Script{Attrs: attrs, Pos: openTag}
	for _, a := range attrs {
		switch {
		case a.Name == "src" && a.Kind == ast.ValueStatic:
			sc.Kind = ast.ScriptFile
			sc.Src = a.Static
		case a.Name == "type" && a.Kind == ast.ValueStatic && a.Static == "application/ld+json":
			sc.Kind = ast.ScriptJSONLD
		}
	}
	if selfClosing {
		return sc, true
	}

	children, ok := p.parseNodes()
	if !ok {
		return nil, false
	}
	var text strings.Builder
	for _, c := range children {
		switch c := c.(type) {
		case *ast.Text:
			text.WriteString(c.Value)
		case *ast.Interpolation:
			if sc.Kind != ast.ScriptJSONLD || !sc.Expr.IsEmpty() {
				p.errorf("parse/script-content", c.Pos, "only JSON-LD scripts may contain an expression",
					`add type="application/ld+json" or quote the script body`)
				return nil, false
			}
			sc.Expr = c.Expr
		case *ast.Comment:
		default:
			p.errorf("parse/script-content", c.Span(), "<script> content must be a string literal", "")
			return nil, false
		}
	}
	if sc.Kind == ast.ScriptJSONLD && sc.Expr.IsEmpty() {
		sc.Kind = ast.ScriptInline
	}
	sc.Text = text.String()

	end, ok := p.closeTag("script", openTag)
	if !ok {
		return nil, false
	}
	sc.Pos.End = end
	return sc, true
}
