package parser

import (
	"fmt"

	"github.com/conneroisu/kiln/internal/ast"
	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/lexer"
)

func (p *parser) parseDirective() (ast.Node, bool) {
	at := p.next()
	t := p.peek()
	if t.Kind != lexer.Ident {
		p.errorf("parse/expected-directive", diag.Join(at.Span, t.Span),
			"expected a directive or component name after '@'",
			"use @if, @for, @match, @let or @Component(...)")
		return nil, false
	}

	switch t.Text {
	case "if":
		return p.parseIf(at)
	case "for":
		return p.parseFor(at)
	case "match":
		return p.parseMatch(at)
	case "let":
		return p.parseLet(at)
	case "else":
		p.errorf("parse/orphan-else", diag.Join(at.Span, t.Span), "@else without a preceding @if",
			"@else must directly follow the closing brace of an @if block")
		return nil, false
	}
	return p.parseCall(at)
}

// header collects host tokens up to the next top-level Brace and returns
// them along with that brace.
func (p *parser) header(what string) ([]lexer.Token, lexer.Token, bool) {
	var toks []lexer.Token
	depth := 0
	for {
		t := p.peek()
		switch {
		case t.Kind == lexer.EOF:
			p.errorf("parse/expected-block", t.Span,
				fmt.Sprintf("expected '{' after %s", what), "")
			return nil, t, false
		case t.Kind == lexer.Brace && depth == 0:
			p.next()
			return toks, t, true
		case t.Kind == lexer.LParen || t.Is(lexer.Other, "["):
			depth++
		case t.Kind == lexer.RParen || t.Is(lexer.Other, "]"):
			depth--
		}
		toks = append(toks, p.next())
	}
}

func (p *parser) block(brace lexer.Token) ([]ast.Node, bool) {
	sp := p.sub(brace)
	nodes, ok := sp.parseNodes()
	if ok && !sp.atEOF() {
		t := sp.peek()
		sp.errorf("parse/unexpected-close", t.Span, "unexpected closing tag",
			"the matching opening tag is outside this block")
		ok = false
	}
	if !ok {
		p.failed = true
	}
	return nodes, ok
}

func (p *parser) parseIf(at lexer.Token) (ast.Node, bool) {
	p.next()
	cond, body, ok := p.header("@if condition")
	if !ok {
		return nil, false
	}
	if len(cond) == 0 {
		p.errorf("parse/missing-condition", diag.Join(at.Span, body.Span), "@if without a condition", "")
		return nil, false
	}
	then, ok := p.block(body)
	if !ok {
		return nil, false
	}
	n := &ast.If{Cond: p.hostFrom(cond), Then: then}

	for p.peek().Kind == lexer.At && p.peekAt(1).Is(lexer.Ident, "else") {
		p.next()
		elseTok := p.next()
		if p.peek().Is(lexer.Ident, "if") {
			p.next()
			cond, body, ok := p.header("@else if condition")
			if !ok {
				return nil, false
			}
			if len(cond) == 0 {
				p.errorf("parse/missing-condition", diag.Join(elseTok.Span, body.Span), "@else if without a condition", "")
				return nil, false
			}
			nodes, ok := p.block(body)
			if !ok {
				return nil, false
			}
			n.ElseIfs = append(n.ElseIfs, ast.ElseIf{Cond: p.hostFrom(cond), Body: nodes})
			continue
		}
		body, ok := p.expect(lexer.Brace, "after @else")
		if !ok {
			return nil, false
		}
		nodes, ok := p.block(body)
		if !ok {
			return nil, false
		}
		n.Else = nodes
		n.HasElse = true
		break
	}

	n.Pos = diag.Span{Start: at.Span.Start, End: p.prevEnd()}
	return n, true
}

func (p *parser) parseFor(at lexer.Token) (ast.Node, bool) {
	p.next()
	head, body, ok := p.header("@for clause")
	if !ok {
		return nil, false
	}

	n := &ast.For{}
	rangeAt := -1
	for i, t := range head {
		if t.Is(lexer.Ident, "range") {
			rangeAt = i
			break
		}
	}
	switch {
	case rangeAt == 0:
	case rangeAt >= 2 && (head[rangeAt-1].Is(lexer.Other, ":=") || head[rangeAt-1].Kind == lexer.Equals):
		n.Pattern = p.hostFrom(head[:rangeAt-1])
	default:
		span := diag.Join(at.Span, body.Span)
		if len(head) > 0 {
			span = diag.Span{Start: head[0].Span.Start, End: head[len(head)-1].Span.End}
		}
		p.errorf("parse/for-range", span, "@for expects a range clause",
			"write @for i, item := range items { ... }")
		return nil, false
	}
	n.Iter = p.hostFrom(head[rangeAt+1:])
	if n.Iter.IsEmpty() {
		p.errorf("parse/for-range", head[rangeAt].Span, "@for range without an expression", "")
		return nil, false
	}

	nodes, ok := p.block(body)
	if !ok {
		return nil, false
	}
	n.Body = nodes
	n.Pos = diag.Span{Start: at.Span.Start, End: body.Span.End}
	return n, true
}

func (p *parser) parseMatch(at lexer.Token) (ast.Node, bool) {
	p.next()
	head, body, ok := p.header("@match expression")
	if !ok {
		return nil, false
	}
	if len(head) == 0 {
		p.errorf("parse/missing-condition", diag.Join(at.Span, body.Span), "@match without an expression", "")
		return nil, false
	}
	n := &ast.Match{Scrutinee: p.hostFrom(head)}

	arms := p.sub(body)
	for !arms.atEOF() {
		t := arms.peek()
		if t.Kind == lexer.Comma || t.Kind == lexer.Semicolon || t.Kind == lexer.Comment {
			arms.next()
			continue
		}
		var pat []lexer.Token
		for !arms.atEOF() && !arms.atArrow() {
			pat = append(pat, arms.next())
		}
		if arms.atEOF() {
			arms.errorf("parse/match-arm", t.Span, "expected '=>' in @match arm",
				"arms are written pattern => { ... }")
			p.failed = true
			return nil, false
		}
		arrow := arms.next()
		arms.next()
		if len(pat) == 0 {
			arms.errorf("parse/match-arm", arrow.Span, "@match arm without a pattern",
				"use _ for the default arm")
			p.failed = true
			return nil, false
		}
		armBody, ok := arms.expect(lexer.Brace, "after '=>'")
		if !ok {
			p.failed = true
			return nil, false
		}
		nodes, ok := arms.block(armBody)
		if !ok {
			p.failed = true
			return nil, false
		}
		n.Arms = append(n.Arms, ast.MatchArm{Pattern: arms.hostFrom(pat), Body: nodes})
	}

	n.Pos = diag.Span{Start: at.Span.Start, End: body.Span.End}
	return n, true
}

func (p *parser) atArrow() bool {
	eq, gt := p.peek(), p.peekAt(1)
	return eq.Kind == lexer.Equals && gt.Kind == lexer.RAngle && gt.Span.Start == eq.Span.End
}

func (p *parser) parseLet(at lexer.Token) (ast.Node, bool) {
	kw := p.next()
	var toks []lexer.Token
	for !p.atEOF() {
		t := p.peek()
		if t.Kind == lexer.Semicolon {
			p.next()
			break
		}
		if t.LineBefore && len(toks) > 0 {
			break
		}
		toks = append(toks, p.next())
	}

	def := -1
	for i, t := range toks {
		if t.Is(lexer.Other, ":=") {
			def = i
			break
		}
	}
	if def < 1 || def == len(toks)-1 {
		span := kw.Span
		if len(toks) > 0 {
			span = diag.Span{Start: toks[0].Span.Start, End: toks[len(toks)-1].Span.End}
		}
		p.errorf("parse/let-syntax", span, "@let expects name := value",
			"write @let total := len(items)")
		return nil, false
	}

	return &ast.Let{
		Pattern: p.hostFrom(toks[:def]),
		Value:   p.hostFrom(toks[def+1:]),
		Pos:     diag.Span{Start: at.Span.Start, End: toks[len(toks)-1].Span.End},
	}, true
}

func (p *parser) parseCall(at lexer.Token) (ast.Node, bool) {
	first := p.next()
	call := &ast.ComponentCall{Name: first.Text, NamePos: first.Span}
	if dot := p.peek(); dot.Kind == lexer.Dot && dot.Span.Start == first.Span.End {
		p.next()
		second, ok := p.expect(lexer.Ident, "after '.' in component name")
		if !ok {
			return nil, false
		}
		call.Package = first.Text
		call.Name = second.Text
		call.NamePos = diag.Join(first.Span, second.Span)
	}

	if p.peek().Kind == lexer.LParen {
		if !p.parseArgs(call) {
			return nil, false
		}
	}

	if t := p.peek(); t.Kind == lexer.Brace {
		p.next()
		children, ok := p.block(t)
		if !ok {
			return nil, false
		}
		call.Children = children
		call.HasBlock = true
	}

	call.Pos = diag.Span{Start: at.Span.Start, End: p.prevEnd()}
	return call, true
}

func (p *parser) parseArgs(call *ast.ComponentCall) bool {
	open := p.next()
	var (
		seg   []lexer.Token
		depth int
	)
	flush := func() bool {
		defer func() { seg = nil }()
		if len(seg) == 0 {
			return true
		}
		if len(seg) >= 2 && seg[0].Kind == lexer.Ident && seg[1].Kind == lexer.Equals {
			if len(seg) == 2 {
				p.errorf("parse/missing-value", seg[1].Span,
					fmt.Sprintf("missing value for argument %q", seg[0].Text), "")
				return false
			}
			value := p.hostFrom(seg[2:])
			if len(seg) == 3 && seg[2].Kind == lexer.Brace {
				value = hostExpr(seg[2])
			}
			call.Args = append(call.Args, ast.Arg{Name: seg[0].Text, NamePos: seg[0].Span, Value: value})
			return true
		}
		call.Positional = append(call.Positional, p.hostFrom(seg))
		return true
	}

	for {
		t := p.peek()
		switch {
		case t.Kind == lexer.EOF:
			p.errorf("parse/unclosed-call", open.Span, "unclosed argument list",
				"add ')' after the last argument")
			return false
		case t.Kind == lexer.RParen && depth == 0:
			p.next()
			return flush()
		case t.Kind == lexer.Comma && depth == 0:
			p.next()
			if !flush() {
				return false
			}
			continue
		case t.Kind == lexer.LParen || t.Is(lexer.Other, "["):
			depth++
		case t.Kind == lexer.RParen || t.Is(lexer.Other, "]"):
			depth--
		}
		seg = append(seg, p.next())
	}
}
