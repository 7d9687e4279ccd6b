// Package lexer turns the body of an html!{...} region into template
// tokens.
//
// The lexer does not read characters itself. It runs go/scanner over the
// region and classifies the Go tokens it produces, so string quoting,
// numeric literals and comments follow Go's rules exactly. Braced groups
// are matched using Go's own tokenization and handed on as opaque
// payloads.
package lexer

import (
	"fmt"
	"go/scanner"
	"go/token"
	"strconv"
	"strings"

	"github.com/conneroisu/kiln/internal/diag"
)

// Kind classifies a template token.
type Kind int

const (
	EOF Kind = iota
	LAngle
	RAngle
	Slash
	Equals
	Question
	At
	Bang
	Comma
	Dot
	LParen
	RParen
	Semicolon
	Ident
	String
	Brace
	Comment
	Other
)

var kindNames = [...]string{
	EOF:       "end of template",
	LAngle:    "'<'",
	RAngle:    "'>'",
	Slash:     "'/'",
	Equals:    "'='",
	Question:  "'?'",
	At:        "'@'",
	Bang:      "'!'",
	Comma:     "','",
	Dot:       "'.'",
	LParen:    "'('",
	RParen:    "')'",
	Semicolon: "';'",
	Ident:     "identifier",
	String:    "string literal",
	Brace:     "braced expression",
	Comment:   "comment",
	Other:     "host token",
}

// String returns a human readable name for the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one classified template token.
type Token struct {
	Kind Kind
	// Text is the source text of the token. For String tokens it keeps the
	// quotes; for Brace tokens it is the verbatim payload between the
	// braces.
	Text string
	// Value is the unquoted contents of a String token.
	Value string
	// Span covers the whole token, braces included.
	Span diag.Span
	// Inner is the payload span of a Brace token.
	Inner diag.Span
	// LineBefore is set when a line break separates the token from the
	// previous one.
	LineBefore bool
}

// Is reports whether the token has the given kind and text.
func (t Token) Is(kind Kind, text string) bool {
	return t.Kind == kind && t.Text == text
}

type rawToken struct {
	tok  token.Token
	lit  string
	span diag.Span
}

// scan runs go/scanner over src[region] and returns raw Go tokens with
// absolute offsets. Automatic semicolons are dropped.
func scan(src []byte, region diag.Span) ([]rawToken, diag.List) {
	var diags diag.List
	body := src[region.Start:region.End]

	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(body))

	errh := func(pos token.Position, msg string) {
		// @ and ? are template punctuation; other illegal characters come
		// back as ILLEGAL tokens and are reported by the parser.
		if strings.HasPrefix(msg, "illegal character") {
			return
		}
		off := region.Start + pos.Offset
		diags = append(diags, diag.New("lex/invalid-token",
			diag.Span{Start: off, End: off + 1},
			msg,
			"static text and attribute values must be quoted string literals"))
	}

	var s scanner.Scanner
	s.Init(file, body, errh, scanner.ScanComments)

	var out []rawToken
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		start := region.Start + file.Offset(pos)
		end := start + tokenLen(tok, lit)
		out = append(out, rawToken{tok: tok, lit: lit, span: diag.Span{Start: start, End: end}})
	}
	return out, diags
}

func tokenLen(tok token.Token, lit string) int {
	if lit != "" {
		return len(lit)
	}
	return len(tok.String())
}

// Lex classifies the tokens of src[region]. Spans in the result are
// absolute offsets into src.
func Lex(src []byte, region diag.Span) ([]Token, diag.List) {
	raw, diags := scan(src, region)

	var toks []Token
	for i := 0; i < len(raw); i++ {
		rt := raw[i]
		t := Token{Span: rt.span, Text: rt.lit}
		if t.Text == "" {
			t.Text = rt.tok.String()
		}

		switch {
		case rt.tok == token.LSS:
			t.Kind = LAngle
		case rt.tok == token.GTR:
			t.Kind = RAngle
		case rt.tok == token.QUO:
			t.Kind = Slash
		case rt.tok == token.ASSIGN:
			t.Kind = Equals
		case rt.tok == token.NOT:
			t.Kind = Bang
		case rt.tok == token.COMMA:
			t.Kind = Comma
		case rt.tok == token.PERIOD:
			t.Kind = Dot
		case rt.tok == token.LPAREN:
			t.Kind = LParen
		case rt.tok == token.RPAREN:
			t.Kind = RParen
		case rt.tok == token.SEMICOLON:
			t.Kind = Semicolon
		case rt.tok == token.COMMENT:
			t.Kind = Comment
		case rt.tok == token.IDENT, rt.tok.IsKeyword():
			t.Kind = Ident
		case rt.tok == token.STRING:
			t.Kind = String
			v, err := strconv.Unquote(rt.lit)
			if err != nil {
				diags = append(diags, diag.New("lex/invalid-token", rt.span,
					"malformed string literal", "check the escape sequences in this string"))
			}
			t.Value = v
		case rt.tok == token.ILLEGAL && rt.lit == "@":
			t.Kind = At
		case rt.tok == token.ILLEGAL && rt.lit == "?":
			t.Kind = Question
		case rt.tok == token.LBRACE:
			end, ok := matchBrace(raw, i)
			if !ok {
				diags = append(diags, diag.New("lex/unclosed-brace", rt.span,
					"unclosed '{'", "every '{' needs a matching '}'"))
				return finish(src, region, toks), diags
			}
			t.Kind = Brace
			t.Span = diag.Span{Start: rt.span.Start, End: raw[end].span.End}
			t.Inner = diag.Span{Start: rt.span.End, End: raw[end].span.Start}
			t.Text = string(src[t.Inner.Start:t.Inner.End])
			i = end
		case rt.tok == token.RBRACE:
			diags = append(diags, diag.New("lex/unbalanced-brace", rt.span,
				"unexpected '}'", "remove the stray '}' or add the opening '{'"))
			continue
		default:
			t.Kind = Other
		}
		toks = append(toks, t)
	}

	return finish(src, region, joinNames(toks)), diags
}

// finish sets LineBefore on every token.
func finish(src []byte, region diag.Span, toks []Token) []Token {
	prev := region.Start
	for i := range toks {
		toks[i].LineBefore = strings.Contains(string(src[prev:toks[i].Span.Start]), "\n")
		prev = toks[i].Span.End
	}
	return toks
}

// matchBrace returns the index of the RBRACE closing raw[open].
func matchBrace(raw []rawToken, open int) (int, bool) {
	depth := 0
	for i := open; i < len(raw); i++ {
		switch raw[i].tok {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// joinNames merges adjacent runs such as data-id, aria-label or
// xlink:href into a single Ident token.
func joinNames(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != Ident {
			out = append(out, t)
			continue
		}
		for i+2 < len(toks) &&
			isNameJoiner(toks[i+1]) && toks[i+1].Span.Start == t.Span.End &&
			isNamePart(toks[i+2]) && toks[i+2].Span.Start == toks[i+1].Span.End {
			t.Text += toks[i+1].Text + toks[i+2].Text
			t.Span.End = toks[i+2].Span.End
			i += 2
		}
		out = append(out, t)
	}
	return out
}

func isNameJoiner(t Token) bool {
	return t.Kind == Other && (t.Text == "-" || t.Text == "--" || t.Text == ":")
}

func isNamePart(t Token) bool {
	if t.Kind == Ident {
		return true
	}
	return t.Kind == Other && t.Text != "" && t.Text[0] >= '0' && t.Text[0] <= '9'
}
