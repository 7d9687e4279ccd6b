package lexer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/diag"
)

func lexAll(t *testing.T, body string) []Token {
	t.Helper()
	src := []byte(body)
	toks, diags := Lex(src, diag.Span{Start: 0, End: len(src)})
	require.Empty(t, diags)
	return toks
}

func kindsOf(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func textsOf(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func rulesOf(l diag.List) []string {
	var out []string
	for _, d := range l {
		out = append(out, d.Rule)
	}
	return out
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "'<'", LAngle.String())
	assert.Equal(t, "end of template", EOF.String())
	assert.Equal(t, "braced expression", Brace.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestLexElement(t *testing.T) {
	toks := lexAll(t, `<a href="/x" data-id={id} disabled?={off}/>`)

	want := []Kind{
		LAngle, Ident,
		Ident, Equals, String,
		Ident, Equals, Brace,
		Ident, Question, Equals, Brace,
		Slash, RAngle,
	}
	if diff := cmp.Diff(want, kindsOf(toks)); diff != "" {
		t.Fatalf("kinds (-want +got):\n%s", diff)
	}
	assert.Equal(t, "a", toks[1].Text)
	assert.Equal(t, `"/x"`, toks[4].Text)
	assert.Equal(t, "/x", toks[4].Value)
	assert.Equal(t, "data-id", toks[5].Text)
	assert.Equal(t, "id", toks[7].Text)
}

func TestLexJoinsAttributeNames(t *testing.T) {
	toks := lexAll(t, `<svg aria-label="x" xlink:href="#i" class="h-1" hx-on--click="f()">`)
	var names []string
	for _, tok := range toks {
		if tok.Kind == Ident {
			names = append(names, tok.Text)
		}
	}
	want := []string{"svg", "aria-label", "xlink:href", "class", "hx-on--click"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestLexSpacedMinusIsNotJoined(t *testing.T) {
	toks := lexAll(t, `a - b`)
	assert.Equal(t, []string{"a", "-", "b"}, textsOf(toks))
	assert.Equal(t, []Kind{Ident, Other, Ident}, kindsOf(toks))
}

func TestLexKeywordsAreIdents(t *testing.T) {
	toks := lexAll(t, `@if @for range type default`)
	assert.Equal(t, []Kind{At, Ident, At, Ident, Ident, Ident, Ident}, kindsOf(toks))
}

func TestLexBracePayload(t *testing.T) {
	body := `<p>{ user.Name }</p> { map[string]int{"a": 1}["a"] }`
	toks := lexAll(t, body)

	require.Len(t, toks, 9)
	b := toks[3]
	assert.Equal(t, Brace, b.Kind)
	assert.Equal(t, " user.Name ", b.Text)
	assert.Equal(t, "{ user.Name }", body[b.Span.Start:b.Span.End])
	assert.Equal(t, b.Text, body[b.Inner.Start:b.Inner.End])

	nested := toks[8]
	assert.Equal(t, Brace, nested.Kind)
	assert.Equal(t, ` map[string]int{"a": 1}["a"] `, nested.Text)
}

func TestLexAbsoluteSpans(t *testing.T) {
	src := []byte(`package ui; var X = html!{ <b>"hi"</b> }`)
	start := bytes.Index(src, []byte("<b>"))
	end := bytes.LastIndexByte(src, '}')

	toks, diags := Lex(src, diag.Span{Start: start, End: end})
	require.Empty(t, diags)
	for _, tok := range toks {
		assert.Equal(t, tok.Text, string(src[tok.Span.Start:tok.Span.End]))
	}
	assert.Equal(t, start, toks[0].Span.Start)
}

func TestLexLineBefore(t *testing.T) {
	toks := lexAll(t, "<p>\n  \"hi\" {x}\n</p>")
	var breaks []bool
	for _, tok := range toks {
		breaks = append(breaks, tok.LineBefore)
	}
	assert.Equal(t, []bool{false, false, false, true, false, true, false, false, false}, breaks)
}

func TestLexComments(t *testing.T) {
	toks := lexAll(t, "// heading\n<h1>\"x\"</h1> /* tail */")
	assert.Equal(t, Comment, toks[0].Kind)
	assert.Equal(t, "// heading", toks[0].Text)
	assert.Equal(t, Comment, toks[len(toks)-1].Kind)
	assert.Equal(t, "/* tail */", toks[len(toks)-1].Text)
}

func TestLexDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		body string
		rule string
	}{
		{"stray close brace", `<p>"x"</p> }`, "lex/unbalanced-brace"},
		{"unclosed brace", `<p>{ name </p>`, "lex/unclosed-brace"},
		{"bad escape", `"bad\q"`, "lex/invalid-token"},
		{"unterminated string", `"open`, "lex/invalid-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := []byte(tt.body)
			_, diags := Lex(src, diag.Span{End: len(src)})
			require.True(t, diags.HasErrors())
			assert.Contains(t, rulesOf(diags), tt.rule)
			for _, d := range diags {
				assert.LessOrEqual(t, d.Span.End, len(src))
			}
		})
	}
}

func TestRegions(t *testing.T) {
	src := []byte(`package ui

var A = html!{ <p>"a"</p> }

func f(x *int) bool { return x != nil }

var B = html!{
	<b>{ map[string]int{"a": 1}["a"] }</b>
}

var notATemplate = html !{}
`)
	regions, diags := Regions(src)
	require.Empty(t, diags)
	require.Len(t, regions, 2)

	assert.Equal(t, 0, regions[0].Index)
	assert.Equal(t, `html!{ <p>"a"</p> }`, string(src[regions[0].Span.Start:regions[0].Span.End]))
	assert.Equal(t, ` <p>"a"</p> `, string(src[regions[0].Body.Start:regions[0].Body.End]))

	assert.Equal(t, 1, regions[1].Index)
	body := string(src[regions[1].Body.Start:regions[1].Body.End])
	assert.Equal(t, "\n\t<b>{ map[string]int{\"a\": 1}[\"a\"] }</b>\n", body)
}

func TestRegionsUnclosed(t *testing.T) {
	src := []byte("package ui\n\nvar A = html!{ <p>\"a\"</p>\n")
	regions, diags := Regions(src)
	assert.Empty(t, regions)
	require.Len(t, diags, 1)
	assert.Equal(t, "lex/unclosed-brace", diags[0].Rule)
}

func TestBlank(t *testing.T) {
	src := []byte("package ui\n\nvar A = html!{\n\t<p>\"a\"</p>\n}\n\nvar B = 1\n")
	regions, _ := Regions(src)
	require.Len(t, regions, 1)

	out := Blank(src, regions)
	require.Len(t, out, len(src))
	assert.Equal(t, bytes.Count(src, []byte("\n")), bytes.Count(out, []byte("\n")))
	assert.True(t, strings.HasPrefix(string(out[regions[0].Span.Start:]), "nil "))
	assert.NotContains(t, string(out), "<p>")
	assert.Contains(t, string(out), "var B = 1\n")
	assert.Contains(t, string(src), "<p>", "the input is untouched")
}
