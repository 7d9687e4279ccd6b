package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/ast"
	"github.com/conneroisu/kiln/internal/diag"
)

func parse(t *testing.T, body string) []ast.Node {
	t.Helper()
	src := []byte(body)
	nodes, diags := Parse(src, diag.Span{End: len(src)})
	require.Empty(t, diags, "parsing %q", body)
	return nodes
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "nested elements",
			in:   `<div class="card"><p>"Hi, " {name}</p></div>`,
			want: `<div class="card"> <p> "Hi, " {name} </p> </div>`,
		},
		{
			name: "void and self-closing",
			in:   `<input type="text" disabled><br/>`,
			want: `<input type="text" disabled> <br/>`,
		},
		{
			name: "boolean attributes",
			in:   `<input checked={on} hidden?={h} value={ v }>`,
			want: `<input checked?={on} hidden?={h} value={v}>`,
		},
		{
			name: "joined attribute names",
			in:   `<button hx-post="/save" aria-label={label}>"Save"</button>`,
			want: `<button hx-post="/save" aria-label={label}> "Save" </button>`,
		},
		{
			name: "if chain",
			in:   `@if n > 1 { <b>"many"</b> } @else if n == 1 { "one" } @else { "none" }`,
			want: `@if n > 1 { <b> "many" </b> } @else if n == 1 { "one" } @else { "none" }`,
		},
		{
			name: "for with pattern",
			in:   `<ul>@for i, item := range items { <li>{item}</li> }</ul>`,
			want: `<ul> @for i, item := range items { <li> {item} </li> } </ul>`,
		},
		{
			name: "for without pattern",
			in:   `@for range 3 { "x" }`,
			want: `@for range 3 { "x" }`,
		},
		{
			name: "match",
			in:   `@match kind { "a" => { "A" }, _ => { "other" } }`,
			want: `@match kind { "a" => { "A" } _ => { "other" } }`,
		},
		{
			name: "let",
			in:   "@let total := len(items)\n<p>{total}</p>",
			want: `@let total := len(items); <p> {total} </p>`,
		},
		{
			name: "component call",
			in:   `@Card(title={t}, "x") { <p>"body"</p> }`,
			want: `@Card(title={t}, "x") { <p> "body" </p> }`,
		},
		{
			name: "qualified call without args",
			in:   `@ui.Footer`,
			want: `@ui.Footer()`,
		},
		{
			name: "call with nested arguments",
			in:   `@ui.Button(label={"Go"}, size={sizes[0]}, on=fn(a, b))`,
			want: `@ui.Button(label={"Go"}, size={sizes[0]}, on={fn(a, b)})`,
		},
		{
			name: "fragment",
			in:   `<>"a" "b"</>`,
			want: `<> "a" "b" </>`,
		},
		{
			name: "doctype",
			in:   `<!DOCTYPE html><html></html>`,
			want: `<!DOCTYPE html> <html> </html>`,
		},
		{
			name: "inline style",
			in:   `<style scoped>".card { color: red; }"</style>`,
			want: `<style scoped> ".card { color: red; }" </style>`,
		},
		{
			name: "style file",
			in:   `<style src="card.css"/>`,
			want: `<style src="card.css"/>`,
		},
		{
			name: "scripts",
			in:   `<script src="/app.js"></script><script>"go()"</script><script type="application/ld+json">{schema}</script>`,
			want: `<script src="/app.js"></script> <script> "go()" </script> <script type="application/ld+json"> {schema} </script>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ast.Format(parse(t, tt.in))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("format (-want +got):\n%s", diff)
			}
			again := ast.Format(parse(t, got))
			assert.Equal(t, got, again, "formatted source must reparse to the same tree")
		})
	}
}

func TestParseElementFields(t *testing.T) {
	body := `<a href="/x" id={id} download>"go"</a>`
	nodes := parse(t, body)
	require.Len(t, nodes, 1)

	el, ok := nodes[0].(*ast.Element)
	require.True(t, ok)
	assert.Equal(t, "a", el.Tag)
	assert.Equal(t, diag.Span{Start: 0, End: len(body)}, el.Pos)
	assert.Equal(t, `<a href="/x" id={id} download>`, body[el.OpenTag.Start:el.OpenTag.End])

	href, ok := el.Attr("href")
	require.True(t, ok)
	assert.Equal(t, ast.ValueStatic, href.Kind)
	assert.Equal(t, "/x", href.Static)
	assert.Equal(t, `href="/x"`, body[href.Pos.Start:href.Pos.End])

	id, _ := el.Attr("id")
	assert.Equal(t, ast.ValueDynamic, id.Kind)
	assert.Equal(t, "id", id.Expr.Src)
	assert.Equal(t, "id", body[id.Expr.Pos.Start:id.Expr.Pos.End])

	dl, _ := el.Attr("download")
	assert.Equal(t, ast.ValueNone, dl.Kind)

	require.Len(t, el.Children, 1)
	text := el.Children[0].(*ast.Text)
	assert.Equal(t, "go", text.Value)
}

func TestParseNestedSpansAreAbsolute(t *testing.T) {
	src := []byte(`package ui

var Page = html!{
	@if ok {
		<b>{ user.Name }</b>
	}
}
`)
	start := strings.Index(string(src), "@if")
	end := strings.LastIndex(string(src), "}")
	nodes, diags := Parse(src, diag.Span{Start: start, End: end})
	require.Empty(t, diags)
	require.Len(t, nodes, 1)

	n := nodes[0].(*ast.If)
	assert.Equal(t, "ok", n.Cond.Src)
	b := n.Then[0].(*ast.Element)
	assert.Equal(t, "<b>{ user.Name }</b>", string(src[b.Pos.Start:b.Pos.End]))

	in := b.Children[0].(*ast.Interpolation)
	assert.Equal(t, "user.Name", in.Expr.Src)
	assert.Equal(t, " user.Name ", string(src[in.Expr.Pos.Start:in.Expr.Pos.End]))
}

func TestParseComponentCall(t *testing.T) {
	nodes := parse(t, `@ui.Card(title={t}, count=len(xs), "extra") { "child" }`)
	call := nodes[0].(*ast.ComponentCall)

	assert.Equal(t, "ui", call.Package)
	assert.Equal(t, "Card", call.Name)
	assert.Equal(t, "ui.Card", call.QualifiedName())
	assert.True(t, call.HasBlock)
	require.Len(t, call.Args, 2)

	title, ok := call.Arg("title")
	require.True(t, ok)
	assert.Equal(t, "t", title.Value.Src)
	count, _ := call.Arg("count")
	assert.Equal(t, "len(xs)", count.Value.Src)
	_, ok = call.Arg("missing")
	assert.False(t, ok)

	require.Len(t, call.Positional, 1)
	assert.Equal(t, `"extra"`, call.Positional[0].Src)
	require.Len(t, call.Children, 1)
}

func TestParseMatchArms(t *testing.T) {
	nodes := parse(t, `@match s { Active => { "on" } _ => { "off" } }`)
	m := nodes[0].(*ast.Match)
	require.Len(t, m.Arms, 2)
	assert.False(t, m.Arms[0].IsDefault())
	assert.True(t, m.Arms[1].IsDefault())
}

func TestParseStyleAndScriptKinds(t *testing.T) {
	nodes := parse(t, `<style src="a.css" global/><style>"p{}"</style><script type="module" src="m.js"></script>`)
	require.Len(t, nodes, 3)

	file := nodes[0].(*ast.Style)
	assert.Equal(t, ast.StyleFile, file.Source)
	assert.Equal(t, "a.css", file.Path)
	assert.True(t, file.Global)
	assert.False(t, file.Scoped)

	inline := nodes[1].(*ast.Style)
	assert.Equal(t, ast.StyleInline, inline.Source)
	assert.Equal(t, "p{}", inline.CSS)
	assert.False(t, inline.Scoped)

	sc := nodes[2].(*ast.Script)
	assert.Equal(t, ast.ScriptFile, sc.Kind)
	assert.Equal(t, "m.js", sc.Src)
}

func TestParseStyleFileIsScopedByDefault(t *testing.T) {
	nodes := parse(t, `<style src="card.css"></style>`)
	st := nodes[0].(*ast.Style)
	assert.True(t, st.Scoped)
}

func TestParseEmptyFragment(t *testing.T) {
	nodes := parse(t, `<></>`)
	require.Len(t, nodes, 1)

	frag, ok := nodes[0].(*ast.Fragment)
	require.True(t, ok)
	assert.Empty(t, frag.Children)
	assert.Equal(t, diag.Span{Start: 0, End: 5}, frag.Pos)

	got := ast.Format(nodes)
	assert.Equal(t, "<> </>", got)
	assert.Equal(t, got, ast.Format(parse(t, got)))
}

func TestParseDeepNesting(t *testing.T) {
	const depth = 200
	src := strings.Repeat("<div>", depth) + `"leaf"` + strings.Repeat("</div>", depth)
	nodes := parse(t, src)
	require.Len(t, nodes, 1)
	assert.Equal(t, diag.Span{Start: 0, End: len(src)}, nodes[0].Span())

	n := nodes[0]
	for i := 0; i < depth; i++ {
		el, ok := n.(*ast.Element)
		require.True(t, ok, "level %d", i)
		require.Equal(t, "div", el.Tag)
		require.Len(t, el.Children, 1, "level %d", i)
		n = el.Children[0]
	}
	leaf, ok := n.(*ast.Text)
	require.True(t, ok)
	assert.Equal(t, "leaf", leaf.Value)

	got := ast.Format(nodes)
	assert.Equal(t, got, ast.Format(parse(t, got)))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		rule string
	}{
		{"mismatched close", `<div><span></div>`, "parse/mismatched-tag"},
		{"unclosed element", `<div>"x"`, "parse/unclosed-element"},
		{"unclosed fragment", `<>"x"`, "parse/unclosed-element"},
		{"unexpected close", `"x"</p>`, "parse/unexpected-close"},
		{"unquoted text", `<p>hello</p>`, "lex/unquoted-text"},
		{"unquoted attribute", `<a href=x></a>`, "lex/unquoted-text"},
		{"missing equals", `<a href"x"></a>`, "parse/missing-equals"},
		{"missing value", `<a href=></a>`, "parse/missing-value"},
		{"unterminated tag", `<a href="x"`, "parse/unclosed-tag"},
		{"expected tag", `< "x">`, "parse/expected-tag"},
		{"empty interpolation", `<div>{ }</div>`, "parse/empty-expression"},
		{"empty attribute expression", `<div id={}></div>`, "parse/empty-expression"},
		{"orphan else", `@else { "x" }`, "parse/orphan-else"},
		{"missing directive", `@ "x"`, "parse/expected-directive"},
		{"if without condition", `@if { "x" }`, "parse/missing-condition"},
		{"if without block", `@if ok`, "parse/expected-block"},
		{"for without range", `@for item in items { "x" }`, "parse/for-range"},
		{"for without iterable", `@for i := range { "x" }`, "parse/for-range"},
		{"match arm without arrow", `@match v { "a" { "x" } }`, "parse/match-arm"},
		{"let without value", `@let x;`, "parse/let-syntax"},
		{"unclosed call", `@Card(title={t}`, "parse/unclosed-call"},
		{"argument without value", `@Card(title=)`, "parse/missing-value"},
		{"dynamic style", `<style>{css}</style>`, "parse/style-content"},
		{"style with src and content", `<style src="a.css">"p{}"</style>`, "parse/style-content"},
		{"dynamic style src", `<style src={path}/>`, "parse/style-src"},
		{"self-closing inline style", `<style/>`, "parse/style-src"},
		{"expression in plain script", `<script>{x}</script>`, "parse/script-content"},
		{"error inside block", `@if ok { <p>"x"</div> }`, "parse/mismatched-tag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := []byte(tt.in)
			_, diags := Parse(src, diag.Span{End: len(src)})
			require.True(t, diags.HasErrors(), "expected errors for %q", tt.in)

			var rules []string
			for _, d := range diags {
				rules = append(rules, d.Rule)
				assert.LessOrEqual(t, d.Span.Start, d.Span.End)
				assert.LessOrEqual(t, d.Span.End, len(src))
			}
			assert.Contains(t, rules, tt.rule)
		})
	}
}

func TestParseReportsOneErrorPerFailure(t *testing.T) {
	src := []byte(`<div><span></div></section>`)
	_, diags := Parse(src, diag.Span{End: len(src)})
	require.Len(t, diags, 1)
	assert.Equal(t, "parse/mismatched-tag", diags[0].Rule)
	assert.Contains(t, diags[0].Summary, "expected </span>, found </div>")
}
