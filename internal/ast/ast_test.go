package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Node {
	li := &Element{Tag: "li", Children: []Node{&Interpolation{Expr: HostExpr{Src: "item"}}}}
	return []Node{
		&Comment{Text: "// list"},
		&Element{
			Tag:   "ul",
			Attrs: []*Attribute{{Name: "class", Kind: ValueStatic, Static: "items"}},
			Children: []Node{
				&For{Pattern: HostExpr{Src: "_, item"}, Iter: HostExpr{Src: "items"}, Body: []Node{li}},
			},
		},
		&If{
			Cond:    HostExpr{Src: "empty"},
			Then:    []Node{&Text{Value: "none"}},
			HasElse: true,
			Else:    []Node{&Fragment{Children: []Node{&Text{Value: "a"}, &Let{}, &Text{Value: "b"}}}},
		},
		&ComponentCall{Name: "Card", HasBlock: true, Children: []Node{&Element{Tag: "b"}}},
	}
}

func names(nodes []Node) []string {
	var out []string
	for _, n := range nodes {
		switch n := n.(type) {
		case *Element:
			out = append(out, n.Tag)
		case *Text:
			out = append(out, n.Value)
		default:
			out = append(out, typeName(n))
		}
	}
	return out
}

func typeName(n Node) string {
	switch n.(type) {
	case *Interpolation:
		return "interp"
	case *For:
		return "for"
	case *If:
		return "if"
	case *Fragment:
		return "fragment"
	case *ComponentCall:
		return "call"
	case *Comment:
		return "comment"
	case *Let:
		return "let"
	}
	return "?"
}

func TestInspectOrder(t *testing.T) {
	var seen []Node
	Inspect(sample(), func(n Node, _ []Node) bool {
		seen = append(seen, n)
		return true
	})
	want := []string{"comment", "ul", "for", "li", "interp", "if", "none", "fragment", "a", "let", "b", "call", "b"}
	if diff := cmp.Diff(want, names(seen)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestInspectSkipsChildren(t *testing.T) {
	var seen []Node
	Inspect(sample(), func(n Node, _ []Node) bool {
		seen = append(seen, n)
		_, isCall := n.(*ComponentCall)
		_, isIf := n.(*If)
		return !isCall && !isIf
	})
	assert.Equal(t, []string{"comment", "ul", "for", "li", "interp", "if", "call"}, names(seen))
}

func TestPostOrder(t *testing.T) {
	var seen []Node
	var depths []int
	PostOrder(sample()[1:2], func(n Node, ancestors []Node) {
		seen = append(seen, n)
		depths = append(depths, len(ancestors))
	})
	assert.Equal(t, []string{"interp", "li", "for", "ul"}, names(seen))
	assert.Equal(t, []int{3, 2, 1, 0}, depths)
}

func TestNearestElement(t *testing.T) {
	var got []string
	Inspect(sample(), func(n Node, ancestors []Node) bool {
		if _, ok := n.(*Interpolation); ok {
			el, found := NearestElement(ancestors)
			require.True(t, found)
			got = append(got, el.Tag)
		}
		if el, ok := n.(*Element); ok && el.Tag == "b" {
			_, found := NearestElement(ancestors)
			assert.False(t, found, "a call's children belong to the callee")
		}
		return true
	})
	assert.Equal(t, []string{"li"}, got)
}

func TestElements(t *testing.T) {
	assert.Equal(t, []string{"ul", "li", "b"}, names(asNodes(Elements(sample()))))
}

func asNodes(els []*Element) []Node {
	out := make([]Node, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out
}

func TestFlatten(t *testing.T) {
	n := sample()
	assert.Equal(t, []string{"ul", "none", "a", "b", "call"}, names(Flatten(n)))
}

func TestChildren(t *testing.T) {
	n := &If{Then: []Node{&Text{}}, ElseIfs: []ElseIf{{Body: nil}}, HasElse: true}
	assert.Len(t, Children(n), 3)
	assert.Len(t, Children(&If{}), 1)
	assert.Len(t, Children(&Match{Arms: []MatchArm{{}, {}}}), 2)
	assert.Nil(t, Children(&Text{}))
}

func TestElementAttrs(t *testing.T) {
	el := &Element{Tag: "a", Attrs: []*Attribute{
		{Name: "href", Kind: ValueStatic, Static: "/"},
		{Name: "class", Kind: ValueStatic, Static: "x"},
		{Name: "href", Kind: ValueDynamic, Expr: HostExpr{Src: "u"}},
	}}
	a, ok := el.Attr("href")
	require.True(t, ok)
	assert.Equal(t, "/", a.Static)

	el.RemoveAttr("href")
	require.Len(t, el.Attrs, 1)
	assert.Equal(t, "class", el.Attrs[0].Name)
	_, ok = el.Attr("href")
	assert.False(t, ok)
}

func TestValueKindString(t *testing.T) {
	assert.Equal(t, "static", ValueStatic.String())
	assert.Equal(t, "boolean", ValueBoolean.String())
	assert.Equal(t, "unknown", ValueKind(42).String())
}

func TestHTMLTables(t *testing.T) {
	assert.True(t, IsVoid("br"))
	assert.True(t, IsVoid("input"))
	assert.False(t, IsVoid("div"))
	assert.True(t, IsBooleanAttribute("disabled"))
	assert.False(t, IsBooleanAttribute("value"))
}

func TestFormat(t *testing.T) {
	got := Format(sample())
	want := "// list\n" +
		` <ul class="items"> @for _, item := range items { <li> {item} </li> } </ul>` +
		` @if empty { "none" } @else { <> "a" @let  := ; "b" </> }` +
		` @Card() { <b> </b> }`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("format (-want +got):\n%s", diff)
	}
}
