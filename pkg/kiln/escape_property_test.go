//go:build property

package kiln

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/net/html"
)

// paragraphText returns the text and title of the first <p> in doc.
func paragraphText(doc string) (string, string, bool) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", "", false
	}
	var p *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" && p == nil {
			p = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)
	if p == nil {
		return "", "", false
	}
	var text strings.Builder
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			return "", "", false
		}
		text.WriteString(c.Data)
	}
	var title string
	for _, a := range p.Attr {
		if a.Key == "title" {
			title = a.Val
		}
	}
	return text.String(), title, true
}

func htmlish() gopter.Gen {
	return gen.SliceOfN(24, gen.OneConstOf(
		"<", ">", "&", `"`, "'", "a", "b", " ", "/", "=", "script", "&amp;", "<!--", "-->", "é", "\t",
	)).Map(func(parts []string) string {
		return strings.Join(parts, "")
	})
}

func TestEscapeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("escaped text contains no markup", prop.ForAll(
		func(s string) bool {
			out := Escape(s)
			return !strings.ContainsAny(out, `<>"'`)
		},
		htmlish(),
	))

	properties.Property("a parser reads back the original text and attribute", prop.ForAll(
		func(s string) bool {
			doc := `<p title="` + Escape(s) + `">` + Escape(s) + `</p>`
			text, title, ok := paragraphText(doc)
			return ok && text == s && title == s
		},
		htmlish(),
	))

	properties.Property("only plain text is left unchanged", prop.ForAll(
		func(s string) bool {
			plain := !strings.ContainsAny(s, `<>&"'`)
			return (Escape(s) == s) == plain
		},
		htmlish(),
	))

	properties.TestingRun(t)
}
