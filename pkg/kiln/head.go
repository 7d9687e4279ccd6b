package kiln

import (
	"context"
	"io"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

// Head renders the common meta tags of a page. Empty fields are left
// out. It implements templ.Component:
//
//	@Layout(head=kiln.Head{Title: post.Title, Description: post.Summary})
type Head struct {
	Title       string
	Description string
	Canonical   string
	// Image is used for og:image and twitter:image.
	Image    string
	SiteName string
	// Type is the og:type, "website" when empty.
	Type string
	// TwitterCard is the twitter:card, "summary" when empty, or
	// "summary_large_image" when Image is set.
	TwitterCard string
	TwitterSite string
}

// Render implements templ.Component.
func (hd Head) Render(_ context.Context, w io.Writer) error {
	for _, n := range hd.Nodes() {
		if err := n.Render(w); err != nil {
			return err
		}
	}
	return nil
}

// Nodes returns the tags as gomponents nodes.
func (hd Head) Nodes() []g.Node {
	var out []g.Node
	if hd.Title != "" {
		out = append(out, h.TitleEl(g.Text(hd.Title)))
	}
	if hd.Description != "" {
		out = append(out, h.Meta(h.Name("description"), h.Content(hd.Description)))
	}
	if hd.Canonical != "" {
		out = append(out, h.Link(h.Rel("canonical"), h.Href(hd.Canonical)))
	}

	ogType := hd.Type
	if ogType == "" {
		ogType = "website"
	}
	out = append(out, property("og:type", ogType))
	for _, p := range [][2]string{
		{"og:title", hd.Title},
		{"og:description", hd.Description},
		{"og:url", hd.Canonical},
		{"og:image", hd.Image},
		{"og:site_name", hd.SiteName},
	} {
		if p[1] != "" {
			out = append(out, property(p[0], p[1]))
		}
	}

	card := hd.TwitterCard
	if card == "" {
		card = "summary"
		if hd.Image != "" {
			card = "summary_large_image"
		}
	}
	out = append(out, h.Meta(h.Name("twitter:card"), h.Content(card)))
	for _, p := range [][2]string{
		{"twitter:site", hd.TwitterSite},
		{"twitter:title", hd.Title},
		{"twitter:description", hd.Description},
		{"twitter:image", hd.Image},
	} {
		if p[1] != "" {
			out = append(out, h.Meta(h.Name(p[0]), h.Content(p[1])))
		}
	}
	return out
}

func property(name, content string) g.Node {
	return h.Meta(g.Attr("property", name), h.Content(content))
}
