package validate

import "golang.org/x/net/html/atom"

// inputTypes are the valid values of <input type>.
var inputTypes = set(
	"button", "checkbox", "color", "date", "datetime-local", "email", "file",
	"hidden", "image", "month", "number", "password", "radio", "range",
	"reset", "search", "submit", "tel", "text", "time", "url", "week",
)

// buttonTypes are the valid values of <button type>.
var buttonTypes = set("button", "reset", "submit")

// ariaRoles are the WAI-ARIA 1.2 roles.
var ariaRoles = set(
	// widget
	"button", "checkbox", "gridcell", "link", "menuitem", "menuitemcheckbox",
	"menuitemradio", "option", "progressbar", "radio", "scrollbar", "searchbox",
	"separator", "slider", "spinbutton", "switch", "tab", "tabpanel", "textbox",
	"treeitem",
	// composite
	"combobox", "grid", "listbox", "menu", "menubar", "radiogroup", "tablist",
	"tree", "treegrid",
	// document structure
	"application", "article", "blockquote", "caption", "cell", "code",
	"columnheader", "comment", "definition", "deletion", "directory",
	"document", "emphasis", "feed", "figure", "generic", "group", "heading",
	"img", "insertion", "list", "listitem", "math", "meter", "none", "note",
	"paragraph", "presentation", "row", "rowgroup", "rowheader", "strong",
	"subscript", "superscript", "table", "term", "time", "toolbar", "tooltip",
	// landmark
	"banner", "complementary", "contentinfo", "form", "main", "navigation",
	"region", "search",
	// live region
	"alert", "log", "marquee", "status", "timer",
	// window
	"alertdialog", "dialog",
)

// typeTypos are common misspellings with a fixed correction.
var typeTypos = map[string]string{
	"txt":     "text",
	"sumbit":  "submit",
	"submt":   "submit",
	"buton":   "button",
	"num":     "number",
	"mail":    "email",
	"pass":    "password",
	"chekbox": "checkbox",
}

// blockElements may not appear inside <p>; the parser in a browser
// closes the paragraph before them.
var blockElements = set(
	"address", "article", "aside", "blockquote", "details", "dialog", "div",
	"dl", "fieldset", "figcaption", "figure", "footer", "form", "h1", "h2",
	"h3", "h4", "h5", "h6", "header", "hgroup", "hr", "main", "menu", "nav",
	"ol", "p", "pre", "search", "section", "table", "ul",
)

// interactiveElements may not appear inside <button>.
var interactiveElements = set("a", "button", "input", "label", "select", "textarea")

var listChildren = set("li", "script", "template")

var tableChildren = set("caption", "colgroup", "thead", "tbody", "tfoot", "tr", "script", "template")

// htmlElements are the current HTML element names. The atom table also
// holds attribute names and obsolete elements, so only these atoms count.
var htmlElements = atomSet(
	atom.A, atom.Abbr, atom.Address, atom.Area, atom.Article, atom.Aside,
	atom.Audio, atom.B, atom.Base, atom.Bdi, atom.Bdo, atom.Blockquote,
	atom.Body, atom.Br, atom.Button, atom.Canvas, atom.Caption, atom.Cite,
	atom.Code, atom.Col, atom.Colgroup, atom.Data, atom.Datalist, atom.Dd,
	atom.Del, atom.Details, atom.Dfn, atom.Dialog, atom.Div, atom.Dl,
	atom.Dt, atom.Em, atom.Embed, atom.Fieldset, atom.Figcaption,
	atom.Figure, atom.Footer, atom.Form, atom.H1, atom.H2, atom.H3,
	atom.H4, atom.H5, atom.H6, atom.Head, atom.Header, atom.Hgroup,
	atom.Hr, atom.Html, atom.I, atom.Iframe, atom.Img, atom.Input,
	atom.Ins, atom.Kbd, atom.Label, atom.Legend, atom.Li, atom.Link,
	atom.Main, atom.Map, atom.Mark, atom.Math, atom.Menu, atom.Meta,
	atom.Meter, atom.Nav, atom.Noscript, atom.Object, atom.Ol,
	atom.Optgroup, atom.Option, atom.Output, atom.P, atom.Param,
	atom.Picture, atom.Pre, atom.Progress, atom.Q, atom.Rp, atom.Rt,
	atom.Ruby, atom.S, atom.Samp, atom.Script, atom.Search, atom.Section,
	atom.Select, atom.Slot, atom.Small, atom.Source, atom.Span,
	atom.Strong, atom.Style, atom.Sub, atom.Summary, atom.Sup, atom.Svg,
	atom.Table, atom.Tbody, atom.Td, atom.Template, atom.Textarea,
	atom.Tfoot, atom.Th, atom.Thead, atom.Time, atom.Title, atom.Tr,
	atom.Track, atom.U, atom.Ul, atom.Var, atom.Video, atom.Wbr,
)

// svgElements are SVG and MathML names outside htmlElements.
var svgElements = set(
	"altGlyph", "animate", "animateMotion", "animateTransform", "circle",
	"clipPath", "defs", "ellipse", "feBlend", "feColorMatrix",
	"feComposite", "feFlood", "feGaussianBlur", "feMerge", "feMergeNode",
	"feOffset", "filter", "foreignObject", "g", "image", "line",
	"linearGradient", "marker", "mask", "mi", "mn", "mo", "mrow", "ms",
	"mtext", "path", "pattern", "polygon", "polyline", "radialGradient",
	"rect", "stop", "symbol", "text", "textPath", "tspan", "use", "view",
)

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

func atomSet(items ...atom.Atom) map[atom.Atom]bool {
	m := make(map[atom.Atom]bool, len(items))
	for _, a := range items {
		m[a] = true
	}
	return m
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
