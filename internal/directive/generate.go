package directive

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/conneroisu/kiln/internal/registry"
)

// Import paths of the packages generated code refers to.
const (
	RuntimePath = "github.com/conneroisu/kiln/pkg/kiln"
	TemplPath   = "github.com/a-h/templ"
	HTTPPath    = "net/http"
)

var funcs = template.FuncMap{
	"quote": strconv.Quote,
}

var componentTemplate = template.Must(template.New("component").Funcs(funcs).Parse(`
// {{.Props}} holds the props of {{.Name}}.
type {{.Props}} struct {
{{- range .Fields}}
	{{.Field}} {{.Type}}
{{- end}}
}

// New{{.Props}} returns {{.Props}} with every default applied.
func New{{.Props}}() {{.Props}} {
	return {{.Props}}{
{{- range .Fields}}{{if .HasDefault}}
		{{.Field}}: {{.Default}},
{{- end}}{{end}}
	}
}

// {{.Props}}Builder sets the props of {{.Name}} one at a time.
type {{.Props}}Builder struct {
	props {{.Props}}
	set   map[string]bool
}

// New{{.Props}}Builder returns a builder seeded with the defaults of {{.Name}}.
func New{{.Props}}Builder() *{{.Props}}Builder {
	return &{{.Props}}Builder{props: New{{.Props}}(), set: make(map[string]bool)}
}
{{range .Fields}}
// {{.Field}} sets {{.Param}}.
func (b *{{$.Props}}Builder) {{.Field}}(v {{.Type}}) *{{$.Props}}Builder {
	b.props.{{.Field}} = v
	b.set[{{quote .Param}}] = true
	return b
}
{{end}}
// Build returns the props, or an error naming the required props that
// were never set.
func (b *{{.Props}}Builder) Build() ({{.Props}}, error) {
	var missing []string
{{- range .Fields}}{{if .Required}}
	if !b.set[{{quote .Param}}] {
		missing = append(missing, {{quote .Param}})
	}
{{- end}}{{end}}
	if len(missing) > 0 {
		return b.props, &kiln.MissingPropsError{Component: {{quote .Name}}, Props: missing}
	}
	return b.props, nil
}

// {{.Render}} renders {{.Name}} from its props.
func {{.Render}}(p {{.Props}}) templ.Component {
	return {{.Name}}({{range $i, $f := .Fields}}{{if $i}}, {{end}}p.{{$f.Field}}{{end}})
}
`))

var schemaTemplate = template.Must(template.New("schema").Funcs(funcs).Parse(`
// JSONLDValue returns the JSON-LD object of {{.Name}} without @context.
func (s {{.Name}}) JSONLDValue() map[string]any {
	m := map[string]any{"@type": {{quote .Type}}}
{{- range .Fields}}
{{.}}
{{- end}}
	return m
}

// JSONLD returns the JSON-LD object of {{.Name}} and the script element
// carrying it.
func (s {{.Name}}) JSONLD() (map[string]any, kiln.Raw) {
	m := s.JSONLDValue()
	m["@context"] = kiln.SchemaContext
	return m, kiln.JSONLDScript(m)
}
`))

var actionTemplate = template.Must(template.New("action").Funcs(funcs).Parse(`
// {{.HandlerFunc}} serves {{.Name}} as an HTTP action.
func {{.HandlerFunc}}() http.HandlerFunc {
	return kiln.ActionHandler({{.Name}})
}

// {{.RouteFunc}} returns the route of {{.Name}} for kiln.MountActions.
func {{.RouteFunc}}() kiln.ActionRoute {
	return kiln.ActionRoute{Name: {{quote .Name}}, Path: {{quote .Path}}, Handler: {{.HandlerFunc}}()}
}
`))

type componentField struct {
	Param      string
	Field      string
	Type       string
	Default    string
	HasDefault bool
	Required   bool
}

type componentContext struct {
	Name   string
	Props  string
	Render string
	Fields []componentField
}

func newComponentContext(c *registry.Component) componentContext {
	ctx := componentContext{Name: c.Name, Props: c.PropsType(), Render: c.RenderFunc()}
	for _, p := range c.Props {
		ctx.Fields = append(ctx.Fields, componentField{
			Param:      p.Param,
			Field:      p.Field,
			Type:       p.Type,
			Default:    p.Default,
			HasDefault: p.HasDefault,
			Required:   p.Required(),
		})
	}
	if c.HasChildren() {
		ctx.Fields = append(ctx.Fields, componentField{
			Param: c.ChildrenParam,
			Field: c.ChildrenField(),
			Type:  "templ.Component",
		})
	}
	return ctx
}

type schemaContext struct {
	Name   string
	Type   string
	Fields []string
}

// Generate returns the Go declarations for decls and the import paths
// they need. nested reports whether a type of the package carries
// //kiln:schema.
func Generate(decls *Decls, nested func(typeName string) bool) (string, []string, error) {
	var buf bytes.Buffer
	imports := make(map[string]bool)

	for _, c := range decls.Components {
		if err := componentTemplate.Execute(&buf, newComponentContext(c)); err != nil {
			return "", nil, fmt.Errorf("generating component %s: %w", c.Name, err)
		}
		imports[RuntimePath] = true
		imports[TemplPath] = true
	}
	for _, s := range decls.Schemas {
		ctx := schemaContext{Name: s.Name, Type: s.Type}
		for _, f := range s.Fields {
			ctx.Fields = append(ctx.Fields, schemaField(f, nested != nil && f.Elem != "" && nested(f.Elem)))
		}
		if err := schemaTemplate.Execute(&buf, ctx); err != nil {
			return "", nil, fmt.Errorf("generating schema %s: %w", s.Name, err)
		}
		imports[RuntimePath] = true
	}
	for _, a := range decls.Actions {
		if err := actionTemplate.Execute(&buf, a); err != nil {
			return "", nil, fmt.Errorf("generating action %s: %w", a.Name, err)
		}
		imports[RuntimePath] = true
		imports[HTTPPath] = true
	}

	paths := make([]string, 0, len(imports))
	for p := range imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return buf.String(), paths, nil
}

// schemaField returns the statements adding one field to m.
func schemaField(f SchemaField, nested bool) string {
	key := strconv.Quote(f.Key)
	sel := "s." + f.Field
	value := sel
	if nested {
		value = sel + ".JSONLDValue()"
	}

	var b strings.Builder
	switch f.Shape {
	case ShapeValue:
		fmt.Fprintf(&b, "\tm[%s] = %s", key, value)
	case ShapePointer:
		if !nested {
			value = "*" + sel
		}
		fmt.Fprintf(&b, "\tif %s != nil {\n\t\tm[%s] = %s\n\t}", sel, key, value)
	case ShapeSlice:
		if !nested {
			fmt.Fprintf(&b, "\tif %s != nil {\n\t\tm[%s] = %s\n\t}", sel, key, sel)
			break
		}
		fmt.Fprintf(&b, "\tif %s != nil {\n", sel)
		fmt.Fprintf(&b, "\t\titems := make([]any, 0, len(%s))\n", sel)
		fmt.Fprintf(&b, "\t\tfor _, v := range %s {\n", sel)
		if f.ElemPointer {
			b.WriteString("\t\t\tif v == nil {\n\t\t\t\tcontinue\n\t\t\t}\n")
		}
		b.WriteString("\t\t\titems = append(items, v.JSONLDValue())\n\t\t}\n")
		fmt.Fprintf(&b, "\t\tm[%s] = items\n\t}", key)
	default:
		fmt.Fprintf(&b, "\tif %s != nil {\n\t\tm[%s] = %s\n\t}", sel, key, sel)
	}
	return b.String()
}
