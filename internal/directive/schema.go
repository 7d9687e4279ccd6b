package directive

import (
	"fmt"
	goast "go/ast"
	"reflect"
	"strconv"
	"strings"
)

// Shape says how a schema field is written and when it is left out.
type Shape int

const (
	// ShapeValue is always written.
	ShapeValue Shape = iota
	// ShapePointer is dereferenced, and omitted when nil.
	ShapePointer
	// ShapeSlice becomes an array, and is omitted when nil.
	ShapeSlice
	// ShapeMap is omitted when nil.
	ShapeMap
	// ShapeInterface is omitted when nil.
	ShapeInterface
)

// Schema is a struct serialized as JSON-LD.
type Schema struct {
	Name string
	// Type is the schema.org @type.
	Type   string
	Fields []SchemaField
}

// SchemaField is one serialized field.
type SchemaField struct {
	Field string
	Key   string
	Shape Shape
	// Elem names the field's type, or its element type for pointers and
	// slices, when that is a local named type. Fields whose Elem carries
	// //kiln:schema nest as objects.
	Elem string
	// ElemPointer is set for slices of pointers.
	ElemPointer bool
}

func (s *scanner) schema(ts *goast.TypeSpec, d Directive) (*Schema, bool) {
	st, ok := ts.Type.(*goast.StructType)
	if !ok {
		s.errorf("directive/schema", s.nodeSpan(ts), "//kiln:schema on non-struct type "+ts.Name.Name,
			"schemas are struct types")
		return nil, false
	}
	if ts.TypeParams != nil && len(ts.TypeParams.List) > 0 {
		s.errorf("directive/schema", s.nodeSpan(ts.TypeParams), "schema "+ts.Name.Name+" has type parameters", "")
		return nil, false
	}

	sc := &Schema{Name: ts.Name.Name, Type: ts.Name.Name}
	for _, arg := range strings.Fields(d.Args) {
		key, value, found := strings.Cut(arg, "=")
		if !found || key != "type" || !isIdentifier(value) {
			s.errorf("directive/syntax", d.Span, fmt.Sprintf("unexpected //kiln:schema argument %q", arg),
				"write //kiln:schema type=NewsArticle")
			return nil, false
		}
		sc.Type = value
	}

	ok = true
	keys := make(map[string]string)
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			continue
		}
		key, skip := schemaTag(field.Tag)
		if skip {
			continue
		}
		shape, elem, elemPtr := shapeOf(field.Type)
		for _, n := range field.Names {
			if !n.IsExported() {
				continue
			}
			k := key
			if k == "" {
				k = CamelKey(n.Name)
			}
			if strings.HasPrefix(k, "@") {
				s.errorf("directive/schema", s.nodeSpan(n), fmt.Sprintf("key %q is reserved", k),
					"@context and @type are written by the generated code")
				ok = false
				continue
			}
			if prev, dup := keys[k]; dup {
				s.errorf("directive/schema", s.nodeSpan(n),
					fmt.Sprintf("fields %s and %s both use key %q", prev, n.Name, k),
					`rename one with a schema:"key" tag`)
				ok = false
				continue
			}
			keys[k] = n.Name
			sc.Fields = append(sc.Fields, SchemaField{Field: n.Name, Key: k, Shape: shape, Elem: elem, ElemPointer: elemPtr})
		}
	}
	return sc, ok
}

func schemaTag(lit *goast.BasicLit) (key string, skip bool) {
	if lit == nil {
		return "", false
	}
	raw, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	v, ok := reflect.StructTag(raw).Lookup("schema")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(v, ",")
	if name == "-" {
		return "", true
	}
	return name, false
}

func shapeOf(expr goast.Expr) (Shape, string, bool) {
	switch t := expr.(type) {
	case *goast.Ident:
		if t.Name == "any" {
			return ShapeInterface, "", false
		}
		return ShapeValue, t.Name, false
	case *goast.StarExpr:
		if id, ok := t.X.(*goast.Ident); ok {
			return ShapePointer, id.Name, false
		}
		return ShapePointer, "", false
	case *goast.ArrayType:
		if t.Len != nil {
			return ShapeValue, "", false
		}
		switch e := t.Elt.(type) {
		case *goast.Ident:
			return ShapeSlice, e.Name, false
		case *goast.StarExpr:
			if id, ok := e.X.(*goast.Ident); ok {
				return ShapeSlice, id.Name, true
			}
		}
		return ShapeSlice, "", false
	case *goast.MapType:
		return ShapeMap, "", false
	case *goast.InterfaceType:
		return ShapeInterface, "", false
	}
	return ShapeValue, "", false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
