package kiln

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	g "maragu.dev/gomponents"
)

// Writer writes template output and keeps the first error. After an
// error every call is a no-op.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered.
func (kw *Writer) Err() error {
	return kw.err
}

// Literal writes s unescaped.
func (kw *Writer) Literal(s string) {
	if kw.err != nil || s == "" {
		return
	}
	_, kw.err = io.WriteString(kw.w, s)
}

// Component renders c. A nil component writes nothing.
func (kw *Writer) Component(ctx context.Context, c templ.Component) {
	if kw.err != nil || c == nil {
		return
	}
	kw.err = c.Render(ctx, kw.w)
}

// Value writes an interpolated value. Raw values are written as they
// are, components and nodes are rendered, and anything else is
// formatted with fmt.Sprint and escaped.
func (kw *Writer) Value(ctx context.Context, v any) {
	if kw.err != nil {
		return
	}
	switch v := v.(type) {
	case nil:
	case Raw:
		kw.Literal(string(v))
	case string:
		kw.Literal(Escape(v))
	case JSONValue:
		kw.json(v)
	case templ.Component:
		kw.Component(ctx, v)
	case g.Node:
		kw.err = v.Render(kw.w)
	case error:
		kw.Literal(Escape(v.Error()))
	default:
		kw.Literal(Escape(fmt.Sprint(v)))
	}
}

// Writef writes format with every %v replaced by the matching argument
// written through Value. %% writes a percent sign; no other verbs are
// recognised.
func (kw *Writer) Writef(ctx context.Context, format string, args ...any) {
	next := 0
	for kw.err == nil && format != "" {
		i := strings.IndexByte(format, '%')
		if i < 0 || i == len(format)-1 {
			kw.Literal(format)
			return
		}
		kw.Literal(format[:i])
		switch format[i+1] {
		case 'v':
			if next >= len(args) {
				kw.err = fmt.Errorf("kiln: format %q has more verbs than arguments", format)
				return
			}
			kw.Value(ctx, args[next])
			next++
		case '%':
			kw.Literal("%")
		default:
			kw.Literal(format[i : i+2])
		}
		format = format[i+2:]
	}
}

// JSONValue is a value written as JSON, for JSON-LD script bodies.
type JSONValue struct {
	V any
}

// JSONLDer is implemented by types generated with //kiln:schema.
type JSONLDer interface {
	JSONLD() (map[string]any, Raw)
}

// JSON marks v to be written as JSON. Values implementing JSONLDer are
// written as their JSON-LD object.
func JSON(v any) JSONValue {
	return JSONValue{V: v}
}

func (kw *Writer) json(v JSONValue) {
	src := v.V
	if ld, ok := src.(JSONLDer); ok {
		src, _ = ld.JSONLD()
	}
	// encoding/json escapes <, > and & so the output cannot close the
	// script element.
	data, err := json.Marshal(src)
	if err != nil {
		kw.err = fmt.Errorf("kiln: encoding JSON: %w", err)
		return
	}
	kw.Literal(string(data))
}
