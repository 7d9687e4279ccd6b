// Package bind checks <form bind={T}> templates against the fields of T.
//
// A form binding names a Go struct type. Every name attribute on an
// input, select or textarea inside the form must then be a field path of
// that type: each dot-separated segment matches a field's form tag, its
// json tag, or its Go name compared case-insensitively. Embedded structs
// are promoted and dotted paths walk nested struct fields.
package bind

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conneroisu/kiln/internal/suggest"
)

// Struct is the field set of a bound type.
type Struct struct {
	Name   string
	Fields []Field
}

// Field is one bindable field.
type Field struct {
	Name string
	Form string
	JSON string
	// Struct is the field's struct type when it has one.
	Struct *Struct
}

// Matches reports whether a path segment names the field.
func (f Field) Matches(segment string) bool {
	if segment == "" {
		return false
	}
	return segment == f.Form || segment == f.JSON || strings.EqualFold(segment, f.Name)
}

// Key is the spelling suggested for the field.
func (f Field) Key() string {
	switch {
	case f.Form != "":
		return f.Form
	case f.JSON != "":
		return f.JSON
	default:
		return strings.ToLower(f.Name)
	}
}

// Field returns the field a segment names.
func (s *Struct) Field(segment string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Matches(segment) {
			return f, true
		}
	}
	return Field{}, false
}

// Keys returns the suggested spelling of every field.
func (s *Struct) Keys() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Key())
	}
	return out
}

// PathError reports a name that is not a field path.
type PathError struct {
	Type string
	Path string
	// Segment is the first segment that failed to resolve.
	Segment string
	// Parent is the path before Segment.
	Parent string
	// Suggestion is the closest valid path, if any.
	Suggestion string
	// Within names the struct searched for Segment.
	Within string
	// Keys lists the fields valid at Segment.
	Keys []string
	// NotStruct is set when a segment follows a non-struct field.
	NotStruct bool
}

func (e *PathError) Error() string {
	if e.NotStruct {
		return fmt.Sprintf("%q is not a struct field of %s, so %q cannot follow it", e.Parent, e.Type, e.Segment)
	}
	return fmt.Sprintf("%q is not a field of %s", e.Path, e.Type)
}

// Lookup resolves a dotted field path.
func (s *Struct) Lookup(path string) error {
	cur := s
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		parent := strings.Join(segments[:i], ".")
		if cur == nil {
			return &PathError{Type: s.Name, Path: path, Segment: seg, Parent: parent, NotStruct: true}
		}
		f, ok := cur.Field(seg)
		if !ok {
			e := &PathError{Type: s.Name, Path: path, Segment: seg, Parent: parent, Within: cur.Name, Keys: cur.Keys()}
			if best, ok := suggest.Closest(seg, e.Keys); ok {
				e.Suggestion = join(parent, best)
			}
			return e
		}
		cur = f.Struct
	}
	return nil
}

// Paths lists every field path of the struct, nested ones included.
func (s *Struct) Paths() []string {
	var out []string
	seen := map[*Struct]bool{}
	var walk func(st *Struct, prefix string)
	walk = func(st *Struct, prefix string) {
		if seen[st] {
			return
		}
		seen[st] = true
		defer delete(seen, st)
		for _, f := range st.Fields {
			p := join(prefix, f.Key())
			out = append(out, p)
			if f.Struct != nil {
				walk(f.Struct, p)
			}
		}
	}
	walk(s, "")
	sort.Strings(out)
	return out
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Resolver finds the field set of a type expression such as User, *User
// or models.User.
type Resolver interface {
	Resolve(typeExpr string) (*Struct, error)
}

// Static is a Resolver over a fixed set of types, keyed by expression.
type Static map[string]*Struct

// Resolve implements Resolver.
func (m Static) Resolve(typeExpr string) (*Struct, error) {
	if s, ok := m[strings.TrimPrefix(strings.TrimSpace(typeExpr), "*")]; ok {
		return s, nil
	}
	return nil, &TypeError{Expr: typeExpr}
}

// TypeError reports a binding type that could not be found.
type TypeError struct {
	Expr   string
	Reason string
}

func (e *TypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot resolve bound type %s: %s", e.Expr, e.Reason)
	}
	return fmt.Sprintf("cannot resolve bound type %s", e.Expr)
}
